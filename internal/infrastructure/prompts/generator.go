package prompts

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"orchestra-agent/internal/domain/entity"
)

type PlannerPromptData struct {
	Workers []entity.WorkerInfo
}

func GeneratePlannerPrompt(baseTemplate string, workers []entity.WorkerInfo) (string, error) {
	sorted := append([]entity.WorkerInfo(nil), workers...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return render("planner", baseTemplate, PlannerPromptData{Workers: sorted})
}

func GenerateWorkerSystemPrompt(baseTemplate, workerID, description string) (string, error) {
	return render("worker_system", baseTemplate, struct {
		WorkerID    string
		Description string
	}{workerID, description})
}

type UpstreamResult struct {
	ID         string
	AssignedTo string
	Status     string
	Text       string
}

type WorkerTaskData struct {
	Objective string
	Task      entity.Task
	Upstream  []UpstreamResult
	DataKeys  []string
	Messages  []entity.SharedMessage
}

// UpstreamResults renders the dependencies of a task as seen in the round
// snapshot. A failed dependency is passed on with its error text.
func UpstreamResults(req entity.WorkerRequest) []UpstreamResult {
	deps := req.Snapshot.Dependencies(req.Task)
	out := make([]UpstreamResult, 0, len(deps))
	for _, d := range deps {
		u := UpstreamResult{ID: d.ID, AssignedTo: d.AssignedTo, Status: strings.ToUpper(string(d.Status))}
		switch d.Status {
		case entity.TaskStatusFailed:
			u.Text = "[FAILED] " + d.ResultText()
		case entity.TaskStatusCompleted:
			u.Text = d.ResultText()
		default:
			u.Text = "(no result)"
		}
		out = append(out, u)
	}
	return out
}

func RenderWorkerTask(baseTemplate string, req entity.WorkerRequest) (string, error) {
	keys := make([]string, 0, len(req.Snapshot.Data))
	for k := range req.Snapshot.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msgs []entity.SharedMessage
	for _, m := range req.Snapshot.Messages {
		if m.Broadcast() || m.Recipient == req.Task.AssignedTo {
			msgs = append(msgs, m)
		}
	}

	return render("worker_task", baseTemplate, WorkerTaskData{
		Objective: req.Objective,
		Task:      req.Task,
		Upstream:  UpstreamResults(req),
		DataKeys:  keys,
		Messages:  msgs,
	})
}

type SynthesisTask struct {
	ID          string
	AssignedTo  string
	Description string
	Label       string
	Result      string
}

// StatusLabel is how a task status is named to the synthesizer and in reports.
func StatusLabel(s entity.TaskStatus) string {
	switch s {
	case entity.TaskStatusCompleted:
		return "COMPLETED"
	case entity.TaskStatusFailed:
		return "FAILED"
	case entity.TaskStatusInProgress:
		return "INTERRUPTED"
	default:
		return "DID NOT RUN"
	}
}

func RenderSynthesisTask(baseTemplate, objective string, tasks []entity.Task) (string, error) {
	items := make([]SynthesisTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, SynthesisTask{
			ID:          t.ID,
			AssignedTo:  t.AssignedTo,
			Description: t.Description,
			Label:       StatusLabel(t.Status),
			Result:      t.ResultText(),
		})
	}
	return render("synthesis_task", baseTemplate, struct {
		Objective string
		Tasks     []SynthesisTask
	}{objective, items})
}

func render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
