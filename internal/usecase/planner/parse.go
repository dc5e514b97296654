package planner

import (
	"strings"

	"github.com/tidwall/gjson"

	"orchestra-agent/internal/domain/entity"
)

// ParsePlanDescription reads the planner's reply into a PlanDescription.
// The reply may wrap the JSON object in prose or a code fence. Any shape
// problem is reported as a PlanParseError.
func ParsePlanDescription(raw string) (*entity.PlanDescription, error) {
	doc, ok := extractObject(raw)
	if !ok {
		return nil, entity.NewPlanParseError("no JSON object in planner response")
	}
	if !gjson.Valid(doc) {
		return nil, entity.NewPlanParseError("planner response is not valid JSON")
	}

	root := gjson.Parse(doc)
	tasks := root.Get("tasks")
	if !tasks.Exists() || tasks.Type == gjson.Null {
		return nil, entity.NewPlanParseError("missing required field \"tasks\"")
	}
	if !tasks.IsArray() {
		return nil, entity.NewPlanParseError("field \"tasks\" must be a list")
	}

	desc := &entity.PlanDescription{
		Objective: root.Get("objective").String(),
		Tasks:     []entity.PlannedTask{},
	}

	for i, v := range tasks.Array() {
		task, err := parseTask(i, v)
		if err != nil {
			return nil, err
		}
		desc.Tasks = append(desc.Tasks, task)
	}

	return desc, nil
}

func parseTask(pos int, v gjson.Result) (entity.PlannedTask, error) {
	if !v.IsObject() {
		return entity.PlannedTask{}, entity.NewPlanParseError("task #%d is not an object", pos)
	}

	var t entity.PlannedTask
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"id", &t.ID},
		{"description", &t.Description},
		{"assigned_to", &t.AssignedTo},
	} {
		field := v.Get(f.name)
		if field.Type != gjson.String || strings.TrimSpace(field.Str) == "" {
			return entity.PlannedTask{}, entity.NewPlanParseError("task #%d: missing required field %q", pos, f.name)
		}
		*f.dst = strings.TrimSpace(field.Str)
	}

	deps := v.Get("dependencies")
	switch {
	case !deps.Exists() || deps.Type == gjson.Null:
		t.Dependencies = []string{}
	case !deps.IsArray():
		return entity.PlannedTask{}, entity.NewPlanParseError("task %s: dependencies must be a list", t.ID)
	default:
		t.Dependencies = make([]string, 0, len(deps.Array()))
		for _, d := range deps.Array() {
			if d.Type != gjson.String || d.Str == "" {
				return entity.PlannedTask{}, entity.NewPlanParseError("task %s: dependencies must be a list of task ids", t.ID)
			}
			t.Dependencies = append(t.Dependencies, d.Str)
		}
	}

	return t, nil
}

func extractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}
