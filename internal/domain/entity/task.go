package entity

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is final. Failed counts as terminal so
// that a failed dependency never blocks downstream work.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces Pending -> InProgress -> {Completed|Failed}.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next.Terminal()
	default:
		return false
	}
}

type Task struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	AssignedTo   string            `json:"assigned_to"`
	Status       TaskStatus        `json:"status"`
	Result       *string           `json:"result,omitempty"`
	Dependencies []string          `json:"dependencies"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (t *Task) Transition(next TaskStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("task %s: illegal status transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

func (t *Task) ResultText() string {
	if t.Result == nil {
		return ""
	}
	return *t.Result
}

func (t *Task) SetResult(result string) {
	t.Result = &result
}

func (t Task) Clone() Task {
	c := t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

type TaskPlan struct {
	PlanID    string    `json:"plan_id"`
	Objective string    `json:"objective"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *TaskPlan) Task(id string) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

func (p *TaskPlan) Clone() *TaskPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return &c
}

// Progress returns (completed, total). Only successfully completed tasks count.
func (p *TaskPlan) Progress() (int, int) {
	completed := 0
	for _, t := range p.Tasks {
		if t.Status == TaskStatusCompleted {
			completed++
		}
	}
	return completed, len(p.Tasks)
}

func (p *TaskPlan) AllTerminal() bool {
	for _, t := range p.Tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

func (p *TaskPlan) CountStatus(status TaskStatus) int {
	n := 0
	for _, t := range p.Tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// PlanDescription is the structured value returned by the planning collaborator.
type PlanDescription struct {
	Objective string        `json:"objective"`
	Tasks     []PlannedTask `json:"tasks"`
}

type PlannedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	AssignedTo   string   `json:"assigned_to"`
	Dependencies []string `json:"dependencies"`
}

// TaskOutcome is what one worker invocation produced in a round.
type TaskOutcome struct {
	TaskID   string
	Status   TaskStatus
	Result   string
	Err      error
	Duration time.Duration
}
