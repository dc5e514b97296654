package entity

import "time"

type RunState string

const (
	RunStateCreated      RunState = "created"
	RunStatePlanning     RunState = "planning"
	RunStateExecuting    RunState = "executing"
	RunStateSynthesizing RunState = "synthesizing"
	RunStateDone         RunState = "done"
	RunStateFailed       RunState = "failed"
)

func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// SharedMessage is one entry of the shared memory message log.
// An empty Recipient means broadcast.
type SharedMessage struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (m SharedMessage) Broadcast() bool {
	return m.Recipient == ""
}

type RunResult struct {
	RunID           string
	State           RunState
	FinalAnswer     string
	Plan            *TaskPlan
	Data            map[string]string
	Messages        []SharedMessage
	Rounds          int
	BudgetExhausted bool
	StartedAt       time.Time
	FinishedAt      time.Time
	Error           string
}

// RunRecord is the archived form of a finished run.
type RunRecord struct {
	RunID           string            `json:"run_id"`
	Objective       string            `json:"objective"`
	State           RunState          `json:"state"`
	FinalAnswer     string            `json:"final_answer,omitempty"`
	Plan            *TaskPlan         `json:"plan,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
	Messages        []SharedMessage   `json:"messages,omitempty"`
	Rounds          int               `json:"rounds"`
	BudgetExhausted bool              `json:"budget_exhausted"`
	Error           string            `json:"error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}
