package input

import (
	"context"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

type ExecuteResult struct {
	FinalAnswer     string
	Rounds          int
	State           entity.RunState
	Plan            *entity.TaskPlan
	BudgetExhausted bool
}

type TaskExecutor interface {
	Execute(ctx context.Context, objective string) (*ExecuteResult, error)
}

// RunHandle is the monitoring view of one orchestration run.
type RunHandle interface {
	ID() string
	Objective() string
	State() entity.RunState
	output.MemoryReader
	Result() (*entity.RunResult, error)
}

type Orchestrator interface {
	TaskExecutor
	Prepare(objective string) RunHandle
	Run(ctx context.Context, run RunHandle) (*entity.RunResult, error)
}
