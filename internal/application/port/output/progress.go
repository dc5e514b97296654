package output

import (
	"context"

	"orchestra-agent/internal/domain/entity"
)

type ProgressPort interface {
	ShowPlan(ctx context.Context, plan *entity.TaskPlan)
	ShowRound(ctx context.Context, round, maxRounds int, taskIDs []string)
	ShowTaskResult(ctx context.Context, task entity.Task, outcome entity.TaskOutcome)
	ShowState(ctx context.Context, state entity.RunState)
}

type RunArchive interface {
	Save(ctx context.Context, record *entity.RunRecord) error
	Load(ctx context.Context, runID string) (*entity.RunRecord, error)
}

type MetricsPort interface {
	RoundCompleted(tasks int, seconds float64)
	TaskFinished(worker string, status entity.TaskStatus, seconds float64)
	RunFinished(state entity.RunState, budgetExhausted bool)
}
