package output

import (
	"context"

	"orchestra-agent/internal/domain/entity"
)

// Worker is the single capability every worker variant implements.
type Worker interface {
	ID() string
	Description() string
	Invoke(ctx context.Context, req entity.WorkerRequest, mem MemoryWriter) (string, error)
}

type WorkerRegistry interface {
	Register(worker Worker)
	Get(id string) (Worker, bool)
	List() []Worker
	Infos() []entity.WorkerInfo
}

// MemoryWriter is the narrow write contract exposed to workers.
type MemoryWriter interface {
	UpdateTaskMemory(taskID, result string, extra map[string]string) error
	PostMessage(sender, recipient, content string)
}

// MemoryReader is the read contract exposed to workers and monitoring callers.
type MemoryReader interface {
	GetPlan() *entity.TaskPlan
	GetData(key string) (string, bool)
	GetProgress() (completed int, total int)
	Messages() []entity.SharedMessage
}

type Planner interface {
	Plan(ctx context.Context, objective string, workers []entity.WorkerInfo) (*entity.PlanDescription, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, objective string, tasks []entity.Task) (string, error)
}
