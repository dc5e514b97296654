package entity

// WorkerInfo is what the planner sees about a registered worker.
type WorkerInfo struct {
	ID          string
	Description string
}

// WorkerRequest is the input handed to a worker invocation. Snapshot is taken
// at round start and never reflects results of sibling tasks in the same round.
type WorkerRequest struct {
	Task      Task
	Objective string
	Snapshot  MemorySnapshot
}

// MemorySnapshot is a deep, read-only copy of shared memory.
type MemorySnapshot struct {
	Round    int
	Plan     *TaskPlan
	Data     map[string]string
	Messages []SharedMessage
}

func (s MemorySnapshot) Get(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// Dependencies returns the snapshot view of every dependency of the task.
func (s MemorySnapshot) Dependencies(task Task) []Task {
	if s.Plan == nil {
		return nil
	}
	deps := make([]Task, 0, len(task.Dependencies))
	for _, id := range task.Dependencies {
		if t, ok := s.Plan.Task(id); ok {
			deps = append(deps, *t)
		}
	}
	return deps
}
