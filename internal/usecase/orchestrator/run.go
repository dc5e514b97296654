package orchestrator

import (
	"sync"
	"sync/atomic"

	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/domain/memory"
)

var _ input.RunHandle = (*Run)(nil)

// Run is one orchestration run. It owns the run's SharedMemory; readers
// only ever get copies.
type Run struct {
	id        string
	objective string
	mem       *memory.SharedMemory

	state   atomic.Value // entity.RunState
	started atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	result *entity.RunResult
	err    error
}

func newRun(id, objective string) *Run {
	r := &Run{
		id:        id,
		objective: objective,
		mem:       memory.New(),
		done:      make(chan struct{}),
	}
	r.state.Store(entity.RunStateCreated)
	return r
}

func (r *Run) ID() string        { return r.id }
func (r *Run) Objective() string { return r.objective }

func (r *Run) State() entity.RunState {
	return r.state.Load().(entity.RunState)
}

func (r *Run) GetPlan() *entity.TaskPlan         { return r.mem.GetPlan() }
func (r *Run) GetData(key string) (string, bool) { return r.mem.GetData(key) }
func (r *Run) GetProgress() (int, int)           { return r.mem.GetProgress() }
func (r *Run) Messages() []entity.SharedMessage  { return r.mem.Messages() }
func (r *Run) Done() <-chan struct{}             { return r.done }

// Result returns the outcome once the run is terminal, and (nil, nil) before.
func (r *Run) Result() (*entity.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *Run) setState(s entity.RunState) {
	r.state.Store(s)
}

func (r *Run) finish(res *entity.RunResult, err error) {
	r.mu.Lock()
	r.result = res
	r.err = err
	r.mu.Unlock()
	r.setState(res.State)
	close(r.done)
}
