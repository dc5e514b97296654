package scheduler

import (
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/domain/graph"
)

// Resolver computes the next ready layer of a plan. It is built once per
// plan; Ready is side-effect free.
type Resolver struct {
	graph *graph.Graph
	// idleCalls counts consecutive Next calls that found nothing to run
	// while pending work remained, with no executed round in between.
	idleCalls int
}

// NewResolver validates the plan's dependency edges and rejects cycles.
func NewResolver(plan *entity.TaskPlan) (*Resolver, error) {
	g, err := graph.Build(plan.Tasks)
	if err != nil {
		return nil, err
	}
	return &Resolver{graph: g}, nil
}

func (r *Resolver) Graph() *graph.Graph { return r.graph }

// Ready returns, in plan order, every Pending task whose dependencies are all
// Completed or Failed.
func (r *Resolver) Ready(plan *entity.TaskPlan) []string {
	idx := r.graph.Ready(func(i int) entity.TaskStatus {
		return plan.Tasks[i].Status
	})
	ids := make([]string, len(idx))
	for k, i := range idx {
		ids[k] = r.graph.ID(i)
	}
	return ids
}

// Next is Ready plus stall detection: when two consecutive calls see an
// empty ready set with pending work left and no round ran in between, the
// plan can never finish and a DependencyCycleError is returned.
func (r *Resolver) Next(plan *entity.TaskPlan) ([]string, error) {
	ready := r.Ready(plan)
	if len(ready) > 0 {
		r.idleCalls = 0
		return ready, nil
	}

	pending := pendingIDs(plan)
	if len(pending) == 0 {
		r.idleCalls = 0
		return nil, nil
	}

	r.idleCalls++
	if r.idleCalls >= 2 {
		return nil, &entity.DependencyCycleError{TaskIDs: pending}
	}
	return nil, nil
}

// RoundExecuted resets stall detection after tasks ran.
func (r *Resolver) RoundExecuted() {
	r.idleCalls = 0
}

func pendingIDs(plan *entity.TaskPlan) []string {
	var ids []string
	for _, t := range plan.Tasks {
		if t.Status == entity.TaskStatusPending {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
