// Package graph provides the dependency graph used to schedule a task plan.
//
// Tasks live in an arena indexed by their position in the plan; edges are
// stored as index lists so readiness checks never go through name lookups.
package graph

import (
	"sort"

	"orchestra-agent/internal/domain/entity"
)

// Graph is immutable once built. It shares its index space with the
// plan's Tasks slice it was built from.
type Graph struct {
	ids   []string
	index map[string]int
	// deps[i] lists the indexes task i depends on.
	deps [][]int
	// dependents[i] lists the indexes that depend on task i.
	dependents [][]int
}

// Build validates ids and edges and rejects cycles. Duplicate ids and
// references to unknown tasks are reported as *entity.PlanParseError, cycles
// as *entity.DependencyCycleError.
func Build(tasks []entity.Task) (*Graph, error) {
	g := &Graph{
		ids:        make([]string, len(tasks)),
		index:      make(map[string]int, len(tasks)),
		deps:       make([][]int, len(tasks)),
		dependents: make([][]int, len(tasks)),
	}

	for i, t := range tasks {
		if _, dup := g.index[t.ID]; dup {
			return nil, entity.NewPlanParseError("duplicate task id %q", t.ID)
		}
		g.ids[i] = t.ID
		g.index[t.ID] = i
	}

	for i, t := range tasks {
		seen := make(map[int]bool, len(t.Dependencies))
		for _, depID := range t.Dependencies {
			j, ok := g.index[depID]
			if !ok {
				return nil, entity.NewPlanParseError("task %q depends on unknown task %q", t.ID, depID)
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}

	if stuck := g.unreachable(); len(stuck) > 0 {
		return nil, &entity.DependencyCycleError{TaskIDs: stuck}
	}
	return g, nil
}

// unreachable runs Kahn's algorithm and returns the ids it could not order.
func (g *Graph) unreachable() []string {
	indegree := make([]int, len(g.ids))
	for i := range g.deps {
		indegree[i] = len(g.deps[i])
	}

	queue := make([]int, 0, len(g.ids))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range g.dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if visited == len(g.ids) {
		return nil
	}

	var stuck []string
	for i, d := range indegree {
		if d > 0 {
			stuck = append(stuck, g.ids[i])
		}
	}
	return stuck
}

// Layers returns the topological layers: every task in layer k depends only
// on tasks from layers < k. With no failures and an unlimited round budget,
// the scheduler executes exactly these layers in order.
func (g *Graph) Layers() [][]string {
	depth := make([]int, len(g.ids))
	order := g.order()
	maxDepth := -1
	for _, n := range order {
		for _, d := range g.deps[n] {
			if depth[d]+1 > depth[n] {
				depth[n] = depth[d] + 1
			}
		}
		if depth[n] > maxDepth {
			maxDepth = depth[n]
		}
	}

	layers := make([][]string, maxDepth+1)
	for i, d := range depth {
		layers[d] = append(layers[d], g.ids[i])
	}
	return layers
}

func (g *Graph) order() []int {
	indegree := make([]int, len(g.ids))
	for i := range g.deps {
		indegree[i] = len(g.deps[i])
	}
	var queue, out []int
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	return out
}

// Ready returns, in arena order, the indexes of Pending tasks whose every
// dependency is terminal. status must be indexed like the graph.
func (g *Graph) Ready(status func(i int) entity.TaskStatus) []int {
	var ready []int
	for i := range g.ids {
		if status(i) != entity.TaskStatusPending {
			continue
		}
		ok := true
		for _, d := range g.deps[i] {
			if !status(d).Terminal() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, i)
		}
	}
	return ready
}

func (g *Graph) Len() int { return len(g.ids) }

func (g *Graph) ID(i int) string { return g.ids[i] }

func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) Dependencies(i int) []int { return g.deps[i] }

// Dependents returns the ids that directly depend on id, sorted.
func (g *Graph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.dependents[i]))
	for _, j := range g.dependents[i] {
		out = append(out, g.ids[j])
	}
	sort.Strings(out)
	return out
}
