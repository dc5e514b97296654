package service

import (
	"sort"
	"sync"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type ToolRegistryImpl struct {
	tools map[entity.ToolName]output.ToolPort
}

func NewToolRegistry(tools ...output.ToolPort) *ToolRegistryImpl {
	r := &ToolRegistryImpl{
		tools: make(map[entity.ToolName]output.ToolPort),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) {
	r.tools[tool.Name()] = tool
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns tools sorted by name so prompts are stable between calls.
func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	all := r.All()
	result := make([]entity.ToolDefinition, 0, len(all))
	for _, tool := range all {
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name().String(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}

var _ output.WorkerRegistry = (*WorkerRegistryImpl)(nil)

// WorkerRegistryImpl is populated at startup and read concurrently by rounds.
type WorkerRegistryImpl struct {
	mu      sync.RWMutex
	workers map[string]output.Worker
}

func NewWorkerRegistry() *WorkerRegistryImpl {
	return &WorkerRegistryImpl{
		workers: make(map[string]output.Worker),
	}
}

func (r *WorkerRegistryImpl) Register(worker output.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[worker.ID()] = worker
}

func (r *WorkerRegistryImpl) Get(id string) (output.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

func (r *WorkerRegistryImpl) List() []output.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]output.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

func (r *WorkerRegistryImpl) Infos() []entity.WorkerInfo {
	workers := r.List()
	infos := make([]entity.WorkerInfo, 0, len(workers))
	for _, w := range workers {
		infos = append(infos, entity.WorkerInfo{ID: w.ID(), Description: w.Description()})
	}
	return infos
}
