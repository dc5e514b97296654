package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

const DefaultKeepFinished = 32

type RunManagerConfig struct {
	// Archive, when set, lets finished runs be dropped from memory as soon
	// as their record can be loaded back.
	Archive output.RunArchive
	// KeepFinished bounds the finished runs kept in memory when they are not
	// archived.
	KeepFinished int
}

// RunManager starts orchestration runs in the background and keeps their
// handles so callers can poll progress while a run is live.
type RunManager struct {
	orchestrator input.Orchestrator
	logger       output.LoggerPort
	archive      output.RunArchive
	keepFinished int

	mu       sync.RWMutex
	runs     map[string]input.RunHandle
	finished []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunManager(orchestrator input.Orchestrator, logger output.LoggerPort, cfg RunManagerConfig) *RunManager {
	keep := cfg.KeepFinished
	if keep <= 0 {
		keep = DefaultKeepFinished
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunManager{
		orchestrator: orchestrator,
		logger:       logger.Named("runs"),
		archive:      cfg.Archive,
		keepFinished: keep,
		runs:         make(map[string]input.RunHandle),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (m *RunManager) Start(objective string) input.RunHandle {
	run := m.orchestrator.Prepare(objective)

	m.mu.Lock()
	m.runs[run.ID()] = run
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.retire(run.ID())
		if _, err := m.orchestrator.Run(m.ctx, run); err != nil {
			m.logger.Warn("Run finished with error", "run_id", run.ID(), "error", err)
			return
		}
		m.logger.Info("Run finished", "run_id", run.ID())
	}()

	return run
}

// retire drops an archived run right away. Runs that could not be found in
// the archive stay readable until KeepFinished newer runs have finished.
func (m *RunManager) retire(id string) {
	if m.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := m.archive.Load(ctx, id)
		cancel()
		if err == nil {
			m.mu.Lock()
			delete(m.runs, id)
			m.mu.Unlock()
			m.logger.Debug("Evicted archived run", "run_id", id)
			return
		}
		m.logger.Warn("Finished run not found in archive, keeping it in memory", "run_id", id, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, id)
	for len(m.finished) > m.keepFinished {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

func (m *RunManager) Get(id string) (input.RunHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, entity.ErrRunNotFound
	}
	return run, nil
}

func (m *RunManager) List() []input.RunHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]input.RunHandle, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Shutdown cancels live runs and waits for them, or for ctx to expire.
func (m *RunManager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
