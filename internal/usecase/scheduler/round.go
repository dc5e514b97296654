package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/domain/memory"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const DefaultWorkerTimeout = 5 * time.Minute

type RoundExecutor struct {
	workers output.WorkerRegistry
	logger  output.LoggerPort
	metrics output.MetricsPort
	timeout time.Duration
}

type Config struct {
	// WorkerTimeout bounds a single invocation; zero disables the bound.
	WorkerTimeout time.Duration
	Metrics       output.MetricsPort
}

func NewRoundExecutor(workers output.WorkerRegistry, logger output.LoggerPort, cfg Config) *RoundExecutor {
	return &RoundExecutor{
		workers: workers,
		logger:  logger.Named("scheduler"),
		metrics: cfg.Metrics,
		timeout: cfg.WorkerTimeout,
	}
}

// RunRound dispatches one ready layer concurrently and blocks until every
// invocation has returned. All workers share the snapshot taken when the
// layer moved to InProgress; outcomes are folded into mem as one batch after
// the barrier. A failing worker only fails its own task. Each worker writes
// through a writer bound to its own task, revoked at the barrier.
func (e *RoundExecutor) RunRound(ctx context.Context, ready []string, mem *memory.SharedMemory) (map[string]entity.TaskOutcome, error) {
	if len(ready) == 0 {
		return map[string]entity.TaskOutcome{}, nil
	}

	snapshot, err := mem.BeginRound(ready)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	e.logger.Info("Round started", "round", snapshot.Round, "tasks", ready)

	results := make([]entity.TaskOutcome, len(ready))
	revokes := make([]func(), len(ready))
	var wg conc.WaitGroup
	for i, id := range ready {
		task, _ := snapshot.Plan.Task(id)
		req := entity.WorkerRequest{
			Task:      task.Clone(),
			Objective: snapshot.Plan.Objective,
			Snapshot:  snapshot,
		}
		writer, revoke := mem.WriterFor(task.ID, task.AssignedTo)
		revokes[i] = revoke
		wg.Go(func() {
			results[i] = e.dispatch(ctx, req, writer)
		})
	}
	wg.Wait()
	for _, revoke := range revokes {
		revoke()
	}

	outcomes := make(map[string]entity.TaskOutcome, len(results))
	for _, out := range results {
		outcomes[out.TaskID] = out
	}
	if err := mem.ApplyRound(outcomes); err != nil {
		return nil, fmt.Errorf("fold round %d: %w", snapshot.Round, err)
	}

	elapsed := time.Since(started)
	if e.metrics != nil {
		e.metrics.RoundCompleted(len(ready), elapsed.Seconds())
	}
	e.logger.Info("Round finished", "round", snapshot.Round, "duration", elapsed.String())
	return outcomes, nil
}

func (e *RoundExecutor) dispatch(ctx context.Context, req entity.WorkerRequest, mem output.MemoryWriter) entity.TaskOutcome {
	task := req.Task
	started := time.Now()
	log := e.logger.WithFields(map[string]any{"task_id": task.ID, "worker": task.AssignedTo})

	out := entity.TaskOutcome{TaskID: task.ID}

	worker, ok := e.workers.Get(task.AssignedTo)
	if !ok {
		err := &entity.UnknownWorkerError{TaskID: task.ID, Worker: task.AssignedTo}
		out = failed(task, err)
	} else {
		log.Debug("Invoking worker")
		result, err := e.invoke(ctx, worker, req, mem)
		if err != nil {
			out = failed(task, err)
		} else {
			out.Status = entity.TaskStatusCompleted
			out.Result = result
		}
	}
	out.Duration = time.Since(started)

	if out.Status == entity.TaskStatusFailed {
		log.Warn("Task failed", "error", out.Err)
	} else {
		log.Info("Task completed", "resultLen", len(out.Result))
	}
	if e.metrics != nil {
		e.metrics.TaskFinished(task.AssignedTo, out.Status, out.Duration.Seconds())
	}
	return out
}

type invokeResult struct {
	text string
	err  error
}

// invoke runs the worker in its own goroutine so a worker that ignores ctx
// still cannot hold the round past the timeout. Panics become errors.
func (e *RoundExecutor) invoke(ctx context.Context, worker output.Worker, req entity.WorkerRequest, mem output.MemoryWriter) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan invokeResult, 1)
	go func() {
		var res invokeResult
		var pc panics.Catcher
		pc.Try(func() {
			res.text, res.err = worker.Invoke(ctx, req, mem)
		})
		if r := pc.Recovered(); r != nil {
			res = invokeResult{err: fmt.Errorf("worker panicked: %v", r.Value)}
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("worker invocation aborted: %w", ctx.Err())
	}
}

func failed(task entity.Task, err error) entity.TaskOutcome {
	wrapped := err
	var unknown *entity.UnknownWorkerError
	if !errors.As(err, &unknown) {
		wrapped = &entity.WorkerExecutionError{TaskID: task.ID, Worker: task.AssignedTo, Err: err}
	}
	return entity.TaskOutcome{
		TaskID: task.ID,
		Status: entity.TaskStatusFailed,
		Result: wrapped.Error(),
		Err:    wrapped,
	}
}
