package worker

import (
	"context"
	"fmt"
	"time"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

var _ output.Worker = (*Stub)(nil)

// StubFunc produces the result of a stub invocation.
type StubFunc func(ctx context.Context, req entity.WorkerRequest, mem output.MemoryWriter) (string, error)

// Stub is a deterministic worker that never calls a model. It answers after
// Delay with the output of Fn, or with "<id> done: <task id>" when Fn is nil.
type Stub struct {
	WorkerID string
	Info     string
	Delay    time.Duration
	Fn       StubFunc
}

func NewStub(id, description string) *Stub {
	return &Stub{WorkerID: id, Info: description}
}

func (s *Stub) ID() string { return s.WorkerID }

func (s *Stub) Description() string {
	if s.Info == "" {
		return "Deterministic worker " + s.WorkerID
	}
	return s.Info
}

func (s *Stub) Invoke(ctx context.Context, req entity.WorkerRequest, mem output.MemoryWriter) (string, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Fn != nil {
		return s.Fn(ctx, req, mem)
	}
	return fmt.Sprintf("%s done: %s", s.WorkerID, req.Task.ID), nil
}
