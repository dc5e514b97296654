package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlanParse       = errors.New("plan parse error")
	ErrUnknownWorker   = errors.New("unknown worker")
	ErrDependencyCycle = errors.New("dependency cycle")
	ErrWorkerExecution = errors.New("worker execution failed")
	ErrRunNotFound     = errors.New("run not found")
)

// PlanParseError means the planning collaborator returned a malformed plan.
type PlanParseError struct {
	Reason string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan parse error: %s", e.Reason)
}

func (e *PlanParseError) Is(target error) bool { return target == ErrPlanParse }

func NewPlanParseError(format string, args ...any) *PlanParseError {
	return &PlanParseError{Reason: fmt.Sprintf(format, args...)}
}

type UnknownWorkerError struct {
	TaskID string
	Worker string
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("task %s is assigned to unknown worker %q", e.TaskID, e.Worker)
}

func (e *UnknownWorkerError) Is(target error) bool { return target == ErrUnknownWorker }

// DependencyCycleError lists the tasks that can never become ready.
type DependencyCycleError struct {
	TaskIDs []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle or unsatisfiable dependency among tasks [%s]", strings.Join(e.TaskIDs, ", "))
}

func (e *DependencyCycleError) Is(target error) bool { return target == ErrDependencyCycle }

// WorkerExecutionError is recorded on a single task; it never aborts the run.
type WorkerExecutionError struct {
	TaskID string
	Worker string
	Err    error
}

func (e *WorkerExecutionError) Error() string {
	return fmt.Sprintf("worker %s failed on task %s: %v", e.Worker, e.TaskID, e.Err)
}

func (e *WorkerExecutionError) Unwrap() error { return e.Err }

func (e *WorkerExecutionError) Is(target error) bool { return target == ErrWorkerExecution }
