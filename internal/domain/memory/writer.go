package memory

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrOutOfScope is returned when a task writer is used for another task or
// after its round ended.
var ErrOutOfScope = errors.New("write outside task scope")

// Writer is the only write access a worker gets to shared memory.
type Writer interface {
	UpdateTaskMemory(taskID, result string, extra map[string]string) error
	PostMessage(sender, recipient, content string)
}

type taskWriter struct {
	mem     *SharedMemory
	taskID  string
	sender  string
	revoked atomic.Bool
}

// WriterFor binds a writer to one task. Messages are always posted as
// sender. The returned revoke func disables the writer; a worker that
// outlives its round can no longer write.
func (m *SharedMemory) WriterFor(taskID, sender string) (Writer, func()) {
	w := &taskWriter{mem: m, taskID: taskID, sender: sender}
	return w, func() { w.revoked.Store(true) }
}

func (w *taskWriter) UpdateTaskMemory(taskID, result string, extra map[string]string) error {
	if w.revoked.Load() {
		return fmt.Errorf("update task memory: %w: round for task %q has ended", ErrOutOfScope, w.taskID)
	}
	if taskID != w.taskID {
		return fmt.Errorf("update task memory: %w: writer of task %q cannot update %q", ErrOutOfScope, w.taskID, taskID)
	}
	return w.mem.UpdateTaskMemory(taskID, result, extra)
}

func (w *taskWriter) PostMessage(_, recipient, content string) {
	if w.revoked.Load() {
		return
	}
	w.mem.PostMessage(w.sender, recipient, content)
}
