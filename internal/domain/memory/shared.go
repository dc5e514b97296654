// Package memory holds the per-run shared state visible to workers.
//
// A SharedMemory is owned by exactly one orchestration run. Readers take
// deep-copied snapshots; every mutation goes through one sync.RWMutex write
// section, so a round's updates are never partially visible.
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"orchestra-agent/internal/domain/entity"
)

const SystemSender = "orchestrator"

type SharedMemory struct {
	mu       sync.RWMutex
	plan     *entity.TaskPlan
	data     map[string]string
	messages []entity.SharedMessage
	round    int
	now      func() time.Time
}

func New() *SharedMemory {
	return &SharedMemory{
		data: make(map[string]string),
		now:  time.Now,
	}
}

func (m *SharedMemory) SetPlan(plan *entity.TaskPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan = plan.Clone()
}

func (m *SharedMemory) GetPlan() *entity.TaskPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan.Clone()
}

func (m *SharedMemory) GetData(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *SharedMemory) Data() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyData(m.data)
}

func (m *SharedMemory) DataKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetProgress returns (completed, total); (0, 0) before a plan exists.
func (m *SharedMemory) GetProgress() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.plan == nil {
		return 0, 0
	}
	return m.plan.Progress()
}

func (m *SharedMemory) Round() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

func (m *SharedMemory) Messages() []entity.SharedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entity.SharedMessage(nil), m.messages...)
}

// MessagesFor returns broadcasts plus messages addressed to recipient.
func (m *SharedMemory) MessagesFor(recipient string) []entity.SharedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.SharedMessage
	for _, msg := range m.messages {
		if msg.Broadcast() || msg.Recipient == recipient {
			out = append(out, msg)
		}
	}
	return out
}

func (m *SharedMemory) PostMessage(sender, recipient, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, entity.SharedMessage{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: m.now(),
	})
}

// Snapshot returns a deep copy; later writes never leak into it.
func (m *SharedMemory) Snapshot() entity.MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return entity.MemorySnapshot{
		Round:    m.round,
		Plan:     m.plan.Clone(),
		Data:     copyData(m.data),
		Messages: append([]entity.SharedMessage(nil), m.messages...),
	}
}

// UpdateTaskMemory is the only write path exposed to workers. The task must
// be in progress; its status is left untouched and extra entries are merged
// into the data map.
func (m *SharedMemory) UpdateTaskMemory(taskID, result string, extra map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return fmt.Errorf("update task memory: no active plan")
	}
	task, ok := m.plan.Task(taskID)
	if !ok {
		return fmt.Errorf("update task memory: unknown task %q", taskID)
	}
	if task.Status != entity.TaskStatusInProgress {
		return fmt.Errorf("update task memory: task %q is %s, not in progress", taskID, task.Status)
	}

	if result != "" {
		task.SetResult(result)
	}
	for k, v := range extra {
		m.data[k] = v
	}
	return nil
}

func (m *SharedMemory) SetData(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// BeginRound moves a whole ready layer to InProgress in one write section and
// returns the snapshot the layer's workers will see.
func (m *SharedMemory) BeginRound(ids []string) (entity.MemorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return entity.MemorySnapshot{}, fmt.Errorf("begin round: no active plan")
	}
	for _, id := range ids {
		task, ok := m.plan.Task(id)
		if !ok {
			return entity.MemorySnapshot{}, fmt.Errorf("begin round: unknown task %q", id)
		}
		if err := task.Transition(entity.TaskStatusInProgress); err != nil {
			return entity.MemorySnapshot{}, fmt.Errorf("begin round: %w", err)
		}
	}
	m.round++

	return entity.MemorySnapshot{
		Round:    m.round,
		Plan:     m.plan.Clone(),
		Data:     copyData(m.data),
		Messages: append([]entity.SharedMessage(nil), m.messages...),
	}, nil
}

// ApplyRound folds every outcome of a round under a single write lock.
// A completed task keeps a result written through UpdateTaskMemory when the
// worker returned no text; a failed task always carries the error text.
func (m *SharedMemory) ApplyRound(outcomes map[string]entity.TaskOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return fmt.Errorf("apply round: no active plan")
	}

	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Validate first so a bad batch leaves the plan untouched.
	for _, id := range ids {
		task, ok := m.plan.Task(id)
		if !ok {
			return fmt.Errorf("apply round: unknown task %q", id)
		}
		if !task.Status.CanTransition(outcomes[id].Status) {
			return fmt.Errorf("apply round: task %s cannot move %s -> %s", id, task.Status, outcomes[id].Status)
		}
	}

	for _, id := range ids {
		out := outcomes[id]
		task, _ := m.plan.Task(id)
		task.Status = out.Status
		switch {
		case out.Status == entity.TaskStatusFailed:
			task.SetResult(out.Result)
		case out.Result != "" || task.Result == nil:
			task.SetResult(out.Result)
		}
		if task.Metadata == nil {
			task.Metadata = make(map[string]string)
		}
		task.Metadata["round"] = fmt.Sprintf("%d", m.round)
		task.Metadata["duration_ms"] = fmt.Sprintf("%d", out.Duration.Milliseconds())
	}
	return nil
}

// Clear drops all state at the end of a run.
func (m *SharedMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan = nil
	m.data = make(map[string]string)
	m.messages = nil
	m.round = 0
}

func copyData(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
