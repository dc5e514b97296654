package userinteraction

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"orchestra-agent/internal/domain/entity"
)

func newTestProgress(t *testing.T) (*ConsoleProgress, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	return NewConsoleProgressTo(&buf), &buf
}

func TestConsoleProgress_Plan(t *testing.T) {
	p, buf := newTestProgress(t)

	p.ShowPlan(context.Background(), &entity.TaskPlan{Tasks: []entity.Task{
		{ID: "t1", AssignedTo: "researcher", Description: "find facts"},
		{ID: "t2", AssignedTo: "writer", Description: "write it up", Dependencies: []string{"t1"}},
	}})

	out := buf.String()
	assert.Contains(t, out, "Plan: 2 tasks")
	assert.Contains(t, out, "t1 [researcher] find facts")
	assert.Contains(t, out, "t2 [writer] write it up (after t1)")
}

func TestConsoleProgress_RoundAndResults(t *testing.T) {
	p, buf := newTestProgress(t)
	ctx := context.Background()

	p.ShowRound(ctx, 2, 10, []string{"t2", "t3"})

	done := entity.Task{ID: "t2", AssignedTo: "writer"}
	done.SetResult("draft\nwith  newlines")
	p.ShowTaskResult(ctx, done, entity.TaskOutcome{TaskID: "t2", Status: entity.TaskStatusCompleted, Duration: 1500 * time.Millisecond})
	p.ShowTaskResult(ctx, entity.Task{ID: "t3", AssignedTo: "critic"}, entity.TaskOutcome{TaskID: "t3", Status: entity.TaskStatusFailed, Result: "timeout"})
	p.ShowState(ctx, entity.RunStateDone)

	out := buf.String()
	assert.Contains(t, out, "Round 2/10")
	assert.Contains(t, out, "running: t2, t3")
	assert.Contains(t, out, "✓ t2 (writer) in 1.5s: draft with newlines")
	assert.Contains(t, out, "✗ t3 (critic) failed: timeout")
	assert.True(t, strings.HasSuffix(out, "» done\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "привет...", truncate("привет мир", 6))
}
