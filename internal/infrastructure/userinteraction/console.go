package userinteraction

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

// ConsoleProgress prints run progress for the CLI.
type ConsoleProgress struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleProgress() *ConsoleProgress {
	return NewConsoleProgressTo(os.Stdout)
}

func NewConsoleProgressTo(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{out: w}
}

func (u *ConsoleProgress) ShowPlan(ctx context.Context, plan *entity.TaskPlan) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Plan: %d tasks ━━━\n", len(plan.Tasks))

	dim := color.New(color.Faint)
	for _, t := range plan.Tasks {
		fmt.Fprintf(u.out, "  %s ", t.ID)
		color.New(color.FgYellow).Fprintf(u.out, "[%s]", t.AssignedTo)
		fmt.Fprintf(u.out, " %s", truncate(t.Description, 80))
		if len(t.Dependencies) > 0 {
			dim.Fprintf(u.out, " (after %s)", strings.Join(t.Dependencies, ", "))
		}
		fmt.Fprintln(u.out)
	}
}

func (u *ConsoleProgress) ShowRound(ctx context.Context, round, maxRounds int, taskIDs []string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Round %d/%d ━━━\n", round, maxRounds)
	color.New(color.Faint).Fprintf(u.out, "   running: %s\n", strings.Join(taskIDs, ", "))
}

func (u *ConsoleProgress) ShowTaskResult(ctx context.Context, task entity.Task, outcome entity.TaskOutcome) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if outcome.Status == entity.TaskStatusFailed {
		red := color.New(color.FgRed)
		red.Fprintf(u.out, "✗ %s (%s) failed: ", task.ID, task.AssignedTo)
		color.New(color.Faint).Fprintln(u.out, truncate(outcome.Result, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(u.out, "✓ %s (%s) in %s: ", task.ID, task.AssignedTo, outcome.Duration.Round(time.Millisecond))
	fmt.Fprintln(u.out, truncate(task.ResultText(), 200))
}

func (u *ConsoleProgress) ShowState(ctx context.Context, state entity.RunState) {
	u.mu.Lock()
	defer u.mu.Unlock()

	c := color.New(color.FgBlue)
	switch state {
	case entity.RunStateDone:
		c = color.New(color.FgGreen, color.Bold)
	case entity.RunStateFailed:
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(u.out, "» %s\n", state)
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
