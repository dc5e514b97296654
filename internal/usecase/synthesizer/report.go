package synthesizer

import (
	"fmt"
	"strings"

	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/prompts"
)

// Report renders a deterministic markdown summary of every task of a plan.
// Tasks that did not complete are listed by name before the details.
func Report(plan *entity.TaskPlan) string {
	if plan == nil {
		return "# Run report\n\nNo plan was created.\n"
	}

	var b strings.Builder
	completed, total := plan.Progress()
	fmt.Fprintf(&b, "# Run report\n\nObjective: %s\n\nCompleted %d/%d tasks.\n", plan.Objective, completed, total)

	var missing []string
	for _, t := range plan.Tasks {
		if t.Status != entity.TaskStatusCompleted {
			missing = append(missing, fmt.Sprintf("%s (%s)", t.ID, prompts.StatusLabel(t.Status)))
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "Not completed: %s\n", strings.Join(missing, ", "))
	}

	b.WriteString("\n| Task | Worker | Status |\n|---|---|---|\n")
	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", t.ID, t.AssignedTo, prompts.StatusLabel(t.Status))
	}

	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "\n## %s - %s\n\n%s\n", t.ID, t.Description, orNone(t.ResultText()))
	}
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_no result_"
	}
	return s
}
