package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"orchestra-agent/internal/di"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/usecase/synthesizer"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run one objective in the foreground",
	Long: `Run plans the objective, executes the plan round by round and prints the
final answer. Without arguments the objective is read from stdin.`,
	RunE: runObjective,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "Overall deadline for the run")
}

func runObjective(cmd *cobra.Command, args []string) error {
	objective := strings.TrimSpace(strings.Join(args, " "))
	if objective == "" {
		fmt.Println("Enter the objective:")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read objective: %w", err)
		}
		objective = strings.TrimSpace(line)
	}
	if objective == "" {
		return fmt.Errorf("objective must not be empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := loadConfig(objective)
	cfg.ConsoleProgress = true

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer container.Close()

	run := container.Orchestrator.Prepare(objective)
	container.Logger.Info("Objective started", "run_id", run.ID(), "objective", objective)

	res, err := container.Orchestrator.Run(ctx, run)
	if err != nil {
		color.New(color.FgRed, color.Bold).Printf("\nRun %s failed: %v\n", run.ID(), err)
		if res != nil && res.Plan != nil {
			fmt.Println()
			fmt.Println(synthesizer.Report(res.Plan))
		}
		return err
	}

	color.New(color.FgGreen, color.Bold).Println("\nFINAL ANSWER:")
	fmt.Println(res.FinalAnswer)

	if res.BudgetExhausted {
		completed, total := res.Plan.Progress()
		color.New(color.FgYellow).Printf("\nRound budget exhausted after %d rounds (%d/%d tasks completed).\n", res.Rounds, completed, total)
		if n := res.Plan.CountStatus(entity.TaskStatusPending); n > 0 {
			fmt.Println(synthesizer.Report(res.Plan))
		}
	}
	return nil
}
