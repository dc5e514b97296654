package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"orchestra-agent/internal/application/port/input"
	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/domain/memory"
	"orchestra-agent/internal/usecase/scheduler"
)

const DefaultMaxRounds = 10

var _ input.Orchestrator = (*UseCase)(nil)

type Config struct {
	// MaxRounds bounds the Executing phase; reaching it is not an error.
	MaxRounds     int
	WorkerTimeout time.Duration
}

// Deps are the collaborators of the orchestrator. Progress, Archive and
// Metrics are optional.
type Deps struct {
	Planner     output.Planner
	Synthesizer output.Synthesizer
	Workers     output.WorkerRegistry
	Logger      output.LoggerPort
	Progress    output.ProgressPort
	Archive     output.RunArchive
	Metrics     output.MetricsPort
}

type UseCase struct {
	planner     output.Planner
	synthesizer output.Synthesizer
	workers     output.WorkerRegistry
	rounds      *scheduler.RoundExecutor
	logger      output.LoggerPort
	progress    output.ProgressPort
	archive     output.RunArchive
	metrics     output.MetricsPort
	maxRounds   int
}

func New(deps Deps, cfg Config) *UseCase {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	progress := deps.Progress
	if progress == nil {
		progress = noopProgress{}
	}
	return &UseCase{
		planner:     deps.Planner,
		synthesizer: deps.Synthesizer,
		workers:     deps.Workers,
		rounds: scheduler.NewRoundExecutor(deps.Workers, deps.Logger, scheduler.Config{
			WorkerTimeout: cfg.WorkerTimeout,
			Metrics:       deps.Metrics,
		}),
		logger:    deps.Logger.Named("orchestrator"),
		progress:  progress,
		archive:   deps.Archive,
		metrics:   deps.Metrics,
		maxRounds: maxRounds,
	}
}

// Execute runs an objective to completion and drops the run's memory. A
// failed run still returns its partial result with the error.
func (uc *UseCase) Execute(ctx context.Context, objective string) (*input.ExecuteResult, error) {
	run := uc.Prepare(objective)
	res, err := uc.Run(ctx, run)
	run.(*Run).mem.Clear()
	if res == nil {
		return nil, err
	}
	return &input.ExecuteResult{
		FinalAnswer:     res.FinalAnswer,
		Rounds:          res.Rounds,
		State:           res.State,
		Plan:            res.Plan,
		BudgetExhausted: res.BudgetExhausted,
	}, err
}

func (uc *UseCase) Prepare(objective string) input.RunHandle {
	return newRun(uuid.NewString(), objective)
}

// Run drives the state machine Created -> Planning -> Executing ->
// Synthesizing -> Done. Structural errors move the run to Failed; the partial
// result is returned together with the error.
func (uc *UseCase) Run(ctx context.Context, handle input.RunHandle) (*entity.RunResult, error) {
	run, ok := handle.(*Run)
	if !ok {
		return nil, fmt.Errorf("run handle %T was not prepared by this orchestrator", handle)
	}
	if !run.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("run %s already started", run.id)
	}

	log := uc.logger.WithField("run_id", run.id)
	log.Info("Orchestrator executing objective", "objective", run.objective)

	res := &entity.RunResult{RunID: run.id, StartedAt: time.Now()}

	resolver, err := uc.plan(ctx, run, log)
	if err != nil {
		return uc.finish(ctx, run, res, err)
	}

	res.Rounds, res.BudgetExhausted, err = uc.execute(ctx, run, resolver, log)
	if err != nil {
		return uc.finish(ctx, run, res, err)
	}

	uc.enter(ctx, run, entity.RunStateSynthesizing)
	plan := run.mem.GetPlan()
	answer, err := uc.synthesizer.Synthesize(ctx, plan.Objective, plan.Tasks)
	if err != nil {
		return uc.finish(ctx, run, res, fmt.Errorf("synthesis failed: %w", err))
	}
	res.FinalAnswer = answer

	return uc.finish(ctx, run, res, nil)
}

func (uc *UseCase) plan(ctx context.Context, run *Run, log output.LoggerPort) (*scheduler.Resolver, error) {
	uc.enter(ctx, run, entity.RunStatePlanning)

	desc, err := uc.planner.Plan(ctx, run.objective, uc.workers.Infos())
	if err != nil {
		if errors.Is(err, entity.ErrPlanParse) {
			return nil, err
		}
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	plan, err := uc.buildPlan(run.objective, desc)
	if err != nil {
		return nil, err
	}

	resolver, err := scheduler.NewResolver(plan)
	if err != nil {
		return nil, err
	}

	run.mem.SetPlan(plan)
	run.mem.PostMessage(memory.SystemSender, "", fmt.Sprintf("plan %s created with %d tasks", plan.PlanID, len(plan.Tasks)))
	log.Info("Plan created", "plan_id", plan.PlanID, "tasks", len(plan.Tasks), "layers", len(resolver.Graph().Layers()))
	uc.progress.ShowPlan(ctx, plan)

	return resolver, nil
}

// buildPlan validates a plan description against the registered workers.
// Graph checks (unknown dependency ids, cycles) are left to the resolver.
func (uc *UseCase) buildPlan(objective string, desc *entity.PlanDescription) (*entity.TaskPlan, error) {
	if desc == nil || desc.Tasks == nil {
		return nil, entity.NewPlanParseError("missing required field \"tasks\"")
	}
	if len(desc.Tasks) == 0 {
		return nil, entity.NewPlanParseError("plan has no tasks")
	}

	if desc.Objective != "" {
		objective = desc.Objective
	}
	plan := &entity.TaskPlan{
		PlanID:    uuid.NewString(),
		Objective: objective,
		Tasks:     make([]entity.Task, 0, len(desc.Tasks)),
		CreatedAt: time.Now(),
	}

	for i, pt := range desc.Tasks {
		for _, f := range [][2]string{{"id", pt.ID}, {"description", pt.Description}, {"assigned_to", pt.AssignedTo}} {
			if strings.TrimSpace(f[1]) == "" {
				return nil, entity.NewPlanParseError("task #%d: missing required field %q", i, f[0])
			}
		}
		if _, ok := uc.workers.Get(pt.AssignedTo); !ok {
			return nil, &entity.UnknownWorkerError{TaskID: pt.ID, Worker: pt.AssignedTo}
		}
		deps := pt.Dependencies
		if deps == nil {
			deps = []string{}
		}
		plan.Tasks = append(plan.Tasks, entity.Task{
			ID:           pt.ID,
			Description:  pt.Description,
			AssignedTo:   pt.AssignedTo,
			Status:       entity.TaskStatusPending,
			Dependencies: append([]string(nil), deps...),
			Metadata:     map[string]string{},
		})
	}

	return plan, nil
}

// execute alternates resolver and round executor until every task is
// terminal, the resolver stalls or the round budget runs out.
func (uc *UseCase) execute(ctx context.Context, run *Run, resolver *scheduler.Resolver, log output.LoggerPort) (int, bool, error) {
	uc.enter(ctx, run, entity.RunStateExecuting)

	rounds := 0
	for {
		plan := run.mem.GetPlan()
		if plan.AllTerminal() {
			return rounds, false, nil
		}
		if rounds >= uc.maxRounds {
			completed, total := plan.Progress()
			log.Warn("Round budget exhausted", "rounds", rounds, "completed", completed, "total", total)
			run.mem.PostMessage(memory.SystemSender, "", fmt.Sprintf("round budget of %d exhausted", uc.maxRounds))
			return rounds, true, nil
		}
		if err := ctx.Err(); err != nil {
			return rounds, false, err
		}

		ready, err := resolver.Next(plan)
		if err != nil {
			log.Error("Scheduler stalled", "error", err)
			return rounds, false, err
		}
		if len(ready) == 0 {
			continue
		}

		rounds++
		uc.progress.ShowRound(ctx, rounds, uc.maxRounds, ready)

		outcomes, err := uc.rounds.RunRound(ctx, ready, run.mem)
		if err != nil {
			return rounds, false, err
		}
		resolver.RoundExecuted()

		after := run.mem.GetPlan()
		for _, id := range ready {
			if t, ok := after.Task(id); ok {
				uc.progress.ShowTaskResult(ctx, *t, outcomes[id])
			}
		}
		completed, total := after.Progress()
		run.mem.PostMessage(memory.SystemSender, "", fmt.Sprintf("round %d done: %d/%d tasks completed", rounds, completed, total))
	}
}

func (uc *UseCase) enter(ctx context.Context, run *Run, state entity.RunState) {
	run.setState(state)
	uc.progress.ShowState(ctx, state)
}

func (uc *UseCase) finish(ctx context.Context, run *Run, res *entity.RunResult, err error) (*entity.RunResult, error) {
	res.State = entity.RunStateDone
	if err != nil {
		res.State = entity.RunStateFailed
		res.Error = err.Error()
	}
	res.Plan = run.mem.GetPlan()
	res.Data = run.mem.Data()
	res.Messages = run.mem.Messages()
	res.FinishedAt = time.Now()

	log := uc.logger.WithField("run_id", run.id)
	if err != nil {
		log.Error("Run failed", "error", err)
	} else {
		log.Info("Run completed", "rounds", res.Rounds, "budgetExhausted", res.BudgetExhausted)
	}

	if uc.archive != nil {
		// The run's own context may already be cancelled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if saveErr := uc.archive.Save(saveCtx, record(run.objective, res)); saveErr != nil {
			log.Warn("Failed to archive run", "error", saveErr)
		}
		cancel()
	}
	if uc.metrics != nil {
		uc.metrics.RunFinished(res.State, res.BudgetExhausted)
	}

	run.finish(res, err)
	uc.progress.ShowState(ctx, res.State)
	return res, err
}

func record(objective string, res *entity.RunResult) *entity.RunRecord {
	return &entity.RunRecord{
		RunID:           res.RunID,
		Objective:       objective,
		State:           res.State,
		FinalAnswer:     res.FinalAnswer,
		Plan:            res.Plan,
		Data:            res.Data,
		Messages:        res.Messages,
		Rounds:          res.Rounds,
		BudgetExhausted: res.BudgetExhausted,
		Error:           res.Error,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
}

type noopProgress struct{}

func (noopProgress) ShowPlan(context.Context, *entity.TaskPlan)                      {}
func (noopProgress) ShowRound(context.Context, int, int, []string)                   {}
func (noopProgress) ShowTaskResult(context.Context, entity.Task, entity.TaskOutcome) {}
func (noopProgress) ShowState(context.Context, entity.RunState)                      {}
