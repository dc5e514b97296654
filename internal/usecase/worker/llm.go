package worker

import (
	"context"
	"fmt"
	"io"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/application/service"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/prompts"
)

var _ output.Worker = (*LLMWorker)(nil)

const (
	DefaultMaxIterations = 8
	maxObservationLen    = 20000
)

// ToolFactory builds the tools bound to one invocation, e.g. memory tools that
// must know the task id and the writer of the current run.
// Tools implementing io.Closer are closed when the invocation returns.
type ToolFactory func(req entity.WorkerRequest, mem output.MemoryWriter) []output.ToolPort

// Chain merges several factories into one.
func Chain(factories ...ToolFactory) ToolFactory {
	return func(req entity.WorkerRequest, mem output.MemoryWriter) []output.ToolPort {
		var tools []output.ToolPort
		for _, f := range factories {
			if f != nil {
				tools = append(tools, f(req, mem)...)
			}
		}
		return tools
	}
}

type Config struct {
	ID          string
	Description string
	// SystemPrompt and TaskPrompt default to the embedded templates.
	SystemPrompt  string
	TaskPrompt    string
	MaxIterations int
	Tools         []output.ToolPort
	ToolsFor      ToolFactory
}

// LLMWorker runs a reasoning and tool-calling loop until the model answers
// without tool calls.
type LLMWorker struct {
	id            string
	description   string
	systemPrompt  string
	taskPrompt    string
	maxIterations int
	tools         []output.ToolPort
	toolsFor      ToolFactory
	llm           output.LLMPort
	logger        output.LoggerPort
}

func NewLLMWorker(llm output.LLMPort, logger output.LoggerPort, cfg Config) *LLMWorker {
	w := &LLMWorker{
		id:            cfg.ID,
		description:   cfg.Description,
		systemPrompt:  cfg.SystemPrompt,
		taskPrompt:    cfg.TaskPrompt,
		maxIterations: cfg.MaxIterations,
		tools:         cfg.Tools,
		toolsFor:      cfg.ToolsFor,
		llm:           llm,
		logger:        logger.Named("worker").WithField("worker", cfg.ID),
	}
	if w.systemPrompt == "" {
		w.systemPrompt = prompts.WorkerSystemPrompt
	}
	if w.taskPrompt == "" {
		w.taskPrompt = prompts.WorkerTaskTemplate
	}
	if w.maxIterations <= 0 {
		w.maxIterations = DefaultMaxIterations
	}
	return w
}

func (w *LLMWorker) ID() string          { return w.id }
func (w *LLMWorker) Description() string { return w.description }

func (w *LLMWorker) Invoke(ctx context.Context, req entity.WorkerRequest, mem output.MemoryWriter) (string, error) {
	system, err := prompts.GenerateWorkerSystemPrompt(w.systemPrompt, w.id, w.description)
	if err != nil {
		return "", fmt.Errorf("failed to generate system prompt: %w", err)
	}
	task, err := prompts.RenderWorkerTask(w.taskPrompt, req)
	if err != nil {
		return "", fmt.Errorf("failed to render task prompt: %w", err)
	}

	tools := service.NewToolRegistry(w.tools...)
	if w.toolsFor != nil {
		bound := w.toolsFor(req, mem)
		defer closeTools(bound)
		for _, t := range bound {
			tools.Register(t)
		}
	}
	toolDefs := tools.Definitions()

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: system},
		{Role: entity.RoleUser, Content: task},
	}

	log := w.logger.WithField("task_id", req.Task.ID)

	for iteration := 1; iteration <= w.maxIterations; iteration++ {
		log.Debug("Starting iteration", "iteration", iteration)

		resp, err := w.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: 0.0,
		})
		if err != nil {
			return "", fmt.Errorf("llm request failed: %w", err)
		}

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			log.Info("Worker finished", "iterations", iteration)
			return resp.Message.Content, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			observation := w.executeTool(ctx, log, tools, tc)

			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    observation,
			})
		}
	}

	return "", fmt.Errorf("max iterations (%d) exceeded", w.maxIterations)
}

func (w *LLMWorker) executeTool(ctx context.Context, log output.LoggerPort, tools output.ToolRegistry, tc entity.ToolCall) string {
	tool, ok := tools.Get(entity.ToolName(tc.Name))
	if !ok {
		log.Warn("Unknown tool called", "name", tc.Name)
		return fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
	}

	log.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)

	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		log.Error("Tool execution failed", "name", tc.Name, "error", err)
		return "Error: " + err.Error()
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}

	log.Debug("Tool completed", "name", tc.Name, "resultLen", len(result))
	return result
}

func closeTools(tools []output.ToolPort) {
	for _, t := range tools {
		if c, ok := t.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
