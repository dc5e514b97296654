package planner

import (
	"context"
	"fmt"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/prompts"
)

var _ output.Planner = (*LLMPlanner)(nil)

type LLMPlanner struct {
	llm          output.LLMPort
	logger       output.LoggerPort
	systemPrompt string
}

func New(llm output.LLMPort, logger output.LoggerPort, systemPromptTemplate string) *LLMPlanner {
	if systemPromptTemplate == "" {
		systemPromptTemplate = prompts.PlannerPrompt
	}
	return &LLMPlanner{
		llm:          llm,
		logger:       logger.Named("planner"),
		systemPrompt: systemPromptTemplate,
	}
}

func (p *LLMPlanner) Plan(ctx context.Context, objective string, workers []entity.WorkerInfo) (*entity.PlanDescription, error) {
	systemPrompt, err := prompts.GeneratePlannerPrompt(p.systemPrompt, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate planner prompt: %w", err)
	}

	resp, err := p.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: systemPrompt},
			{Role: entity.RoleUser, Content: objective},
		},
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}

	p.logger.Debug("Planner replied", "len", len(resp.Message.Content),
		"promptTokens", resp.Usage.PromptTokens, "completionTokens", resp.Usage.CompletionTokens)

	desc, err := ParsePlanDescription(resp.Message.Content)
	if err != nil {
		p.logger.Warn("Malformed plan", "error", err, "raw", resp.Message.Content)
		return nil, err
	}
	if desc.Objective == "" {
		desc.Objective = objective
	}

	p.logger.Info("Plan received", "tasks", len(desc.Tasks))
	return desc, nil
}
