package synthesizer

import (
	"context"
	"fmt"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/prompts"
)

var _ output.Synthesizer = (*LLMSynthesizer)(nil)

type LLMSynthesizer struct {
	llm          output.LLMPort
	logger       output.LoggerPort
	systemPrompt string
	taskTemplate string
}

func New(llm output.LLMPort, logger output.LoggerPort) *LLMSynthesizer {
	return &LLMSynthesizer{
		llm:          llm,
		logger:       logger.Named("synthesizer"),
		systemPrompt: prompts.SynthesizerPrompt,
		taskTemplate: prompts.SynthesisTaskTemplate,
	}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, objective string, tasks []entity.Task) (string, error) {
	content, err := prompts.RenderSynthesisTask(s.taskTemplate, objective, tasks)
	if err != nil {
		return "", fmt.Errorf("failed to render synthesis input: %w", err)
	}

	resp, err := s.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: s.systemPrompt},
			{Role: entity.RoleUser, Content: content},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	s.logger.Info("Synthesis completed", "answerLen", len(resp.Message.Content))
	return resp.Message.Content, nil
}
