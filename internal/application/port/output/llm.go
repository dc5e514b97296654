package output

import (
	"context"

	"orchestra-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
	// JSONMode asks the provider for a single JSON object reply.
	JSONMode bool
}

type ChatResponse struct {
	Message entity.Message
	Usage   TokenUsage
}

type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}
