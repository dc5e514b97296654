package langchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, nil
}

func TestConvertMessages_Roles(t *testing.T) {
	result := convertMessages([]entity.Message{
		{Role: entity.RoleSystem, Content: "sys"},
		{Role: entity.RoleUser, Content: "hi"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "c1", Name: "get_plan", Arguments: "{}"}}},
		{Role: entity.RoleTool, ToolCallID: "c1", Name: "get_plan", Content: "plan"},
	})

	require.Len(t, result, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, result[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, result[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, result[2].Role)

	call, ok := result[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "get_plan", call.FunctionCall.Name)

	resp, ok := result[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "c1", resp.ToolCallID)
	assert.Equal(t, "plan", resp.Content)
}

func TestChat_ConvertsOptionsAndChoice(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "",
		ToolCalls: []llms.ToolCall{{
			ID:           "c9",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "post_message", Arguments: `{"content":"hi"}`},
		}},
		GenerationInfo: map[string]any{"PromptTokens": 30, "CompletionTokens": 4},
	}}}}
	a := NewWithModel(model, nil)

	resp, err := a.Chat(context.Background(), output.ChatRequest{
		Messages:    []entity.Message{{Role: entity.RoleUser, Content: "go"}},
		Tools:       []entity.ToolDefinition{{Name: "post_message", Parameters: map[string]interface{}{"type": "object"}}},
		Temperature: 0.5,
		JSONMode:    true,
	})
	require.NoError(t, err)

	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "post_message", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, 30, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)

	assert.True(t, model.opts.JSONMode)
	assert.InDelta(t, 0.5, model.opts.Temperature, 1e-6)
	require.Len(t, model.opts.Tools, 1)
	assert.Equal(t, "post_message", model.opts.Tools[0].Function.Name)
}

func TestChat_NoChoices(t *testing.T) {
	a := NewWithModel(&fakeModel{resp: &llms.ContentResponse{}}, nil)
	_, err := a.Chat(context.Background(), output.ChatRequest{})
	assert.Error(t, err)
}
