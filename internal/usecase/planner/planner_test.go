package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
	"orchestra-agent/internal/infrastructure/logger"
)

func TestParsePlanDescription_Valid(t *testing.T) {
	raw := "Here is the plan:\n```json\n" + `{
  "objective": "compare A and B",
  "tasks": [
    {"id": "t1", "description": "research A", "assigned_to": "researcher", "dependencies": []},
    {"id": "t2", "description": "research B", "assigned_to": "researcher"},
    {"id": "t3", "description": "compare", "assigned_to": "writer", "dependencies": ["t1", "t2"]}
  ]
}` + "\n```"

	desc, err := ParsePlanDescription(raw)
	require.NoError(t, err)
	assert.Equal(t, "compare A and B", desc.Objective)
	require.Len(t, desc.Tasks, 3)
	assert.Equal(t, entity.PlannedTask{ID: "t2", Description: "research B", AssignedTo: "researcher", Dependencies: []string{}}, desc.Tasks[1])
	assert.Equal(t, []string{"t1", "t2"}, desc.Tasks[2].Dependencies)
}

func TestParsePlanDescription_Malformed(t *testing.T) {
	cases := map[string]string{
		"no json":             "I cannot help with that",
		"invalid json":        `{"tasks": [}`,
		"missing tasks":       `{"objective": "x"}`,
		"tasks not list":      `{"tasks": {"id": "t1"}}`,
		"task not object":     `{"tasks": ["t1"]}`,
		"missing id":          `{"tasks": [{"description": "d", "assigned_to": "w"}]}`,
		"missing worker":      `{"tasks": [{"id": "t1", "description": "d"}]}`,
		"empty description":   `{"tasks": [{"id": "t1", "description": "  ", "assigned_to": "w"}]}`,
		"deps not list":       `{"tasks": [{"id": "t1", "description": "d", "assigned_to": "w", "dependencies": "t0"}]}`,
		"deps not string ids": `{"tasks": [{"id": "t1", "description": "d", "assigned_to": "w", "dependencies": [1]}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlanDescription(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrPlanParse)

			var pe *entity.PlanParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

type fakeLLM struct {
	reply string
	req   output.ChatRequest
}

func (f *fakeLLM) Chat(_ context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	f.req = req
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: f.reply}}, nil
}

func TestLLMPlanner_Plan(t *testing.T) {
	llm := &fakeLLM{reply: `{"tasks": [{"id": "t1", "description": "say hi", "assigned_to": "greeter", "dependencies": []}]}`}
	p := New(llm, logger.NewNop(), "")

	desc, err := p.Plan(context.Background(), "greet the user", []entity.WorkerInfo{{ID: "greeter", Description: "Greets"}})
	require.NoError(t, err)
	assert.Equal(t, "greet the user", desc.Objective)
	require.Len(t, desc.Tasks, 1)

	assert.True(t, llm.req.JSONMode)
	require.Len(t, llm.req.Messages, 2)
	assert.Contains(t, llm.req.Messages[0].Content, "- greeter: Greets")
	assert.Equal(t, "greet the user", llm.req.Messages[1].Content)
}

func TestLLMPlanner_PlanParseError(t *testing.T) {
	p := New(&fakeLLM{reply: `{"objective": "x"}`}, logger.NewNop(), "")

	_, err := p.Plan(context.Background(), "x", nil)
	assert.ErrorIs(t, err, entity.ErrPlanParse)
}
