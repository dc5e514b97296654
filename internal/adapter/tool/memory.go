package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

// MemoryTools binds the shared-memory tools to one worker invocation. Reads
// are served from the round snapshot; writes go through mem.
func MemoryTools(req entity.WorkerRequest, mem output.MemoryWriter) []output.ToolPort {
	return []output.ToolPort{
		&UpdateTaskMemoryTool{taskID: req.Task.ID, mem: mem},
		&ReadSharedDataTool{snapshot: req.Snapshot},
		&GetPlanTool{snapshot: req.Snapshot},
		&PostMessageTool{sender: req.Task.AssignedTo, mem: mem},
	}
}

type UpdateTaskMemoryTool struct {
	taskID string
	mem    output.MemoryWriter
}

func (t *UpdateTaskMemoryTool) Name() entity.ToolName { return entity.ToolUpdateTaskMemory }
func (t *UpdateTaskMemoryTool) Description() string {
	return "Records a result for your task and stores extra key/value data for tasks in later rounds"
}
func (t *UpdateTaskMemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "Id of your current task",
			},
			"result": map[string]interface{}{
				"type":        "string",
				"description": "Result text for the task (optional)",
			},
			"extra_data": map[string]interface{}{
				"type":                 "object",
				"description":          "String values to store under the given keys",
				"additionalProperties": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *UpdateTaskMemoryTool) Execute(_ context.Context, args string) (string, error) {
	var input struct {
		TaskID    string            `json:"task_id"`
		Result    string            `json:"result"`
		ExtraData map[string]string `json:"extra_data"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.TaskID == "" {
		input.TaskID = t.taskID
	}
	if input.TaskID != t.taskID {
		return "", fmt.Errorf("can only update your own task %s, not %s", t.taskID, input.TaskID)
	}

	if err := t.mem.UpdateTaskMemory(input.TaskID, input.Result, input.ExtraData); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(input.ExtraData))
	for k := range input.ExtraData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return fmt.Sprintf("Updated task %s", input.TaskID), nil
	}
	return fmt.Sprintf("Updated task %s, stored keys: %s", input.TaskID, strings.Join(keys, ", ")), nil
}

type ReadSharedDataTool struct {
	snapshot entity.MemorySnapshot
}

func (t *ReadSharedDataTool) Name() entity.ToolName { return entity.ToolReadSharedData }
func (t *ReadSharedDataTool) Description() string {
	return "Reads a value from shared data. Without a key, lists the available keys"
}
func (t *ReadSharedDataTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Key to read",
			},
		},
		"required": []string{},
	}
}

func (t *ReadSharedDataTool) Execute(_ context.Context, args string) (string, error) {
	var input struct {
		Key string `json:"key"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("invalid input format: %w", err)
		}
	}

	if input.Key == "" {
		keys := make([]string, 0, len(t.snapshot.Data))
		for k := range t.snapshot.Data {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return "Shared data is empty", nil
		}
		sort.Strings(keys)
		return "Available keys: " + strings.Join(keys, ", "), nil
	}

	v, ok := t.snapshot.Get(input.Key)
	if !ok {
		return "", fmt.Errorf("no shared data under key %q", input.Key)
	}
	return v, nil
}

type GetPlanTool struct {
	snapshot entity.MemorySnapshot
}

func (t *GetPlanTool) Name() entity.ToolName { return entity.ToolGetPlan }
func (t *GetPlanTool) Description() string {
	return "Returns every task of the plan with its worker, status and dependencies"
}
func (t *GetPlanTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

type planView struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	AssignedTo   string            `json:"assigned_to"`
	Status       entity.TaskStatus `json:"status"`
	Dependencies []string          `json:"dependencies"`
	Result       string            `json:"result,omitempty"`
}

func (t *GetPlanTool) Execute(_ context.Context, _ string) (string, error) {
	plan := t.snapshot.Plan
	if plan == nil {
		return "", fmt.Errorf("no plan available")
	}

	views := make([]planView, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		views = append(views, planView{
			ID:           task.ID,
			Description:  task.Description,
			AssignedTo:   task.AssignedTo,
			Status:       task.Status,
			Dependencies: task.Dependencies,
			Result:       task.ResultText(),
		})
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"objective": plan.Objective,
		"tasks":     views,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type PostMessageTool struct {
	sender string
	mem    output.MemoryWriter
}

func (t *PostMessageTool) Name() entity.ToolName { return entity.ToolPostMessage }
func (t *PostMessageTool) Description() string {
	return "Posts a message to another worker, or to everyone when recipient is empty"
}
func (t *PostMessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"recipient": map[string]interface{}{
				"type":        "string",
				"description": "Worker id, empty for broadcast",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Message text",
			},
		},
		"required": []string{"content"},
	}
}

func (t *PostMessageTool) Execute(_ context.Context, args string) (string, error) {
	var input struct {
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if strings.TrimSpace(input.Content) == "" {
		return "", fmt.Errorf("content parameter is required")
	}

	t.mem.PostMessage(t.sender, input.Recipient, input.Content)
	if input.Recipient == "" {
		return "Message broadcast", nil
	}
	return "Message sent to " + input.Recipient, nil
}
