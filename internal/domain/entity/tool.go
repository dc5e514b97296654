package entity

type ToolName string

const (
	ToolUpdateTaskMemory ToolName = "update_task_memory"
	ToolReadSharedData   ToolName = "read_shared_data"
	ToolGetPlan          ToolName = "get_plan"
	ToolPostMessage      ToolName = "post_message"

	ToolWebNavigate   ToolName = "web_navigate"
	ToolWebReadPage   ToolName = "web_read_page"
	ToolWebScreenshot ToolName = "web_screenshot"
)

func (t ToolName) String() string {
	return string(t)
}
