package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// StartTaskTool handles the start_task MCP tool.
//
// Status preconditions (start requires pending) are owned by the backend;
// this tool surfaces the backend's InvalidStateTransition rejection
// verbatim instead of re-checking locally.
type StartTaskTool struct {
	client *api.Client
}

// NewStartTaskTool creates a StartTaskTool bound to one session's client.
func NewStartTaskTool(client *api.Client) *StartTaskTool {
	return &StartTaskTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("start_task",
		mcp.WithDescription(
			"Mark a pending task as in-progress. Call this before beginning "+
				"implementation work on a task.",
		),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The task to start."),
		),
	)
}

// Handle processes the start_task tool call.
func (t *StartTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	if taskID == "" {
		return validationResult([]string{"taskId: required, must be a non-empty string"}), nil
	}

	task, err := t.client.StartTask(ctx, taskID)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"🔄 Task `%s` (%s) is now in-progress.\n\n"+
			"Report progress with `report_progress`, finish with `complete_task`.",
		task.ID, task.Title,
	)), nil
}
