package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// GetTaskTool handles the get_task MCP tool.
type GetTaskTool struct {
	client *api.Client
}

// NewGetTaskTool creates a GetTaskTool bound to one session's client.
func NewGetTaskTool(client *api.Client) *GetTaskTool {
	return &GetTaskTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *GetTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task",
		mcp.WithDescription(
			"Get the full detail of one task: description, acceptance criteria, "+
				"notes, and current status.",
		),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The task id, as shown by list_tasks."),
		),
	)
}

// Handle processes the get_task tool call.
func (t *GetTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	if taskID == "" {
		return validationResult([]string{"taskId: required, must be a non-empty string"}), nil
	}

	task, err := t.client.GetTask(ctx, taskID)
	if err != nil {
		return errorResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", statusMarker(task.Status), task.Title)
	fmt.Fprintf(&b, "**ID:** `%s`\n", task.ID)
	fmt.Fprintf(&b, "**Status:** %s\n", task.Status)
	fmt.Fprintf(&b, "**Project:** `%s`\n", task.ProjectID)
	if task.SpecID != "" {
		fmt.Fprintf(&b, "**Spec:** `%s`\n", task.SpecID)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", task.Description)
	}
	if task.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "\n## Acceptance Criteria\n\n%s\n", task.AcceptanceCriteria)
	}
	if task.Notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", task.Notes)
	}

	return mcp.NewToolResultText(b.String()), nil
}
