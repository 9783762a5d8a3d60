package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// CompleteTaskTool handles the complete_task MCP tool.
type CompleteTaskTool struct {
	client *api.Client
}

// NewCompleteTaskTool creates a CompleteTaskTool bound to one session's client.
func NewCompleteTaskTool(client *api.Client) *CompleteTaskTool {
	return &CompleteTaskTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *CompleteTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("complete_task",
		mcp.WithDescription(
			"Mark an in-progress task as done, recording what was implemented. "+
				"The summary should describe the outcome, not the process.",
		),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The task to complete."),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("What was implemented and how it satisfies the task."),
		),
		mcp.WithArray("filesModified",
			mcp.Description("Paths of the files created or modified."),
		),
		mcp.WithString("implementation",
			mcp.Description("Optional longer implementation notes."),
		),
	)
}

// Handle processes the complete_task tool call.
func (t *CompleteTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	summary := req.GetString("summary", "")
	filesModified := req.GetStringSlice("filesModified", nil)
	implementation := req.GetString("implementation", "")

	var problems []string
	if taskID == "" {
		problems = append(problems, "taskId: required, must be a non-empty string")
	}
	if strings.TrimSpace(summary) == "" {
		problems = append(problems, "summary: required, must be a non-empty string")
	}
	if len(problems) > 0 {
		return validationResult(problems), nil
	}

	task, err := t.client.CompleteTask(ctx, taskID, api.CompleteTaskRequest{
		Summary:        summary,
		FilesModified:  filesModified,
		Implementation: implementation,
	})
	if err != nil {
		return errorResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Task `%s` (%s) is done.\n", task.ID, task.Title)
	if len(filesModified) > 0 {
		fmt.Fprintf(&b, "\nFiles modified (%d):\n", len(filesModified))
		for _, f := range filesModified {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
