package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// ListTasksTool handles the list_tasks MCP tool.
type ListTasksTool struct {
	client *api.Client
}

// NewListTasksTool creates a ListTasksTool bound to one session's client.
func NewListTasksTool(client *api.Client) *ListTasksTool {
	return &ListTasksTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription(
			"List a project's tasks, filtered by status (default: pending). "+
				"If `projectId` is omitted, the project is auto-detected from "+
				"`workingDir`'s git origin remote, falling back to the session's "+
				"default project.",
		),
		mcp.WithString("projectId",
			mcp.Description("Project to list tasks for. Overrides auto-detection and the session default."),
		),
		mcp.WithString("workingDir",
			mcp.Description("Absolute path inside a git checkout, used to auto-detect the project."),
		),
		mcp.WithString("status",
			mcp.Description("Status filter: pending, in-progress, done, or all. Defaults to pending."),
		),
		mcp.WithString("specId",
			mcp.Description("Only list tasks belonging to this spec."),
		),
	)
}

// Handle processes the list_tasks tool call.
func (t *ListTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("projectId", "")
	workingDir := req.GetString("workingDir", "")
	status := api.TaskStatus(req.GetString("status", string(api.StatusPending)))
	specID := req.GetString("specId", "")

	if status != "all" && !api.ValidStatus(status) {
		return validationResult([]string{
			fmt.Sprintf("status: %q is not one of pending, in-progress, done, all", status),
		}), nil
	}

	projectID, guidance, err := resolveProjectID(ctx, t.client, projectID, workingDir)
	if err != nil {
		return errorResult(err), nil
	}
	if guidance != "" {
		return mcp.NewToolResultText(guidance), nil
	}

	tasks, err := t.client.ListTasks(ctx, projectID, status, specID)
	if err != nil {
		return errorResult(err), nil
	}

	if len(tasks) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No %s tasks found.", status)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Tasks (%d, status: %s)\n\n", len(tasks), status)
	b.WriteString("| | ID | Title | Status | Spec |\n")
	b.WriteString("|-|----|-------|--------|------|\n")
	for _, task := range tasks {
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s | %s |\n",
			statusMarker(task.Status), task.ID, task.Title, task.Status, orDash(task.SpecID))
	}
	b.WriteString("\nUse `get_task` for details, `start_task` to begin one.\n")

	return mcp.NewToolResultText(b.String()), nil
}
