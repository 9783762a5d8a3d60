package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// ListSpecsTool handles the list_specs MCP tool.
type ListSpecsTool struct {
	client *api.Client
}

// NewListSpecsTool creates a ListSpecsTool bound to one session's client.
func NewListSpecsTool(client *api.Client) *ListSpecsTool {
	return &ListSpecsTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListSpecsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_specs",
		mcp.WithDescription(
			"List the specs of a Taskdeck project. If `projectId` is omitted, "+
				"the project is auto-detected from `workingDir`'s git origin remote, "+
				"falling back to the session's default project.",
		),
		mcp.WithString("projectId",
			mcp.Description("Project to list specs for. Overrides auto-detection and the session default."),
		),
		mcp.WithString("workingDir",
			mcp.Description("Absolute path inside a git checkout, used to auto-detect the project."),
		),
	)
}

// Handle processes the list_specs tool call.
func (t *ListSpecsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("projectId", "")
	workingDir := req.GetString("workingDir", "")

	projectID, guidance, err := resolveProjectID(ctx, t.client, projectID, workingDir)
	if err != nil {
		return errorResult(err), nil
	}
	if guidance != "" {
		return mcp.NewToolResultText(guidance), nil
	}

	specs, err := t.client.ListSpecs(ctx, projectID)
	if err != nil {
		return errorResult(err), nil
	}

	if len(specs) == 0 {
		return mcp.NewToolResultText("No specs found in this project."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Specs (%d)\n\n", len(specs))
	b.WriteString("| ID | Title | Status | Tasks |\n")
	b.WriteString("|----|-------|--------|-------|\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %d |\n", s.ID, s.Title, orDash(s.Status), s.TaskCount)
	}

	return mcp.NewToolResultText(b.String()), nil
}
