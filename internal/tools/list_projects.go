package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// ListProjectsTool handles the list_projects MCP tool.
type ListProjectsTool struct {
	client *api.Client
}

// NewListProjectsTool creates a ListProjectsTool bound to one session's client.
func NewListProjectsTool(client *api.Client) *ListProjectsTool {
	return &ListProjectsTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_projects",
		mcp.WithDescription(
			"List all Taskdeck projects visible to this API key, including "+
				"linked repositories. Use a project's id as `projectId` in other tools.",
		),
	)
}

// Handle processes the list_projects tool call.
func (t *ListProjectsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.client.ListProjects(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects found for this API key."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Projects (%d)\n\n", len(projects))
	b.WriteString("| ID | Name | Repository |\n")
	b.WriteString("|----|------|------------|\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", p.ID, p.Name, orDash(p.RepoFullName))
	}

	return mcp.NewToolResultText(b.String()), nil
}
