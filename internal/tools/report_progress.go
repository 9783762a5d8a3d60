package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// ReportProgressTool handles the report_progress MCP tool.
type ReportProgressTool struct {
	client *api.Client
}

// NewReportProgressTool creates a ReportProgressTool bound to one session's client.
func NewReportProgressTool(client *api.Client) *ReportProgressTool {
	return &ReportProgressTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ReportProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("report_progress",
		mcp.WithDescription(
			"Post a progress update against an in-progress task so humans "+
				"watching the project see where the work stands.",
		),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The in-progress task being worked on."),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Short progress note, e.g. \"parser done, writing tests\"."),
		),
		mcp.WithNumber("percent",
			mcp.Description("Optional completion estimate, 0-100."),
		),
	)
}

// Handle processes the report_progress tool call.
func (t *ReportProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("taskId", "")
	message := req.GetString("message", "")
	rawPercent := req.GetFloat("percent", -1)

	var problems []string
	if taskID == "" {
		problems = append(problems, "taskId: required, must be a non-empty string")
	}
	if strings.TrimSpace(message) == "" {
		problems = append(problems, "message: required, must be a non-empty string")
	}
	var percent *int
	if args := req.GetArguments(); args["percent"] != nil {
		if rawPercent < 0 || rawPercent > 100 {
			problems = append(problems, fmt.Sprintf("percent: %v is outside 0-100", rawPercent))
		} else {
			p := int(rawPercent)
			percent = &p
		}
	}
	if len(problems) > 0 {
		return validationResult(problems), nil
	}

	update, err := t.client.ReportProgress(ctx, taskID, api.ReportProgressRequest{
		Message: message,
		Percent: percent,
	})
	if err != nil {
		return errorResult(err), nil
	}

	if update.Percent != nil {
		return mcp.NewToolResultText(fmt.Sprintf(
			"📣 Progress recorded for task `%s` (%d%%): %s", update.TaskID, *update.Percent, update.Message,
		)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"📣 Progress recorded for task `%s`: %s", update.TaskID, update.Message,
	)), nil
}
