// Package tools implements the MCP tool handlers for Taskdeck operations.
//
// Each tool is a struct that receives the session's backend client via
// its constructor and exposes Definition/Handle in mcp-go's shape.
//
// Design principles:
//   - SRP: each file = one tool
//   - Validation happens before any backend call; a malformed argument
//     never produces network traffic
//   - Every failure renders as text tagged with its failure kind; the
//     consuming agent parses prose, not schemas
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
	"github.com/taskdeck/taskdeck-mcp/internal/gitremote"
)

// validationResult renders per-field validation failures as one tagged
// error result. Nothing was dispatched: callers return this before any
// backend call.
func validationResult(problems []string) *mcp.CallToolResult {
	var b strings.Builder
	b.WriteString("ValidationError: invalid arguments\n")
	for _, p := range problems {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return mcp.NewToolResultError(strings.TrimRight(b.String(), "\n"))
}

// errorResult converts any handler failure into a short human-readable
// message tagged with its failure kind. This is the single point where
// backend-proxy failures become user-visible text.
func errorResult(err error) *mcp.CallToolResult {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultError(apiErr.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("Unknown error: %v", err))
}

// resolveProjectID decides which project a list operation targets:
// an explicit projectId wins; otherwise a workingDir is auto-detected
// via the origin git remote and the backend's repo lookup.
//
// A miss during auto-detection is a usage hint to the human, not a
// system error: it returns a non-empty guidance string and no error.
// When both arguments are empty it returns ("", "", nil) and the caller
// falls back to the session scope (which fails NotConfigured when unset).
func resolveProjectID(ctx context.Context, client *api.Client, explicit, workingDir string) (projectID, guidance string, err error) {
	if explicit != "" {
		return explicit, "", nil
	}
	if workingDir == "" {
		return "", "", nil
	}

	repo, err := gitremote.Detect(workingDir)
	if err != nil {
		return "", "", err
	}
	if repo == "" {
		return "", fmt.Sprintf(
			"No git remote detected in %s. Pass an explicit projectId, or run from a repository with an origin remote.",
			workingDir,
		), nil
	}

	project, err := client.FindProjectByRepo(ctx, repo)
	if err != nil {
		return "", "", err
	}
	if project == nil {
		return "", fmt.Sprintf(
			"No Taskdeck project is linked to %s. Link the repository in Taskdeck or pass an explicit projectId.",
			repo,
		), nil
	}
	return project.ID, "", nil
}

// statusMarker maps a task status to the marker used in task listings.
func statusMarker(status api.TaskStatus) string {
	switch status {
	case api.StatusDone:
		return "✅"
	case api.StatusInProgress:
		return "🔄"
	default:
		return "⬜"
	}
}

// orDash substitutes a placeholder for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
