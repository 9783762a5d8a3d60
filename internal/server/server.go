// Package server wires the MCP components and creates server instances.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools that depend on them. No business logic
// lives here — only wiring.
//
// New is called once per session: each session gets its own MCPServer
// bound to its own backend client, so capability negotiation and tool
// listing are correct per session even though all sessions share one
// tool codebase.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
	"github.com/taskdeck/taskdeck-mcp/internal/tools"
)

// Name is the server name announced during MCP initialization.
const Name = "taskdeck"

// Version is set at build time via ldflags.
var Version = "dev"

// New creates an MCP server with all Taskdeck tools registered against
// the given backend client.
func New(client *api.Client) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	listProjects := tools.NewListProjectsTool(client)
	s.AddTool(listProjects.Definition(), listProjects.Handle)

	listSpecs := tools.NewListSpecsTool(client)
	s.AddTool(listSpecs.Definition(), listSpecs.Handle)

	listTasks := tools.NewListTasksTool(client)
	s.AddTool(listTasks.Definition(), listTasks.Handle)

	getTask := tools.NewGetTaskTool(client)
	s.AddTool(getTask.Definition(), getTask.Handle)

	startTask := tools.NewStartTaskTool(client)
	s.AddTool(startTask.Definition(), startTask.Handle)

	completeTask := tools.NewCompleteTaskTool(client)
	s.AddTool(completeTask.Definition(), completeTask.Handle)

	reportProgress := tools.NewReportProgressTool(client)
	s.AddTool(reportProgress.Definition(), reportProgress.Handle)

	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to work against Taskdeck.
func serverInstructions() string {
	return `You have access to Taskdeck, a task-management server for AI-driven development.

## Workflow

1. Find the project: use list_projects, or pass workingDir to list_tasks /
   list_specs so the project is auto-detected from the git origin remote.
2. Pick work: list_tasks shows pending tasks by default; get_task returns
   a task's full description and acceptance criteria.
3. Do the work: call start_task before touching code, report_progress at
   meaningful checkpoints, and complete_task with a real summary and the
   list of files you modified.

## Rules

- Task status moves one way: pending → in-progress → done. start_task
  requires a pending task; report_progress and complete_task require an
  in-progress one. The server rejects anything else — do not retry a
  rejected transition, re-read the task state instead.
- complete_task summaries must describe the actual outcome. Never submit
  placeholder text.
- If a tool answers with guidance instead of data (for example "no project
  selected"), relay it to the user — it usually means a projectId or
  workingDir argument is missing.`
}
