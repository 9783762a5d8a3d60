// Package transport runs the two mutually exclusive MCP transports:
// the single-tenant stdio stream and the multiplexed HTTP gateway.
package transport

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
	"github.com/taskdeck/taskdeck-mcp/internal/config"
	"github.com/taskdeck/taskdeck-mcp/internal/server"
)

// ServeStdio runs the single-stream adapter: exactly one implicit
// session, built eagerly from the environment-supplied credential.
// It blocks until the stdio stream ends; a missing credential is a
// fatal startup error (NotConfigured), the only error class allowed
// to terminate the process.
func ServeStdio(settings *config.Settings, log *zap.Logger) error {
	if err := settings.RequireKey(); err != nil {
		return err
	}

	client := api.NewClient(settings.APIURL, settings.APIKey)
	if settings.ProjectID != "" {
		client.SetProjectID(settings.ProjectID)
	}

	log.Info("serving on stdio",
		zap.String("api_url", settings.APIURL),
		zap.Bool("default_project", settings.ProjectID != ""),
	)

	s := server.New(client)
	return mcpserver.ServeStdio(s)
}
