// Taskdeck MCP gateway.
//
// Bridges AI coding agents (Claude Code, Cursor, Gemini CLI, Codex) to
// the Taskdeck task-management API over the Model Context Protocol.
//
// Usage:
//
//	taskdeck-mcp serve                    # stdio transport (default)
//	taskdeck-mcp serve --transport http   # multiplexed HTTP transport
//	taskdeck-mcp update                   # self-update to the latest release
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskdeck/taskdeck-mcp/internal/config"
	"github.com/taskdeck/taskdeck-mcp/internal/server"
	"github.com/taskdeck/taskdeck-mcp/internal/transport"
	"github.com/taskdeck/taskdeck-mcp/internal/updater"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskdeck-mcp",
		Short:         "MCP gateway for the Taskdeck task-management API",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newUpdateCmd())

	return root
}

func newServeCmd() *cobra.Command {
	var (
		transportMode string
		addr          string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transportMode, addr)
		},
	}

	cmd.Flags().StringVar(&transportMode, "transport", "stdio", "transport to serve: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address for the http transport")

	return cmd
}

func runServe(parent context.Context, transportMode, addr string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	settings := config.Load()

	// Best-effort version check. Writes to stderr so it never touches
	// the stdio protocol stream on stdout.
	go notifyIfOutdated()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch transportMode {
	case "stdio":
		return transport.ServeStdio(settings, log)
	case "http":
		return transport.NewGateway(addr, settings, log).Serve(ctx)
	default:
		return fmt.Errorf("unknown transport %q (expected stdio or http)", transportMode)
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update taskdeck-mcp to the latest release",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println("Checking for updates...")

			result := updater.CheckVersion(server.Version)
			if !result.UpdateAvailable {
				fmt.Printf("Already up to date (v%s)\n", result.CurrentVersion)
				return nil
			}

			fmt.Printf("Updating v%s → v%s...\n", result.CurrentVersion, result.LatestVersion)
			if err := updater.SelfUpdate(server.Version); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			fmt.Printf("Updated to v%s. Restart the server to use the new version.\n", result.LatestVersion)
			return nil
		},
	}
}

// notifyIfOutdated prints an upgrade notice when a newer release exists.
func notifyIfOutdated() {
	result := updater.CheckVersion(server.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "A new version of taskdeck-mcp is available: v%s (current: v%s). Run `taskdeck-mcp update`.\n",
			result.LatestVersion, result.CurrentVersion)
	}
}

// newLogger builds the process logger. Everything goes to stderr:
// stdout belongs to the stdio protocol stream.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
