// Command studio-mcp exposes the study planner as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/p-n-ai/pai-studio/internal/app"
	"github.com/p-n-ai/pai-studio/internal/mcptools"
	"github.com/p-n-ai/pai-studio/internal/platform/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "studio-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// stdout carries the MCP stream, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.Open(context.Background(), cfg, nil)
	if err != nil {
		return fmt.Errorf("opening studio: %w", err)
	}
	defer a.Close()

	s := mcptools.NewServer(mcptools.NewBackend(a.Session), Version)
	return server.ServeStdio(s)
}
