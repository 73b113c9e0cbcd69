package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/jembed"
	"github.com/helixml/jembed/internal/log"
	"github.com/helixml/jembed/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants embed Japanese text with the resident model.
Configuration is loaded from environment variables and .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context(), envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(ctx context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// stdout carries the protocol, so logs go to stderr.
	logger := log.NewStderrLogger(cfg)
	slogger := logger.Slog()

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := jembed.NewWithContext(ctx,
		jembed.WithAppConfig(cfg),
		jembed.WithLogger(slogger),
	)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slogger.Error("failed to close embedding service", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(svc, version, slogger)

	return mcpServer.ServeStdio()
}
