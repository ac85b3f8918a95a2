package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/librarianhq/librarian"
	"github.com/librarianhq/librarian/internal/log"
	"github.com/librarianhq/librarian/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This allows AI assistants to search the documentation catalog and fetch
library docs. Configuration is loaded from environment variables and
.env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Stdout carries the MCP protocol, so logs go to stderr.
	logger := log.NewWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
	slog.SetDefault(logger)

	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	opts := append(librarian.FromAppConfig(cfg), librarian.WithLogger(logger))
	client, err := librarian.New(opts...)
	if err != nil {
		return fmt.Errorf("create librarian client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close librarian client", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(client.Libraries, client.Libraries, logger)

	return mcpServer.ServeStdio()
}
