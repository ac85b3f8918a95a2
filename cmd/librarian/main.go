// Package main is the entry point for the librarian CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/librarianhq/librarian/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "librarian",
		Short: "Librarian documentation server",
		Long:  `Librarian is a versioned documentation store: it ingests library documentation from Git repositories, splits it into embedded snippets, and serves token-budgeted semantic retrieval.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
