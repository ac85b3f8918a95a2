package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/librarianhq/librarian"
	"github.com/librarianhq/librarian/infrastructure/api"
	v1 "github.com/librarianhq/librarian/infrastructure/api/v1"
	"github.com/librarianhq/librarian/internal/config"
	"github.com/librarianhq/librarian/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables (all prefixed LIBRARIAN_):
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.librarian)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/librarian.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  EMBEDDING_DIMENSION          Embedding vector dimension (default: 1536)
  GIT_DEFAULT_BRANCH           Branch used when a request names none (default: main)
  PROCESSOR_CONCURRENCY        Parallel file splits per build (default: 4)

  EMBEDDING_ENDPOINT_*         Embedding AI service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., text-embedding-3-small)
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  CHAT_ENDPOINT_*              Snippet extraction AI service configuration
    (same fields as EMBEDDING_ENDPOINT)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Command line flags take precedence over env vars.
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.Configure(cfg)

	logger.Info("starting librarian",
		slog.String("version", version),
		slog.String("addr", cfg.Addr()),
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

	server := api.NewServer(cfg.Addr(), logger)
	router := server.Router()

	router.Mount("/api/v1/libraries", v1.NewLibraryRouter(client.Libraries, logger).Routes())

	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"librarian","version":"%s"}`, version)
	})

	// Graceful shutdown on SIGINT/SIGTERM. Shutdown gets its own
	// deadline so in-flight requests can drain.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
