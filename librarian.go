// Package librarian provides a versioned documentation store for
// software libraries.
//
// Librarian ingests documentation from Git repositories or directly
// submitted files, splits it into embedded snippets with an LLM, and
// serves token-budgeted semantic retrieval over the result.
//
// Basic usage:
//
//	client, err := librarian.New(
//	    librarian.WithSQLite(".librarian/data.db"),
//	    librarian.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Ingest a repository's documentation
//	id, err := client.Libraries.StartCreateFromRepo(ctx, "https://github.com/vercel/next.js", "")
//
//	// Retrieve documentation under a token budget
//	docs, err := client.Libraries.Query(ctx, id, "routing", 4000, "")
package librarian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/librarianhq/librarian/application/service"
	"github.com/librarianhq/librarian/infrastructure/index"
	"github.com/librarianhq/librarian/infrastructure/origin"
	"github.com/librarianhq/librarian/infrastructure/processor"
	"github.com/librarianhq/librarian/internal/database"
)

// Root construction errors.
var (
	// ErrNoDatabase indicates no database option was provided.
	ErrNoDatabase = errors.New("no database configured: use WithSQLite, WithPostgres or WithDBURL")
	// ErrNoProvider indicates no embedding or completion provider was
	// provided.
	ErrNoProvider = errors.New("no AI provider configured: use WithOpenAI or WithEmbedder/WithCompleter")
	// ErrClientClosed indicates the client has already been closed.
	ErrClientClosed = errors.New("client is closed")
)

// closeTimeout bounds how long Close waits for in-flight builds.
const closeTimeout = 30 * time.Second

// Client is the main entry point for the librarian library.
//
// Access the library catalog via the Libraries field:
//
//	client.Libraries.StartCreateFromRepo(ctx, url, token)
//	client.Libraries.Query(ctx, id, topic, tokens, tag)
//	client.Libraries.Search(ctx, "react", 10, 0)
type Client struct {
	// Libraries coordinates the library lifecycle and retrieval.
	Libraries *service.Library

	db         database.Database
	index      *index.Store
	storage    *service.Storage
	dispatcher *service.Dispatcher

	logger *slog.Logger
	closed atomic.Bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}
	if cfg.embedder == nil || cfg.completer == nil {
		return nil, ErrNoProvider
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.dataDir != "" {
		if err := os.MkdirAll(cfg.dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store, err := index.NewStore(db, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("create vector index: %w", err), errClose)
	}

	dimension := cfg.dimension
	if dimension == 0 {
		dimension = cfg.embedder.Dimension()
	}

	storage := service.NewStorage(store, dimension, logger)
	dispatcher := service.NewDispatcher(logger)
	snippets := processor.NewSnippetProcessor(cfg.completer, cfg.embedder, logger, cfg.processorConcurrency)
	origins := origin.NewFactory(logger, cfg.gitDefaultBranch)

	client := &Client{
		db:         db,
		index:      store,
		storage:    storage,
		dispatcher: dispatcher,
		logger:     logger,
	}
	client.Libraries = service.NewLibrary(storage, snippets, cfg.embedder, origins, dispatcher, logger)

	return client, nil
}

// Close waits for in-flight builds and releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.dispatcher.Shutdown(ctx); err != nil {
		c.logger.Error("builds still running at close", slog.Any("error", err))
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("librarian client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
