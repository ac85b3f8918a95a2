package librarian

import (
	"log/slog"

	"github.com/librarianhq/librarian/domain/library"
	"github.com/librarianhq/librarian/infrastructure/provider"
	"github.com/librarianhq/librarian/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	dbURL                string
	dataDir              string
	embedder             library.Embedder
	completer            library.Completer
	logger               *slog.Logger
	dimension            int
	gitDefaultBranch     string
	processorConcurrency int
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		gitDefaultBranch:     config.DefaultGitBranch,
		processorConcurrency: config.DefaultProcessorConcurrency,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the backing database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres configures PostgreSQL as the backing database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDBURL sets the database connection URL directly.
// Supported forms: sqlite:///path/to/file.db, postgres://...
func WithDBURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithDataDir sets the data directory for database and cache storage.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithOpenAI sets an OpenAI-compatible endpoint as the AI provider for
// both embeddings and snippet extraction.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(provider.OpenAIConfig{APIKey: apiKey})
		c.embedder = p
		c.completer = p
	}
}

// WithOpenAIConfig sets an OpenAI-compatible provider with custom
// configuration.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(cfg)
		c.embedder = p
		c.completer = p
	}
}

// WithEmbedder sets a custom embedding provider.
func WithEmbedder(e library.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithCompleter sets a custom completion provider for snippet extraction.
func WithCompleter(cp library.Completer) Option {
	return func(c *clientConfig) {
		c.completer = cp
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithEmbeddingDimension fixes the embedding dimension. Defaults to the
// embedder's own dimension.
func WithEmbeddingDimension(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.dimension = n
		}
	}
}

// WithGitDefaultBranch sets the branch used when a repository request
// names none.
func WithGitDefaultBranch(branch string) Option {
	return func(c *clientConfig) {
		if branch != "" {
			c.gitDefaultBranch = branch
		}
	}
}

// WithProcessorConcurrency bounds how many files are split and embedded
// in parallel during a build.
func WithProcessorConcurrency(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.processorConcurrency = n
		}
	}
}

// FromAppConfig translates an AppConfig into client options. Endpoint
// credentials are only applied when configured, so callers can still
// override the provider with a later option.
func FromAppConfig(cfg config.AppConfig) []Option {
	opts := []Option{
		WithDataDir(cfg.DataDir()),
		WithDBURL(cfg.DBURL()),
		WithEmbeddingDimension(cfg.EmbeddingDimension()),
		WithGitDefaultBranch(cfg.GitDefaultBranch()),
		WithProcessorConcurrency(cfg.ProcessorConcurrency()),
	}

	embedding := cfg.EmbeddingEndpoint()
	chat := cfg.ChatEndpoint()
	if embedding.IsConfigured() {
		opts = append(opts, WithEmbedder(provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:         embedding.APIKey(),
			BaseURL:        embedding.BaseURL(),
			EmbeddingModel: embedding.Model(),
			Dimension:      cfg.EmbeddingDimension(),
			Timeout:        embedding.Timeout(),
			MaxRetries:     embedding.MaxRetries(),
			InitialDelay:   embedding.InitialDelay(),
			BackoffFactor:  embedding.BackoffFactor(),
			CacheDir:       cfg.HTTPCacheDir(),
		})))
	}
	if chat.IsConfigured() {
		opts = append(opts, WithCompleter(provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:        chat.APIKey(),
			BaseURL:       chat.BaseURL(),
			ChatModel:     chat.Model(),
			Timeout:       chat.Timeout(),
			MaxRetries:    chat.MaxRetries(),
			InitialDelay:  chat.InitialDelay(),
			BackoffFactor: chat.BackoffFactor(),
			CacheDir:      cfg.HTTPCacheDir(),
		})))
	}

	return opts
}
