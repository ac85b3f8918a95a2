package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable the application
// reads (e.g. LIBRARIAN_PORT).
const EnvPrefix = "LIBRARIAN"

// EnvConfig holds all environment-based configuration. Field names map
// to environment variables with the LIBRARIAN_ prefix; nested structs
// use underscore delimiters (e.g. LIBRARIAN_EMBEDDING_ENDPOINT_API_KEY).
type EnvConfig struct {
	// Host is the server host to bind to.
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path. Default: ~/.librarian
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Default: sqlite:///{data_dir}/librarian.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// EmbeddingEndpoint configures the embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ChatEndpoint configures the chat completion service.
	ChatEndpoint EndpointEnv `envconfig:"CHAT_ENDPOINT"`

	// EmbeddingDimension is the fixed dimension of every vector in the
	// system. Changing it requires rebuilding all libraries.
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"1536"`

	// GitDefaultBranch is the branch used when a repository request
	// names none.
	GitDefaultBranch string `envconfig:"GIT_DEFAULT_BRANCH" default:"main"`

	// ProcessorConcurrency bounds parallel file splitting.
	ProcessorConcurrency int `envconfig:"PROCESSOR_CONCURRENCY" default:"4"`

	// SearchLimit is the default catalog search result limit.
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"10"`

	// HTTPCacheDir caches provider responses to disk when set.
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from LIBRARIAN_-prefixed environment
// variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix(EnvPrefix)
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix. An
// empty prefix reads undecorated variable names.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithLogFormat(parseLogFormat(e.LogFormat)),
	}

	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.EmbeddingDimension > 0 {
		opts = append(opts, WithEmbeddingDimension(e.EmbeddingDimension))
	}
	if e.GitDefaultBranch != "" {
		opts = append(opts, WithGitDefaultBranch(e.GitDefaultBranch))
	}
	if e.ProcessorConcurrency > 0 {
		opts = append(opts, WithProcessorConcurrency(e.ProcessorConcurrency))
	}
	if e.SearchLimit > 0 {
		opts = append(opts, WithSearchLimit(e.SearchLimit))
	}
	if e.HTTPCacheDir != "" {
		opts = append(opts, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	opts = append(opts,
		WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint(DefaultEmbeddingModel)),
		WithChatEndpoint(e.ChatEndpoint.ToEndpoint(DefaultChatModel)),
	)

	return NewAppConfig(opts...)
}

// ToEndpoint converts EndpointEnv to Endpoint, falling back to the
// given default model.
func (e EndpointEnv) ToEndpoint(defaultModel string) Endpoint {
	model := e.Model
	if model == "" {
		model = defaultModel
	}

	opts := []EndpointOption{
		WithModel(model),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
