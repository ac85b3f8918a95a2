// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultSearchLimit           = 10
	DefaultEmbeddingDimension    = 1536
	DefaultGitBranch             = "main"
	DefaultProcessorConcurrency  = 4
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoff       = 2.0
	DefaultChatModel             = "gpt-4o-mini"
	DefaultEmbeddingModel        = "text-embedding-3-small"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures an AI service endpoint.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoff,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint has an API key configured.
func (e Endpoint) IsConfigured() bool {
	return e.apiKey != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with the given options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the full application configuration. It is immutable
// after construction; use the With* options at build time.
type AppConfig struct {
	host                 string
	port                 int
	dataDir              string
	dbURL                string
	logLevel             string
	logFormat            LogFormat
	embeddingEndpoint    Endpoint
	chatEndpoint         Endpoint
	embeddingDimension   int
	gitDefaultBranch     string
	processorConcurrency int
	searchLimit          int
	httpCacheDir         string
}

// NewAppConfig creates an AppConfig with defaults applied.
func NewAppConfig(opts ...AppConfigOption) AppConfig {
	cfg := AppConfig{
		host:                 DefaultHost,
		port:                 DefaultPort,
		logLevel:             DefaultLogLevel,
		logFormat:            LogFormatPretty,
		embeddingEndpoint:    NewEndpoint(),
		chatEndpoint:         NewEndpoint(),
		embeddingDimension:   DefaultEmbeddingDimension,
		gitDefaultBranch:     DefaultGitBranch,
		processorConcurrency: DefaultProcessorConcurrency,
		searchLimit:          DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Host returns the server bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// Addr returns the host:port bind address.
func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.host, c.port) }

// DataDir returns the data directory, defaulting to ~/.librarian.
func (c AppConfig) DataDir() string {
	if c.dataDir != "" {
		return c.dataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".librarian"
	}
	return filepath.Join(home, ".librarian")
}

// DBURL returns the database URL, defaulting to a sqlite file under the
// data directory.
func (c AppConfig) DBURL() string {
	if c.dbURL != "" {
		return c.dbURL
	}
	return "sqlite:///" + filepath.Join(c.DataDir(), "librarian.db")
}

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// EmbeddingEndpoint returns the embedding service configuration.
func (c AppConfig) EmbeddingEndpoint() Endpoint { return c.embeddingEndpoint }

// ChatEndpoint returns the chat service configuration.
func (c AppConfig) ChatEndpoint() Endpoint { return c.chatEndpoint }

// EmbeddingDimension returns the system-wide embedding dimension.
func (c AppConfig) EmbeddingDimension() int { return c.embeddingDimension }

// GitDefaultBranch returns the branch used when a library names none.
func (c AppConfig) GitDefaultBranch() string { return c.gitDefaultBranch }

// ProcessorConcurrency returns the parallel file-splitting limit.
func (c AppConfig) ProcessorConcurrency() int { return c.processorConcurrency }

// SearchLimit returns the default catalog search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// HTTPCacheDir returns the directory used for provider response caching,
// or empty when caching is disabled.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = strings.ToUpper(level) }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = e }
}

// WithChatEndpoint sets the chat endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = e }
}

// WithEmbeddingDimension sets the embedding dimension.
func WithEmbeddingDimension(dim int) AppConfigOption {
	return func(c *AppConfig) { c.embeddingDimension = dim }
}

// WithGitDefaultBranch sets the fallback branch name.
func WithGitDefaultBranch(branch string) AppConfigOption {
	return func(c *AppConfig) { c.gitDefaultBranch = branch }
}

// WithProcessorConcurrency sets the parallel file-splitting limit.
func WithProcessorConcurrency(n int) AppConfigOption {
	return func(c *AppConfig) { c.processorConcurrency = n }
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(n int) AppConfigOption {
	return func(c *AppConfig) { c.searchLimit = n }
}

// WithHTTPCacheDir sets the provider response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}
