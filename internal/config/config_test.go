package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConstants(t *testing.T) {
	if DefaultHost != "0.0.0.0" {
		t.Errorf("DefaultHost = %v, want '0.0.0.0'", DefaultHost)
	}
	if DefaultPort != 8080 {
		t.Errorf("DefaultPort = %v, want 8080", DefaultPort)
	}
	if DefaultLogLevel != "INFO" {
		t.Errorf("DefaultLogLevel = %v, want 'INFO'", DefaultLogLevel)
	}
	if DefaultSearchLimit != 10 {
		t.Errorf("DefaultSearchLimit = %v, want 10", DefaultSearchLimit)
	}
	if DefaultEmbeddingDimension != 1536 {
		t.Errorf("DefaultEmbeddingDimension = %v, want 1536", DefaultEmbeddingDimension)
	}
	if DefaultGitBranch != "main" {
		t.Errorf("DefaultGitBranch = %v, want 'main'", DefaultGitBranch)
	}
	if DefaultEndpointTimeout != 60*time.Second {
		t.Errorf("DefaultEndpointTimeout = %v, want 60s", DefaultEndpointTimeout)
	}
	if DefaultEndpointMaxRetries != 5 {
		t.Errorf("DefaultEndpointMaxRetries = %v, want 5", DefaultEndpointMaxRetries)
	}
	if DefaultEndpointInitialDelay != 2*time.Second {
		t.Errorf("DefaultEndpointInitialDelay = %v, want 2s", DefaultEndpointInitialDelay)
	}
	if DefaultEndpointBackoff != 2.0 {
		t.Errorf("DefaultEndpointBackoff = %v, want 2.0", DefaultEndpointBackoff)
	}
}

func TestEndpoint_Defaults(t *testing.T) {
	ep := NewEndpoint()

	if ep.Timeout() != DefaultEndpointTimeout {
		t.Errorf("Timeout() = %v, want %v", ep.Timeout(), DefaultEndpointTimeout)
	}
	if ep.MaxRetries() != DefaultEndpointMaxRetries {
		t.Errorf("MaxRetries() = %v, want %v", ep.MaxRetries(), DefaultEndpointMaxRetries)
	}
	if ep.IsConfigured() {
		t.Error("IsConfigured() should be false without an API key")
	}
}

func TestEndpoint_WithOptions(t *testing.T) {
	ep := NewEndpointWithOptions(
		WithBaseURL("https://api.example.com/v1"),
		WithModel("test-model"),
		WithAPIKey("sk-test"),
		WithTimeout(30*time.Second),
		WithMaxRetries(3),
		WithInitialDelay(time.Second),
		WithBackoffFactor(1.5),
	)

	if ep.BaseURL() != "https://api.example.com/v1" {
		t.Errorf("BaseURL() = %v, want 'https://api.example.com/v1'", ep.BaseURL())
	}
	if ep.Model() != "test-model" {
		t.Errorf("Model() = %v, want 'test-model'", ep.Model())
	}
	if ep.APIKey() != "sk-test" {
		t.Errorf("APIKey() = %v, want 'sk-test'", ep.APIKey())
	}
	if ep.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", ep.Timeout())
	}
	if ep.MaxRetries() != 3 {
		t.Errorf("MaxRetries() = %v, want 3", ep.MaxRetries())
	}
	if ep.InitialDelay() != time.Second {
		t.Errorf("InitialDelay() = %v, want 1s", ep.InitialDelay())
	}
	if ep.BackoffFactor() != 1.5 {
		t.Errorf("BackoffFactor() = %v, want 1.5", ep.BackoffFactor())
	}
	if !ep.IsConfigured() {
		t.Error("IsConfigured() should be true when an API key is set")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	if cfg.Host() != DefaultHost {
		t.Errorf("Host() = %v, want '%v'", cfg.Host(), DefaultHost)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %v, want %v", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %v, want '%v'", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.LogFormat() != LogFormatPretty {
		t.Errorf("LogFormat() = %v, want 'pretty'", cfg.LogFormat())
	}
	if cfg.EmbeddingDimension() != DefaultEmbeddingDimension {
		t.Errorf("EmbeddingDimension() = %v, want %v", cfg.EmbeddingDimension(), DefaultEmbeddingDimension)
	}
	if cfg.GitDefaultBranch() != DefaultGitBranch {
		t.Errorf("GitDefaultBranch() = %v, want '%v'", cfg.GitDefaultBranch(), DefaultGitBranch)
	}
	if cfg.ProcessorConcurrency() != DefaultProcessorConcurrency {
		t.Errorf("ProcessorConcurrency() = %v, want %v", cfg.ProcessorConcurrency(), DefaultProcessorConcurrency)
	}
	if cfg.SearchLimit() != DefaultSearchLimit {
		t.Errorf("SearchLimit() = %v, want %v", cfg.SearchLimit(), DefaultSearchLimit)
	}
	if cfg.EmbeddingEndpoint().IsConfigured() {
		t.Error("EmbeddingEndpoint() should not be configured by default")
	}
}

func TestAppConfig_WithOptions(t *testing.T) {
	embeddingEndpoint := NewEndpointWithOptions(WithModel("embed-model"), WithAPIKey("sk-embed"))
	chatEndpoint := NewEndpointWithOptions(WithModel("chat-model"), WithAPIKey("sk-chat"))

	cfg := NewAppConfig(
		WithHost("127.0.0.1"),
		WithPort(9999),
		WithDataDir("/custom/data"),
		WithDBURL("postgres://localhost/librarian"),
		WithLogLevel("debug"),
		WithLogFormat(LogFormatJSON),
		WithEmbeddingEndpoint(embeddingEndpoint),
		WithChatEndpoint(chatEndpoint),
		WithEmbeddingDimension(768),
		WithGitDefaultBranch("develop"),
		WithProcessorConcurrency(2),
		WithSearchLimit(50),
		WithHTTPCacheDir("/tmp/cache"),
	)

	if cfg.Addr() != "127.0.0.1:9999" {
		t.Errorf("Addr() = %v, want '127.0.0.1:9999'", cfg.Addr())
	}
	if cfg.DataDir() != "/custom/data" {
		t.Errorf("DataDir() = %v, want '/custom/data'", cfg.DataDir())
	}
	if cfg.DBURL() != "postgres://localhost/librarian" {
		t.Errorf("DBURL() = %v, want 'postgres://localhost/librarian'", cfg.DBURL())
	}
	if cfg.LogLevel() != "DEBUG" {
		t.Errorf("LogLevel() = %v, want 'DEBUG'", cfg.LogLevel())
	}
	if cfg.LogFormat() != LogFormatJSON {
		t.Errorf("LogFormat() = %v, want 'json'", cfg.LogFormat())
	}
	if cfg.EmbeddingEndpoint().Model() != "embed-model" {
		t.Errorf("EmbeddingEndpoint().Model() = %v, want 'embed-model'", cfg.EmbeddingEndpoint().Model())
	}
	if cfg.ChatEndpoint().Model() != "chat-model" {
		t.Errorf("ChatEndpoint().Model() = %v, want 'chat-model'", cfg.ChatEndpoint().Model())
	}
	if cfg.EmbeddingDimension() != 768 {
		t.Errorf("EmbeddingDimension() = %v, want 768", cfg.EmbeddingDimension())
	}
	if cfg.GitDefaultBranch() != "develop" {
		t.Errorf("GitDefaultBranch() = %v, want 'develop'", cfg.GitDefaultBranch())
	}
	if cfg.ProcessorConcurrency() != 2 {
		t.Errorf("ProcessorConcurrency() = %v, want 2", cfg.ProcessorConcurrency())
	}
	if cfg.SearchLimit() != 50 {
		t.Errorf("SearchLimit() = %v, want 50", cfg.SearchLimit())
	}
	if cfg.HTTPCacheDir() != "/tmp/cache" {
		t.Errorf("HTTPCacheDir() = %v, want '/tmp/cache'", cfg.HTTPCacheDir())
	}
}

func TestAppConfig_DBURLDefault(t *testing.T) {
	cfg := NewAppConfig(WithDataDir("/data/librarian"))

	want := "sqlite:///" + filepath.Join("/data/librarian", "librarian.db")
	if cfg.DBURL() != want {
		t.Errorf("DBURL() = %v, want %v", cfg.DBURL(), want)
	}
}

func TestAppConfig_DataDirDefault(t *testing.T) {
	cfg := NewAppConfig()

	dir := cfg.DataDir()
	if !strings.HasSuffix(dir, ".librarian") {
		t.Errorf("DataDir() = %v, want a path ending in '.librarian'", dir)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("LoadDotEnv() with a missing file = %v, want nil", err)
	}
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LIBRARIAN_HOST=10.0.0.1\nLIBRARIAN_PORT=4242\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("LIBRARIAN_HOST")
		os.Unsetenv("LIBRARIAN_PORT")
	})

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Addr() != "10.0.0.1:4242" {
		t.Errorf("Addr() = %v, want '10.0.0.1:4242'", cfg.Addr())
	}
}
