package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/librarianhq/librarian/domain/library"
)

// DefaultEmbeddingDimension is the system-wide embedding dimension when the
// configuration does not override it.
const DefaultEmbeddingDimension = 1536

// errEmptyEmbedding indicates the API returned no embedding data for a
// request. Transient upstream issues (rate limiting behind a 200 status)
// can produce this, so it is retryable.
var errEmptyEmbedding = errors.New("empty embedding response")

// OpenAIProvider implements embedding and completion against any
// OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	dimension      int
	temperature    float32
	maxRetries     int
	initialDelay   time.Duration
	backoffFactor  float64
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimension      int
	Timeout        time.Duration
	MaxRetries     int
	InitialDelay   time.Duration
	BackoffFactor  float64
	// CacheDir enables on-disk response caching when set. Intended for
	// development and test runs against live endpoints.
	CacheDir string
}

// NewOpenAIProvider creates a provider from configuration.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	if cfg.CacheDir != "" {
		httpClient.Transport = NewCachingTransport(cfg.CacheDir, nil)
	}
	clientConfig.HTTPClient = httpClient

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = DefaultEmbeddingDimension
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	initialDelay := cfg.InitialDelay
	if initialDelay == 0 {
		initialDelay = 2 * time.Second
	}
	backoffFactor := cfg.BackoffFactor
	if backoffFactor == 0 {
		backoffFactor = 2.0
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		dimension:      dimension,
		temperature:    0.1,
		maxRetries:     maxRetries,
		initialDelay:   initialDelay,
		backoffFactor:  backoffFactor,
	}
}

// Dimension returns the fixed embedding dimension.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// Embed creates an embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (library.Embedding, error) {
	req := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(p.embeddingModel),
		Input:      []string{text},
		Dimensions: p.dimension,
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateEmbeddings(ctx, req)
		if callErr != nil {
			return callErr
		}
		if len(resp.Data) == 0 {
			return errEmptyEmbedding
		}
		return nil
	})
	if err != nil {
		return library.Embedding{}, p.wrapError("embedding", err)
	}

	raw := resp.Data[0].Embedding
	if len(raw) != p.dimension {
		// A wrong-sized vector is fatal, never silently truncated.
		return library.Embedding{}, NewProviderError("embedding", 0,
			fmt.Sprintf("provider returned dimension %d, expected %d", len(raw), p.dimension), nil)
	}

	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
	}

	return library.Embedding{
		Vector: vector,
		Tokens: resp.Usage.PromptTokens,
	}, nil
}

// Complete generates a chat completion for the given conversation.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []library.Message) (string, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Messages:    openaiMessages,
		Temperature: p.temperature,
	}

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", p.wrapError("completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", NewProviderError("completion", 0, "no choices in response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// withRetry executes fn with exponential backoff.
func (p *OpenAIProvider) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, errEmptyEmbedding) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}

	return false
}

func (p *OpenAIProvider) wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

// Interface checks.
var (
	_ library.Embedder  = (*OpenAIProvider)(nil)
	_ library.Completer = (*OpenAIProvider)(nil)
)
