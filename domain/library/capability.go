package library

import "context"

// Embedding is the result of embedding one text: the vector and the token
// count the provider charged for it.
type Embedding struct {
	Vector []float64
	Tokens int
}

// Embedder is the text-to-vector capability. Every embedding in the system
// has the same fixed dimension; implementations must fail on a dimension
// mismatch rather than truncate.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	Dimension() int
}

// Message is one turn of a completion conversation.
type Message struct {
	Role    string
	Content string
}

// Completer is the text-to-completion capability.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Processor turns raw content units into ranked, embedded snippets.
// It may legitimately return an empty sequence for trivial input; a failing
// completion or embedding call surfaces as a ServiceError, never as a
// silent empty result.
type Processor interface {
	Process(ctx context.Context, files map[string]string) ([]Snippet, error)
}
