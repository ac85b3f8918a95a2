// Package processor turns raw documentation files into embedded
// snippets using a chat model for splitting and an embedding model for
// vectorisation.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/librarianhq/librarian/domain/library"
)

const systemPrompt = `You are a JSON API. You output ONLY valid JSON arrays.

FORBIDDEN: explanations, markdown blocks, text before/after JSON
REQUIRED: Start with [ and end with ]
REQUIRED: Use English for all title and description fields
EXAMPLE OUTPUT: [{"title": "example function", "description": "test implementation",
"source": "file#snippet_1", "language": "python", "code": "def test(): pass"}]
`

const snippetPromptTemplate = `Analyze and split this file into useful code pieces.

File: %s
Content: %s

CRITICAL: You must return EXACTLY this JSON array format (no other text):

[
  {
    "title": "Function name or section title",
    "description": "What this code does",
    "source": "%s#snippet_1",
    "language": "python",
    "code": "actual code content here"
  }
]

Rules:
- Return ONLY the JSON array, no markdown blocks, no explanations
- Split by functions, classes, or logical sections
- Each snippet must be complete
- If file is too simple, return empty array []
- Number snippets in order: #snippet_1, #snippet_2, etc.
- Always use English for title and description fields
`

// DefaultConcurrency bounds how many files are split in parallel.
const DefaultConcurrency = 4

// rawSnippet is the JSON shape the chat model is contracted to return.
type rawSnippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Language    string `json:"language"`
	Code        string `json:"code"`
}

// SnippetProcessor implements library.Processor on top of chat and
// embedding capabilities.
type SnippetProcessor struct {
	completer   library.Completer
	embedder    library.Embedder
	logger      *slog.Logger
	concurrency int
}

// NewSnippetProcessor creates a processor. A non-positive concurrency
// falls back to DefaultConcurrency.
func NewSnippetProcessor(completer library.Completer, embedder library.Embedder, logger *slog.Logger, concurrency int) *SnippetProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &SnippetProcessor{
		completer:   completer,
		embedder:    embedder,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Process splits each file into snippets and embeds them. Files are
// processed in parallel; within a file, snippet order is preserved.
// A malformed model response skips that file, a provider failure fails
// the whole batch.
func (p *SnippetProcessor) Process(ctx context.Context, files map[string]string) ([]library.Snippet, error) {
	paths := make([]string, 0, len(files))
	for path, content := range files {
		if strings.TrimSpace(content) == "" {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var mu sync.Mutex
	perFile := make(map[string][]library.Snippet, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, path := range paths {
		g.Go(func() error {
			snippets, err := p.processFile(gctx, path, files[path])
			if err != nil {
				return err
			}
			mu.Lock()
			perFile[path] = snippets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []library.Snippet
	for _, path := range paths {
		all = append(all, perFile[path]...)
	}

	p.logger.Info("processed files",
		slog.Int("files", len(paths)),
		slog.Int("snippets", len(all)),
	)
	return all, nil
}

func (p *SnippetProcessor) processFile(ctx context.Context, path, content string) ([]library.Snippet, error) {
	raw, err := p.generateSnippets(ctx, path, content)
	if err != nil {
		return nil, err
	}

	snippets := make([]library.Snippet, 0, len(raw))
	for _, r := range raw {
		emb, err := p.embedder.Embed(ctx, embeddingText(r))
		if err != nil {
			return nil, fmt.Errorf("embed snippet from %s: %w", path, err)
		}
		snippets = append(snippets, library.Snippet{
			Title:       r.Title,
			Description: r.Description,
			Source:      r.Source,
			Language:    r.Language,
			Code:        r.Code,
			Tokens:      emb.Tokens,
			Vector:      emb.Vector,
		})
	}
	return snippets, nil
}

// generateSnippets asks the chat model to split one file. A response
// that is not a JSON array is logged and treated as no snippets.
func (p *SnippetProcessor) generateSnippets(ctx context.Context, path, content string) ([]rawSnippet, error) {
	prompt := fmt.Sprintf(snippetPromptTemplate, path, content, path)
	response, err := p.completer.Complete(ctx, []library.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}

	var raw []rawSnippet
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &raw); err != nil {
		p.logger.Error("failed to parse model response",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return raw, nil
}

// embeddingText flattens a snippet's populated fields into the text
// that gets embedded.
func embeddingText(r rawSnippet) string {
	var b strings.Builder
	for _, field := range []struct{ key, value string }{
		{"title", r.Title},
		{"description", r.Description},
		{"source", r.Source},
		{"language", r.Language},
		{"code", r.Code},
	} {
		if field.value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(field.key)
		b.WriteString(": ")
		b.WriteString(field.value)
	}
	return b.String()
}

// Ensure SnippetProcessor implements the domain contract.
var _ library.Processor = (*SnippetProcessor)(nil)
