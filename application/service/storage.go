package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/librarianhq/librarian/domain/library"
)

// snippetCandidateLimit is how many snippets a partition query returns
// before the token budget is applied.
const snippetCandidateLimit = 20

// Storage maps the library model onto the vector index: one catalog
// collection of headers plus one partition collection per library.
type Storage struct {
	index     library.VectorIndex
	dimension int
	logger    *slog.Logger
}

// NewStorage creates a storage layer over the given index. dimension is
// the system-wide embedding dimension every collection is created with.
func NewStorage(index library.VectorIndex, dimension int, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{index: index, dimension: dimension, logger: logger}
}

// Initialize writes the header for a new library and creates its
// partition. The header is written first so a failed build still has a
// row to record the failure on.
func (s *Storage) Initialize(ctx context.Context, lib library.Library, vector []float64) error {
	if err := s.index.EnsureCollection(ctx, library.CatalogCollection, s.dimension); err != nil {
		return fmt.Errorf("ensure catalog: %w", err)
	}

	lib.State = library.StateProcessing
	lib.LastUpdate = time.Now()
	point := library.Point{ID: lib.ID, Vector: vector, Payload: headerPayload(lib)}
	if err := s.index.Upsert(ctx, library.CatalogCollection, []library.Point{point}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := s.index.EnsureCollection(ctx, lib.ID, s.dimension); err != nil {
		return fmt.Errorf("create partition: %w", err)
	}

	s.logger.Info("collections initialized", slog.String("library_id", lib.ID))
	return nil
}

// SaveSnippets stores embedded snippets in the library's partition.
// Snippets without a tag land under the default tag.
func (s *Storage) SaveSnippets(ctx context.Context, libraryID string, snippets []library.Snippet) error {
	if len(snippets) == 0 {
		s.logger.Info("no snippets to store", slog.String("library_id", libraryID))
		return nil
	}

	points := make([]library.Point, 0, len(snippets))
	for _, snip := range snippets {
		tag := snip.Tag
		if tag == "" {
			tag = library.DefaultTag
		}
		createdAt := snip.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		points = append(points, library.Point{
			ID:     uuid.NewString(),
			Vector: snip.Vector,
			Payload: map[string]any{
				"title":       snip.Title,
				"description": snip.Description,
				"source":      snip.Source,
				"language":    snip.Language,
				"code":        snip.Code,
				"tokens":      snip.Tokens,
				"tag":         tag,
				"created_at":  createdAt.Format(time.RFC3339),
			},
		})
	}

	if err := s.index.Upsert(ctx, libraryID, points); err != nil {
		return fmt.Errorf("store snippets: %w", err)
	}
	s.logger.Info("stored snippets",
		slog.String("library_id", libraryID),
		slog.Int("count", len(points)),
	)
	return nil
}

// Complete marks the library finalized and records its statistics.
// A non-empty revisionMarker is stored for repository-backed libraries.
func (s *Storage) Complete(ctx context.Context, libraryID string, totalTokens int, revisionMarker string) error {
	payload := map[string]any{
		"state":        string(library.StateFinalized),
		"last_update":  time.Now().Format(time.RFC3339),
		"total_tokens": totalTokens,
		"error_detail": "",
	}
	if revisionMarker != "" {
		payload["last_revision_marker"] = revisionMarker
	}
	return s.index.SetPayload(ctx, library.CatalogCollection, []string{libraryID}, payload)
}

// CompleteTag finalizes the header after a tag build, folding the new
// tag's tokens into the running total so total_tokens stays the sum of
// every stored snippet.
func (s *Storage) CompleteTag(ctx context.Context, libraryID string, addedTokens int) error {
	lib, err := s.Get(ctx, libraryID)
	if err != nil {
		return err
	}
	return s.index.SetPayload(ctx, library.CatalogCollection, []string{libraryID}, map[string]any{
		"state":        string(library.StateFinalized),
		"last_update":  time.Now().Format(time.RFC3339),
		"total_tokens": lib.TotalTokens + addedTokens,
		"error_detail": "",
	})
}

// CleanupFailed removes the partition of a failed build and marks the
// header failed, preserving identity and the error detail for
// inspection. Both steps are best-effort.
func (s *Storage) CleanupFailed(ctx context.Context, libraryID, errorDetail string) {
	if err := s.index.DeleteCollection(ctx, libraryID); err != nil {
		s.logger.Debug("failed to delete partition",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.MarkFailed(ctx, libraryID, errorDetail); err != nil {
		s.logger.Debug("failed to set failed state",
			slog.String("library_id", libraryID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Error("processing failed",
		slog.String("library_id", libraryID),
		slog.String("error", errorDetail),
	)
}

// MarkFailed records failure on the header without touching the partition.
func (s *Storage) MarkFailed(ctx context.Context, libraryID, errorDetail string) error {
	return s.index.SetPayload(ctx, library.CatalogCollection, []string{libraryID}, map[string]any{
		"state":        string(library.StateFailed),
		"last_update":  time.Now().Format(time.RFC3339),
		"error_detail": errorDetail,
	})
}

// SetState overwrites only the lifecycle state on the header.
func (s *Storage) SetState(ctx context.Context, libraryID string, state library.State) error {
	return s.index.SetPayload(ctx, library.CatalogCollection, []string{libraryID}, map[string]any{
		"state": string(state),
	})
}

// Get loads a library header by ID.
func (s *Storage) Get(ctx context.Context, libraryID string) (library.Library, error) {
	points, err := s.index.Retrieve(ctx, library.CatalogCollection, []string{libraryID})
	if err != nil {
		return library.Library{}, fmt.Errorf("retrieve header: %w", err)
	}
	if len(points) == 0 || points[0].Payload == nil {
		return library.Library{}, library.NewNotFoundError("library not found")
	}
	return libraryFromPayload(libraryID, points[0].Payload), nil
}

// Exists reports whether the library's partition exists.
func (s *Storage) Exists(ctx context.Context, libraryID string) (bool, error) {
	return s.index.CollectionExists(ctx, libraryID)
}

// IsProcessing reports whether the header is in the processing state.
// A missing header counts as not processing.
func (s *Storage) IsProcessing(ctx context.Context, libraryID string) bool {
	lib, err := s.Get(ctx, libraryID)
	if err != nil {
		return false
	}
	return lib.State == library.StateProcessing
}

// QuerySnippets runs a similarity query in the library's partition,
// restricted to one tag, ordered by descending score.
func (s *Storage) QuerySnippets(ctx context.Context, libraryID string, vector []float64, tag string) ([]library.Document, error) {
	filter := map[string]any{"tag": tag}
	points, err := s.index.Query(ctx, libraryID, vector, filter, snippetCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("query partition: %w", err)
	}

	docs := make([]library.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, library.Document{
			Title:       payloadString(p.Payload, "title"),
			Description: payloadString(p.Payload, "description"),
			Source:      payloadString(p.Payload, "source"),
			Language:    payloadStringDefault(p.Payload, "language", "text"),
			Code:        payloadString(p.Payload, "code"),
			Tokens:      payloadInt(p.Payload, "tokens"),
			Score:       p.Score,
		})
	}
	return docs, nil
}

// CatalogEntry is one catalog search result. Score is only meaningful
// when Scored is set, which semantic search does and listing does not.
type CatalogEntry struct {
	library.Library
	Score  float64
	Scored bool
}

// SearchCatalog searches or lists library headers. With a vector it
// runs a similarity query that honours limit but ignores offset; with
// nil it pages through insertion order using both.
func (s *Storage) SearchCatalog(ctx context.Context, vector []float64, limit, offset int) ([]CatalogEntry, error) {
	if vector == nil {
		points, err := s.index.Scroll(ctx, library.CatalogCollection, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("scroll catalog: %w", err)
		}
		entries := make([]CatalogEntry, 0, len(points))
		for _, p := range points {
			entries = append(entries, CatalogEntry{
				Library: libraryFromPayload(payloadString(p.Payload, "id"), p.Payload),
			})
		}
		return entries, nil
	}

	points, err := s.index.Query(ctx, library.CatalogCollection, vector, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, CatalogEntry{
			Library: libraryFromPayload(payloadString(p.Payload, "id"), p.Payload),
			Score:   p.Score,
			Scored:  true,
		})
	}
	return entries, nil
}

// AppendTag registers a new version label on the header, keeping the
// newest-first ordering.
func (s *Storage) AppendTag(ctx context.Context, libraryID, tag string) error {
	lib, err := s.Get(ctx, libraryID)
	if err != nil {
		return err
	}
	if lib.HasTag(tag) {
		return nil
	}
	tags := library.AppendTag(lib.Tags, tag)
	return s.index.SetPayload(ctx, library.CatalogCollection, []string{libraryID}, map[string]any{
		"tags": tags,
	})
}

// RemoveTagData deletes every snippet stored under one tag of a library.
func (s *Storage) RemoveTagData(ctx context.Context, libraryID, tag string) error {
	if err := s.index.DeleteByFilter(ctx, libraryID, map[string]any{"tag": tag}); err != nil {
		return fmt.Errorf("clear tag %s: %w", tag, err)
	}
	s.logger.Info("cleared tag data",
		slog.String("library_id", libraryID),
		slog.String("tag", tag),
	)
	return nil
}

func headerPayload(lib library.Library) map[string]any {
	payload := map[string]any{
		"id":           lib.ID,
		"title":        lib.Title,
		"description":  lib.Description,
		"org":          lib.Org,
		"project":      lib.Project,
		"state":        string(lib.State),
		"tags":         lib.Tags,
		"total_tokens": lib.TotalTokens,
		"error_detail": lib.ErrorDetail,
		"last_update":  lib.LastUpdate.Format(time.RFC3339),
		"library_type": string(lib.Origin.Kind),
	}
	if lib.Tags == nil {
		payload["tags"] = []string{}
	}
	if lib.Origin.IsGit() {
		payload["repo_url"] = lib.Origin.RepoURL
		payload["access_token"] = lib.Origin.AccessToken
		payload["branch"] = lib.Origin.Branch
		payload["last_revision_marker"] = lib.Origin.LastRevisionMarker
	}
	return payload
}

func libraryFromPayload(id string, payload map[string]any) library.Library {
	lib := library.Library{
		ID:          id,
		Title:       payloadString(payload, "title"),
		Description: payloadString(payload, "description"),
		Org:         payloadString(payload, "org"),
		Project:     payloadString(payload, "project"),
		State:       library.State(payloadString(payload, "state")),
		Tags:        payloadStrings(payload, "tags"),
		TotalTokens: payloadInt(payload, "total_tokens"),
		ErrorDetail: payloadString(payload, "error_detail"),
	}
	if ts, err := time.Parse(time.RFC3339, payloadString(payload, "last_update")); err == nil {
		lib.LastUpdate = ts
	}

	kind := library.OriginKind(payloadString(payload, "library_type"))
	if kind == "" {
		kind = library.OriginContent
	}
	lib.Origin = library.Origin{
		Kind:               kind,
		RepoURL:            payloadString(payload, "repo_url"),
		AccessToken:        payloadString(payload, "access_token"),
		Branch:             payloadString(payload, "branch"),
		LastRevisionMarker: payloadString(payload, "last_revision_marker"),
	}
	return lib
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadStringDefault(payload map[string]any, key, fallback string) string {
	if v := payloadString(payload, key); v != "" {
		return v
	}
	return fallback
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// payloadStrings tolerates both []string (fresh writes) and []any
// (values round-tripped through JSON).
func payloadStrings(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
