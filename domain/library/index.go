package library

import "context"

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// ScoredPoint is a point returned from a similarity query.
type ScoredPoint struct {
	Point
	Score float64
}

// VectorIndex is the external vector store capability. Collections are the
// partitions of the system: one collection per library plus the catalog
// collection. The index never interprets payloads beyond filter matching.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// DeleteCollection removes the collection and all its points.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns up to limit points ordered by descending cosine
	// similarity to vector. A non-nil filter restricts candidates to
	// points whose payload matches every filter entry. Ties keep the
	// index's native order.
	Query(ctx context.Context, collection string, vector []float64, filter map[string]any, limit int) ([]ScoredPoint, error)

	// Scroll returns a page of points in stable insertion order.
	Scroll(ctx context.Context, collection string, limit, offset int) ([]Point, error)

	// Retrieve returns the points with the given IDs, skipping missing
	// ones. A missing collection yields an empty result, not an error.
	Retrieve(ctx context.Context, collection string, ids []string) ([]Point, error)

	// SetPayload merges the given payload entries into existing points.
	SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any) error

	// DeleteByFilter removes all points whose payload matches the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
}
