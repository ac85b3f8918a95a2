package index

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarianhq/librarian/domain/library"
	"github.com/librarianhq/librarian/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	db, err := database.NewDatabase(ctx, "sqlite:///"+dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db, nil)
	require.NoError(t, err)
	return store
}

func point(id string, vector []float64, payload map[string]any) library.Point {
	return library.Point{ID: id, Vector: vector, Payload: payload}
}

func TestStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.CollectionExists(ctx, "mylib")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.EnsureCollection(ctx, "mylib", 3))

	exists, err = store.CollectionExists(ctx, "mylib")
	require.NoError(t, err)
	assert.True(t, exists)

	// Idempotent
	require.NoError(t, store.EnsureCollection(ctx, "mylib", 3))

	require.NoError(t, store.DeleteCollection(ctx, "mylib"))
	exists, err = store.CollectionExists(ctx, "mylib")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing collection is not an error
	require.NoError(t, store.DeleteCollection(ctx, "mylib"))
}

func TestStore_InvalidCollectionName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.EnsureCollection(ctx, "bad name; DROP TABLE", 3)
	assert.Error(t, err)
}

func TestStore_UpsertAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 3))

	points := []library.Point{
		point("a", []float64{1, 0, 0}, map[string]any{"tag": "latest"}),
		point("b", []float64{0, 1, 0}, map[string]any{"tag": "v1.0"}),
	}
	require.NoError(t, store.Upsert(ctx, "lib", points))

	got, err := store.Retrieve(ctx, "lib", []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "latest", got[0].Payload["tag"])

	// Upserting the same ID replaces the point
	require.NoError(t, store.Upsert(ctx, "lib", []library.Point{
		point("a", []float64{0, 0, 1}, map[string]any{"tag": "v2.0"}),
	}))
	got, err = store.Retrieve(ctx, "lib", []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2.0", got[0].Payload["tag"])
}

func TestStore_RetrieveMissingCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// A collection that was never created has no points; lookups
	// against a fresh database must not error.
	got, err := store.Retrieve(ctx, "never_created", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_UpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 3))

	err := store.Upsert(ctx, "lib", []library.Point{
		point("a", []float64{1, 0}, nil),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_QueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 3))

	require.NoError(t, store.Upsert(ctx, "lib", []library.Point{
		point("far", []float64{0, 1, 0}, map[string]any{"tag": "latest"}),
		point("near", []float64{1, 0.1, 0}, map[string]any{"tag": "latest"}),
		point("exact", []float64{1, 0, 0}, map[string]any{"tag": "latest"}),
	}))

	results, err := store.Query(ctx, "lib", []float64{1, 0, 0}, map[string]any{"tag": "latest"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStore_QueryTagFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 3))

	require.NoError(t, store.Upsert(ctx, "lib", []library.Point{
		point("latest1", []float64{1, 0, 0}, map[string]any{"tag": "latest"}),
		point("v1", []float64{1, 0, 0}, map[string]any{"tag": "v1.0"}),
	}))

	results, err := store.Query(ctx, "lib", []float64{1, 0, 0}, map[string]any{"tag": "v1.0"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
}

func TestStore_ScrollPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 2))

	var points []library.Point
	for i := 0; i < 5; i++ {
		points = append(points, point(fmt.Sprintf("p%d", i), []float64{float64(i), 0}, map[string]any{"n": i}))
	}
	require.NoError(t, store.Upsert(ctx, "lib", points))

	page1, err := store.Scroll(ctx, "lib", 2, 0)
	require.NoError(t, err)
	page2, err := store.Scroll(ctx, "lib", 2, 2)
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	// Insertion order, disjoint pages
	assert.Equal(t, "p0", page1[0].ID)
	assert.Equal(t, "p1", page1[1].ID)
	assert.Equal(t, "p2", page2[0].ID)
	assert.Equal(t, "p3", page2[1].ID)
}

func TestStore_SetPayloadMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 2))

	require.NoError(t, store.Upsert(ctx, "lib", []library.Point{
		point("a", []float64{1, 0}, map[string]any{"state": "processing", "title": "A"}),
	}))

	require.NoError(t, store.SetPayload(ctx, "lib", []string{"a"}, map[string]any{
		"state":        "finalized",
		"total_tokens": 42,
	}))

	got, err := store.Retrieve(ctx, "lib", []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "finalized", got[0].Payload["state"])
	assert.Equal(t, "A", got[0].Payload["title"])
	assert.EqualValues(t, 42, got[0].Payload["total_tokens"])
}

func TestStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "lib", 2))

	require.NoError(t, store.Upsert(ctx, "lib", []library.Point{
		point("a", []float64{1, 0}, map[string]any{"tag": "latest"}),
		point("b", []float64{0, 1}, map[string]any{"tag": "v1.0"}),
		point("c", []float64{1, 1}, map[string]any{"tag": "latest"}),
	}))

	require.NoError(t, store.DeleteByFilter(ctx, "lib", map[string]any{"tag": "latest"}))

	remaining, err := store.Scroll(ctx, "lib", 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].ID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 0}))
}
