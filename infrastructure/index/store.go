// Package index implements the vector index capability on top of a
// relational database. Each collection maps to its own table; embeddings
// are stored as JSON and similarity is computed in-process, which is
// plenty for per-library partitions of documentation snippets.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"

	"gorm.io/gorm/clause"

	"github.com/librarianhq/librarian/domain/library"
	"github.com/librarianhq/librarian/internal/database"
)

// ErrDimensionMismatch indicates a vector whose dimension differs from the
// collection's. This is fatal by contract, never a silent truncation.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrCollectionNotFound indicates an operation against a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// collectionRow is the registry of known collections.
type collectionRow struct {
	Name      string `gorm:"column:name;primaryKey"`
	Dimension int    `gorm:"column:dimension"`
}

func (collectionRow) TableName() string { return "librarian_collections" }

// pointRow is one stored point. Table routing is done via .Table(name) at
// the call site because the same struct backs every collection table.
type pointRow struct {
	Seq     int64        `gorm:"column:seq;primaryKey;autoIncrement"`
	ID      string       `gorm:"column:id;uniqueIndex"`
	Vector  Float64Slice `gorm:"column:vector;type:json"`
	Payload JSONMap      `gorm:"column:payload;type:json"`
}

// Store implements library.VectorIndex over GORM (SQLite or PostgreSQL).
type Store struct {
	db     database.Database
	logger *slog.Logger
}

// NewStore creates a Store and its collection registry table.
func NewStore(db database.Database, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.GORM().AutoMigrate(&collectionRow{}); err != nil {
		return nil, fmt.Errorf("migrate collection registry: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func tableName(collection string) string {
	return "librarian_points_" + collection
}

func validateName(collection string) error {
	if !collectionNamePattern.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := validateName(name); err != nil {
		return err
	}

	session := s.db.Session(ctx)
	if err := session.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&collectionRow{Name: name, Dimension: dimension}).Error; err != nil {
		return fmt.Errorf("register collection %s: %w", name, err)
	}

	// Raw SQL because GORM caches schemas by type, which conflicts with
	// one table per collection.
	var ddl string
	if s.db.IsPostgres() {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    seq BIGSERIAL PRIMARY KEY,
    id VARCHAR(255) NOT NULL UNIQUE,
    vector JSON NOT NULL,
    payload JSON NOT NULL
)`, tableName(name))
	} else {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id VARCHAR(255) NOT NULL UNIQUE,
    vector JSON NOT NULL,
    payload JSON NOT NULL
)`, tableName(name))
	}

	if err := session.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops the collection. Missing collections are ignored.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	session := s.db.Session(ctx)
	if err := session.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName(name))).Error; err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	if err := session.Where("name = ?", name).Delete(&collectionRow{}).Error; err != nil {
		return fmt.Errorf("unregister collection %s: %w", name, err)
	}
	return nil
}

// CollectionExists reports whether the collection is registered.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	var count int64
	err := s.db.Session(ctx).Model(&collectionRow{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return count > 0, nil
}

func (s *Store) dimension(ctx context.Context, name string) (int, error) {
	var row collectionRow
	err := s.db.Session(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return row.Dimension, nil
}

// Upsert inserts or replaces points by ID. Every vector must match the
// collection's dimension.
func (s *Store) Upsert(ctx context.Context, collection string, points []library.Point) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return err
	}

	rows := make([]pointRow, len(points))
	for i, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %s has dimension %d, collection %s expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), collection, dim)
		}
		rows[i] = pointRow{
			ID:      p.ID,
			Vector:  Float64Slice(p.Vector),
			Payload: JSONMap(p.Payload),
		}
	}

	err = s.db.Session(ctx).Table(tableName(collection)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"vector", "payload"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// Query returns the top points by cosine similarity, filtered by payload.
func (s *Store) Query(ctx context.Context, collection string, vector []float64, filter map[string]any, limit int) ([]library.ScoredPoint, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %s expects %d",
			ErrDimensionMismatch, len(vector), collection, dim)
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.loadRows(ctx, collection)
	if err != nil {
		return nil, err
	}

	scored := make([]library.ScoredPoint, 0, len(rows))
	for _, row := range rows {
		if !matchesFilter(row.Payload, filter) {
			continue
		}
		scored = append(scored, library.ScoredPoint{
			Point: toPoint(row),
			Score: cosineSimilarity(vector, row.Vector),
		})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Scroll returns a page of points in insertion order.
func (s *Store) Scroll(ctx context.Context, collection string, limit, offset int) ([]library.Point, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []pointRow
	err := s.db.Session(ctx).Table(tableName(collection)).
		Order("seq ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scroll %s: %w", collection, err)
	}

	points := make([]library.Point, len(rows))
	for i, row := range rows {
		points[i] = toPoint(row)
	}
	return points, nil
}

// Retrieve returns points by ID, skipping missing ones. A collection
// that was never created holds no points, so it yields an empty result
// rather than an error.
func (s *Store) Retrieve(ctx context.Context, collection string, ids []string) ([]library.Point, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var rows []pointRow
	err = s.db.Session(ctx).Table(tableName(collection)).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("retrieve from %s: %w", collection, err)
	}

	points := make([]library.Point, len(rows))
	for i, row := range rows {
		points[i] = toPoint(row)
	}
	return points, nil
}

// SetPayload merges payload entries into the given points.
func (s *Store) SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if len(ids) == 0 || len(payload) == 0 {
		return nil
	}

	session := s.db.Session(ctx)
	var rows []pointRow
	if err := session.Table(tableName(collection)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return fmt.Errorf("load points in %s: %w", collection, err)
	}

	for _, row := range rows {
		merged := make(JSONMap, len(row.Payload)+len(payload))
		for k, v := range row.Payload {
			merged[k] = v
		}
		for k, v := range payload {
			merged[k] = v
		}
		err := session.Table(tableName(collection)).
			Where("id = ?", row.ID).
			Update("payload", merged).Error
		if err != nil {
			return fmt.Errorf("set payload on %s/%s: %w", collection, row.ID, err)
		}
	}
	return nil
}

// DeleteByFilter removes all points whose payload matches the filter.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if err := validateName(collection); err != nil {
		return err
	}

	rows, err := s.loadRows(ctx, collection)
	if err != nil {
		return err
	}

	var ids []string
	for _, row := range rows {
		if matchesFilter(row.Payload, filter) {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err = s.db.Session(ctx).Table(tableName(collection)).
		Where("id IN ?", ids).
		Delete(&pointRow{}).Error
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

func (s *Store) loadRows(ctx context.Context, collection string) ([]pointRow, error) {
	var rows []pointRow
	err := s.db.Session(ctx).Table(tableName(collection)).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return rows, nil
}

func toPoint(row pointRow) library.Point {
	return library.Point{
		ID:      row.ID,
		Vector:  row.Vector,
		Payload: row.Payload,
	}
}

func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// cosineSimilarity returns a value between -1 and 1, or 0 when either
// vector has zero magnitude.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
