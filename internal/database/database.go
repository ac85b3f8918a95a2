// Package database provides the GORM database handle shared by the
// persistence layer. The handle is constructed once at process start and
// injected everywhere as a read-only value.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrUnsupportedDriver indicates the database URL names a driver we do not support.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// driverKind identifies the underlying database driver.
type driverKind int

const (
	driverSQLite driverKind = iota
	driverPostgres
)

// Database wraps a GORM connection with driver awareness.
type Database struct {
	gdb    *gorm.DB
	driver driverKind
}

// NewDatabase opens a database connection from a URL.
// Supported forms: sqlite:///path/to/file.db, postgres://..., postgresql://...
func NewDatabase(ctx context.Context, url string) (Database, error) {
	dialector, driver, err := parseDialector(url)
	if err != nil {
		return Database{}, fmt.Errorf("parse database url: %w", err)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: slogGormLogger{},
	})
	if err != nil {
		return Database{}, fmt.Errorf("open database: %w", err)
	}

	db := Database{gdb: gdb, driver: driver}

	sqlDB, err := gdb.DB()
	if err != nil {
		return Database{}, fmt.Errorf("get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Database{}, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func parseDialector(url string) (gorm.Dialector, driverKind, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return nil, 0, ErrUnsupportedDriver
		}
		// WAL lets background build writers run alongside readers;
		// the busy timeout covers the remaining write contention.
		dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"
		return sqlite.Open(dsn), driverSQLite, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), driverPostgres, nil
	default:
		return nil, 0, ErrUnsupportedDriver
	}
}

// Session returns a GORM session bound to the context.
func (d Database) Session(ctx context.Context) *gorm.DB {
	return d.gdb.WithContext(ctx)
}

// GORM returns the raw GORM handle.
func (d Database) GORM() *gorm.DB {
	return d.gdb
}

// IsSQLite reports whether the underlying driver is SQLite.
func (d Database) IsSQLite() bool { return d.driver == driverSQLite }

// IsPostgres reports whether the underlying driver is PostgreSQL.
func (d Database) IsPostgres() bool { return d.driver == driverPostgres }

// ConfigurePool sets connection pool limits.
func (d Database) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)
	return nil
}

// Close closes the underlying connection.
func (d Database) Close() error {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
