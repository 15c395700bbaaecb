// Package store persists imported codes in SQLite.
//
// Usage:
//
//	st, err := store.Open("code.db")
//	edition, err := st.EnsureEdition(ctx, "2013", "2013 Edition", true)
//	id, err := st.CreateStructure(ctx, &structure, edition.ID)
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/coolbeans/amlegal/pkg/code"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStructure is returned when a structure has no identifier
	// or no label. Vendor documents reference void structures; callers skip them.
	ErrInvalidStructure = errors.New("invalid structure")
)

// Store is the SQLite-backed storage for one code database.
type Store struct {
	db *sql.DB
}

type config struct {
	busyTimeout int
	mkdirAll    bool
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for tests and closes it on cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureEdition finds the edition with slug, creating it when missing. When
// current is true every other edition loses its current flag.
func (s *Store) EnsureEdition(ctx context.Context, slug, name string, current bool) (code.Edition, error) {
	if slug == "" {
		return code.Edition{}, fmt.Errorf("edition slug is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return code.Edition{}, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO editions (slug, name, current) VALUES (?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET name = excluded.name, current = excluded.current`,
		slug, name, current,
	); err != nil {
		return code.Edition{}, fmt.Errorf("error saving edition %s: %w", slug, err)
	}

	if current {
		if _, err := tx.ExecContext(ctx, `UPDATE editions SET current = 0 WHERE slug <> ?`, slug); err != nil {
			return code.Edition{}, fmt.Errorf("error clearing current edition: %w", err)
		}
	}

	edition := code.Edition{Slug: slug}
	if err := tx.QueryRowContext(ctx,
		`SELECT id, IFNULL(name, ''), current FROM editions WHERE slug = ?`, slug,
	).Scan(&edition.ID, &edition.Name, &edition.Current); err != nil {
		return code.Edition{}, fmt.Errorf("error reading edition %s: %w", slug, err)
	}

	if err := tx.Commit(); err != nil {
		return code.Edition{}, fmt.Errorf("error committing edition: %w", err)
	}
	return edition, nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
