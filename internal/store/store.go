// Package store is the SQLite persistence layer of a course store: schema,
// scoped transactions, inserts used by the importers and the read API used
// by consumers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/agentic-research/olxstore/api"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the single connection to a course store file.
type Store struct {
	db   *sql.DB
	path string
}

type options struct {
	pageSize    int
	synchronous string
	journalMode string
}

// Option customises Create.
type Option func(*options)

// WithPageSize sets PRAGMA page_size. Only effective before the first table exists.
func WithPageSize(n int) Option { return func(o *options) { o.pageSize = n } }

// WithSynchronous sets PRAGMA synchronous.
func WithSynchronous(mode string) Option { return func(o *options) { o.synchronous = mode } }

// WithJournalMode sets PRAGMA journal_mode.
func WithJournalMode(mode string) Option { return func(o *options) { o.journalMode = mode } }

// Create opens a new store file tuned for one bulk writer. The whole store is
// rebuilt from source on every run, so durability is traded for speed.
// The caller removes any previous file first.
func Create(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := options{pageSize: 65536, synchronous: "OFF", journalMode: "MEMORY"}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", fileURI(path, ""))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: pragmas are per connection and there is one writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA page_size = %d", o.pageSize),
		"PRAGMA synchronous = " + o.synchronous,
		"PRAGMA journal_mode = " + o.journalMode,
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Open opens an existing store read-only.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fileURI(path, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// fileURI escapes path so '?', '#' and '%' in file names reach SQLite intact.
func fileURI(path, query string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query}
	return u.String()
}

// DB exposes the underlying handle for read queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// RunTx runs fn inside one transaction. Any error from fn rolls the
// transaction back; the commit happens only when fn succeeds.
func (s *Store) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// classify maps SQLite unique/primary key violations onto api.ErrUniqueness.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", api.ErrUniqueness, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
