// Package store wraps the embedded SQLite database. The file supports one
// concurrent writer, so every write serializes through a single coordinator
// mutex; reads run concurrently against the WAL snapshot.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Sentinel errors classified by the REST layer.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("duplicate transaction code")
	ErrForeignRow    = errors.New("row not owned by user")
	ErrInvalidStatus = errors.New("invalid transaction status")
	ErrOwnerRequired = errors.New("owner id required")

	// ErrValidation tags every rejected-input error. Handlers test with
	// errors.Is and echo the message; anything NOT matching a sentinel is a
	// storage failure and must never reach the client verbatim.
	ErrValidation = errors.New("invalid input")
)

// validationError is a client-facing input error. It matches ErrValidation
// under errors.Is while keeping the bare message.
type validationError string

func (e validationError) Error() string { return string(e) }

func (validationError) Is(target error) bool { return target == ErrValidation }

// Store owns the database handle and the single-writer coordinator.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (or creates) the database file, applies pragmas and runs
// pending migrations. Callers treat an error here as fatal.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a write transaction under the single-writer
// coordinator. Any error from fn (or a cancelled ctx) rolls the whole unit
// back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// exec runs a single write statement under the coordinator.
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.ExecContext(ctx, query, args...)
}
