// Package sqlite provides a SQLite-backed state store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/mattn/go-sqlite3"
)

var _ ports.StateStore = (*Store)(nil)

// ErrKeyTooLong is returned for keys longer than domain.MaxKeyLength.
var ErrKeyTooLong = fmt.Errorf("key cannot be longer than %d chars", domain.MaxKeyLength)

// Config configures the SQLite store.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in a single connection.
	Path string

	// BusyTimeout is how long a writer waits for the database lock, in milliseconds.
	BusyTimeout int

	// JournalMode sets the SQLite journal mode (e.g., "WAL").
	JournalMode string
}

// Option configures the store.
type Option func(*Config)

// WithBusyTimeout sets the busy timeout in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(c *Config) {
		c.BusyTimeout = ms
	}
}

// WithJournalMode sets the journal mode.
func WithJournalMode(mode string) Option {
	return func(c *Config) {
		c.JournalMode = mode
	}
}

// Store keeps each key as one row of yol_key_value.
// Writes use BEGIN IMMEDIATE so a compare-and-set holds the write lock
// from its read to its commit.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at path.
func New(path string, opts ...Option) (*Store, error) {
	cfg := Config{
		Path:        path,
		BusyTimeout: 5000,
		JournalMode: "WAL",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB creates a store from an existing connection and migrates it.
func NewFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func dsn(cfg Config) string {
	params := []string{
		"_txlock=immediate",
		fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout),
	}
	if cfg.JournalMode != "" && cfg.Path != ":memory:" {
		params = append(params, "_journal_mode="+cfg.JournalMode)
	}
	return "file:" + cfg.Path + "?" + strings.Join(params, "&")
}

func (s *Store) migrate() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS yol_key_value (
			kv_key   VARCHAR(%d) PRIMARY KEY,
			kv_value TEXT NULL
		);
	`, domain.MaxKeyLength)

	if _, err := s.db.Exec(schema); err != nil {
		return domain.NewStoreError("migrate", "yol_key_value", err)
	}
	return nil
}

// Get retrieves the value of key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT kv_value FROM yol_key_value WHERE kv_key = ?",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewStoreError("get", key, err)
	}
	return value.String, true, nil
}

// CompareAndSet writes value if the row still holds expected.
func (s *Store) CompareAndSet(ctx context.Context, key, expected, value string) error {
	if len(key) > domain.MaxKeyLength {
		return domain.NewStoreError("set", key, ErrKeyTooLong)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin", key, expected, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current sql.NullString
	found := true
	err = tx.QueryRowContext(ctx,
		"SELECT kv_value FROM yol_key_value WHERE kv_key = ?",
		key,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return mapError("get", key, expected, err)
	}

	if !ports.Matches(current.String, found, expected) {
		return &domain.ConcurrencyError{Key: key, Expected: expected, Actual: current.String}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO yol_key_value (kv_key, kv_value) VALUES (?, ?)
		ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value
	`, key, value)
	if err != nil {
		return mapError("set", key, expected, err)
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit", key, expected, err)
	}
	return nil
}

// mapError reports a busy database as a lost race.
func mapError(op, key, expected string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &domain.ConcurrencyError{Key: key, Expected: expected}
		}
	}
	return domain.NewStoreError(op, key, err)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
