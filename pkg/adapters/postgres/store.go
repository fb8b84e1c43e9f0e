package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ ports.StateStore = (*Store)(nil)

// DefaultTable is the key-value table holding runner states.
const DefaultTable = "yol_key_value"

// ErrKeyTooLong is returned for keys that do not fit the key column.
var ErrKeyTooLong = fmt.Errorf("key cannot be longer than %d chars", domain.MaxKeyLength)

// SQLSTATE codes that mean another writer won.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store is a PostgreSQL implementation of ports.StateStore using pgx/v5.
// Each key is one row; CompareAndSet reads and writes it inside a
// REPEATABLE READ transaction with the row locked.
type Store struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	logger *slog.Logger
	owned  bool
}

// Option configures the Store.
type Option func(*Store)

// WithSchema sets the schema of the table. Default: "public".
func WithSchema(schema string) Option {
	return func(s *Store) {
		s.schema = schema
	}
}

// WithTable sets the table name. Default: DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New connects to dsn and returns a store owning the pool.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewFromPool(pool, opts...)
	s.owned = true
	return s, nil
}

// NewFromPool creates a store over an existing pool. Close does not close the pool.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		schema: "public",
		table:  DefaultTable,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tableName returns the fully qualified table name.
func (s *Store) tableName() string {
	return pgx.Identifier{s.schema, s.table}.Sanitize()
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			kv_key   VARCHAR(%d) PRIMARY KEY,
			kv_value TEXT NULL
		)
	`, s.tableName(), domain.MaxKeyLength)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return domain.NewStoreError("migrate", s.table, err)
	}
	s.logger.Info("Ensured state table", "table", s.tableName())
	return nil
}

// Get retrieves the value of key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT kv_value FROM %s WHERE kv_key = $1`, s.tableName())

	var value *string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, domain.NewStoreError("get", key, err)
	}
	if value == nil {
		return "", true, nil
	}
	return *value, true, nil
}

// CompareAndSet writes value if the row still holds expected.
func (s *Store) CompareAndSet(ctx context.Context, key, expected, value string) error {
	if len(key) > domain.MaxKeyLength {
		return domain.NewStoreError("set", key, ErrKeyTooLong)
	}

	// REPEATABLE READ so that no one can change the value while we verify it.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return domain.NewStoreError("begin", key, err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	var current *string
	found := true
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT kv_value FROM %s WHERE kv_key = $1 FOR UPDATE`, s.tableName()),
		key,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		found = false
	} else if err != nil {
		return mapError("get", key, expected, err)
	}

	actual := ""
	if current != nil {
		actual = *current
	}
	if !ports.Matches(actual, found, expected) {
		return &domain.ConcurrencyError{Key: key, Expected: expected, Actual: actual}
	}

	if found {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET kv_value = $2 WHERE kv_key = $1`, s.tableName()),
			key, value)
	} else {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (kv_key, kv_value) VALUES ($1, $2)`, s.tableName()),
			key, value)
	}
	if err != nil {
		return mapError("set", key, expected, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("commit", key, expected, err)
	}
	return nil
}

// mapError turns lost races into concurrency errors and anything else into store errors.
func mapError(op, key, expected string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return &domain.ConcurrencyError{Key: key, Expected: expected}
		}
	}
	return domain.NewStoreError(op, key, err)
}

// Close releases the pool if the store created it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}
