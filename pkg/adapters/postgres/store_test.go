package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/yol/pkg/adapters/postgres"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore connects to YOL_TEST_POSTGRES_URL, skipping when it is not set.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("YOL_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("YOL_TEST_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := fmt.Sprintf("yol_test_%d", time.Now().UnixNano())
	store, err := postgres.New(ctx, dsn, postgres.WithTable(table))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestPostgresStore_Contract(t *testing.T) {
	store := newStore(t)
	ports.RunStateStoreContract(t, store)
}

func TestPostgresStore_KeyTooLong(t *testing.T) {
	store := newStore(t)
	err := store.CompareAndSet(context.Background(), strings.Repeat("k", domain.MaxKeyLength+1), "", "aaa")
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, postgres.ErrKeyTooLong)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrConcurrency},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrConcurrency},
		{"concurrent insert", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), domain.ErrConcurrency},
		{"syntax", &pgconn.PgError{Code: "42601"}, domain.ErrStore},
		{"network", errors.New("connection reset by peer"), domain.ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := postgres.MapError("set", "k", "aaa", tt.err)
			assert.ErrorIs(t, err, tt.category)
		})
	}
}
