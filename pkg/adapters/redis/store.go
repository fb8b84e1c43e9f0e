package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.StateStore = (*Store)(nil)

// Store implements ports.StateStore using Redis.
// CompareAndSet is an optimistic WATCH/MULTI/EXEC transaction.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of stored states. Zero (the default) keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Get retrieves the state from Redis.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", false, nil
		}
		return "", false, domain.NewStoreError("get", key, err)
	}
	return val, true, nil
}

// CompareAndSet writes value if the stored value still matches expected.
// A concurrent write between the read and EXEC aborts the transaction.
func (s *Store) CompareAndSet(ctx context.Context, key, expected, value string) error {
	redisKey := s.key(key)

	txf := func(tx *backend.Tx) error {
		current, err := tx.Get(ctx, redisKey).Result()
		found := true
		if errors.Is(err, backend.Nil) {
			found = false
		} else if err != nil {
			return domain.NewStoreError("get", key, err)
		}

		if !ports.Matches(current, found, expected) {
			return &domain.ConcurrencyError{Key: key, Expected: expected, Actual: current}
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, redisKey, value, s.ttl)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, redisKey)
	if errors.Is(err, backend.TxFailedErr) {
		return &domain.ConcurrencyError{Key: key, Expected: expected}
	}
	return domain.NewStoreError("set", key, err)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
