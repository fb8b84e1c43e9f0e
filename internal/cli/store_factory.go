package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/yol/internal/config"
	"github.com/aretw0/yol/pkg/adapters/file"
	"github.com/aretw0/yol/pkg/adapters/memory"
	"github.com/aretw0/yol/pkg/adapters/postgres"
	redisstore "github.com/aretw0/yol/pkg/adapters/redis"
	"github.com/aretw0/yol/pkg/adapters/sqlite"
	"github.com/aretw0/yol/pkg/persistence/middleware"
	"github.com/aretw0/yol/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// ReadRetryBackoff is the pause before the first retry of a failed read.
const ReadRetryBackoff = 100 * time.Millisecond

// Stores bundles the store selected by the configuration with what it needs released.
type Stores struct {
	State  ports.StateStore
	Locker ports.DistributedLocker
	close  []func() error
}

// Close releases the connections of the stores.
func (s *Stores) Close() error {
	var first error
	for i := len(s.close) - 1; i >= 0; i-- {
		if err := s.close[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores builds the state store of cfg and, for the memory driver and for
// redis with lock set, the lock taken around each run.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Driver() {
	case config.DriverMemory:
		stores.State = memory.NewStore()
		stores.Locker = memory.NewLocker()

	case config.DriverFile:
		opts, err := cfg.FileOptions()
		if err != nil {
			return nil, err
		}
		var fileOpts []file.Option
		if opts.StaleLockAge > 0 {
			fileOpts = append(fileOpts, file.WithStaleLockAge(opts.StaleLockAge))
		}
		stores.State = file.New(opts.Path, fileOpts...)

	case config.DriverRedis:
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		client := backend.NewClient(&backend.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.close = append(stores.close, client.Close)
		stores.State = redisstore.NewFromClient(client,
			redisstore.WithPrefix(opts.Prefix),
			redisstore.WithTTL(opts.TTL),
		)
		if opts.Lock {
			stores.Locker = redisstore.NewLocker(client, opts.Prefix)
		}

	case config.DriverPostgres:
		opts, err := cfg.PostgresOptions()
		if err != nil {
			return nil, err
		}
		pgOpts := []postgres.Option{postgres.WithLogger(logger), postgres.WithSchema(opts.Schema)}
		if opts.Table != "" {
			pgOpts = append(pgOpts, postgres.WithTable(opts.Table))
		}
		store, err := postgres.New(ctx, opts.DSN, pgOpts...)
		if err != nil {
			return nil, err
		}
		stores.close = append(stores.close, store.Close)
		if opts.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = stores.Close()
				return nil, err
			}
		}
		stores.State = store

	case config.DriverSQLite:
		opts, err := cfg.SQLiteOptions()
		if err != nil {
			return nil, err
		}
		if opts.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		store, err := sqlite.New(opts.Path,
			sqlite.WithBusyTimeout(opts.BusyTimeout),
			sqlite.WithJournalMode(opts.JournalMode),
		)
		if err != nil {
			return nil, err
		}
		stores.close = append(stores.close, store.Close)
		stores.State = store

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Store.Driver)
	}

	var mws []middleware.Middleware
	if cfg.Store.Trace {
		mws = append(mws, middleware.NewLoggingMiddleware(logger))
	}
	if cfg.Store.ReadRetries > 0 {
		mws = append(mws, middleware.NewRetryMiddleware(middleware.RetryConfig{
			Attempts: cfg.Store.ReadRetries + 1,
			Backoff:  ReadRetryBackoff,
		}))
	}
	stores.State = middleware.Chain(stores.State, mws...)

	logger.Debug("Opened state store", "driver", cfg.Driver(), "read_retries", cfg.Store.ReadRetries)
	return stores, nil
}
