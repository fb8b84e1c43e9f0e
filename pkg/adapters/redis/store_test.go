package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/yol/pkg/adapters/redis"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunStateStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("site1:"))
	ctx := context.Background()

	require.NoError(t, store.CompareAndSet(ctx, "yol.manager.default.state", "", "ae59d4"))

	got, err := mr.Get("site1:yol.manager.default.state")
	require.NoError(t, err)
	assert.Equal(t, "ae59d4", got)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.CompareAndSet(ctx, "k", "", "aaa"))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "State should expire after TTL")
}

func TestRedisStore_ExternalWriteIsConflict(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.CompareAndSet(ctx, "k", "", "aaa"))
	require.NoError(t, mr.Set("k", "bbb"))

	err := store.CompareAndSet(ctx, "k", "aaa", "ccc")
	assert.ErrorIs(t, err, domain.ErrConcurrency)

	got, _ := mr.Get("k")
	assert.Equal(t, "bbb", got)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrStore)

	err = store.CompareAndSet(ctx, "k", "", "aaa")
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.NotErrorIs(t, err, domain.ErrConcurrency)
}
