package ports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	prefix := "contract." + time.Now().Format("20060102150405.000000000") + "."

	t.Run("Get Absent", func(t *testing.T) {
		value, found, err := store.Get(ctx, prefix+"absent")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, value)
	})

	t.Run("Set From Absent", func(t *testing.T) {
		key := prefix + "first"
		require.NoError(t, store.CompareAndSet(ctx, key, "", "aaa"))

		value, found, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "aaa", value)
	})

	t.Run("Set Chain", func(t *testing.T) {
		key := prefix + "chain"
		require.NoError(t, store.CompareAndSet(ctx, key, "", "aaa"))
		require.NoError(t, store.CompareAndSet(ctx, key, "aaa", "bbb"))
		require.NoError(t, store.CompareAndSet(ctx, key, "bbb", "ccc"))

		value, _, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "ccc", value)
	})

	t.Run("Mismatch Is Conflict", func(t *testing.T) {
		key := prefix + "mismatch"
		require.NoError(t, store.CompareAndSet(ctx, key, "", "aaa"))

		err := store.CompareAndSet(ctx, key, "zzz", "bbb")
		assert.ErrorIs(t, err, domain.ErrConcurrency)

		// Expecting the initial state while a value exists is a conflict too.
		err = store.CompareAndSet(ctx, key, "", "bbb")
		assert.ErrorIs(t, err, domain.ErrConcurrency)

		value, _, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "aaa", value, "a failed compare-and-set must not write")
	})

	t.Run("Expecting A Value On Absent Key Is Conflict", func(t *testing.T) {
		key := prefix + "absent-expected"
		err := store.CompareAndSet(ctx, key, "aaa", "bbb")
		assert.ErrorIs(t, err, domain.ErrConcurrency)

		_, found, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Blank Matches Empty", func(t *testing.T) {
		key := prefix + "blank"
		require.NoError(t, store.CompareAndSet(ctx, key, "", "  "))
		require.NoError(t, store.CompareAndSet(ctx, key, "", "aaa"))

		value, _, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "aaa", value)
	})

	t.Run("Keys Are Independent", func(t *testing.T) {
		k1, k2 := prefix+"one", prefix+"two"
		require.NoError(t, store.CompareAndSet(ctx, k1, "", "aaa"))
		require.NoError(t, store.CompareAndSet(ctx, k2, "", "zzz"))

		v1, _, err := store.Get(ctx, k1)
		require.NoError(t, err)
		v2, _, err := store.Get(ctx, k2)
		require.NoError(t, err)
		assert.Equal(t, "aaa", v1)
		assert.Equal(t, "zzz", v2)
	})

	t.Run("Racing Writers", func(t *testing.T) {
		key := prefix + "race"
		require.NoError(t, store.CompareAndSet(ctx, key, "", "aaa"))

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   int
			conflicts int
			others    []error
		)
		start := make(chan struct{})
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := store.CompareAndSet(ctx, key, "aaa", "bbb")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, domain.ErrConcurrency):
					conflicts++
				default:
					others = append(others, err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Empty(t, others)
		assert.Equal(t, 1, winners, "exactly one writer may move the state away from its expected value")
		assert.Equal(t, writers-1, conflicts)
	})
}
