// Package storagetest exercises any storage.Store implementation with a common set of checks.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oneconcern/privfs/internal/rand"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run the conformance checks against an empty store
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		has, err := store.Has(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, has)

		_, err = store.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})

	t.Run("put get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "k1", bytes.NewBufferString("v1"), storage.NoOverWrite))

		has, err := store.Has(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, has)

		b, err := storage.ReadAll(ctx, store, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(b))
	})

	t.Run("exclusive put", func(t *testing.T) {
		err := store.Put(ctx, "k1", bytes.NewBufferString("other"), storage.NoOverWrite)
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrExists))

		require.NoError(t, store.Put(ctx, "k1", bytes.NewBufferString("v1bis"), storage.OverWrite))
		b, err := storage.ReadAll(ctx, store, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1bis", string(b))
	})

	t.Run("concurrent puts", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("c%02d", i)
				assert.NoError(t, store.Put(ctx, key, bytes.NewBufferString(key), storage.OverWrite))
			}(i)
		}
		wg.Wait()

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 21)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "k1"))
		has, err := store.Has(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("large object", func(t *testing.T) {
		key := rand.LetterString(24)
		value := rand.Bytes(256 << 10)
		require.NoError(t, store.Put(ctx, key, bytes.NewReader(value), storage.NoOverWrite))

		b, err := storage.ReadAll(ctx, store, key)
		require.NoError(t, err)
		assert.Equal(t, value, b)
		require.NoError(t, store.Delete(ctx, key))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, store.Put(ctx, "after", bytes.NewBufferString("clear"), storage.NoOverWrite))
		keys, err = store.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"after"}, keys)
		require.NoError(t, store.Clear(ctx))
	})

	assert.NotEmpty(t, store.String())
}
