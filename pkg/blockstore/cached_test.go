package blockstore

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts reads reaching the wrapped store
type countingStore struct {
	BlockStore
	gets int
}

func (c *countingStore) GetBlock(ctx context.Context, k cid.Cid) ([]byte, error) {
	c.gets++
	return c.BlockStore.GetBlock(ctx, k)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner, _ := setupStore(t)
	counting := &countingStore{BlockStore: inner}

	cached, err := NewCached(counting, 2, 0)
	require.NoError(t, err)

	c1, err := inner.PutBlock(ctx, []byte("one"), Raw)
	require.NoError(t, err)

	data, err := cached.GetBlock(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	assert.Equal(t, 1, counting.gets)

	data[0] = 'X' // callers may not alter the cached copy
	data, err = cached.GetBlock(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	assert.Equal(t, 1, counting.gets, "second read is served by the cache")

	c2, err := cached.PutBlock(ctx, []byte("two"), Raw)
	require.NoError(t, err)
	c3, err := cached.PutBlock(ctx, []byte("three"), Raw)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	has, err := cached.HasBlock(ctx, c2)
	require.NoError(t, err)
	assert.True(t, has)

	// c1 was evicted: read through
	_, err = cached.GetBlock(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.gets)

	_, err = cached.GetBlock(ctx, c3)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.gets)
}

func TestCachedMaxBlockSize(t *testing.T) {
	ctx := context.Background()
	inner, _ := setupStore(t, WithMetrics(true))

	cached, err := NewCached(inner, 0, 4)
	require.NoError(t, err)
	assert.True(t, cached.MetricsEnabled())

	_, err = cached.PutBlock(ctx, []byte("big block"), Raw)
	require.NoError(t, err)
	_, err = cached.PutBlock(ctx, []byte("tiny"), Raw)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())

	missing, err := Sum([]byte("missing"), Raw)
	require.NoError(t, err)
	_, err = cached.GetBlock(ctx, missing)
	assert.True(t, errors.Is(err, ErrBlockNotFound))
}
