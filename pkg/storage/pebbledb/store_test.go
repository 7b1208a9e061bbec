package pebbledb

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "pebble"), SyncWrites(true))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	storagetest.Run(t, store)
}

func TestInMemoryStore(t *testing.T) {
	store, err := New("", InMemory())
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	require.Equal(t, "pebble", store.String())
	storagetest.Run(t, store)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pebble")

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "b", bytes.NewBufferString("2"), storage.NoOverWrite))
	require.NoError(t, store.Put(ctx, "a", bytes.NewBufferString("1"), storage.NoOverWrite))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	data, err := storage.ReadAll(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), data)
}
