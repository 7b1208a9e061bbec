package private

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/oneconcern/privfs/internal/rand"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/private/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededContent(t testing.TB, seed int64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(rand.Seeded(seed), buf)
	require.NoError(t, err)
	return buf
}

func TestExternalContent(t *testing.T) {
	ctx := context.Background()
	hot := blockstore.Memory(blockstore.Logger(dlogger.MustGetLogger("none")))
	cold := blockstore.Memory(blockstore.Logger(dlogger.MustGetLogger("none")))
	f, err := NewForest(hot, testSetup(t),
		Logger(dlogger.MustGetLogger("none")),
		ContentStore(cold),
		Chunking(1<<10, 4<<10),
		WithMetrics(true),
	)
	require.NoError(t, err)

	f, root, err := f.NewRoot(ctx, epoch)
	require.NoError(t, err)
	big := seededContent(t, 7, 10<<10+123)
	f, root, err = f.Write(ctx, root, SplitPath("data/big.bin"), big, epoch)
	require.NoError(t, err)
	f, root, err = f.Write(ctx, root, SplitPath("data/small.txt"), []byte("inline"), epoch)
	require.NoError(t, err)

	content, err := f.Read(ctx, root, SplitPath("data/big.bin"))
	require.NoError(t, err)
	assert.Equal(t, big, content)

	entries, err := f.Ls(ctx, root, SplitPath("data"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	node, err := f.Load(ctx, entries[0].Ref)
	require.NoError(t, err)
	file := node.(*File)
	require.NotNil(t, file.External)
	assert.Empty(t, file.Content)
	assert.Equal(t, int64(len(big)), file.External.Size)
	chunks, err := file.External.CIDs()
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		has, err := cold.HasBlock(ctx, c)
		require.NoError(t, err)
		assert.True(t, has, "chunks go to the content store")
		has, err = hot.HasBlock(ctx, c)
		require.NoError(t, err)
		assert.False(t, has)
	}
	has, err := cold.HasBlock(ctx, entries[0].Ref.ContentCID)
	require.NoError(t, err)
	assert.False(t, has, "nodes stay in the forest store")

	small, err := f.Load(ctx, entries[1].Ref)
	require.NoError(t, err)
	assert.Nil(t, small.(*File).External)
	assert.Equal(t, []byte("inline"), small.(*File).Content)

	t.Run("metadata revision keeps chunks", func(t *testing.T) {
		touched := file.clone().(*File)
		touched.Metadata.Touch(epoch.Add(time.Hour))
		_, next, _, err := f.Put(ctx, touched)
		require.NoError(t, err)
		assert.Equal(t, file.External.Blocks, next.(*File).External.Blocks)
		content, err := f.Content(ctx, next.(*File))
		require.NoError(t, err)
		assert.Equal(t, big, content)
	})

	t.Run("overwrite inline", func(t *testing.T) {
		f2, root2, err := f.Write(ctx, root, SplitPath("data/big.bin"), []byte("short"), epoch)
		require.NoError(t, err)
		entries, err := f2.Ls(ctx, root2, SplitPath("data"))
		require.NoError(t, err)
		node, err := f2.Load(ctx, entries[0].Ref)
		require.NoError(t, err)
		assert.Nil(t, node.(*File).External)
		content, err := f2.Read(ctx, root2, SplitPath("data/big.bin"))
		require.NoError(t, err)
		assert.Equal(t, []byte("short"), content)
	})

	t.Run("reordered chunks", func(t *testing.T) {
		swapped := file.clone().(*File)
		swapped.External.Blocks[0], swapped.External.Blocks[1] = swapped.External.Blocks[1], swapped.External.Blocks[0]
		_, err := f.Content(ctx, swapped)
		assert.True(t, errors.Is(err, status.ErrDecryptionFailure))
	})

	t.Run("missing chunk", func(t *testing.T) {
		missing, err := blockstore.Sum([]byte("never stored"), blockstore.Raw)
		require.NoError(t, err)
		lost := file.clone().(*File)
		lost.External.Blocks[2] = missing.Bytes()
		_, err = f.Content(ctx, lost)
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})

	t.Run("wrong size", func(t *testing.T) {
		truncated := file.clone().(*File)
		truncated.External.Size--
		_, err := f.Content(ctx, truncated)
		assert.True(t, errors.Is(err, status.ErrInvalidNode))
	})

	t.Run("reload", func(t *testing.T) {
		rootCID, err := f.Store(ctx)
		require.NoError(t, err)
		loaded, err := LoadForest(ctx, hot, rootCID, Logger(dlogger.MustGetLogger("none")), ContentStore(cold))
		require.NoError(t, err)
		content, err := loaded.Read(ctx, root, SplitPath("data/big.bin"))
		require.NoError(t, err)
		assert.Equal(t, big, content)
	})
}

func TestExternalContentDecoding(t *testing.T) {
	f := testForest(t)
	file := testFile(t, f, "inline")
	file.External = &ExternalContent{Key: make([]byte, KeySize), Size: 1}

	pt, err := encodePlaintext(file)
	require.NoError(t, err)
	_, err = decodePlaintext(pt)
	assert.True(t, errors.Is(err, status.ErrInvalidNode))

	file.Content = nil
	pt, err = encodePlaintext(file)
	require.NoError(t, err)
	node, err := decodePlaintext(pt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), node.(*File).External.Size)

	_, err = f.Content(context.Background(), &File{External: &ExternalContent{Key: []byte("short")}})
	assert.True(t, errors.Is(err, status.ErrInvalidNode))
}
