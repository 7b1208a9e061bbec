package private

import (
	"context"
	"testing"
	"time"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/private/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	assert.Nil(t, SplitPath("/"))
	assert.Equal(t, []string{"a", "b"}, SplitPath("/a/b/"))
	assert.Equal(t, []string{"a"}, SplitPath("a"))
}

func TestPathOperations(t *testing.T) {
	ctx := context.Background()
	f, root, err := testForest(t).NewRoot(ctx, epoch)
	require.NoError(t, err)
	initial := root

	f, root, err = f.Mkdir(ctx, root, SplitPath("docs/drafts"), epoch)
	require.NoError(t, err)

	// mkdir on an existing directory changes nothing
	same, sameRoot, err := f.Mkdir(ctx, root, SplitPath("docs/drafts"), epoch)
	require.NoError(t, err)
	assert.Same(t, f, same)
	assert.True(t, sameRoot.Equal(root))

	later := epoch.Add(time.Hour)
	f, root, err = f.Write(ctx, root, SplitPath("docs/drafts/note.txt"), []byte("first"), later)
	require.NoError(t, err)
	f, root, err = f.Write(ctx, root, SplitPath("docs/readme.md"), []byte("readme"), later)
	require.NoError(t, err)

	content, err := f.Read(ctx, root, SplitPath("docs/drafts/note.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), content)

	entries, err := f.Ls(ctx, root, SplitPath("docs"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "drafts", entries[0].Name)
	assert.Equal(t, "readme.md", entries[1].Name)

	// overwriting keeps the file identity and advances its generation
	previous := root
	f, root, err = f.Write(ctx, root, SplitPath("docs/drafts/note.txt"), []byte("second"), later)
	require.NoError(t, err)
	content, err = f.Read(ctx, root, SplitPath("docs/drafts/note.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), content)
	content, err = f.Read(ctx, previous, SplitPath("docs/drafts/note.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), content, "older roots still read older revisions")

	// missing parents are created
	f, root, err = f.Write(ctx, root, SplitPath("a/b/c"), []byte("deep"), later)
	require.NoError(t, err)
	content, err = f.Read(ctx, root, SplitPath("a/b/c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), content)

	_, err = f.Read(ctx, root, SplitPath("docs"))
	assert.True(t, errors.Is(err, status.ErrNotAFile))
	_, err = f.Ls(ctx, root, SplitPath("docs/readme.md"))
	assert.True(t, errors.Is(err, status.ErrNotADirectory))
	_, _, err = f.Write(ctx, root, SplitPath("docs"), []byte("x"), later)
	assert.True(t, errors.Is(err, status.ErrNotAFile))
	_, _, err = f.Mkdir(ctx, root, SplitPath("docs/readme.md/sub"), later)
	assert.True(t, errors.Is(err, status.ErrNotADirectory))
	_, err = f.Read(ctx, root, SplitPath("nope"))
	assert.True(t, errors.Is(err, status.ErrNotFound))

	f, root, err = f.Rm(ctx, root, SplitPath("docs/drafts/note.txt"), later)
	require.NoError(t, err)
	_, err = f.Read(ctx, root, SplitPath("docs/drafts/note.txt"))
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, _, err = f.Rm(ctx, root, SplitPath("docs/drafts/note.txt"), later)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, _, err = f.Rm(ctx, root, SplitPath("missing/note.txt"), later)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	entries, err = f.Ls(ctx, root, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "docs", entries[1].Name)

	entries, err = f.Ls(ctx, initial, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	node, err := f.Load(ctx, root)
	require.NoError(t, err)
	assert.True(t, MetadataOf(node).Modified.Equal(later))
	assert.True(t, MetadataOf(node).Created.Equal(epoch))
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	f, root, err := testForest(t).NewRoot(ctx, epoch)
	require.NoError(t, err)

	for _, path := range [][]string{nil, {""}, {"a", ""}, {".."}, {"a/b"}} {
		_, _, err = f.Write(ctx, root, path, []byte("x"), epoch)
		assert.Truef(t, errors.Is(err, status.ErrInvalidPath), "%q: %v", path, err)
	}
	_, err = f.Read(ctx, root, []string{"."})
	assert.True(t, errors.Is(err, status.ErrInvalidPath))
}
