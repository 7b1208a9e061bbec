package private

import (
	"bytes"
	"context"
	"crypto/cipher"
	"encoding/binary"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/private/status"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sync/errgroup"
)

const (
	contentDomain = "privfs/private/content"

	// DefaultInlineLimit is the largest content kept inside the block of a file node
	DefaultInlineLimit = 64 << 10

	// DefaultChunkSize is the size of the chunks of content stored apart from file nodes
	DefaultChunkSize = 256 << 10
)

// ExternalContent locates the encrypted chunks of a file, stored in the content block store.
//
// Chunks are sealed under Key, derived from the revision that wrote them. Later revisions
// which leave the content unchanged keep pointing to the same chunks.
type ExternalContent struct {
	_msgpack struct{} `msgpack:",as_array"`

	Key    []byte
	Size   int64
	Blocks [][]byte
}

// CIDs of the chunks, in content order
func (e *ExternalContent) CIDs() ([]cid.Cid, error) {
	out := make([]cid.Cid, len(e.Blocks))
	for i, raw := range e.Blocks {
		c, err := cid.Cast(raw)
		if err != nil {
			return nil, status.ErrInvalidNode.Wrap(err)
		}
		out[i] = c
	}
	return out, nil
}

func (e *ExternalContent) clone() *ExternalContent {
	if e == nil {
		return nil
	}
	c := &ExternalContent{Key: append([]byte(nil), e.Key...), Size: e.Size, Blocks: make([][]byte, len(e.Blocks))}
	for i, b := range e.Blocks {
		c.Blocks[i] = append([]byte(nil), b...)
	}
	return c
}

func contentKey(revision Key) Key {
	return Key(blake2b.Sum256(append([]byte(contentDomain), revision[:]...)))
}

// chunkAD binds a chunk to its position in the content
func chunkAD(i int) []byte {
	var ad [8]byte
	binary.BigEndian.PutUint64(ad[:], uint64(i))
	return ad[:]
}

// externalize seals content in chunks written to the content block store
func (f *Forest) externalize(ctx context.Context, revision Key, content []byte) (*ExternalContent, error) {
	key := contentKey(revision)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}

	ext := &ExternalContent{Key: key[:], Size: int64(len(content))}
	for i, off := 0, 0; off < len(content); i, off = i+1, off+f.chunkSize {
		chunk := content[off:min(off+f.chunkSize, len(content))]
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(chunk)+aead.Overhead())
		if _, err = io.ReadFull(f.rng, nonce); err != nil {
			return nil, err
		}
		block := aead.Seal(nonce, nonce, chunk, chunkAD(i))
		c, err := f.content.PutBlock(ctx, block, blockstore.Raw)
		if err != nil {
			return nil, err
		}
		ext.Blocks = append(ext.Blocks, c.Bytes())
		if f.MetricsEnabled() {
			f.m.Volume.Chunks.Inc("put")
			f.m.Volume.Chunks.Size(int64(len(block)), "put")
		}
	}
	f.l.Debug("content stored", zap.Int64("size", ext.Size), zap.Int("chunks", len(ext.Blocks)))
	return ext, nil
}

// Content of a file. Content stored apart from the node is fetched and decrypted.
func (f *Forest) Content(ctx context.Context, file *File) ([]byte, error) {
	ext := file.External
	if ext == nil {
		return append([]byte(nil), file.Content...), nil
	}
	if len(ext.Key) != KeySize {
		return nil, status.ErrInvalidNode.WrapMessage("content key of %d bytes", len(ext.Key))
	}
	cids, err := ext.CIDs()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(ext.Key)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, len(cids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, c := range cids {
		g.Go(func() error {
			block, err := f.content.GetBlock(gctx, c)
			if err != nil {
				if errors.Is(err, blockstore.ErrBlockNotFound) {
					return status.ErrNotFound.Wrap(err)
				}
				return err
			}
			chunks[i], err = openChunk(aead, i, block)
			return err
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	content := bytes.Join(chunks, nil)
	if int64(len(content)) != ext.Size {
		return nil, status.ErrInvalidNode.WrapMessage("content of %d bytes, expected %d", len(content), ext.Size)
	}
	return content, nil
}

func openChunk(aead cipher.AEAD, i int, block []byte) ([]byte, error) {
	if len(block) < aead.NonceSize()+aead.Overhead() {
		return nil, status.ErrDecryptionFailure.WrapMessage("chunk %d of %d bytes is too short", i, len(block))
	}
	nonce, ciphertext := block[:aead.NonceSize()], block[aead.NonceSize():]
	chunk, err := aead.Open(nil, nonce, ciphertext, chunkAD(i))
	if err != nil {
		return nil, status.ErrDecryptionFailure.Wrap(err)
	}
	return chunk, nil
}
