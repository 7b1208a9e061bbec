package blockstore

import (
	"bytes"
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/metrics"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/localfs"
	"github.com/oneconcern/privfs/pkg/storage/status"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Codec tells how the content of a block is encoded
type Codec uint64

const (
	// Raw blocks are opaque bytes
	Raw Codec = cid.Raw
	// MsgPack blocks hold canonical msgpack (multicodec private use range)
	MsgPack Codec = 0x0201
)

var (
	// ErrBlockNotFound is returned when no block is stored under a CID
	ErrBlockNotFound = errors.New("block not found")

	// ErrHashMismatch is returned when the content of a block does not match its CID
	ErrHashMismatch = errors.New("block content does not match its CID")

	// ErrInvalidCID is returned when a CID cannot be built or used
	ErrInvalidCID = errors.New("invalid CID")
)

// BlockStore knows how to store and retrieve immutable blocks by CID
type BlockStore interface {
	PutBlock(context.Context, []byte, Codec) (cid.Cid, error)
	GetBlock(context.Context, cid.Cid) ([]byte, error)
	HasBlock(context.Context, cid.Cid) (bool, error)
}

// Store is a BlockStore over some storage.Store
type Store struct {
	metrics.Enable
	backend    storage.Store
	verifyHash bool
	l          *zap.Logger
	m          *M
}

var _ BlockStore = &Store{}

// New block store over a storage backend
func New(backend storage.Store, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		verifyHash: true,
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.l == nil {
		s.l = dlogger.MustGetLogger("info")
	}
	if s.MetricsEnabled() {
		s.m = s.EnsureMetrics("blockstore", &M{}).(*M)
	}
	return s
}

// Memory builds a block store held in memory
func Memory(opts ...Option) *Store {
	return New(localfs.New(afero.NewMemMapFs()), opts...)
}

// Sum computes the CID of some data, without storing it
func Sum(data []byte, codec Codec) (cid.Cid, error) {
	pref := cid.Prefix{
		Version:  1,
		Codec:    uint64(codec),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}
	c, err := pref.Sum(data)
	if err != nil {
		return cid.Undef, ErrInvalidCID.Wrap(err)
	}
	return c, nil
}

// Backend returns the underlying storage
func (s *Store) Backend() storage.Store {
	return s.backend
}

func (s *Store) String() string {
	return "blockstore@" + s.backend.String()
}

// PutBlock stores a block and returns its CID. Storing the same content twice is a no-op.
func (s *Store) PutBlock(ctx context.Context, data []byte, codec Codec) (c cid.Cid, err error) {
	if s.MetricsEnabled() {
		defer func(start time.Time) {
			s.m.Usage.UsedAll(start, "PutBlock")(err)
		}(time.Now())
	}

	c, err = Sum(data, codec)
	if err != nil {
		return cid.Undef, err
	}

	err = s.backend.Put(ctx, keyOf(c), bytes.NewReader(data), storage.NoOverWrite)
	switch {
	case err == nil:
		s.l.Debug("block stored", zap.Stringer("cid", c), zap.Int("size", len(data)))
		if s.MetricsEnabled() {
			s.m.Volume.Blocks.Inc("put")
			s.m.Volume.Blocks.Size(int64(len(data)), "put")
		}
	case errors.Is(err, status.ErrExists):
		err = nil
		if s.MetricsEnabled() {
			s.m.Volume.Duplicates.Inc("put")
		}
	default:
		return cid.Undef, err
	}
	return c, nil
}

// GetBlock retrieves a block, verifying that its content matches the CID unless verification is disabled
func (s *Store) GetBlock(ctx context.Context, c cid.Cid) (data []byte, err error) {
	if s.MetricsEnabled() {
		defer func(start time.Time) {
			s.m.Usage.UsedAll(start, "GetBlock")(err)
		}(time.Now())
	}

	if !c.Defined() {
		return nil, ErrInvalidCID.WrapMessage("undefined CID")
	}

	data, err = storage.ReadAll(ctx, s.backend, keyOf(c))
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return nil, ErrBlockNotFound.WrapMessage("%v", c)
		}
		return nil, err
	}

	if s.verifyHash {
		check, err := c.Prefix().Sum(data)
		if err != nil {
			return nil, ErrInvalidCID.Wrap(err)
		}
		if !check.Equals(c) {
			s.l.Warn("corrupted block", zap.Stringer("cid", c))
			return nil, ErrHashMismatch.WrapMessage("%v", c)
		}
	}

	if s.MetricsEnabled() {
		s.m.Volume.Blocks.Inc("get")
		s.m.Volume.Blocks.Size(int64(len(data)), "get")
	}
	return data, nil
}

// HasBlock tells whether a block is stored
func (s *Store) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	if !c.Defined() {
		return false, nil
	}
	return s.backend.Has(ctx, keyOf(c))
}

// keyOf a block in the backend: the base32 string form of the CID, safe as a file name
func keyOf(c cid.Cid) string {
	return c.String()
}
