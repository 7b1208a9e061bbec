package hamt

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/errors"
	"go.uber.org/zap"
)

// Hamt is an immutable trie mapping digests to sets of CIDs.
//
// Nodes are loaded lazily from the block store. Writes return a new trie: the receiver
// remains valid and unchanged.
type Hamt struct {
	settings
	bs   blockstore.BlockStore
	root *Node
}

// New empty trie
func New(bs blockstore.BlockStore, opts ...Option) (*Hamt, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.l == nil {
		s.l = dlogger.MustGetLogger("info")
	}
	return &Hamt{settings: s, bs: bs, root: newNode(s.bitWidth)}, nil
}

// Load a trie from its root block. Bit width and bucket size are read from the root block.
func Load(ctx context.Context, bs blockstore.BlockStore, root cid.Cid, opts ...Option) (*Hamt, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(&s)
	}
	if s.l == nil {
		s.l = dlogger.MustGetLogger("info")
	}

	data, err := bs.GetBlock(ctx, root)
	if err != nil {
		return nil, err
	}
	s, node, err := decodeRoot(data, s)
	if err != nil {
		return nil, err
	}
	s.l.Debug("hamt loaded", zap.Stringer("root", root), zap.Int("bitWidth", s.bitWidth), zap.Int("bucketSize", s.bucketSize))

	return &Hamt{settings: s, bs: bs, root: node}, nil
}

// BitWidth of the trie
func (h *Hamt) BitWidth() int {
	return h.bitWidth
}

// BucketSize of the trie
func (h *Hamt) BucketSize() int {
	return h.bucketSize
}

// BlockStore used by this trie
func (h *Hamt) BlockStore() blockstore.BlockStore {
	return h.bs
}

func (h *Hamt) with(root *Node) *Hamt {
	return &Hamt{settings: h.settings, bs: h.bs, root: root}
}

func (h *Hamt) compatible(other *Hamt) error {
	if h.bitWidth != other.bitWidth || h.bucketSize != other.bucketSize {
		return ErrIncompatible.WrapMessage("bit width %d/%d, bucket size %d/%d", h.bitWidth, other.bitWidth, h.bucketSize, other.bucketSize)
	}
	return nil
}

func (h *Hamt) loadNode(ctx context.Context, c cid.Cid) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := h.bs.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	return decodeChild(data, h.settings)
}

// Store all new nodes of the trie and its root block, returning the CID of the root block
func (h *Hamt) Store(ctx context.Context) (cid.Cid, error) {
	if err := h.storeChildren(ctx, h.root); err != nil {
		return cid.Undef, err
	}
	data, err := encodeRoot(h.settings, h.root)
	if err != nil {
		return cid.Undef, err
	}
	c, err := h.bs.PutBlock(ctx, data, blockstore.MsgPack)
	if err != nil {
		return cid.Undef, err
	}
	h.l.Debug("hamt stored", zap.Stringer("root", c))
	return c, nil
}

// storeChildren stores children not stored yet, depth first
func (h *Hamt) storeChildren(ctx context.Context, n *Node) error {
	for _, p := range n.pointers {
		if p.IsBucket() || p.Link().Defined() {
			continue
		}
		p.mu.Lock()
		child := p.child
		p.mu.Unlock()

		if err := h.storeChildren(ctx, child); err != nil {
			return err
		}
		data, err := encodeChild(child)
		if err != nil {
			return err
		}
		c, err := h.bs.PutBlock(ctx, data, blockstore.MsgPack)
		if err != nil {
			return err
		}
		p.setLink(c)
	}
	return nil
}

// Get the values of a key. It returns ErrNotFound when the key is absent.
func (h *Hamt) Get(ctx context.Context, key Digest) ([]cid.Cid, error) {
	n := h.root
	for depth := 0; depth < maxDepth(h.bitWidth); depth++ {
		i := index(key, depth, h.bitWidth)
		if !n.has(i) {
			break
		}
		p := n.pointerAt(i)
		if p.IsBucket() {
			if pos, found := searchBucket(p.bucket, key); found {
				return append([]cid.Cid(nil), p.bucket[pos].Values...), nil
			}
			break
		}
		child, err := p.loadChild(ctx, h)
		if err != nil {
			return nil, err
		}
		n = child
	}
	return nil, ErrNotFound.WrapMessage("%v", key)
}

// Has tells if a key is present
func (h *Hamt) Has(ctx context.Context, key Digest) (bool, error) {
	_, err := h.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Contains tells if a value is held by a key
func (h *Hamt) Contains(ctx context.Context, key Digest, value cid.Cid) (bool, error) {
	values, err := h.Get(ctx, key)
	switch {
	case err == nil:
		return containsValue(values, value), nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Set adds a value to the set of values of a key
func (h *Hamt) Set(ctx context.Context, key Digest, value cid.Cid) (*Hamt, error) {
	if !value.Defined() {
		return nil, ErrInvalidOption.WrapMessage("undefined value")
	}
	return h.SetPair(ctx, Pair{Key: key, Values: []cid.Cid{value}})
}

// SetPair adds several values to the set of values of a key
func (h *Hamt) SetPair(ctx context.Context, pair Pair) (*Hamt, error) {
	pair.Values = normalizeValues(pair.Values)
	if len(pair.Values) == 0 {
		return h, nil
	}
	root, err := h.insert(ctx, h.root, 0, pair)
	if err != nil {
		return nil, err
	}
	return h.with(root), nil
}

// Remove a value from the set of values of a key. The key goes away with its last value.
//
// Removing an absent value leaves the trie unchanged.
func (h *Hamt) Remove(ctx context.Context, key Digest, value cid.Cid) (*Hamt, error) {
	root, _, err := h.remove(ctx, h.root, 0, key, func(values []cid.Cid) []cid.Cid {
		return removeValue(values, value)
	})
	if err != nil {
		return nil, err
	}
	return h.with(root), nil
}

// RemoveKey removes a key with all its values
func (h *Hamt) RemoveKey(ctx context.Context, key Digest) (*Hamt, error) {
	root, _, err := h.remove(ctx, h.root, 0, key, func([]cid.Cid) []cid.Cid {
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.with(root), nil
}

// ForEach walks all pairs in key order. Walking stops on the first error returned by fn.
func (h *Hamt) ForEach(ctx context.Context, fn func(Pair) error) error {
	return h.walk(ctx, h.root, fn)
}

func (h *Hamt) walk(ctx context.Context, n *Node, fn func(Pair) error) error {
	for _, p := range n.pointers {
		if p.IsBucket() {
			for _, pair := range p.bucket {
				if err := fn(Pair{Key: pair.Key, Values: append([]cid.Cid(nil), pair.Values...)}); err != nil {
					return err
				}
			}
			continue
		}
		child, err := p.loadChild(ctx, h)
		if err != nil {
			return err
		}
		if err = h.walk(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Entries lists all pairs in key order
func (h *Hamt) Entries(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	err := h.ForEach(ctx, func(p Pair) error {
		pairs = append(pairs, p)
		return nil
	})
	return pairs, err
}

// Len is the number of keys
func (h *Hamt) Len(ctx context.Context) (int, error) {
	n := 0
	err := h.ForEach(ctx, func(Pair) error {
		n++
		return nil
	})
	return n, err
}
