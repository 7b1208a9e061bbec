package hamt

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/blockstore"
)

// Get the values of a key in the trie stored at root
func Get(ctx context.Context, bs blockstore.BlockStore, root cid.Cid, key Digest) ([]cid.Cid, error) {
	h, err := Load(ctx, bs, root)
	if err != nil {
		return nil, err
	}
	return h.Get(ctx, key)
}

// Insert a value in the trie stored at root, and store the resulting trie
func Insert(ctx context.Context, bs blockstore.BlockStore, root cid.Cid, key Digest, value cid.Cid) (cid.Cid, error) {
	h, err := Load(ctx, bs, root)
	if err != nil {
		return cid.Undef, err
	}
	if h, err = h.Set(ctx, key, value); err != nil {
		return cid.Undef, err
	}
	return h.Store(ctx)
}

// Remove a value from the trie stored at root, and store the resulting trie
func Remove(ctx context.Context, bs blockstore.BlockStore, root cid.Cid, key Digest, value cid.Cid) (cid.Cid, error) {
	h, err := Load(ctx, bs, root)
	if err != nil {
		return cid.Undef, err
	}
	if h, err = h.Remove(ctx, key, value); err != nil {
		return cid.Undef, err
	}
	return h.Store(ctx)
}

// Merge the tries stored at a and b, and store the result
func Merge(ctx context.Context, bs blockstore.BlockStore, a, b cid.Cid) (cid.Cid, error) {
	ha, err := Load(ctx, bs, a)
	if err != nil {
		return cid.Undef, err
	}
	hb, err := Load(ctx, bs, b)
	if err != nil {
		return cid.Undef, err
	}
	merged, err := ha.Merge(ctx, hb)
	if err != nil {
		return cid.Undef, err
	}
	return merged.Store(ctx)
}
