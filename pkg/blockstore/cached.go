package blockstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/metrics"
)

// DefaultCacheEntries is the default number of blocks kept by a cache
const DefaultCacheEntries = 1024

// Cached is a BlockStore with an in-memory LRU read cache in front of another BlockStore.
//
// Blocks are immutable, so the cache never needs invalidation.
type Cached struct {
	metrics.Enable
	BlockStore
	cache        *lru.Cache
	maxBlockSize int
	m            *M
}

// NewCached wraps a block store with a cache of at most entries blocks.
// Blocks larger than maxBlockSize bytes are not cached, unless maxBlockSize is 0.
func NewCached(bs BlockStore, entries, maxBlockSize int) (*Cached, error) {
	if entries < 1 {
		entries = DefaultCacheEntries
	}
	cache, err := lru.New(entries)
	if err != nil {
		return nil, err
	}
	c := &Cached{
		BlockStore:   bs,
		cache:        cache,
		maxBlockSize: maxBlockSize,
	}
	if en, ok := bs.(interface{ MetricsEnabled() bool }); ok && en.MetricsEnabled() {
		c.EnableMetrics(true)
		c.m = c.EnsureMetrics("blockstore", &M{}).(*M)
	}
	return c, nil
}

func (c *Cached) cacheable(data []byte) bool {
	return c.maxBlockSize == 0 || len(data) <= c.maxBlockSize
}

// PutBlock stores a block and keeps it in cache
func (c *Cached) PutBlock(ctx context.Context, data []byte, codec Codec) (cid.Cid, error) {
	k, err := c.BlockStore.PutBlock(ctx, data, codec)
	if err != nil {
		return k, err
	}
	if c.cacheable(data) {
		c.cache.Add(k, append([]byte(nil), data...))
	}
	return k, nil
}

// GetBlock serves a block from cache, or from the underlying store
func (c *Cached) GetBlock(ctx context.Context, k cid.Cid) ([]byte, error) {
	if v, ok := c.cache.Get(k); ok {
		if c.MetricsEnabled() {
			c.m.Volume.Cache.Hit(true, "get")
		}
		return append([]byte(nil), v.([]byte)...), nil
	}
	if c.MetricsEnabled() {
		c.m.Volume.Cache.Hit(false, "get")
	}

	data, err := c.BlockStore.GetBlock(ctx, k)
	if err != nil {
		return nil, err
	}
	if c.cacheable(data) {
		c.cache.Add(k, append([]byte(nil), data...))
	}
	return data, nil
}

// HasBlock checks the cache first
func (c *Cached) HasBlock(ctx context.Context, k cid.Cid) (bool, error) {
	if c.cache.Contains(k) {
		return true, nil
	}
	return c.BlockStore.HasBlock(ctx, k)
}

// Len is the number of cached blocks
func (c *Cached) Len() int {
	return c.cache.Len()
}
