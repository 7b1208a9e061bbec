package hamt

import (
	"context"

	"github.com/ipfs/go-cid"
)

// insert merges a pair into the subtrie rooted at n, which sits at some depth
func (h *Hamt) insert(ctx context.Context, n *Node, depth int, pair Pair) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := index(pair.Key, depth, h.bitWidth)
	if !n.has(i) {
		return n.withPointer(i, bucketPointer([]Pair{pair})), nil
	}

	p := n.pointerAt(i)
	if !p.IsBucket() {
		child, err := p.loadChild(ctx, h)
		if err != nil {
			return nil, err
		}
		updated, err := h.insert(ctx, child, depth+1, pair)
		if err != nil {
			return nil, err
		}
		if updated == child {
			return n, nil
		}
		return n.withPointer(i, childPointer(updated)), nil
	}

	pos, found := searchBucket(p.bucket, pair.Key)
	if found {
		existing := p.bucket[pos].Values
		merged := unionValues(existing, pair.Values)
		if len(merged) == len(existing) {
			return n, nil
		}
		bucket := append([]Pair(nil), p.bucket...)
		bucket[pos] = Pair{Key: pair.Key, Values: merged}
		return n.withPointer(i, bucketPointer(bucket)), nil
	}

	bucket := make([]Pair, 0, len(p.bucket)+1)
	bucket = append(bucket, p.bucket[:pos]...)
	bucket = append(bucket, pair)
	bucket = append(bucket, p.bucket[pos:]...)
	if len(bucket) <= h.bucketSize {
		return n.withPointer(i, bucketPointer(bucket)), nil
	}

	child, err := h.split(ctx, depth+1, bucket)
	if err != nil {
		return nil, err
	}
	return n.withPointer(i, childPointer(child)), nil
}

// split builds a node at depth holding pairs that no longer fit in one bucket
func (h *Hamt) split(ctx context.Context, depth int, pairs []Pair) (*Node, error) {
	if depth >= maxDepth(h.bitWidth) {
		return nil, &DepthError{Key: pairs[len(pairs)-1].Key, Depth: depth}
	}
	child := newNode(h.bitWidth)
	for _, pair := range pairs {
		var err error
		if child, err = h.insert(ctx, child, depth, pair); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// remove updates the values of a key in the subtrie rooted at n. It reports whether anything changed.
//
// Children left with at most bucketSize keys, all in buckets, collapse back into a bucket.
func (h *Hamt) remove(ctx context.Context, n *Node, depth int, key Digest, update func([]cid.Cid) []cid.Cid) (*Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	i := index(key, depth, h.bitWidth)
	if !n.has(i) {
		return n, false, nil
	}

	p := n.pointerAt(i)
	if p.IsBucket() {
		pos, found := searchBucket(p.bucket, key)
		if !found {
			return n, false, nil
		}
		values := update(p.bucket[pos].Values)
		if equalValues(values, p.bucket[pos].Values) {
			return n, false, nil
		}

		bucket := make([]Pair, 0, len(p.bucket))
		bucket = append(bucket, p.bucket[:pos]...)
		if len(values) > 0 {
			bucket = append(bucket, Pair{Key: key, Values: values})
		}
		bucket = append(bucket, p.bucket[pos+1:]...)
		if len(bucket) == 0 {
			return n.withoutPointer(i), true, nil
		}
		return n.withPointer(i, bucketPointer(bucket)), true, nil
	}

	child, err := p.loadChild(ctx, h)
	if err != nil {
		return nil, false, err
	}
	updated, changed, err := h.remove(ctx, child, depth+1, key, update)
	if err != nil || !changed {
		return n, false, err
	}

	if pairs, ok := updated.bucketOnly(); ok && len(pairs) <= h.bucketSize {
		if len(pairs) == 0 {
			return n.withoutPointer(i), true, nil
		}
		return n.withPointer(i, bucketPointer(pairs)), true, nil
	}
	return n.withPointer(i, childPointer(updated)), true, nil
}
