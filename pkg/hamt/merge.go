package hamt

import (
	"context"
)

// Merge two tries: the result holds every key of both, with the union of their values.
//
// Merging is commutative, associative and idempotent: the result only depends on the
// union of the contents. Both tries must share the same block store.
func (h *Hamt) Merge(ctx context.Context, other *Hamt) (*Hamt, error) {
	if err := h.compatible(other); err != nil {
		return nil, err
	}
	root, err := h.mergeNodes(ctx, h.root, other.root, 0)
	if err != nil {
		return nil, err
	}
	return h.with(root), nil
}

// mergeNodes merges b into a
func (h *Hamt) mergeNodes(ctx context.Context, a, b *Node, depth int) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	merged := a
	for i := 0; i < 1<<h.bitWidth; i++ {
		if !b.has(i) {
			continue
		}
		pb := b.pointerAt(i)
		if !a.has(i) {
			merged = merged.withPointer(i, pb)
			continue
		}
		pa := a.pointerAt(i)
		if pa.sameAs(pb) {
			continue
		}

		p, err := h.mergePointers(ctx, pa, pb, depth)
		if err != nil {
			return nil, err
		}
		merged = merged.withPointer(i, p)
	}
	return merged, nil
}

func (h *Hamt) mergePointers(ctx context.Context, pa, pb *Pointer, depth int) (*Pointer, error) {
	switch {
	case pa.IsBucket() && pb.IsBucket():
		pairs := mergeBuckets(pa.bucket, pb.bucket)
		if len(pairs) <= h.bucketSize {
			return bucketPointer(pairs), nil
		}
		child, err := h.split(ctx, depth+1, pairs)
		if err != nil {
			return nil, err
		}
		return childPointer(child), nil

	case pa.IsBucket():
		return h.insertBucket(ctx, pb, pa.bucket, depth)

	case pb.IsBucket():
		return h.insertBucket(ctx, pa, pb.bucket, depth)

	default:
		ca, err := pa.loadChild(ctx, h)
		if err != nil {
			return nil, err
		}
		cb, err := pb.loadChild(ctx, h)
		if err != nil {
			return nil, err
		}
		child, err := h.mergeNodes(ctx, ca, cb, depth+1)
		if err != nil {
			return nil, err
		}
		if child == ca {
			return pa, nil
		}
		return childPointer(child), nil
	}
}

// insertBucket inserts pairs into the child of a link pointer
func (h *Hamt) insertBucket(ctx context.Context, link *Pointer, bucket []Pair, depth int) (*Pointer, error) {
	child, err := link.loadChild(ctx, h)
	if err != nil {
		return nil, err
	}
	updated := child
	for _, pair := range bucket {
		if updated, err = h.insert(ctx, updated, depth+1, pair); err != nil {
			return nil, err
		}
	}
	if updated == child {
		return link, nil
	}
	return childPointer(updated), nil
}

func mergeBuckets(a, b []Pair) []Pair {
	out := make([]Pair, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].Key.Compare(b[j].Key); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, Pair{Key: a[i].Key, Values: unionValues(a[i].Values, b[j].Values)})
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
