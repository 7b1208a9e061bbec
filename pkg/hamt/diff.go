package hamt

import (
	"context"

	"github.com/ipfs/go-cid"
)

// ChangeType qualifies a difference between two tries
type ChangeType uint8

const (
	// Added keys are only present in the second trie
	Added ChangeType = iota + 1
	// Removed keys are only present in the first trie
	Removed
	// Modified keys are present in both tries, with different values
	Modified
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// KeyChange is a difference on one key
type KeyChange struct {
	Type ChangeType
	Key  Digest
	Old  []cid.Cid
	New  []cid.Cid
}

// Diff lists the changes from trie a to trie b, in key order.
//
// Subtries stored under the same CID on both sides are skipped without being loaded.
func Diff(ctx context.Context, a, b *Hamt) ([]KeyChange, error) {
	if err := a.compatible(b); err != nil {
		return nil, err
	}
	return a.diffNodes(ctx, a.root, b, b.root)
}

func (h *Hamt) diffNodes(ctx context.Context, na *Node, hb *Hamt, nb *Node) ([]KeyChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var changes []KeyChange
	for i := 0; i < 1<<h.bitWidth; i++ {
		var pa, pb *Pointer
		if na.has(i) {
			pa = na.pointerAt(i)
		}
		if nb.has(i) {
			pb = nb.pointerAt(i)
		}
		if pa == nil && pb == nil {
			continue
		}
		if pa != nil && pb != nil && pa.sameAs(pb) {
			continue
		}

		if pa != nil && pb != nil && !pa.IsBucket() && !pb.IsBucket() {
			ca, err := pa.loadChild(ctx, h)
			if err != nil {
				return nil, err
			}
			cb, err := pb.loadChild(ctx, hb)
			if err != nil {
				return nil, err
			}
			sub, err := h.diffNodes(ctx, ca, hb, cb)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
			continue
		}

		left, err := h.pointerPairs(ctx, pa)
		if err != nil {
			return nil, err
		}
		right, err := hb.pointerPairs(ctx, pb)
		if err != nil {
			return nil, err
		}
		changes = append(changes, diffPairs(left, right)...)
	}
	return changes, nil
}

func (h *Hamt) pointerPairs(ctx context.Context, p *Pointer) ([]Pair, error) {
	if p == nil {
		return nil, nil
	}
	if p.IsBucket() {
		return p.bucket, nil
	}
	child, err := p.loadChild(ctx, h)
	if err != nil {
		return nil, err
	}
	var pairs []Pair
	err = h.walk(ctx, child, func(pair Pair) error {
		pairs = append(pairs, pair)
		return nil
	})
	return pairs, err
}

func diffPairs(a, b []Pair) []KeyChange {
	var changes []KeyChange
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i].Key.Compare(b[j].Key) < 0):
			changes = append(changes, KeyChange{Type: Removed, Key: a[i].Key, Old: a[i].Values})
			i++
		case i == len(a) || a[i].Key.Compare(b[j].Key) > 0:
			changes = append(changes, KeyChange{Type: Added, Key: b[j].Key, New: b[j].Values})
			j++
		default:
			if !equalValues(a[i].Values, b[j].Values) {
				changes = append(changes, KeyChange{Type: Modified, Key: a[i].Key, Old: a[i].Values, New: b[j].Values})
			}
			i++
			j++
		}
	}
	return changes
}
