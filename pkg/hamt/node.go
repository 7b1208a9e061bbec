package hamt

import (
	"context"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"
)

// Pair is a key with its set of values, sorted
type Pair struct {
	Key    Digest
	Values []cid.Cid
}

// Node of the trie: a presence bitmap and one pointer per bit set, in bitmap order
type Node struct {
	bitmask  []byte
	pointers []*Pointer
}

// Pointer is either a bucket of pairs, or a link to a child node.
//
// Pointers are never modified once published, except for caching the loaded child
// and the CID of a stored child.
type Pointer struct {
	bucket []Pair

	mu    sync.Mutex
	link  cid.Cid
	child *Node
}

func newNode(bitWidth int) *Node {
	return &Node{bitmask: make([]byte, bitmaskSize(bitWidth))}
}

func bucketPointer(pairs []Pair) *Pointer {
	return &Pointer{bucket: pairs}
}

func childPointer(child *Node) *Pointer {
	return &Pointer{child: child}
}

func linkPointer(link cid.Cid) *Pointer {
	return &Pointer{link: link}
}

// IsBucket tells if the pointer holds pairs inline
func (p *Pointer) IsBucket() bool {
	return p.bucket != nil
}

// Link of a stored child, if any
func (p *Pointer) Link() cid.Cid {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.link
}

func (p *Pointer) setLink(c cid.Cid) {
	p.mu.Lock()
	p.link = c
	p.mu.Unlock()
}

// sameAs tells if two pointers are known to hold the same content without loading them
func (p *Pointer) sameAs(other *Pointer) bool {
	if p == other {
		return true
	}
	if p.IsBucket() || other.IsBucket() {
		return false
	}
	a, b := p.Link(), other.Link()
	return a.Defined() && b.Defined() && a.Equals(b)
}

func (p *Pointer) loadChild(ctx context.Context, h *Hamt) (*Node, error) {
	p.mu.Lock()
	child, link := p.child, p.link
	p.mu.Unlock()
	if child != nil {
		return child, nil
	}

	child, err := h.loadNode(ctx, link)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.child == nil {
		p.child = child
	}
	child = p.child
	p.mu.Unlock()
	return child, nil
}

func (n *Node) has(i int) bool {
	return bitmaskHas(n.bitmask, i)
}

func (n *Node) pointerAt(i int) *Pointer {
	return n.pointers[bitmaskRank(n.bitmask, i)]
}

func (n *Node) empty() bool {
	return len(n.pointers) == 0
}

func (n *Node) clone() *Node {
	return &Node{
		bitmask:  append([]byte(nil), n.bitmask...),
		pointers: append([]*Pointer(nil), n.pointers...),
	}
}

// withPointer returns a copy of the node, with the pointer at index i set or replaced
func (n *Node) withPointer(i int, p *Pointer) *Node {
	c := n.clone()
	pos := bitmaskRank(c.bitmask, i)
	if c.has(i) {
		c.pointers[pos] = p
		return c
	}
	bitmaskSet(c.bitmask, i, true)
	c.pointers = append(c.pointers, nil)
	copy(c.pointers[pos+1:], c.pointers[pos:])
	c.pointers[pos] = p
	return c
}

// withoutPointer returns a copy of the node, with the pointer at index i removed
func (n *Node) withoutPointer(i int) *Node {
	c := n.clone()
	if !c.has(i) {
		return c
	}
	pos := bitmaskRank(c.bitmask, i)
	bitmaskSet(c.bitmask, i, false)
	c.pointers = append(c.pointers[:pos], c.pointers[pos+1:]...)
	return c
}

// bucketOnly returns all pairs of a node holding buckets only, or false when it holds some link
func (n *Node) bucketOnly() ([]Pair, bool) {
	var pairs []Pair
	for _, p := range n.pointers {
		if !p.IsBucket() {
			return nil, false
		}
		pairs = append(pairs, p.bucket...)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key.Compare(pairs[j].Key) < 0 })
	return pairs, true
}

func searchBucket(bucket []Pair, key Digest) (int, bool) {
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].Key.Compare(key) >= 0 })
	return i, i < len(bucket) && bucket[i].Key == key
}
