package hamt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/internal/rand"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

// testingT is satisfied by both *testing.T and *rapid.T
type testingT interface {
	require.TestingT
	Helper()
}

func testStore() *blockstore.Store {
	return blockstore.Memory(blockstore.Logger(dlogger.MustGetLogger("none")))
}

func newTrie(t testingT, bs blockstore.BlockStore, opts ...Option) *Hamt {
	t.Helper()
	opts = append([]Option{Logger(dlogger.MustGetLogger("none"))}, opts...)
	h, err := New(bs, opts...)
	require.NoError(t, err)
	return h
}

func value(t testingT, s string) cid.Cid {
	t.Helper()
	c, err := blockstore.Sum([]byte(s), blockstore.Raw)
	require.NoError(t, err)
	return c
}

func digest(b ...byte) Digest {
	var d Digest
	copy(d[:], b)
	return d
}

func randomDigests(n int) []Digest {
	keys := make([]Digest, n)
	for i := range keys {
		keys[i] = Digest(rand.Bytes32())
	}
	return keys
}

func build(t testingT, h *Hamt, pairs []Pair) *Hamt {
	t.Helper()
	ctx := context.Background()
	for _, pair := range pairs {
		var err error
		h, err = h.SetPair(ctx, pair)
		require.NoError(t, err)
	}
	return h
}

func store(t testingT, h *Hamt) cid.Cid {
	t.Helper()
	c, err := h.Store(context.Background())
	require.NoError(t, err)
	return c
}

func TestSetGetRemove(t *testing.T) {
	ctx := context.Background()
	h := newTrie(t, testStore())
	key := digest(1, 2, 3)
	v1, v2 := value(t, "v1"), value(t, "v2")

	_, err := h.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	h1, err := h.Set(ctx, key, v1)
	require.NoError(t, err)
	h2, err := h1.Set(ctx, key, v2)
	require.NoError(t, err)

	values, err := h2.Get(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []cid.Cid{v1, v2}, values)

	ok, err := h2.Contains(ctx, key, v2)
	require.NoError(t, err)
	assert.True(t, ok)

	// previous versions are untouched
	values, err = h1.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []cid.Cid{v1}, values)
	ok, err = h.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	h3, err := h2.Remove(ctx, key, v1)
	require.NoError(t, err)
	values, err = h3.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []cid.Cid{v2}, values)

	h4, err := h3.Remove(ctx, key, v2)
	require.NoError(t, err)
	ok, err = h4.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, store(t, h), store(t, h4))

	h5, err := h2.RemoveKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, store(t, h), store(t, h5))

	_, err = h.Set(ctx, key, cid.Undef)
	assert.True(t, errors.Is(err, ErrInvalidOption))
}

func TestIdempotentWrites(t *testing.T) {
	ctx := context.Background()
	h := newTrie(t, testStore())
	key := digest(9)
	v := value(t, "v")

	h1, err := h.Set(ctx, key, v)
	require.NoError(t, err)
	h2, err := h1.Set(ctx, key, v)
	require.NoError(t, err)
	assert.Equal(t, store(t, h1), store(t, h2))

	// removing an absent value or an absent key changes nothing
	h3, err := h2.Remove(ctx, key, value(t, "other"))
	require.NoError(t, err)
	h4, err := h3.Remove(ctx, digest(8), v)
	require.NoError(t, err)
	assert.Equal(t, store(t, h1), store(t, h4))
}

func TestInsertionOrderIndependence(t *testing.T) {
	bs := testStore()
	v := value(t, "value")
	keys := randomDigests(10000)

	pairs := make([]Pair, len(keys))
	for i, k := range keys {
		pairs[i] = Pair{Key: k, Values: []cid.Cid{v}}
	}
	random := store(t, build(t, newTrie(t, bs), pairs))

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key.Compare(pairs[j].Key) < 0 })
	sorted := store(t, build(t, newTrie(t, bs), pairs))

	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	reversed := store(t, build(t, newTrie(t, bs), pairs))

	assert.Equal(t, random, sorted)
	assert.Equal(t, random, reversed)
}

func TestLen(t *testing.T) {
	ctx := context.Background()
	h := newTrie(t, testStore(), BitWidth(2), BucketSize(2))
	pairs := make([]Pair, 0, 300)
	for _, k := range randomDigests(300) {
		pairs = append(pairs, Pair{Key: k, Values: []cid.Cid{value(t, k.String())}})
	}
	h = build(t, h, pairs)

	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, n)

	entries, err := h.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 300)
	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Key.Compare(entries[j].Key) < 0 }))
}

// keys drawn from a small alphabet share long prefixes, which makes deep tries
func drawPairs(t *rapid.T, label string) []Pair {
	keyGen := rapid.SliceOfN(rapid.SampledFrom([]byte{0x00, 0x0f, 0xf0}), DigestSize, DigestSize)
	raw := rapid.SliceOfNDistinct(keyGen, 0, 40, func(b []byte) string { return string(b) }).Draw(t, label)
	pairs := make([]Pair, len(raw))
	for i, b := range raw {
		n := rapid.IntRange(1, 3).Draw(t, fmt.Sprintf("%s-values-%d", label, i))
		values := make([]cid.Cid, n)
		for j := range values {
			values[j] = value(t, rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(t, fmt.Sprintf("%s-value-%d-%d", label, i, j)))
		}
		pairs[i] = Pair{Key: digest(b...), Values: values}
	}
	return pairs
}

func TestCanonicalForm(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		bs := testStore()
		opts := []Option{
			BitWidth(rapid.SampledFrom([]int{1, 2, 4, 8}).Draw(t, "bitWidth")),
			BucketSize(rapid.IntRange(1, 4).Draw(t, "bucketSize")),
		}
		pairs := drawPairs(t, "pairs")
		extra := drawPairs(t, "extra")

		expected := store(t, build(t, newTrie(t, bs, opts...), pairs))

		shuffled := rapid.Permutation(pairs).Draw(t, "order")
		assert.Equal(t, expected, store(t, build(t, newTrie(t, bs, opts...), shuffled)))

		// adding then removing keys that were absent goes back to the same trie
		present := make(map[Digest]bool, len(pairs))
		for _, p := range pairs {
			present[p.Key] = true
		}
		h := build(t, newTrie(t, bs, opts...), append(append([]Pair(nil), shuffled...), extra...))
		for _, p := range extra {
			if present[p.Key] {
				continue
			}
			var err error
			h, err = h.RemoveKey(ctx, p.Key)
			require.NoError(t, err)
		}
		withExtra := build(t, newTrie(t, bs, opts...), pairs)
		for _, p := range extra {
			if present[p.Key] {
				withExtra = build(t, withExtra, []Pair{p})
			}
		}
		assert.Equal(t, store(t, withExtra), store(t, h))
	})
}

func TestRemoveCollapses(t *testing.T) {
	ctx := context.Background()
	bs := testStore()
	v := value(t, "v")

	// four keys sharing their first 8 bits force a chain of splits with a bucket size of 3
	keys := []Digest{digest(0xab, 0x00), digest(0xab, 0x10), digest(0xab, 0x20), digest(0xab, 0x30)}
	full := newTrie(t, bs)
	for _, k := range keys {
		var err error
		full, err = full.Set(ctx, k, v)
		require.NoError(t, err)
	}
	p := full.root.pointerAt(index(keys[0], 0, DefaultBitWidth))
	require.False(t, p.IsBucket())

	removed, err := full.RemoveKey(ctx, keys[3])
	require.NoError(t, err)
	p = removed.root.pointerAt(index(keys[0], 0, DefaultBitWidth))
	assert.True(t, p.IsBucket())
	assert.Len(t, p.bucket, 3)

	without := newTrie(t, bs)
	for _, k := range keys[:3] {
		without, err = without.Set(ctx, k, v)
		require.NoError(t, err)
	}
	assert.Equal(t, store(t, without), store(t, removed))
}

func TestLastDigestBitIndexed(t *testing.T) {
	ctx := context.Background()
	for _, width := range []int{1, 3, 5, 6, 7, 8} {
		h := newTrie(t, testStore(), BitWidth(width), BucketSize(1))
		v := value(t, "v")

		var a, b, c Digest
		b[DigestSize-1] = 0x01
		c[DigestSize-1] = 0x02

		var err error
		for _, key := range []Digest{a, b, c} {
			h, err = h.Set(ctx, key, v)
			require.NoErrorf(t, err, "bit width %d", width)
		}
		for _, key := range []Digest{a, b, c} {
			values, err := h.Get(ctx, key)
			require.NoErrorf(t, err, "bit width %d", width)
			assert.Equal(t, []cid.Cid{v}, values)
		}
		n, err := h.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		last := maxDepth(width) - 1
		assert.NotEqualf(t, index(a, last, width), index(b, last, width), "bit width %d", width)
	}
}

func TestHashDepthExhausted(t *testing.T) {
	ctx := context.Background()
	h := newTrie(t, testStore(), BitWidth(3), BucketSize(1))
	v := value(t, "v")

	var key Digest
	key[0] = 0xff
	_, err := h.split(ctx, maxDepth(3), []Pair{{Key: key, Values: []cid.Cid{v}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHashDepthExhausted))
	var depthErr *DepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 86, depthErr.Depth)
	assert.Equal(t, key, depthErr.Key)
}

func TestMergeLaws(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		bs := testStore()
		opts := []Option{BitWidth(2), BucketSize(rapid.IntRange(1, 3).Draw(t, "bucketSize"))}
		pa, pb, pc := drawPairs(t, "a"), drawPairs(t, "b"), drawPairs(t, "c")
		a := build(t, newTrie(t, bs, opts...), pa)
		b := build(t, newTrie(t, bs, opts...), pb)
		c := build(t, newTrie(t, bs, opts...), pc)

		merge := func(x, y *Hamt) *Hamt {
			m, err := x.Merge(ctx, y)
			require.NoError(t, err)
			return m
		}

		ab, ba := merge(a, b), merge(b, a)
		assert.Equal(t, store(t, ab), store(t, ba), "commutative")
		assert.Equal(t, store(t, merge(ab, c)), store(t, merge(a, merge(b, c))), "associative")
		assert.Equal(t, store(t, a), store(t, merge(a, a)), "idempotent")

		union := build(t, newTrie(t, bs, opts...), append(append([]Pair(nil), pa...), pb...))
		assert.Equal(t, store(t, union), store(t, ab))
	})
}

func TestMergeIncompatible(t *testing.T) {
	bs := testStore()
	_, err := newTrie(t, bs).Merge(context.Background(), newTrie(t, bs, BitWidth(5)))
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestDiff(t *testing.T) {
	ctx := context.Background()
	bs := testStore()
	keys := randomDigests(200)
	v1, v2 := value(t, "v1"), value(t, "v2")

	a := newTrie(t, bs)
	for _, k := range keys {
		var err error
		a, err = a.Set(ctx, k, v1)
		require.NoError(t, err)
	}
	store(t, a)

	added := Digest(rand.Bytes32())
	b, err := a.RemoveKey(ctx, keys[3])
	require.NoError(t, err)
	b, err = b.Set(ctx, keys[5], v2)
	require.NoError(t, err)
	b, err = b.Set(ctx, added, v2)
	require.NoError(t, err)

	changes, err := Diff(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	byKey := make(map[Digest]KeyChange, len(changes))
	for _, c := range changes {
		byKey[c.Key] = c
	}
	assert.Equal(t, Removed, byKey[keys[3]].Type)
	assert.Equal(t, []cid.Cid{v1}, byKey[keys[3]].Old)
	assert.Equal(t, Modified, byKey[keys[5]].Type)
	assert.Len(t, byKey[keys[5]].New, 2)
	assert.Equal(t, Added, byKey[added].Type)
	assert.Equal(t, "added", Added.String())
	assert.True(t, sort.SliceIsSorted(changes, func(i, j int) bool { return changes[i].Key.Compare(changes[j].Key) < 0 }))

	none, err := Diff(ctx, a, a)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreLoad(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
	ctx := context.Background()
	bs := testStore()
	h := newTrie(t, bs, BitWidth(5), BucketSize(2))
	keys := randomDigests(500)
	for i, k := range keys {
		var err error
		h, err = h.Set(ctx, k, value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}
	root := store(t, h)

	loaded, err := Load(ctx, bs, root, Logger(dlogger.MustGetLogger("none")))
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.BitWidth())
	assert.Equal(t, 2, loaded.BucketSize())

	values := make([]cid.Cid, len(keys))
	for i := range keys {
		values[i] = value(t, fmt.Sprint(i))
	}

	// lazy loading is safe from concurrent readers
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, k := range keys {
				got, err := loaded.Get(ctx, k)
				if assert.NoError(t, err) {
					assert.Equal(t, []cid.Cid{values[i]}, got)
				}
			}
		}()
	}
	wg.Wait()

	expected, err := h.Entries(ctx)
	require.NoError(t, err)
	actual, err := loaded.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Equal(t, root, store(t, loaded))

	_, err = Load(ctx, bs, value(t, "missing"))
	assert.True(t, errors.Is(err, blockstore.ErrBlockNotFound))
}

func TestInvalidOptions(t *testing.T) {
	bs := testStore()
	for _, opt := range []Option{BitWidth(0), BitWidth(9), BucketSize(0)} {
		_, err := New(bs, opt)
		assert.True(t, errors.Is(err, ErrInvalidOption))
	}
}

func TestDecodeErrors(t *testing.T) {
	ctx := context.Background()
	bs := testStore()

	put := func(v interface{}) cid.Cid {
		data, err := msgpack.Marshal(v)
		require.NoError(t, err)
		c, err := bs.PutBlock(ctx, data, blockstore.MsgPack)
		require.NoError(t, err)
		return c
	}
	emptyNode := []interface{}{[]byte{0, 0}, []interface{}{}}
	unsorted := []interface{}{
		[]interface{}{digest(2).slice(), []interface{}{value(t, "v").Bytes()}},
		[]interface{}{digest(1).slice(), []interface{}{value(t, "v").Bytes()}},
	}

	for name, root := range map[string]cid.Cid{
		"not a root":       put("garbage"),
		"wrong name":       put([]interface{}{"tree", 1, 4, 3, emptyNode}),
		"wrong version":    put([]interface{}{"hamt", 2, 4, 3, emptyNode}),
		"bit width":        put([]interface{}{"hamt", 1, 9, 3, emptyNode}),
		"bitmask size":     put([]interface{}{"hamt", 1, 4, 3, []interface{}{[]byte{0}, []interface{}{}}}),
		"pointer count":    put([]interface{}{"hamt", 1, 4, 3, []interface{}{[]byte{1, 0}, []interface{}{}}}),
		"unsorted buckets": put([]interface{}{"hamt", 1, 4, 3, []interface{}{[]byte{1, 0}, []interface{}{unsorted}}}),
		"oversized bucket": put([]interface{}{"hamt", 1, 4, 1, []interface{}{[]byte{1, 0}, []interface{}{unsorted}}}),
	} {
		_, err := Load(ctx, bs, root)
		assert.Truef(t, errors.Is(err, ErrInvalidNode), "%s: %v", name, err)
	}

	ok := put([]interface{}{"hamt", 1, 4, 3, emptyNode})
	h, err := Load(ctx, bs, ok)
	require.NoError(t, err)
	n, err := h.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (d Digest) slice() []byte {
	return d[:]
}

func TestRootFunctions(t *testing.T) {
	ctx := context.Background()
	bs := testStore()
	empty := store(t, newTrie(t, bs))
	k1, k2 := digest(1), digest(2)
	v1, v2 := value(t, "v1"), value(t, "v2")

	r1, err := Insert(ctx, bs, empty, k1, v1)
	require.NoError(t, err)
	r2, err := Insert(ctx, bs, empty, k2, v2)
	require.NoError(t, err)

	merged, err := Merge(ctx, bs, r1, r2)
	require.NoError(t, err)
	values, err := Get(ctx, bs, merged, k2)
	require.NoError(t, err)
	assert.Equal(t, []cid.Cid{v2}, values)

	back, err := Remove(ctx, bs, merged, k2, v2)
	require.NoError(t, err)
	assert.Equal(t, r1, back)
}
