package hamt

import (
	"bytes"
	"encoding/hex"
	"math/bits"
	"sort"

	"github.com/ipfs/go-cid"
)

// DigestSize is the size of keys, in bytes
const DigestSize = 32

// Digest is a key of the trie
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Compare digests by bytes
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// index extracts the bitWidth bits of the key used at some depth, most significant bits first.
// Past the end of the digest, bits read as zero.
func index(key Digest, depth, bitWidth int) int {
	start := depth * bitWidth
	v := 0
	for i := 0; i < bitWidth; i++ {
		v <<= 1
		bit := start + i
		if bit >= DigestSize*8 {
			continue
		}
		v |= int((key[bit/8] >> (7 - uint(bit%8))) & 1)
	}
	return v
}

// maxDepth is the number of levels needed to index every bit of a digest
func maxDepth(bitWidth int) int {
	return (DigestSize*8 + bitWidth - 1) / bitWidth
}

func bitmaskSize(bitWidth int) int {
	return ((1 << bitWidth) + 7) / 8
}

func bitmaskHas(mask []byte, i int) bool {
	return mask[i/8]&(1<<uint(i%8)) != 0
}

func bitmaskSet(mask []byte, i int, on bool) {
	if on {
		mask[i/8] |= 1 << uint(i%8)
		return
	}
	mask[i/8] &^= 1 << uint(i%8)
}

// bitmaskRank counts the bits set below i
func bitmaskRank(mask []byte, i int) int {
	n := 0
	for b := 0; b < i/8; b++ {
		n += bits.OnesCount8(mask[b])
	}
	return n + bits.OnesCount8(mask[i/8]&(1<<uint(i%8)-1))
}

func bitmaskCount(mask []byte) int {
	n := 0
	for _, b := range mask {
		n += bits.OnesCount8(b)
	}
	return n
}

func compareCID(a, b cid.Cid) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// unionValues merges sorted sets of CIDs
func unionValues(a, b []cid.Cid) []cid.Cid {
	out := make([]cid.Cid, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := compareCID(a[i], b[j]); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func containsValue(values []cid.Cid, v cid.Cid) bool {
	i := sort.Search(len(values), func(i int) bool { return compareCID(values[i], v) >= 0 })
	return i < len(values) && values[i].Equals(v)
}

func removeValue(values []cid.Cid, v cid.Cid) []cid.Cid {
	out := make([]cid.Cid, 0, len(values))
	for _, c := range values {
		if !c.Equals(v) {
			out = append(out, c)
		}
	}
	return out
}

// normalizeValues sorts and deduplicates a set of CIDs
func normalizeValues(values []cid.Cid) []cid.Cid {
	out := make([]cid.Cid, 0, len(values))
	for _, v := range values {
		if v.Defined() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return compareCID(out[i], out[j]) < 0 })
	dedup := out[:0]
	for i, v := range out {
		if i == 0 || !v.Equals(out[i-1]) {
			dedup = append(dedup, v)
		}
	}
	return dedup
}

func equalValues(a, b []cid.Cid) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
