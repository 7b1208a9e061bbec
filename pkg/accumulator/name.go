package accumulator

import (
	"math/big"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Name is a set of segments. The zero value is the empty name.
//
// Names are values: With and Union return new names.
type Name struct {
	segments []Segment
}

// NewName builds a name from segments, in any order
func NewName(segments ...Segment) Name {
	return Name{}.With(segments...)
}

// Empty tells if the name has no segment
func (n Name) Empty() bool {
	return len(n.segments) == 0
}

// Len is the number of segments
func (n Name) Len() int {
	return len(n.segments)
}

// Segments of the name, sorted
func (n Name) Segments() []Segment {
	return append([]Segment(nil), n.segments...)
}

// Has tells if a segment belongs to the name
func (n Name) Has(s Segment) bool {
	i := sort.Search(len(n.segments), func(i int) bool { return n.segments[i].Compare(s) >= 0 })
	return i < len(n.segments) && n.segments[i] == s
}

// With returns a name with some more segments
func (n Name) With(segments ...Segment) Name {
	all := make([]Segment, 0, len(n.segments)+len(segments))
	all = append(all, n.segments...)
	all = append(all, segments...)
	return Name{segments: normalize(all)}
}

// Union of two names
func (n Name) Union(other Name) Name {
	return n.With(other.segments...)
}

// Without returns the name deprived of one segment
func (n Name) Without(s Segment) Name {
	out := make([]Segment, 0, len(n.segments))
	for _, seg := range n.segments {
		if seg != s {
			out = append(out, seg)
		}
	}
	return Name{segments: out}
}

// Equal tells if two names hold the same segments
func (n Name) Equal(other Name) bool {
	if len(n.segments) != len(other.segments) {
		return false
	}
	for i := range n.segments {
		if n.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Product of all segments
func (n Name) Product() *big.Int {
	p := big.NewInt(1)
	for _, s := range n.segments {
		p.Mul(p, s.Int())
	}
	return p
}

// Accumulate the name
func (n Name) Accumulate(setup *Setup) *Accumulator {
	return Empty(setup).Add(setup, n.segments...)
}

func normalize(segments []Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Compare(segments[j]) < 0 })
	out := segments[:1]
	for _, s := range segments[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// EncodeMsgpack writes the segments as an array of binaries
func (n Name) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(len(n.segments)); err != nil {
		return err
	}
	for _, s := range n.segments {
		if err := enc.EncodeBytes(s[:]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack reads segments written by EncodeMsgpack
func (n *Name) DecodeMsgpack(dec *msgpack.Decoder) error {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	segments := make([]Segment, 0, max(l, 0))
	for i := 0; i < l; i++ {
		b, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		if len(b) != SegmentSize {
			return ErrInvalidSegment.WrapMessage("expected %d bytes, got %d", SegmentSize, len(b))
		}
		var s Segment
		copy(s[:], b)
		segments = append(segments, s)
	}
	n.segments = normalize(segments)
	return nil
}
