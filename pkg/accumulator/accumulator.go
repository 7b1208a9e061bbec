package accumulator

import (
	"math/big"

	"github.com/minio/blake2b-simd"
	"github.com/oneconcern/privfs/pkg/errors"
)

var (
	// ErrNotMember is returned when proving membership of a segment absent from a name
	ErrNotMember = errors.New("segment is not a member of the name")

	// ErrMember is returned when proving non-membership of a segment present in a name
	ErrMember = errors.New("segment is a member of the name")
)

// Accumulator is an element of the group modulo N
type Accumulator struct {
	state *big.Int
	width int
}

// Empty accumulator: the generator
func Empty(setup *Setup) *Accumulator {
	return &Accumulator{state: new(big.Int).Set(setup.Generator), width: setup.Width()}
}

// FromBytes rebuilds an accumulator from its fixed-width form
func FromBytes(setup *Setup, data []byte) (*Accumulator, error) {
	if len(data) != setup.Width() {
		return nil, ErrInvalidSetup.WrapMessage("accumulator of %d bytes, expected %d", len(data), setup.Width())
	}
	v := new(big.Int).SetBytes(data)
	if v.Sign() == 0 || v.Cmp(setup.Modulus) >= 0 {
		return nil, ErrInvalidSetup.WrapMessage("accumulator out of range")
	}
	return &Accumulator{state: v, width: setup.Width()}, nil
}

// Add segments to the accumulator
func (a *Accumulator) Add(setup *Setup, segments ...Segment) *Accumulator {
	if len(segments) == 0 {
		return &Accumulator{state: new(big.Int).Set(a.state), width: a.width}
	}
	exponent := big.NewInt(1)
	for _, s := range segments {
		exponent.Mul(exponent, s.Int())
	}
	return &Accumulator{state: new(big.Int).Exp(a.state, exponent, setup.Modulus), width: a.width}
}

// Bytes of the accumulator, big-endian on the width of the modulus
func (a *Accumulator) Bytes() []byte {
	return a.state.FillBytes(make([]byte, a.width))
}

// Digest is the blake2b-256 hash of the accumulator bytes
func (a *Accumulator) Digest() [32]byte {
	return blake2b.Sum256(a.Bytes())
}

// Equal accumulators
func (a *Accumulator) Equal(other *Accumulator) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.state.Cmp(other.state) == 0
}
