package accumulator

import (
	"bytes"
	"encoding/hex"
	"io"
	"math/big"

	"github.com/oneconcern/privfs/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	// SegmentSize is the size in bytes of a name segment
	SegmentSize = 32

	primalityRounds = 32

	randomSegmentDomain = "privfs/accumulator/random-segment"
)

// ErrInvalidSegment is returned when a segment is not a valid 256-bit prime
var ErrInvalidSegment = errors.New("invalid name segment")

// Segment is a 256-bit prime, big-endian
type Segment [SegmentSize]byte

// NewSegment draws a random segment
func NewSegment(rng io.Reader) (Segment, error) {
	var seed [32]byte
	if _, err := io.ReadFull(rng, seed[:]); err != nil {
		return Segment{}, err
	}
	return NewHashedSegment(randomSegmentDomain, seed[:]), nil
}

// NewHashedSegment deterministically maps some data to a segment, within a domain.
//
// Candidates are squeezed from SHAKE256(domain, data) until one is prime.
func NewHashedSegment(domain string, data []byte) Segment {
	xof := sha3.NewShake256()
	var prefix [8]byte
	prefix[7] = byte(len(domain))
	_, _ = xof.Write(prefix[:])
	_, _ = xof.Write([]byte(domain))
	_, _ = xof.Write(data)

	var candidate [SegmentSize]byte
	p := new(big.Int)
	for {
		_, _ = xof.Read(candidate[:])
		candidate[0] |= 0x80
		candidate[SegmentSize-1] |= 0x01
		p.SetBytes(candidate[:])
		if p.ProbablyPrime(primalityRounds) {
			return Segment(candidate)
		}
	}
}

// SegmentFromBytes validates and builds a segment
func SegmentFromBytes(data []byte) (Segment, error) {
	var s Segment
	if len(data) != SegmentSize {
		return s, ErrInvalidSegment.WrapMessage("expected %d bytes, got %d", SegmentSize, len(data))
	}
	copy(s[:], data)
	if !s.Valid() {
		return Segment{}, ErrInvalidSegment.WrapMessage("not a 256-bit prime")
	}
	return s, nil
}

// Valid tells if the segment is a 256-bit prime
func (s Segment) Valid() bool {
	if s[0]&0x80 == 0 || s[SegmentSize-1]&0x01 == 0 {
		return false
	}
	return s.Int().ProbablyPrime(primalityRounds)
}

// Int value of the segment
func (s Segment) Int() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// Compare segments by bytes
func (s Segment) Compare(other Segment) int {
	return bytes.Compare(s[:], other[:])
}

func (s Segment) String() string {
	return hex.EncodeToString(s[:8])
}
