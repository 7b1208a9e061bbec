package ratchet

import (
	"bytes"
	"crypto/subtle"
	"io"

	"github.com/minio/blake2b-simd"
	"github.com/oneconcern/privfs/pkg/errors"
)

const (
	// SmallEpoch is the number of small steps per medium step
	SmallEpoch = 256
	// MediumEpoch is the number of medium steps per large step
	MediumEpoch = 256

	// LargeEpoch is the number of steps per large step
	LargeEpoch = SmallEpoch * MediumEpoch

	// DefaultSearchBudget is the default number of large steps explored by Compare
	DefaultSearchBudget = 1000

	// Size of a ratchet in binary form
	Size = 4*32 + 2

	keyDomain  = "privfs/ratchet/key"
	saltDomain = "privfs/ratchet/salt"
)

var (
	// ErrInvalidRatchet is returned when decoding a malformed ratchet
	ErrInvalidRatchet = errors.New("invalid ratchet")
)

// Key is a symmetric key derived from a ratchet generation
type Key [32]byte

// Ratchet is the state of a skip ratchet at some generation.
//
// Ratchets are values: Advance and AdvanceBy return new ratchets and leave the receiver untouched.
type Ratchet struct {
	salt          [32]byte
	large         [32]byte
	medium        [32]byte
	mediumCounter uint8
	small         [32]byte
	smallCounter  uint8
}

func hash(in [32]byte) [32]byte {
	return blake2b.Sum256(in[:])
}

func hashN(in [32]byte, n int) [32]byte {
	for i := 0; i < n; i++ {
		in = hash(in)
	}
	return in
}

func complement(in [32]byte) [32]byte {
	for i := range in {
		in[i] = ^in[i]
	}
	return in
}

func mediumSeed(large [32]byte) [32]byte {
	return hash(complement(large))
}

func smallSeed(medium [32]byte) [32]byte {
	return hash(complement(medium))
}

func saltOf(seed [32]byte) [32]byte {
	h := blake2b.New256()
	_, _ = h.Write([]byte(saltDomain))
	_, _ = h.Write(seed[:])
	var salt [32]byte
	copy(salt[:], h.Sum(nil))
	return salt
}

// Zero builds a ratchet deterministically from a seed.
//
// The medium and small chains start incMedium and incSmall steps ahead,
// so that the generation of a ratchet does not reveal how old it is.
func Zero(seed [32]byte, incMedium, incSmall uint8) *Ratchet {
	large := hash(seed)
	medium := hashN(mediumSeed(large), int(incMedium))
	small := hashN(smallSeed(medium), int(incSmall))

	return &Ratchet{
		salt:          saltOf(seed),
		large:         large,
		medium:        medium,
		mediumCounter: incMedium,
		small:         small,
		smallCounter:  incSmall,
	}
}

// New builds a ratchet with a random seed and random initial increments
func New(rng io.Reader) (*Ratchet, error) {
	var buf [34]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return nil, err
	}
	var seed [32]byte
	copy(seed[:], buf[:32])

	return Zero(seed, buf[32], buf[33]), nil
}

// Clone the ratchet
func (r *Ratchet) Clone() *Ratchet {
	c := *r
	return &c
}

// Equal tells if two ratchets are at the same generation of the same chain
func (r *Ratchet) Equal(other *Ratchet) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.salt == other.salt &&
		r.large == other.large &&
		r.medium == other.medium &&
		r.small == other.small &&
		r.mediumCounter == other.mediumCounter &&
		r.smallCounter == other.smallCounter
}

// Related tells if two ratchets stem from the same seed
func (r *Ratchet) Related(other *Ratchet) bool {
	return subtle.ConstantTimeCompare(r.salt[:], other.salt[:]) == 1
}

// Advance the ratchet by one step
func (r *Ratchet) Advance() *Ratchet {
	c := r.Clone()
	c.inc()
	return c
}

// AdvanceBy n steps. This is equivalent to n calls to Advance, with at most
// n/LargeEpoch + SmallEpoch + MediumEpoch hashes.
func (r *Ratchet) AdvanceBy(n uint64) *Ratchet {
	c := r.Clone()
	c.incBy(n)
	return c
}

// DeriveKey computes the symmetric key of the current generation
func (r *Ratchet) DeriveKey() Key {
	h := blake2b.New256()
	_, _ = h.Write([]byte(keyDomain))
	_, _ = h.Write(r.large[:])
	_, _ = h.Write(r.medium[:])
	_, _ = h.Write(r.small[:])
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func (r *Ratchet) inc() {
	switch {
	case r.smallCounter < SmallEpoch-1:
		r.small = hash(r.small)
		r.smallCounter++
	case r.mediumCounter < MediumEpoch-1:
		r.nextMedium()
	default:
		r.nextLarge()
	}
}

func (r *Ratchet) incBy(n uint64) {
	for n > 0 {
		toMedium := r.stepsToNextMedium()
		if n < toMedium {
			r.small = hashN(r.small, int(n))
			r.smallCounter += uint8(n)
			return
		}

		toLarge := r.stepsToNextLarge()
		if n >= toLarge {
			r.nextLarge()
			n -= toLarge
			continue
		}

		r.nextMedium()
		n -= toMedium
	}
}

func (r *Ratchet) stepsToNextMedium() uint64 {
	return uint64(SmallEpoch - int(r.smallCounter))
}

func (r *Ratchet) stepsToNextLarge() uint64 {
	return uint64(MediumEpoch-1-int(r.mediumCounter))*SmallEpoch + r.stepsToNextMedium()
}

func (r *Ratchet) nextMedium() {
	r.medium = hash(r.medium)
	r.mediumCounter++
	r.small = smallSeed(r.medium)
	r.smallCounter = 0
}

func (r *Ratchet) nextLarge() {
	r.large = hash(r.large)
	r.medium = mediumSeed(r.large)
	r.mediumCounter = 0
	r.small = smallSeed(r.medium)
	r.smallCounter = 0
}

// MarshalBinary encodes the ratchet as a fixed-size array
func (r *Ratchet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, Size)
	buf = append(buf, r.salt[:]...)
	buf = append(buf, r.large[:]...)
	buf = append(buf, r.medium[:]...)
	buf = append(buf, r.mediumCounter)
	buf = append(buf, r.small[:]...)
	buf = append(buf, r.smallCounter)
	return buf, nil
}

// UnmarshalBinary decodes a ratchet encoded with MarshalBinary
func (r *Ratchet) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrInvalidRatchet.WrapMessage("expected %d bytes, got %d", Size, len(data))
	}
	rdr := bytes.NewReader(data)
	var (
		fields = [][]byte{r.salt[:], r.large[:], r.medium[:]}
		err    error
	)
	for _, f := range fields {
		if _, err = io.ReadFull(rdr, f); err != nil {
			return ErrInvalidRatchet.Wrap(err)
		}
	}
	if r.mediumCounter, err = rdr.ReadByte(); err != nil {
		return ErrInvalidRatchet.Wrap(err)
	}
	if _, err = io.ReadFull(rdr, r.small[:]); err != nil {
		return ErrInvalidRatchet.Wrap(err)
	}
	if r.smallCounter, err = rdr.ReadByte(); err != nil {
		return ErrInvalidRatchet.Wrap(err)
	}
	return nil
}
