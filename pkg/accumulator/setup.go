package accumulator

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MinModulusBits is the smallest modulus size accepted for a setup
	MinModulusBits = 2048
	// DefaultModulusBits is the modulus size used by default
	DefaultModulusBits = 2048
)

var (
	// ErrInsufficientSecurity is returned when the modulus is too small
	ErrInsufficientSecurity = errors.New("insufficient security parameter")

	// ErrInvalidSetup is returned when setup parameters are malformed
	ErrInvalidSetup = errors.New("invalid accumulator setup")

	one = big.NewInt(1)
)

// Setup holds the public parameters of the accumulator
type Setup struct {
	Modulus   *big.Int
	Generator *big.Int
}

// NewSetup performs a trusted setup: the factors of the modulus are discarded on return.
func NewSetup(rng io.Reader, bits int) (*Setup, error) {
	if bits < MinModulusBits {
		return nil, ErrInsufficientSecurity.WrapMessage("modulus of %d bits, expected at least %d", bits, MinModulusBits)
	}
	if rng == nil {
		rng = rand.Reader
	}

	var n *big.Int
	for {
		p, err := rand.Prime(rng, bits/2)
		if err != nil {
			return nil, ErrInvalidSetup.Wrap(err)
		}
		q, err := rand.Prime(rng, bits-bits/2)
		if err != nil {
			return nil, ErrInvalidSetup.Wrap(err)
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n = new(big.Int).Mul(p, q)
		if n.BitLen() == bits {
			break
		}
	}

	for {
		r, err := rand.Int(rng, n)
		if err != nil {
			return nil, ErrInvalidSetup.Wrap(err)
		}
		if r.Cmp(one) <= 0 {
			continue
		}
		g := new(big.Int).Exp(r, big.NewInt(2), n)
		if g.Cmp(one) <= 0 || new(big.Int).GCD(nil, nil, g, n).Cmp(one) != 0 {
			continue
		}
		return &Setup{Modulus: n, Generator: g}, nil
	}
}

// Validate the parameters of a setup
func (s *Setup) Validate() error {
	if s == nil || s.Modulus == nil || s.Generator == nil {
		return ErrInvalidSetup.WrapMessage("missing parameters")
	}
	if s.Modulus.BitLen() < MinModulusBits {
		return ErrInsufficientSecurity.WrapMessage("modulus of %d bits, expected at least %d", s.Modulus.BitLen(), MinModulusBits)
	}
	if s.Generator.Cmp(one) <= 0 || s.Generator.Cmp(s.Modulus) >= 0 {
		return ErrInvalidSetup.WrapMessage("generator out of range")
	}
	if new(big.Int).GCD(nil, nil, s.Generator, s.Modulus).Cmp(one) != 0 {
		return ErrInvalidSetup.WrapMessage("generator is not invertible")
	}
	return nil
}

// Width is the size in bytes of group elements
func (s *Setup) Width() int {
	return (s.Modulus.BitLen() + 7) / 8
}

// Equal tells if two setups define the same group and generator
func (s *Setup) Equal(other *Setup) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Modulus.Cmp(other.Modulus) == 0 && s.Generator.Cmp(other.Generator) == 0
}

// Bytes encodes the setup: the width on 2 bytes, then modulus and generator on width bytes each
func (s *Setup) Bytes() []byte {
	w := s.Width()
	buf := make([]byte, 2+2*w)
	binary.BigEndian.PutUint16(buf, uint16(w))
	s.Modulus.FillBytes(buf[2 : 2+w])
	s.Generator.FillBytes(buf[2+w:])
	return buf
}

// SetupFromBytes decodes and validates a setup encoded with Bytes
func SetupFromBytes(data []byte) (*Setup, error) {
	if len(data) < 2 {
		return nil, ErrInvalidSetup.WrapMessage("too short")
	}
	w := int(binary.BigEndian.Uint16(data))
	if len(data) != 2+2*w {
		return nil, ErrInvalidSetup.WrapMessage("expected %d bytes, got %d", 2+2*w, len(data))
	}
	s := &Setup{
		Modulus:   new(big.Int).SetBytes(data[2 : 2+w]),
		Generator: new(big.Int).SetBytes(data[2+w:]),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeMsgpack writes the setup as bytes
func (s *Setup) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(s.Bytes())
}

// DecodeMsgpack reads a setup written by EncodeMsgpack
func (s *Setup) DecodeMsgpack(dec *msgpack.Decoder) error {
	data, err := dec.DecodeBytes()
	if err != nil {
		return ErrInvalidSetup.Wrap(err)
	}
	decoded, err := SetupFromBytes(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}
