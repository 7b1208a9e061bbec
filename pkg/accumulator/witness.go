package accumulator

import (
	"math/big"
)

// Witness proves that a segment belongs to an accumulated name
type Witness struct {
	Value *big.Int
}

// ProveMembership builds a witness that segment belongs to name
func ProveMembership(setup *Setup, name Name, segment Segment) (*Witness, error) {
	if !name.Has(segment) {
		return nil, ErrNotMember.WrapMessage("%v", segment)
	}
	rest := name.Without(segment).Accumulate(setup)
	return &Witness{Value: rest.state}, nil
}

// Verify a membership witness. It returns false on any malformed input.
func Verify(setup *Setup, acc *Accumulator, segment Segment, witness *Witness) bool {
	if !wellFormed(setup, acc) || witness == nil || !inGroup(setup, witness.Value) {
		return false
	}
	if segment[0]&0x80 == 0 || segment[SegmentSize-1]&0x01 == 0 {
		return false
	}
	check := new(big.Int).Exp(witness.Value, segment.Int(), setup.Modulus)
	return check.Cmp(acc.state) == 0
}

// NonMembershipWitness proves that a segment does not belong to an accumulated name.
//
// With u the product of the name, A·u + b·x = 1 and B = g^b: acc^A · B^x = g.
type NonMembershipWitness struct {
	A *big.Int
	B *big.Int
}

// ProveNonMembership builds a witness that segment is absent from name
func ProveNonMembership(setup *Setup, name Name, segment Segment) (*NonMembershipWitness, error) {
	if name.Has(segment) {
		return nil, ErrMember.WrapMessage("%v", segment)
	}
	u := name.Product()
	x := segment.Int()

	a := new(big.Int).ModInverse(u, x)
	if a == nil {
		// u and x share a factor: x divides u, which means the segment is a member
		return nil, ErrMember.WrapMessage("%v", segment)
	}

	// b = (1 - a·u) / x, exact and non-positive
	b := new(big.Int).Mul(a, u)
	b.Sub(one, b)
	b.Quo(b, x)

	bigB := new(big.Int).Exp(setup.Generator, b, setup.Modulus)
	if bigB == nil {
		return nil, ErrInvalidSetup.WrapMessage("generator is not invertible")
	}
	return &NonMembershipWitness{A: a, B: bigB}, nil
}

// VerifyNonMembership checks a non-membership witness. It returns false on any malformed input.
func VerifyNonMembership(setup *Setup, acc *Accumulator, segment Segment, witness *NonMembershipWitness) bool {
	if !wellFormed(setup, acc) || witness == nil || witness.A == nil || !inGroup(setup, witness.B) {
		return false
	}
	if segment[0]&0x80 == 0 || segment[SegmentSize-1]&0x01 == 0 {
		return false
	}
	x := segment.Int()
	if witness.A.Sign() < 0 || witness.A.Cmp(x) >= 0 {
		return false
	}

	lhs := new(big.Int).Exp(acc.state, witness.A, setup.Modulus)
	lhs.Mul(lhs, new(big.Int).Exp(witness.B, x, setup.Modulus))
	lhs.Mod(lhs, setup.Modulus)
	return lhs.Cmp(setup.Generator) == 0
}

func wellFormed(setup *Setup, acc *Accumulator) bool {
	if setup == nil || setup.Modulus == nil || setup.Generator == nil || setup.Modulus.Sign() <= 0 {
		return false
	}
	return acc != nil && inGroup(setup, acc.state)
}

func inGroup(setup *Setup, v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.Cmp(setup.Modulus) < 0
}
