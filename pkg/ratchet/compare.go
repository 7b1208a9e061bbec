package ratchet

import (
	"fmt"

	"github.com/oneconcern/privfs/pkg/errors"
)

var (
	// ErrDiscrepancyExceeded is returned when two ratchets could not be ordered within the search budget
	ErrDiscrepancyExceeded = errors.New("ratchet discrepancy exceeded the search budget")

	// ErrUnrelated is returned when comparing ratchets that do not stem from the same seed.
	// It matches ErrDiscrepancyExceeded as well.
	ErrUnrelated = errors.New("ratchets are unrelated").Wrap(ErrDiscrepancyExceeded)
)

// DiscrepancyError reports a failed bounded search between two ratchets
type DiscrepancyError struct {
	Budget int
}

func (e *DiscrepancyError) Error() string {
	return fmt.Sprintf("%v: no match within %d large steps", ErrDiscrepancyExceeded, e.Budget)
}

// Unwrap to ErrDiscrepancyExceeded
func (e *DiscrepancyError) Unwrap() error {
	return ErrDiscrepancyExceeded
}

// Compare returns the number of steps from r to other: positive when other is later than r,
// negative when it is earlier, zero when they are equal.
//
// The search explores at most budget large steps in each direction. Unrelated ratchets are
// detected upfront and return ErrUnrelated.
func (r *Ratchet) Compare(other *Ratchet, budget int) (int, error) {
	if !r.Related(other) {
		return 0, ErrUnrelated
	}
	if r.Equal(other) {
		return 0, nil
	}
	if budget < 0 {
		budget = 0
	}

	if steps, ok := stepsTo(r, other, budget); ok {
		return steps, nil
	}
	if steps, ok := stepsTo(other, r, budget); ok {
		return -steps, nil
	}
	return 0, &DiscrepancyError{Budget: budget}
}

// Between returns every generation after older, up to and including newer.
//
// At most limit ratchets are returned: a larger gap is reported as a *DiscrepancyError.
func Between(older, newer *Ratchet, limit int) ([]*Ratchet, error) {
	steps, err := older.Compare(newer, limit/LargeEpoch+1)
	if err != nil {
		return nil, err
	}
	if steps < 0 || steps > limit {
		return nil, &DiscrepancyError{Budget: limit}
	}

	out := make([]*Ratchet, 0, steps)
	cur := older.Clone()
	for i := 0; i < steps; i++ {
		cur.inc()
		out = append(out, cur.Clone())
	}
	return out, nil
}

// stepsTo finds how many steps forward from a lead to b, exploring up to budget large steps
func stepsTo(a, b *Ratchet, budget int) (int, bool) {
	if a.large == b.large {
		return stepsWithinLarge(a, b)
	}

	// b must sit in a later large epoch, which starts with both counters at zero
	if mediumChain(b.large, b.mediumCounter) != b.medium || smallChain(b.medium, b.smallCounter) != b.small {
		return 0, false
	}

	cur := a.large
	for k := 1; k <= budget; k++ {
		cur = hash(cur)
		if cur == b.large {
			steps := int(a.stepsToNextLarge()) +
				(k-1)*LargeEpoch +
				int(b.mediumCounter)*SmallEpoch +
				int(b.smallCounter)
			return steps, true
		}
	}
	return 0, false
}

func stepsWithinLarge(a, b *Ratchet) (int, bool) {
	switch {
	case b.mediumCounter < a.mediumCounter:
		return 0, false

	case b.mediumCounter == a.mediumCounter:
		if a.medium != b.medium || b.smallCounter < a.smallCounter {
			return 0, false
		}
		n := int(b.smallCounter - a.smallCounter)
		if hashN(a.small, n) != b.small {
			return 0, false
		}
		return n, true

	default:
		if hashN(a.medium, int(b.mediumCounter-a.mediumCounter)) != b.medium {
			return 0, false
		}
		if smallChain(b.medium, b.smallCounter) != b.small {
			return 0, false
		}
		steps := int(a.stepsToNextMedium()) +
			int(b.mediumCounter-a.mediumCounter-1)*SmallEpoch +
			int(b.smallCounter)
		return steps, true
	}
}

func mediumChain(large [32]byte, counter uint8) [32]byte {
	return hashN(mediumSeed(large), int(counter))
}

func smallChain(medium [32]byte, counter uint8) [32]byte {
	return hashN(smallSeed(medium), int(counter))
}
