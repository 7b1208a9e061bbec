package ratchet

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/oneconcern/privfs/pkg/encoding"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genRatchet(t *rapid.T) *Ratchet {
	var seed [32]byte
	copy(seed[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "seed"))
	incMedium := rapid.Uint8().Draw(t, "incMedium")
	incSmall := rapid.Uint8().Draw(t, "incSmall")
	return Zero(seed, incMedium, incSmall)
}

func stepwise(r *Ratchet, n int) *Ratchet {
	c := r.Clone()
	for i := 0; i < n; i++ {
		c = c.Advance()
	}
	return c
}

func TestAdvanceByMatchesStepwise(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := genRatchet(t)
		n := rapid.IntRange(0, 3*SmallEpoch+7).Draw(t, "n")

		require.True(t, stepwise(r, n).Equal(r.AdvanceBy(uint64(n))))
	})
}

func TestAdvanceByAcrossLargeEpochs(t *testing.T) {
	// walks over at least one large rollover
	r := Zero([32]byte{1, 2, 3}, 250, 200)
	n := LargeEpoch + 3*SmallEpoch + 11

	require.True(t, stepwise(r, n).Equal(r.AdvanceBy(uint64(n))))
}

func TestAdvanceByComposes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := genRatchet(t)
		a := rapid.Uint64Range(0, 1<<24).Draw(t, "a")
		b := rapid.Uint64Range(0, 1<<24).Draw(t, "b")

		require.True(t, r.AdvanceBy(a).AdvanceBy(b).Equal(r.AdvanceBy(a+b)))
	})
}

func TestAdvanceLeavesReceiverUntouched(t *testing.T) {
	r := Zero([32]byte{9}, 0, 255)
	before := r.Clone()

	_ = r.Advance()
	_ = r.AdvanceBy(1 << 20)
	assert.True(t, r.Equal(before))
}

func TestDerivedKeysDiffer(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := genRatchet(t)
		require.NotEqual(t, r.DeriveKey(), r.Advance().DeriveKey())
	})
}

func TestCompare(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := genRatchet(t)
		k := rapid.IntRange(0, 20*LargeEpoch).Draw(t, "k")
		later := r.AdvanceBy(uint64(k))

		steps, err := r.Compare(later, DefaultSearchBudget)
		require.NoError(t, err)
		require.Equal(t, k, steps)

		steps, err = later.Compare(r, DefaultSearchBudget)
		require.NoError(t, err)
		require.Equal(t, -k, steps)
	})
}

func TestCompareBudgetExceeded(t *testing.T) {
	r := Zero([32]byte{7}, 3, 4)
	far := r.AdvanceBy(10 * LargeEpoch)

	_, err := r.Compare(far, 5)
	require.Error(t, err)

	var discrepancy *DiscrepancyError
	require.True(t, errors.As(err, &discrepancy))
	assert.Equal(t, 5, discrepancy.Budget)
	assert.True(t, errors.Is(err, ErrDiscrepancyExceeded))
	assert.False(t, errors.Is(err, ErrUnrelated))

	steps, err := r.Compare(far, 11)
	require.NoError(t, err)
	assert.Equal(t, 10*LargeEpoch, steps)
}

func TestCompareUnrelated(t *testing.T) {
	a, err := New(rand.Reader)
	require.NoError(t, err)
	b, err := New(rand.Reader)
	require.NoError(t, err)

	_, err = a.Compare(b, DefaultSearchBudget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrelated))
	assert.True(t, errors.Is(err, ErrDiscrepancyExceeded))
	assert.False(t, a.Related(b))
}

func TestCompareForgedState(t *testing.T) {
	r := Zero([32]byte{5}, 0, 0)
	forged := r.AdvanceBy(3 * SmallEpoch)
	forged.small[0] ^= 0xff

	_, err := r.Compare(forged, DefaultSearchBudget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiscrepancyExceeded))
}

func TestBetween(t *testing.T) {
	r := Zero([32]byte{4}, 255, 250)
	newer := r.AdvanceBy(10)

	chain, err := Between(r, newer, 100)
	require.NoError(t, err)
	require.Len(t, chain, 10)
	assert.True(t, chain[0].Equal(r.Advance()))
	assert.True(t, chain[9].Equal(newer))

	_, err = Between(r, newer, 5)
	assert.True(t, errors.Is(err, ErrDiscrepancyExceeded))

	_, err = Between(newer, r, 100)
	assert.True(t, errors.Is(err, ErrDiscrepancyExceeded))
}

func TestEncoding(t *testing.T) {
	r, err := New(rand.Reader)
	require.NoError(t, err)
	r = r.AdvanceBy(123456)

	bin, err := r.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, bin, Size)

	var back Ratchet
	require.NoError(t, back.UnmarshalBinary(bin))
	assert.True(t, r.Equal(&back))

	packed, err := encoding.Marshal(r)
	require.NoError(t, err)
	var decoded Ratchet
	require.NoError(t, encoding.Unmarshal(packed, &decoded))
	assert.True(t, r.Equal(&decoded))

	err = back.UnmarshalBinary(bin[:Size-1])
	assert.True(t, errors.Is(err, ErrInvalidRatchet))
}

func TestNewFailsOnShortEntropy(t *testing.T) {
	_, err := New(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}
