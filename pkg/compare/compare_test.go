package compare_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

const testKsize = 21

func mk(name string, hashes ...uint64) *sketch.Sketch {
	return sketch.New(name, "", "", sketch.Params{Ksize: testKsize, Scaled: 1}, hashes)
}

func TestIntersect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(2), compare.Intersect([]uint64{1, 3, 5, 7}, []uint64{2, 3, 7, 9}, 0))
	assert.Equal(t, uint64(1), compare.Intersect([]uint64{1, 3, 5, 7}, []uint64{2, 3, 7, 9}, 5))
	assert.Equal(t, uint64(0), compare.Intersect(nil, []uint64{1}, 0))
	assert.Equal(t, uint64(0), compare.Intersect([]uint64{1, 2}, []uint64{3, 4}, 0))
}

func TestSubtractAndCommon(t *testing.T) {
	t.Parallel()

	a := []uint64{1, 2, 3, 4, 5}
	b := []uint64{2, 4, 6}

	assert.Equal(t, []uint64{1, 3, 5}, compare.Subtract(a, b))
	assert.Equal(t, []uint64{2, 4}, compare.Common(a, b))
	assert.Equal(t, a, compare.Subtract(a, nil))
	assert.Empty(t, compare.Common(a, nil))
}

func TestCompare_Basic(t *testing.T) {
	t.Parallel()

	q := mk("q", 1, 2, 3, 4, 5)
	s := mk("s", 4, 5, 6)

	m, err := compare.Compare(q, s, compare.StatsAll)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), m.IntersectHashes)
	assert.InDelta(t, 2.0/5.0, m.ContainmentQuery, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.ContainmentSubject, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.MaxContainment, 1e-12)
	assert.InDelta(t, 2.0/6.0, m.Jaccard, 1e-12)
	assert.Same(t, q, m.Query)
	assert.Same(t, s, m.Subject)
	assert.Equal(t, uint64(2), m.IntersectBP())
}

func TestCompare_StatsToggles(t *testing.T) {
	t.Parallel()

	m, err := compare.Compare(mk("q", 1, 2), mk("s", 2, 3), compare.StatsNone)
	require.NoError(t, err)

	assert.Zero(t, m.Jaccard)
	assert.Zero(t, m.MaxContainment)
	assert.False(t, m.Stats.Has(compare.StatJaccard))
	assert.InDelta(t, 0.5, m.ContainmentQuery, 1e-12)
}

func TestCompare_IncompatibleIsError(t *testing.T) {
	t.Parallel()

	q := mk("q", 1, 2)
	other := sketch.New("o", "", "", sketch.Params{Ksize: 31, Scaled: 1}, []uint64{1, 2})

	_, err := compare.Compare(q, other, compare.StatsAll)
	require.ErrorIs(t, err, sketch.ErrIncompatible)
}

func TestCompare_DifferentScalesUseCoarserScale(t *testing.T) {
	t.Parallel()

	coarseMax := sketch.MaxHashForScaled(10)
	fine := sketch.New("fine", "", "", sketch.Params{Ksize: testKsize, Scaled: 1}, []uint64{1, 2, coarseMax + 1, coarseMax + 2})
	coarse := sketch.New("coarse", "", "", sketch.Params{Ksize: testKsize, Scaled: 10}, []uint64{1, 2})

	m, err := compare.Compare(fine, coarse, compare.StatsAll)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), m.Scaled)
	assert.Equal(t, uint64(2), m.IntersectHashes)
	// Jaccard ignores hashes of the finer sketch beyond the common max hash.
	assert.InDelta(t, 1.0, m.Jaccard, 1e-12)
	// 2 hashes at scaled 10 estimate 20 k-mers; the fine sketch holds 4.
	assert.InDelta(t, 1.0, m.ContainmentQuery, 1e-12)
	assert.InDelta(t, 1.0, m.ContainmentSubject, 1e-12)
}

func TestCompare_EmptySketches(t *testing.T) {
	t.Parallel()

	m, err := compare.Compare(mk("q"), mk("s"), compare.StatsAll)
	require.NoError(t, err)

	assert.Zero(t, m.IntersectHashes)
	assert.Zero(t, m.ContainmentQuery)
	assert.Zero(t, m.Jaccard)
}

func randomSketch(rng *rand.Rand, name string, universe uint64, n int) *sketch.Sketch {
	hashes := make([]uint64, n)
	for i := range hashes {
		hashes[i] = rng.Uint64N(universe) + 1
	}

	return mk(name, hashes...)
}

func isSubset(a, b *sketch.Sketch) bool {
	return compare.Intersect(a.Hashes(), b.Hashes(), 0) == uint64(a.Len())
}

func TestCompare_Properties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		a := randomSketch(rng, "a", 64, 1+rng.IntN(40))
		b := randomSketch(rng, "b", 64, 1+rng.IntN(40))

		ab, err := compare.Compare(a, b, compare.StatsAll)
		require.NoError(t, err)

		ba, err := compare.Compare(b, a, compare.StatsAll)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, ab.ContainmentQuery, 0.0)
		assert.LessOrEqual(t, ab.ContainmentQuery, 1.0)
		assert.Equal(t, isSubset(a, b), ab.ContainmentQuery == 1.0)
		assert.Equal(t, ab.IntersectHashes == 0, ab.Jaccard == 0)
		assert.InDelta(t, max(ab.ContainmentQuery, ab.ContainmentSubject), ab.MaxContainment, 0)

		assert.Equal(t, ab.IntersectHashes, ba.IntersectHashes)
		assert.InDelta(t, ab.Jaccard, ba.Jaccard, 0)
		assert.InDelta(t, ab.ContainmentQuery, ba.ContainmentSubject, 0)
		assert.InDelta(t, ab.ContainmentSubject, ba.ContainmentQuery, 0)
	}
}

func TestCompare_SubsetHasFullContainment(t *testing.T) {
	t.Parallel()

	m, err := compare.Compare(mk("q", 2, 4), mk("s", 1, 2, 3, 4), compare.StatsAll)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, m.ContainmentQuery, 0)
	assert.InDelta(t, 0.5, m.ContainmentSubject, 0)
	assert.InDelta(t, 1.0, m.MaxContainment, 0)
}
