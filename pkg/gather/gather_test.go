package gather_test

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fastsketch/internal/sketchtest"
	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/gather"
	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

func inMemory(sketches ...*sketch.Sketch) collection.Source {
	locations := make([]string, len(sketches))
	for i, sk := range sketches {
		locations[i] = sk.Name + ".sig"
	}

	return collection.InMemory(collection.New(sketches, locations))
}

func gatherAll(t *testing.T, query *sketch.Sketch, src collection.Source, opts gather.Options) ([]gather.Candidate, gather.Result) {
	t.Helper()

	candidates, err := gather.Prefetch(context.Background(), query, src, opts, nil)
	require.NoError(t, err)

	result, err := gather.Run(context.Background(), query, candidates, opts)
	require.NoError(t, err)

	return candidates, result
}

func TestGather_TwoStepCover(t *testing.T) {
	t.Parallel()

	query := sketchtest.New("Q", 1, 2, 3, 4, 5)
	d1 := sketchtest.New("D1", 1, 2, 3)
	d2 := sketchtest.New("D2", 4, 5, 6)

	candidates, result := gatherAll(t, query, inMemory(d1, d2), gather.Options{Stats: compare.StatsAll})
	require.Len(t, candidates, 2)
	require.Len(t, result.Steps, 2)

	first, second := result.Steps[0], result.Steps[1]

	assert.Equal(t, 0, first.Rank)
	assert.Equal(t, "D1", first.Candidate.Sketch.Name)
	assert.Equal(t, uint64(3), first.Unique.IntersectHashes)
	assert.Equal(t, uint64(3), first.IntersectOrig)
	assert.Equal(t, 2, first.RemainingHashes)
	assert.InDelta(t, 0.6, first.FOrigQuery, 1e-12)
	assert.InDelta(t, 1.0, first.FMatch, 1e-12)
	assert.InDelta(t, 0.6, first.FUniqueToQuery, 1e-12)

	assert.Equal(t, 1, second.Rank)
	assert.Equal(t, "D2", second.Candidate.Sketch.Name)
	assert.Equal(t, uint64(2), second.Unique.IntersectHashes)
	assert.Equal(t, 0, second.RemainingHashes)
	assert.InDelta(t, 2.0/3.0, second.FMatch, 1e-12)
	assert.InDelta(t, 0.4, second.FUniqueToQuery, 1e-12)

	assert.True(t, result.Residual.IsEmpty())
}

func TestGather_OverlapShrinksAfterSelection(t *testing.T) {
	t.Parallel()

	// B overlaps most of A, so once A is selected B's unique overlap drops
	// below C's even though B started ahead of C.
	query := sketchtest.New("Q", sketchtest.Range(1, 20)...)
	a := sketchtest.New("A", sketchtest.Range(1, 10)...)
	b := sketchtest.New("B", sketchtest.Range(3, 11)...)
	c := sketchtest.New("C", sketchtest.Range(14, 18)...)

	_, result := gatherAll(t, query, inMemory(a, b, c), gather.Options{})

	names := make([]string, 0, len(result.Steps))
	for _, s := range result.Steps {
		names = append(names, s.Candidate.Sketch.Name)
	}

	assert.Equal(t, []string{"A", "C", "B"}, names)
	assert.Equal(t, uint64(1), result.Steps[2].Unique.IntersectHashes)
	assert.Equal(t, uint64(9), result.Steps[2].IntersectOrig)
}

func TestGather_ThresholdStopsLoop(t *testing.T) {
	t.Parallel()

	query := sketchtest.New("Q", sketchtest.Range(1, 10)...)
	a := sketchtest.New("A", sketchtest.Range(1, 6)...)
	b := sketchtest.New("B", sketchtest.Range(2, 8)...)
	tiny := sketchtest.New("tiny", 10)

	candidates, result := gatherAll(t, query, inMemory(a, b, tiny), gather.Options{ThresholdHashes: 3})

	// tiny never passes prefetch. B goes first and leaves A a single
	// unique hash, below the threshold.
	require.Len(t, candidates, 2)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "B", result.Steps[0].Candidate.Sketch.Name)
	assert.Equal(t, 3, result.Residual.Len())
}

func TestGather_TieBreaks(t *testing.T) {
	t.Parallel()

	query := sketchtest.New("Q", 1, 2, 3, 4)

	t.Run("larger original size wins", func(t *testing.T) {
		t.Parallel()

		small := sketchtest.New("a-small", 1, 2)
		large := sketchtest.New("z-large", 1, 2, 100, 101)

		_, result := gatherAll(t, query, inMemory(small, large), gather.Options{})
		require.NotEmpty(t, result.Steps)
		assert.Equal(t, "z-large", result.Steps[0].Candidate.Sketch.Name)
	})

	t.Run("name ascending", func(t *testing.T) {
		t.Parallel()

		b := sketchtest.New("b", 1, 2)
		a := sketchtest.New("a", 1, 2)

		_, result := gatherAll(t, query, inMemory(b, a), gather.Options{})
		require.Len(t, result.Steps, 1)
		assert.Equal(t, "a", result.Steps[0].Candidate.Sketch.Name)
	})

	t.Run("index ascending", func(t *testing.T) {
		t.Parallel()

		x := sketchtest.New("same", 1, 2)
		y := sketchtest.New("same", 1, 2)
		src := collection.InMemory(collection.New([]*sketch.Sketch{x, y}, []string{"same.sig", "same.sig"}))

		_, result := gatherAll(t, query, src, gather.Options{})
		require.Len(t, result.Steps, 1)
		assert.Equal(t, 0, result.Steps[0].Candidate.Index)
	})
}

func TestGather_EmptyInputs(t *testing.T) {
	t.Parallel()

	empty := sketchtest.New("empty")
	candidates, result := gatherAll(t, empty, inMemory(sketchtest.New("D", 1)), gather.Options{})
	assert.Empty(t, candidates)
	assert.Empty(t, result.Steps)

	query := sketchtest.New("Q", 1, 2)
	candidates, result = gatherAll(t, query, inMemory(), gather.Options{})
	assert.Empty(t, candidates)
	assert.Empty(t, result.Steps)
	assert.Equal(t, 2, result.Residual.Len())
}

func TestPrefetch_RecordsSkipsAndFailures(t *testing.T) {
	t.Parallel()

	query := sketchtest.New("Q", 1, 2, 3)
	loader := sketchtest.NewMapLoader().
		Add("good", sketchtest.New("good", 1, 2)).
		Add("k21", sketchtest.NewWith("k21", sketch.Params{Ksize: 21, Scaled: 1}, 1, 2)).
		Add("nohit", sketchtest.New("nohit", 9))

	src := collection.Stream([]string{"good", "k21", "nohit", "missing"}, loader, sketch.Selection{})
	diag := report.NewDiagnostics(nil, 0)

	candidates, err := gather.Prefetch(context.Background(), query, src, gather.Options{Workers: 3}, diag)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "good", candidates[0].Location)
	assert.Equal(t, int64(1), diag.Skipped())
	assert.Equal(t, int64(1), diag.Failed())
	assert.Equal(t, int64(2), diag.Compared())
}

func randomWorkload(rng *rand.Rand, databaseSize int) (*sketch.Sketch, []*sketch.Sketch) {
	const universe = 5000

	query := sketchtest.New("Q", sketchtest.Range(1, universe/2)...)

	database := make([]*sketch.Sketch, databaseSize)
	for i := range database {
		lo := rng.Uint64N(universe) + 1
		n := rng.Uint64N(200) + 1

		database[i] = sketchtest.New(fmt.Sprintf("d%04d", i), sketchtest.Range(lo, lo+n)...)
	}

	return query, database
}

func stepSignature(result gather.Result) []string {
	out := make([]string, 0, len(result.Steps))
	for _, s := range result.Steps {
		out = append(out, fmt.Sprintf("%d:%s:%d:%d", s.Rank, s.Candidate.Sketch.Name, s.Unique.IntersectHashes, s.RemainingHashes))
	}

	return out
}

func TestGather_InvariantsAndDeterminism(t *testing.T) {
	t.Parallel()

	query, database := randomWorkload(rand.New(rand.NewPCG(7, 11)), 600)

	candidates, single := gatherAll(t, query, inMemory(database...), gather.Options{Workers: 1})
	require.NotEmpty(t, single.Steps)
	assert.LessOrEqual(t, len(single.Steps), len(candidates))

	last := query.Len()
	for _, s := range single.Steps {
		assert.LessOrEqual(t, s.RemainingHashes, last)
		assert.Positive(t, s.Unique.IntersectHashes)
		last = s.RemainingHashes
	}

	for _, workers := range []int{2, 8} {
		_, parallel := gatherAll(t, query, inMemory(database...), gather.Options{Workers: workers})
		assert.Equal(t, stepSignature(single), stepSignature(parallel), "workers=%d", workers)
	}
}

func TestGather_CancelledContext(t *testing.T) {
	t.Parallel()

	query := sketchtest.New("Q", 1, 2, 3)
	candidates, err := gather.Prefetch(context.Background(), query, inMemory(sketchtest.New("D", 1, 2)), gather.Options{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gather.Run(ctx, query, candidates, gather.Options{})
	require.ErrorIs(t, err, context.Canceled)
}

// mixedScale builds a scaled=1 query of 15 hashes, a scaled=1 candidate A
// sharing its 10 largest hashes and a scaled=10 candidate B sharing its 5
// smallest. At B's scale each shared hash stands for 10 base pairs.
func mixedScale() (query, a, b *sketch.Sketch) {
	large := make([]uint64, 0, 10)
	for i := range uint64(10) {
		large = append(large, math.MaxUint64-i)
	}

	small := sketchtest.Range(1, 5)

	query = sketchtest.New("Q", append(append([]uint64{}, small...), large...)...)
	a = sketchtest.New("A", large...)
	b = sketchtest.NewWith("B", sketch.Params{Ksize: sketchtest.Ksize, Scaled: 10}, small...)

	return query, a, b
}

func TestGather_MixedScalesRankByContainment(t *testing.T) {
	t.Parallel()

	query, a, b := mixedScale()

	candidates, result := gatherAll(t, query, inMemory(a, b), gather.Options{})
	require.Len(t, candidates, 2)
	require.Len(t, result.Steps, 2)

	first, second := result.Steps[0], result.Steps[1]

	assert.Equal(t, "B", first.Candidate.Sketch.Name)
	assert.Equal(t, uint64(5), first.Unique.IntersectHashes)
	assert.Equal(t, uint64(10), first.Unique.Scaled)
	assert.Equal(t, "A", second.Candidate.Sketch.Name)
	assert.Equal(t, uint64(10), second.Unique.IntersectHashes)
	assert.True(t, result.Residual.IsEmpty())
}

func TestGather_MixedScalesThresholdInBasePairs(t *testing.T) {
	t.Parallel()

	query, a, b := mixedScale()

	// 20 hashes at the query's scale is 20 bp: B's 50 bp pass, A's 10 do not.
	candidates, result := gatherAll(t, query, inMemory(a, b), gather.Options{ThresholdHashes: 20})
	require.Len(t, candidates, 1)
	assert.Equal(t, "B", candidates[0].Sketch.Name)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, 10, result.Residual.Len())
}

func TestThresholdHashes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(50), gather.ThresholdHashes(50000, 1000))
	assert.Equal(t, uint64(1), gather.ThresholdHashes(10, 1000))
	assert.Equal(t, uint64(1), gather.ThresholdHashes(0, 0))
}
