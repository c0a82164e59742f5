package sketch_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

const (
	testKsize  = 31
	testScaled = 1000
)

func scaledParams(scaled uint64) sketch.Params {
	return sketch.Params{Ksize: testKsize, Scaled: scaled}
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "a.sig", "", sketch.Params{Ksize: testKsize, Scaled: 1}, []uint64{5, 1, 3, 1, 5})

	assert.Equal(t, []uint64{1, 3, 5}, sk.Hashes())
	assert.Equal(t, 3, sk.Len())
	assert.Equal(t, uint64(3), sk.OriginalSize())
	assert.Equal(t, sketch.DefaultMoltype, sk.Moltype())
	assert.Zero(t, sk.Params().Seed, "seed is taken as given")
	assert.NotEmpty(t, sk.MD5)
}

func TestNew_DropsHashesAboveMaxHash(t *testing.T) {
	t.Parallel()

	maxHash := sketch.MaxHashForScaled(testScaled)
	sk := sketch.New("a", "", "", scaledParams(testScaled), []uint64{1, maxHash, maxHash + 1})

	assert.Equal(t, []uint64{1, maxHash}, sk.Hashes())
	assert.Equal(t, uint64(2*testScaled), sk.OriginalSize())
}

func TestNew_KeepsProvidedMD5(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "", "abc", scaledParams(1), []uint64{1})

	assert.Equal(t, "abc", sk.MD5)
}

func TestComputeMD5_DependsOnKsizeAndHashes(t *testing.T) {
	t.Parallel()

	base := sketch.ComputeMD5(21, []uint64{1, 2, 3})

	assert.Len(t, base, 32)
	assert.Equal(t, base, sketch.ComputeMD5(21, []uint64{1, 2, 3}))
	assert.NotEqual(t, base, sketch.ComputeMD5(31, []uint64{1, 2, 3}))
	assert.NotEqual(t, base, sketch.ComputeMD5(21, []uint64{1, 2}))
}

func TestMaxHashForScaled(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), sketch.MaxHashForScaled(0))
	assert.Equal(t, uint64(math.MaxUint64), sketch.MaxHashForScaled(1))
	assert.Equal(t, uint64(18446744073709552), sketch.MaxHashForScaled(testScaled))
	assert.Equal(t, uint64(testScaled), sketch.ScaledForMaxHash(sketch.MaxHashForScaled(testScaled)))
	assert.Equal(t, uint64(0), sketch.ScaledForMaxHash(0))
}

func TestDownsample_KeepsIdentityAndOriginalSize(t *testing.T) {
	t.Parallel()

	coarse := sketch.MaxHashForScaled(10 * testScaled)
	sk := sketch.New("a", "a.sig", "md5", scaledParams(testScaled), []uint64{1, coarse, coarse + 1})

	down, err := sk.Downsample(10 * testScaled)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, coarse}, down.Hashes())
	assert.Equal(t, uint64(10*testScaled), down.Scaled())
	assert.Equal(t, sk.OriginalSize(), down.OriginalSize())
	assert.Equal(t, "md5", down.MD5)
	assert.Equal(t, "a", down.Name)
}

func TestDownsample_SameScaledReturnsReceiver(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "", "", scaledParams(testScaled), []uint64{1})

	down, err := sk.Downsample(testScaled)
	require.NoError(t, err)
	assert.Same(t, sk, down)
}

func TestDownsample_Errors(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "", "", scaledParams(testScaled), []uint64{1})

	_, err := sk.Downsample(testScaled / 10)
	require.ErrorIs(t, err, sketch.ErrInvalidDownsample)

	unscaled := sketch.New("u", "", "", sketch.Params{Ksize: testKsize, Num: 10}, []uint64{1})

	_, err = unscaled.Downsample(testScaled)
	require.ErrorIs(t, err, sketch.ErrIncompatible)
}

func TestSizeAt(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "", "", scaledParams(1), []uint64{10, 20, 30, 40})

	assert.Equal(t, 4, sk.SizeAt(0))
	assert.Equal(t, 2, sk.SizeAt(20))
	assert.Equal(t, 2, sk.SizeAt(25))
	assert.Equal(t, 0, sk.SizeAt(5))
	assert.Equal(t, 4, sk.SizeAt(math.MaxUint64))
}

func TestCheckCompatible(t *testing.T) {
	t.Parallel()

	base := sketch.New("a", "", "", scaledParams(testScaled), []uint64{1})

	tests := []struct {
		name   string
		other  *sketch.Sketch
		wantOK bool
	}{
		{"same params", sketch.New("b", "", "", scaledParams(testScaled), []uint64{2}), true},
		{"different scaled", sketch.New("b", "", "", scaledParams(2*testScaled), []uint64{2}), true},
		{"ksize", sketch.New("b", "", "", sketch.Params{Ksize: 21, Scaled: testScaled}, nil), false},
		{"moltype", sketch.New("b", "", "", sketch.Params{Ksize: testKsize, Scaled: testScaled, Moltype: "protein"}, nil), false},
		{"seed", sketch.New("b", "", "", sketch.Params{Ksize: testKsize, Scaled: testScaled, Seed: 7}, nil), false},
		{"unscaled", sketch.New("b", "", "", sketch.Params{Ksize: testKsize, Num: 500}, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := sketch.CheckCompatible(base, tt.other)
			if tt.wantOK {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, sketch.ErrIncompatible)

			var incompatible *sketch.IncompatibleError
			require.ErrorAs(t, err, &incompatible)
			assert.NotEmpty(t, incompatible.Reason)
		})
	}
}

func TestSelection_Select(t *testing.T) {
	t.Parallel()

	k21 := sketch.New("k21", "", "", sketch.Params{Ksize: 21, Scaled: testScaled}, []uint64{1, 2})
	k31 := sketch.New("k31", "", "", scaledParams(testScaled), []uint64{1, 2, 3})

	sel := sketch.Selection{Ksize: testKsize, Scaled: 2 * testScaled}

	got, err := sel.Select([]*sketch.Sketch{k21, k31})
	require.NoError(t, err)
	assert.Equal(t, "k31", got.Name)
	assert.Equal(t, uint64(2*testScaled), got.Scaled())
	assert.Equal(t, k31.MD5, got.MD5)

	_, err = sketch.Selection{Ksize: 51}.Select([]*sketch.Sketch{k21, k31})
	require.ErrorIs(t, err, sketch.ErrNoCompatible)

	_, err = sketch.Selection{Ksize: testKsize, Scaled: testScaled / 10}.Select([]*sketch.Sketch{k31})
	require.ErrorIs(t, err, sketch.ErrNoCompatible)
}

func TestSelection_ZeroMatchesAnything(t *testing.T) {
	t.Parallel()

	sk := sketch.New("p", "", "", sketch.Params{Ksize: 10, Scaled: 100, Moltype: "protein"}, []uint64{1})

	got, err := sketch.Selection{}.Select([]*sketch.Sketch{sk})
	require.NoError(t, err)
	assert.Same(t, sk, got)

	assert.True(t, sketch.Selection{Moltype: "PROTEIN"}.Matches(sk))
	assert.Contains(t, sketch.Selection{}.String(), "moltype=any")
}

func TestWithHashes_RecomputesOriginalSize(t *testing.T) {
	t.Parallel()

	sk := sketch.New("a", "f", "m", scaledParams(testScaled), []uint64{1, 2, 3})
	residual := sk.WithHashes([]uint64{2})

	assert.Equal(t, uint64(testScaled), residual.OriginalSize())
	assert.Equal(t, sk.Params(), residual.Params())
	assert.Equal(t, "m", residual.MD5)
}
