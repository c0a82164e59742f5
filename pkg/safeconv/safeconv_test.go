package safeconv_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/fastsketch/pkg/safeconv"
)

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(31), safeconv.MustIntToUint32(31))
	assert.Equal(t, uint32(math.MaxUint32), safeconv.MustIntToUint32(math.MaxUint32))

	assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
		safeconv.MustIntToUint32(-1)
	})
	assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
		safeconv.MustIntToUint32(math.MaxUint32 + 1)
	})
}

func TestMustIntToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(1000), safeconv.MustIntToUint64(1000))
	assert.PanicsWithValue(t, "safeconv: negative int to uint64 conversion", func() {
		safeconv.MustIntToUint64(-5)
	})
}
