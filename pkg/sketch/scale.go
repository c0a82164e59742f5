package sketch

import (
	"crypto/md5" //nolint:gosec // content digest compatible with sourmash, not a security boundary.
	"encoding/hex"
	"math"
	"strconv"
)

// hashSpace is 2^64 as a float, the size of the hash space.
const hashSpace = float64(math.MaxUint64)

// MaxHashForScaled returns the largest retained hash for a scaled factor.
// A scaled of 0 means unscaled (0) and 1 keeps every hash.
func MaxHashForScaled(scaled uint64) uint64 {
	switch scaled {
	case 0:
		return 0
	case 1:
		return math.MaxUint64
	default:
		return uint64(hashSpace / float64(scaled))
	}
}

// ScaledForMaxHash is the inverse of MaxHashForScaled.
func ScaledForMaxHash(maxHash uint64) uint64 {
	if maxHash == 0 {
		return 0
	}

	return uint64(hashSpace / float64(maxHash))
}

// scaleFactor returns the multiplier that turns a hash count into a
// cardinality estimate.
func scaleFactor(scaled uint64) uint64 {
	if scaled == 0 {
		return 1
	}

	return scaled
}

// ComputeMD5 returns the sourmash-compatible digest of a sketch: the md5 of
// the decimal ksize followed by every hash in decimal.
func ComputeMD5(ksize uint32, hashes []uint64) string {
	digest := md5.New() //nolint:gosec // see import.

	buf := make([]byte, 0, 20)
	buf = strconv.AppendUint(buf, uint64(ksize), 10)
	digest.Write(buf)

	for _, h := range hashes {
		buf = strconv.AppendUint(buf[:0], h, 10)
		digest.Write(buf)
	}

	return hex.EncodeToString(digest.Sum(nil))
}
