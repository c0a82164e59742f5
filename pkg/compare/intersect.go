package compare

// Intersect counts the hashes present in both sorted, duplicate-free slices,
// ignoring hashes above maxHash. A zero maxHash disables the cut-off.
// It runs a single linear merge over both inputs.
func Intersect(a, b []uint64, maxHash uint64) uint64 {
	var (
		count uint64
		i, j  int
	)

	for i < len(a) && j < len(b) {
		x, y := a[i], b[j]

		if maxHash != 0 && (x > maxHash || y > maxHash) {
			break
		}

		switch {
		case x < y:
			i++
		case x > y:
			j++
		default:
			count++
			i++
			j++
		}
	}

	return count
}

// Subtract returns the hashes of a that are not in b. Both must be sorted
// and duplicate-free; the result is a new slice.
func Subtract(a, b []uint64) []uint64 {
	out := make([]uint64, 0, len(a))

	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}

		if j < len(b) && b[j] == x {
			continue
		}

		out = append(out, x)
	}

	return out
}

// Common returns the hashes present in both sorted slices as a new slice.
func Common(a, b []uint64) []uint64 {
	var out []uint64

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}

	return out
}
