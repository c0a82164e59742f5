// Package compare implements the sketch comparison primitive: exact
// merge-walk intersection of two sorted hash sets and the containment,
// max-containment and Jaccard statistics derived from it.
//
// Every function in this package is pure and safe to call from any number of
// goroutines on shared sketches.
package compare

import (
	"fmt"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Stats selects the optional statistics Compare computes. Containment in
// both directions and the intersection size are always computed.
type Stats uint8

const (
	// StatMaxContainment computes Match.MaxContainment.
	StatMaxContainment Stats = 1 << iota
	// StatJaccard computes Match.Jaccard.
	StatJaccard

	// StatsNone computes only containment and intersection.
	StatsNone Stats = 0
	// StatsAll computes every statistic.
	StatsAll = StatMaxContainment | StatJaccard
)

// Has reports whether s includes stat.
func (s Stats) Has(stat Stats) bool {
	return s&stat != 0
}

// Match is the result of comparing a query sketch against a subject sketch.
type Match struct {
	Query   *sketch.Sketch
	Subject *sketch.Sketch

	// IntersectHashes counts the shared hashes at the common scale.
	IntersectHashes uint64

	// ContainmentQuery is the fraction of the query found in the subject.
	ContainmentQuery float64
	// ContainmentSubject is the fraction of the subject found in the query.
	ContainmentSubject float64

	MaxContainment float64
	Jaccard        float64

	// Scaled is the common scale the comparison ran at (0 when unscaled).
	Scaled uint64
	// Stats records which optional statistics were computed.
	Stats Stats
}

// IntersectBP estimates the intersection size in base pairs.
func (m Match) IntersectBP() uint64 {
	return m.IntersectHashes * max(m.Scaled, 1)
}

// Compare compares query against subject. It fails with an error matching
// sketch.ErrIncompatible when the sketches cannot be compared; it never
// returns a score for incompatible sketches.
func Compare(query, subject *sketch.Sketch, stats Stats) (Match, error) {
	err := sketch.CheckCompatible(query, subject)
	if err != nil {
		return Match{}, fmt.Errorf("compare %s with %s: %w", query.DisplayName(), subject.DisplayName(), err)
	}

	scaled := sketch.CommonScaled(query, subject)
	maxHash := sketch.MaxHashForScaled(scaled)
	overlap := Intersect(query.Hashes(), subject.Hashes(), maxHash)

	m := Match{
		Query:              query,
		Subject:            subject,
		IntersectHashes:    overlap,
		ContainmentQuery:   containment(overlap, scaled, query.OriginalSize()),
		ContainmentSubject: containment(overlap, scaled, subject.OriginalSize()),
		Scaled:             scaled,
		Stats:              stats,
	}

	if stats.Has(StatMaxContainment) {
		m.MaxContainment = max(m.ContainmentQuery, m.ContainmentSubject)
	}

	if stats.Has(StatJaccard) {
		union := uint64(query.SizeAt(maxHash)) + uint64(subject.SizeAt(maxHash)) - overlap
		if union > 0 {
			m.Jaccard = float64(overlap) / float64(union)
		}
	}

	return m, nil
}

// containment estimates overlap/size where overlap is counted at scaled and
// size is an original cardinality estimate. The result is clamped to [0,1].
func containment(overlap, scaled, size uint64) float64 {
	if size == 0 || overlap == 0 {
		return 0
	}

	c := float64(overlap) * float64(max(scaled, 1)) / float64(size)

	return min(c, 1)
}
