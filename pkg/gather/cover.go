package gather

import (
	"cmp"
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// minParallelCandidates is the live candidate count below which overlap
// updates run on the calling goroutine.
const minParallelCandidates = 256

// coverState is the mutable state of one gather run. The residual only
// shrinks and retired candidates never come back.
type coverState struct {
	query      *sketch.Sketch
	candidates []Candidate
	opts       Options
	// threshold is the minimum estimated overlap in base pairs.
	threshold uint64

	residual []uint64
	// overlap[i] is the overlap of candidate i with the residual, in hashes
	// at scale[i].
	overlap []uint64
	// scale[i] is the common scale of the query and candidate i, at least 1.
	scale []uint64
	// retired holds selected candidates and those fallen below threshold.
	retired *roaring.Bitmap
	steps   []Step
}

func newCoverState(query *sketch.Sketch, candidates []Candidate, opts Options) *coverState {
	s := &coverState{
		query:      query,
		candidates: candidates,
		opts:       opts,
		threshold:  opts.thresholdBP(query),
		residual:   query.Hashes(),
		overlap:    make([]uint64, len(candidates)),
		scale:      make([]uint64, len(candidates)),
		retired:    roaring.New(),
	}

	for i, c := range candidates {
		s.overlap[i] = c.Match.IntersectHashes
		s.scale[i] = max(sketch.CommonScaled(query, c.Sketch), 1)

		if s.overlapBP(i) < s.threshold {
			s.retired.Add(uint32(i))
		}
	}

	return s
}

// overlapBP estimates the overlap of candidate i with the residual in base
// pairs, which compares across candidates of different scales.
func (s *coverState) overlapBP(i int) uint64 {
	return s.overlap[i] * s.scale[i]
}

func (s *coverState) live() int {
	return len(s.candidates) - int(s.retired.GetCardinality())
}

// best returns the live candidate with the largest estimated overlap, if any
// reaches the threshold.
func (s *coverState) best() (int, bool) {
	best := -1

	for i := range s.candidates {
		if s.retired.Contains(uint32(i)) {
			continue
		}

		if best < 0 || s.before(i, best) {
			best = i
		}
	}

	if best < 0 || s.overlapBP(best) < s.threshold {
		return 0, false
	}

	return best, true
}

// before orders candidates for selection: larger overlap in base pairs, then
// larger original size, then name, md5, location and index ascending.
func (s *coverState) before(i, j int) bool {
	a, b := s.candidates[i], s.candidates[j]

	if c := cmp.Compare(s.overlapBP(j), s.overlapBP(i)); c != 0 {
		return c < 0
	}

	if c := cmp.Compare(b.Sketch.OriginalSize(), a.Sketch.OriginalSize()); c != 0 {
		return c < 0
	}

	if c := cmp.Compare(a.Sketch.Name, b.Sketch.Name); c != 0 {
		return c < 0
	}

	if c := cmp.Compare(a.Sketch.MD5, b.Sketch.MD5); c != 0 {
		return c < 0
	}

	if c := cmp.Compare(a.Location, b.Location); c != 0 {
		return c < 0
	}

	return a.Index < b.Index
}

// consume selects candidate i: records its step, removes its hashes from the
// residual and updates the overlaps of the remaining live candidates.
func (s *coverState) consume(ctx context.Context, i int) (Step, error) {
	cand := s.candidates[i]

	unique, err := compare.Compare(s.query.WithHashes(s.residual), cand.Sketch, s.opts.Stats)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrIncompatibleCandidate, cand.Location, err)
	}

	removed := compare.Common(s.residual, cand.Sketch.Hashes())
	s.residual = compare.Subtract(s.residual, removed)
	s.retired.Add(uint32(i))

	err = s.update(ctx, removed)
	if err != nil {
		return Step{}, err
	}

	scale := s.scale[i]

	step := Step{
		Rank:            len(s.steps),
		Candidate:       cand,
		Unique:          unique,
		IntersectOrig:   cand.Match.IntersectHashes,
		FOrigQuery:      cand.Match.ContainmentQuery,
		FMatch:          cand.Match.ContainmentSubject,
		FUniqueToQuery:  fraction(unique.IntersectHashes*scale, s.query.OriginalSize()),
		RemainingHashes: len(s.residual),
	}

	s.steps = append(s.steps, step)

	return step, nil
}

// update subtracts from every live overlap the hashes the last selection
// removed, then retires candidates that fell below the threshold.
func (s *coverState) update(ctx context.Context, removed []uint64) error {
	if len(removed) == 0 {
		return nil
	}

	live := make([]int, 0, s.live())

	for j := range s.candidates {
		if !s.retired.Contains(uint32(j)) {
			live = append(live, j)
		}
	}

	workers := s.opts.workers()
	if workers == 1 || len(live) < minParallelCandidates {
		s.subtract(live, removed)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		chunk := (len(live) + workers - 1) / workers

		for lo := 0; lo < len(live); lo += chunk {
			part := live[lo:min(lo+chunk, len(live))]

			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				s.subtract(part, removed)

				return nil
			})
		}

		err := g.Wait()
		if err != nil {
			return err
		}
	}

	for _, j := range live {
		if s.overlapBP(j) < s.threshold {
			s.retired.Add(uint32(j))
		}
	}

	return nil
}

// subtract updates the overlaps of idx. Distinct goroutines get disjoint idx.
func (s *coverState) subtract(idx []int, removed []uint64) {
	for _, j := range idx {
		maxHash := sketch.MaxHashForScaled(s.scale[j])
		lost := compare.Intersect(s.candidates[j].Sketch.Hashes(), removed, maxHash)
		s.overlap[j] -= min(lost, s.overlap[j])
	}
}

func fraction(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}

	return min(float64(part)/float64(whole), 1)
}
