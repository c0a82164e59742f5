// Package gather implements prefetch and the greedy min-set-cover of a query
// sketch by database sketches.
//
// Prefetch streams a candidate source once and keeps every sketch sharing at
// least the threshold with the query. Run then repeatedly picks the candidate
// with the largest containment of the still-uncovered query, measured in
// estimated base pairs so candidates at different scales compare, removes
// those hashes and records a Step until nothing above the threshold remains. All state lives in the run, so any number of runs may execute
// concurrently over shared candidates.
package gather

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Options tunes prefetch and gather.
type Options struct {
	// ThresholdHashes is the minimum overlap, in hashes at the query's
	// scale, for a candidate to be kept or selected. Candidates at a coarser
	// scale are held to the same estimated base pairs. Values below 1 mean
	// any overlap.
	ThresholdHashes uint64
	// Workers bounds the goroutines used for prefetch and overlap updates.
	Workers int
	// Stats selects the optional statistics of every Match.
	Stats compare.Stats
	// Logger receives per-iteration progress at debug level.
	Logger *slog.Logger
}

func (o Options) threshold() uint64 {
	return max(o.ThresholdHashes, 1)
}

// thresholdBP is the threshold in estimated base pairs for query.
func (o Options) thresholdBP(query *sketch.Sketch) uint64 {
	return o.threshold() * max(query.Scaled(), 1)
}

func (o Options) workers() int {
	return max(o.Workers, 1)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

// ThresholdHashes converts a threshold in base pairs to hashes at scaled.
// The result is never below 1.
func ThresholdHashes(thresholdBP, scaled uint64) uint64 {
	return max(thresholdBP/max(scaled, 1), 1)
}

// Candidate is a database sketch that passed prefetch.
type Candidate struct {
	// Index is the candidate's position in its source.
	Index    int
	Location string
	Sketch   *sketch.Sketch
	// Match is the comparison against the full, original query.
	Match compare.Match
}

// Prefetch loads every entry of src with opts.Workers goroutines and returns
// the candidates sharing at least the threshold with query, sorted by source
// index. Entries that fail to load or are incompatible with the query are
// recorded in diag and left out.
func Prefetch(
	ctx context.Context, query *sketch.Sketch, src collection.Source, opts Options, diag *report.Diagnostics,
) ([]Candidate, error) {
	if query.IsEmpty() {
		return nil, nil
	}

	threshold := opts.thresholdBP(query)

	var (
		mu         sync.Mutex
		candidates []Candidate
	)

	err := collection.ForEach(ctx, src, opts.workers(), func(ctx context.Context, e collection.Entry) error {
		sk, err := e.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			collection.Record(diag, e.Location, err)

			return nil
		}

		if e.Streamed {
			diag.AddLoaded(1)
		}

		m, err := compare.Compare(query, sk, opts.Stats)
		if err != nil {
			diag.Skip(e.Location, err)

			return nil
		}

		diag.AddCompared(1)

		if m.IntersectBP() < threshold {
			return nil
		}

		mu.Lock()
		candidates = append(candidates, Candidate{Index: e.Index, Location: e.Location, Sketch: sk, Match: m})
		mu.Unlock()

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(candidates, func(a, b Candidate) int { return a.Index - b.Index })

	return candidates, nil
}

// Step is one selection of the greedy cover.
type Step struct {
	// Rank is the 0-based selection order.
	Rank      int
	Candidate Candidate
	// Unique compares the residual query (before this step) with the
	// candidate; Unique.IntersectHashes are the newly covered hashes.
	Unique compare.Match

	// IntersectOrig is the overlap with the original query.
	IntersectOrig uint64
	// FOrigQuery is the fraction of the original query the candidate covers.
	FOrigQuery float64
	// FMatch is the fraction of the candidate found in the original query.
	FMatch float64
	// FUniqueToQuery is the fraction of the original query covered only
	// from this step on.
	FUniqueToQuery float64
	// RemainingHashes is the residual size after the step.
	RemainingHashes int
}

// Result is the outcome of a gather run.
type Result struct {
	Query *sketch.Sketch
	Steps []Step
	// Residual holds the query hashes left uncovered.
	Residual *sketch.Sketch
}

// ErrIncompatibleCandidate is returned by Run when a candidate cannot be
// compared with the query.
var ErrIncompatibleCandidate = errors.New("incompatible gather candidate")

// Run computes the greedy cover of query by candidates. Every candidate must be
// compatible with query, as Prefetch guarantees.
func Run(ctx context.Context, query *sketch.Sketch, candidates []Candidate, opts Options) (Result, error) {
	state := newCoverState(query, candidates, opts)
	log := opts.logger()

	log.Debug("gather start", "query", query.DisplayName(),
		"hashes", len(state.residual), "candidates", len(candidates))

	for len(state.residual) > 0 {
		err := ctx.Err()
		if err != nil {
			return Result{}, err
		}

		best, ok := state.best()
		if !ok {
			break
		}

		step, err := state.consume(ctx, best)
		if err != nil {
			return Result{}, err
		}

		log.Debug("gather iteration", "query", query.DisplayName(), "rank", step.Rank,
			"match", step.Candidate.Sketch.DisplayName(), "remaining_hashes", step.RemainingHashes,
			"live_candidates", state.live())
	}

	return Result{
		Query:    query,
		Steps:    state.steps,
		Residual: query.WithHashes(state.residual),
	}, nil
}
