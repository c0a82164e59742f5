package search

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// PairwiseParams configures Pairwise.
type PairwiseParams struct {
	Params

	// Sketches is a path list or a single sketch file.
	Sketches string
	Output   string
	// Threshold is the containment, in either direction, above which a pair
	// is reported.
	Threshold float64
}

// Pairwise compares every pair i < j of one resident collection. Unit i
// compares sketch i with every later sketch.
func (r *Runner) Pairwise(ctx context.Context, p PairwiseParams) (err error) {
	const op = "pairwise"

	ctx, end := r.startOp(ctx, op)
	defer func() { end(err) }()

	coll, err := r.loadCollection(ctx, "sketches", p.Sketches, p.Params)
	if err != nil {
		return err
	}

	if coll.Len() < 2 {
		r.log().Warn("fewer than two sketches loaded, nothing to compare", "loaded", coll.Len())
	}

	out, err := sink.Open(p.Output, TablePairwise, SearchColumns, p.buffer())
	if err != nil {
		return err
	}

	em := emitter{r: r, out: out, table: TablePairwise}
	prog := newProgress(r.log(), comparisonProgressEvery, "processed comparisons")
	all := coll.Sketches()
	// skipped marks entries already counted, so a sketch incompatible with
	// many others is skipped once.
	skipped := make([]atomic.Bool, len(all))

	err = collection.ForEach(ctx, collection.InMemory(coll), p.workers(), func(ctx context.Context, e collection.Entry) error {
		started := time.Now()
		defer func() { r.metrics().UnitDuration(ctx, op, time.Since(started)) }()

		var compared int64

		defer func() {
			r.Diagnostics.AddCompared(compared)
			prog.add(compared)
		}()

		query := all[e.Index]

		for j := e.Index + 1; j < len(all); j++ {
			m, err := compare.Compare(query, all[j], p.Stats)
			if err != nil {
				if errors.Is(err, sketch.ErrIncompatible) {
					if skipped[j].CompareAndSwap(false, true) {
						r.Diagnostics.Skip(coll.Location(j), err)
					}

					continue
				}

				return err
			}

			compared++

			if m.ContainmentQuery <= p.Threshold && m.ContainmentSubject <= p.Threshold {
				continue
			}

			err = em.emit(ctx, searchRow(m))
			if err != nil {
				return err
			}
		}

		return nil
	})

	err = closeSink(out, err)
	if err != nil {
		return err
	}

	return r.finish(p.Params)
}
