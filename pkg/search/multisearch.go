package search

import (
	"context"
	"errors"
	"time"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// SearchParams configures Multisearch and Manysearch.
type SearchParams struct {
	Params

	// Queries and Against are path lists or single sketch files.
	Queries string
	Against string
	// Output is the result path; "" or "-" writes to stdout.
	Output string
	// Threshold is the containment above which a pair is reported.
	Threshold float64
}

// Multisearch compares every query with every subject, both collections
// resident. Work is partitioned by subject.
func (r *Runner) Multisearch(ctx context.Context, p SearchParams) (err error) {
	const op = "multisearch"

	ctx, end := r.startOp(ctx, op)
	defer func() { end(err) }()

	queries, err := r.loadCollection(ctx, "queries", p.Queries, p.Params)
	if err != nil {
		return err
	}

	against, err := r.loadCollection(ctx, "against", p.Against, p.Params)
	if err != nil {
		return err
	}

	out, err := sink.Open(p.Output, TableMultisearch, SearchColumns, p.buffer())
	if err != nil {
		return err
	}

	em := emitter{r: r, out: out, table: TableMultisearch}
	prog := newProgress(r.log(), comparisonProgressEvery, "processed comparisons")

	err = collection.ForEach(ctx, collection.InMemory(against), p.workers(), func(ctx context.Context, e collection.Entry) error {
		subject, err := e.Load(ctx)
		if err != nil {
			return err
		}

		started := time.Now()
		defer func() { r.metrics().UnitDuration(ctx, op, time.Since(started)) }()

		return r.compareOne(ctx, em, prog, e.Location, queries.Sketches(), subject, p)
	})

	err = closeSink(out, err)
	if err != nil {
		return err
	}

	return r.finish(p.Params)
}

// compareOne compares every query with subject and emits the pairs whose
// query containment exceeds the threshold. An incompatible pair marks the
// subject as skipped once.
func (r *Runner) compareOne(
	ctx context.Context, em emitter, prog *progress, location string,
	queries []*sketch.Sketch, subject *sketch.Sketch, p SearchParams,
) error {
	var (
		compared int64
		skipped  bool
	)

	defer func() {
		r.Diagnostics.AddCompared(compared)
		prog.add(compared)
	}()

	for _, query := range queries {
		m, err := compare.Compare(query, subject, p.Stats)
		if err != nil {
			if errors.Is(err, sketch.ErrIncompatible) && !skipped {
				skipped = true
				r.Diagnostics.Skip(location, err)
			}

			continue
		}

		compared++

		if m.ContainmentQuery <= p.Threshold {
			continue
		}

		err = em.emit(ctx, searchRow(m))
		if err != nil {
			return err
		}
	}

	return nil
}
