package search

import (
	"context"
	"time"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
)

// Manysearch keeps the queries resident and streams the subjects, one file
// per unit of work, so memory stays bounded by the queries plus one sketch
// per worker.
func (r *Runner) Manysearch(ctx context.Context, p SearchParams) (err error) {
	const op = "manysearch"

	ctx, end := r.startOp(ctx, op)
	defer func() { end(err) }()

	queries, err := r.loadCollection(ctx, "queries", p.Queries, p.Params)
	if err != nil {
		return err
	}

	againstPaths, err := collection.ResolvePaths(p.Against)
	if err != nil {
		return err
	}

	out, err := sink.Open(p.Output, TableManysearch, SearchColumns, p.buffer())
	if err != nil {
		return err
	}

	em := emitter{r: r, out: out, table: TableManysearch}
	comparisons := newProgress(r.log(), comparisonProgressEvery, "processed comparisons")
	streamed := newProgress(r.log(), sketchProgressEvery, "processed search sketches")

	r.log().Info("searching", "queries", queries.Len(), "against_paths", len(againstPaths))

	src := collection.Stream(againstPaths, r.Loader, p.Selection)

	err = collection.ForEach(ctx, src, p.workers(), func(ctx context.Context, e collection.Entry) error {
		defer streamed.add(1)

		started := time.Now()
		defer func() { r.metrics().UnitDuration(ctx, op, time.Since(started)) }()

		subject, err := e.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			collection.Record(r.Diagnostics, e.Location, err)

			return nil
		}

		r.Diagnostics.AddLoaded(1)

		return r.compareOne(ctx, em, comparisons, e.Location, queries.Sketches(), subject, p)
	})

	err = closeSink(out, err)
	if err != nil {
		return err
	}

	return r.finish(p.Params)
}
