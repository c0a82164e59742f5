package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/gather"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Per-query output file suffixes.
const (
	prefetchSuffix = ".prefetch.csv"
	gatherSuffix   = ".gather.csv"
)

// FastmultigatherParams configures Fastmultigather.
type FastmultigatherParams struct {
	Params

	Queries string
	Against string
	// OutputDir receives <identity>.prefetch.csv and <identity>.gather.csv
	// per query; "" means the working directory.
	OutputDir   string
	ThresholdBP uint64
	Identity    IdentityMode
}

// Fastmultigather loads the database once and shares it read-only across
// workers; each unit is one streamed query running a full prefetch and
// gather on its own worker.
func (r *Runner) Fastmultigather(ctx context.Context, p FastmultigatherParams) (err error) {
	const op = "fastmultigather"

	ctx, end := r.startOp(ctx, op)
	defer func() { end(err) }()

	queryPaths, err := collection.ResolvePaths(p.Queries)
	if err != nil {
		return fmt.Errorf("queries: %w", err)
	}

	ids, err := Identities(queryPaths, p.Identity)
	if err != nil {
		return err
	}

	dir := p.OutputDir
	if dir == "" {
		dir = "."
	}

	err = os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("%w: output dir: %w", sink.ErrWrite, err)
	}

	database, err := r.loadCollection(ctx, "against", p.Against, p.Params)
	if err != nil {
		return err
	}

	streamed := newProgress(r.log(), sketchProgressEvery, "processed queries")
	src := collection.Stream(queryPaths, r.Loader, p.Selection)

	err = collection.ForEach(ctx, src, p.workers(), func(ctx context.Context, e collection.Entry) error {
		defer streamed.add(1)

		query, err := e.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			collection.Record(r.Diagnostics, e.Location, err)

			return nil
		}

		r.Diagnostics.AddLoaded(1)

		return r.gatherToFiles(ctx, op, e.Location, query, database, filepath.Join(dir, ids[e.Index]), p)
	})
	if err != nil {
		return err
	}

	return r.finish(p.Params)
}

// gatherToFiles runs one query against the resident database and writes its
// prefetch and gather tables under base.
func (r *Runner) gatherToFiles(
	ctx context.Context, op, location string, query *sketch.Sketch,
	database *collection.Collection, base string, p FastmultigatherParams,
) error {
	prefetchOut, err := sink.Open(base+prefetchSuffix, TablePrefetch, PrefetchColumns, 1)
	if err != nil {
		return err
	}

	gatherOut, err := sink.Open(base+gatherSuffix, TableGather, GatherColumns, 1)
	if err != nil {
		return closeSink(prefetchOut, err)
	}

	opts := gather.Options{
		ThresholdHashes: gather.ThresholdHashes(p.ThresholdBP, query.Scaled()),
		Workers:         1,
		Stats:           p.Stats,
		Logger:          r.log(),
	}

	err = r.gatherQuery(ctx, op, location, query, collection.InMemory(database), opts,
		emitter{r: r, out: gatherOut, table: TableGather},
		&emitter{r: r, out: prefetchOut, table: TablePrefetch},
	)

	return closeSink(prefetchOut, closeSink(gatherOut, err))
}
