package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/gather"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// DefaultThresholdBP is the default gather threshold in base pairs.
const DefaultThresholdBP = 50_000

// ErrQuery is returned when the fastgather query cannot be used.
var ErrQuery = errors.New("unusable query")

// FastgatherParams configures Fastgather.
type FastgatherParams struct {
	Params

	// Query is a single sketch file.
	Query   string
	Against string
	// Output receives the gather table; "" or "-" writes to stdout.
	Output string
	// OutputPrefetch optionally receives the prefetch table.
	OutputPrefetch string
	// ThresholdBP is the minimum overlap in base pairs.
	ThresholdBP uint64
}

// Fastgather runs prefetch over the streamed database, loading and filtering
// candidates in parallel, then runs the greedy cover on the survivors.
func (r *Runner) Fastgather(ctx context.Context, p FastgatherParams) (err error) {
	const op = "fastgather"

	ctx, end := r.startOp(ctx, op)
	defer func() { end(err) }()

	query, err := collection.LoadOne(ctx, r.Loader, p.Query, p.Selection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}

	r.Diagnostics.AddLoaded(1)

	againstPaths, err := collection.ResolvePaths(p.Against)
	if err != nil {
		return fmt.Errorf("against: %w", err)
	}

	gatherOut, err := sink.Open(p.Output, TableGather, GatherColumns, p.buffer())
	if err != nil {
		return err
	}

	var prefetchOut *sink.Sink

	if p.OutputPrefetch != "" {
		prefetchOut, err = sink.Open(p.OutputPrefetch, TablePrefetch, PrefetchColumns, p.buffer())
		if err != nil {
			return closeSink(gatherOut, err)
		}
	}

	err = r.gatherQuery(ctx, op, p.Query, query, collection.Stream(againstPaths, r.Loader, p.Selection),
		gather.Options{
			ThresholdHashes: gather.ThresholdHashes(p.ThresholdBP, query.Scaled()),
			Workers:         p.workers(),
			Stats:           p.Stats,
			Logger:          r.log(),
		},
		emitter{r: r, out: gatherOut, table: TableGather},
		prefetchEmitter(r, prefetchOut),
	)

	err = closeSink(gatherOut, err)
	if prefetchOut != nil {
		err = closeSink(prefetchOut, err)
	}

	if err != nil {
		return err
	}

	return r.finish(p.Params)
}

func prefetchEmitter(r *Runner, out *sink.Sink) *emitter {
	if out == nil {
		return nil
	}

	return &emitter{r: r, out: out, table: TablePrefetch}
}

// gatherQuery runs prefetch and gather for one query and emits both tables.
// prefetchOut may be nil.
func (r *Runner) gatherQuery(
	ctx context.Context, op, location string, query *sketch.Sketch, src collection.Source,
	opts gather.Options, gatherOut emitter, prefetchOut *emitter,
) error {
	ctx, span := r.tracer().Start(ctx, "gather.query", trace.WithAttributes(
		attribute.String("query", location),
		attribute.Int("query.hashes", query.Len()),
	))
	defer span.End()

	started := time.Now()
	defer func() { r.metrics().UnitDuration(ctx, op, time.Since(started)) }()

	candidates, err := gather.Prefetch(ctx, query, src, opts, r.Diagnostics)
	if err != nil {
		return err
	}

	r.log().Info("prefetch done", "query", location, "candidates", len(candidates),
		"threshold_hashes", opts.ThresholdHashes)

	if prefetchOut != nil {
		for _, c := range candidates {
			err = prefetchOut.emit(ctx, prefetchRow(location, c))
			if err != nil {
				return err
			}
		}
	}

	if len(candidates) == 0 {
		r.log().Warn("no matches above threshold", "query", location)

		return nil
	}

	result, err := gather.Run(ctx, query, candidates, opts)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("gather.steps", len(result.Steps)))
	r.metrics().GatherSteps(ctx, int64(len(result.Steps)))

	for _, step := range result.Steps {
		err = gatherOut.emit(ctx, gatherRow(location, query, step))
		if err != nil {
			return err
		}
	}

	return nil
}
