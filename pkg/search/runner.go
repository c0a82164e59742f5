// Package search runs the fastsketch operations: pairwise, multisearch,
// manysearch, fastgather and fastmultigather.
//
// Every operation follows the same shape. Structural problems (unreadable
// path lists, empty collections, outputs that cannot be opened, identity
// collisions) abort before any worker starts. A fixed pool of workers then
// pulls independent units of work from a collection.Source and emits rows to
// a sink.Sink; per-unit problems are recorded in the run diagnostics and the
// unit is skipped.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/fastsketch/pkg/collection"
	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// ErrFailedPaths is returned after a completed run when some entries could not
// be loaded and failures were not allowed.
var ErrFailedPaths = errors.New("some paths failed to load")

// Progress intervals.
const (
	comparisonProgressEvery = 100_000
	sketchProgressEvery     = 1000
)

// DefaultThreshold is the default containment threshold of search operations.
const DefaultThreshold = 0.01

// Metrics receives run measurements. Comparison, skip and failure counts
// reach metrics through the Diagnostics observer instead.
// observability.SearchMetrics implements it.
type Metrics interface {
	Rows(ctx context.Context, table string, n int64)
	GatherSteps(ctx context.Context, n int64)
	UnitDuration(ctx context.Context, op string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Rows(context.Context, string, int64)                 {}
func (noopMetrics) GatherSteps(context.Context, int64)                  {}
func (noopMetrics) UnitDuration(context.Context, string, time.Duration) {}

// Runner executes operations. The zero value is usable once Loader is set.
type Runner struct {
	Loader      collection.Loader
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Metrics     Metrics
	Diagnostics *report.Diagnostics
}

// Params are shared by every operation.
type Params struct {
	Selection sketch.Selection
	// Workers is the resolved worker count.
	Workers int
	Stats   compare.Stats
	// AllowFailed turns load failures into warnings instead of an error.
	AllowFailed bool
	// Buffer is the sink channel capacity; 0 means Workers.
	Buffer int
}

func (p Params) workers() int { return max(p.Workers, 1) }

func (p Params) buffer() int {
	if p.Buffer > 0 {
		return p.Buffer
	}

	return p.workers()
}

func (r *Runner) log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer == nil {
		return noop.NewTracerProvider().Tracer("fastsketch")
	}

	return r.Tracer
}

func (r *Runner) metrics() Metrics {
	if r.Metrics == nil {
		return noopMetrics{}
	}

	return r.Metrics
}

// startOp opens the operation span. end records err on the span.
func (r *Runner) startOp(ctx context.Context, op string) (context.Context, func(err error)) {
	ctx, span := r.tracer().Start(ctx, "search."+op)
	started := time.Now()

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()

		r.log().Info("finished", "op", op, "elapsed", time.Since(started).Round(time.Millisecond),
			"compared", r.Diagnostics.Compared(), "rows", r.Diagnostics.Rows(),
			"skipped", r.Diagnostics.Skipped(), "failed", r.Diagnostics.Failed())
	}
}

// loadCollection resolves arg into paths and loads them resident.
func (r *Runner) loadCollection(ctx context.Context, role, arg string, p Params) (*collection.Collection, error) {
	ctx, span := r.tracer().Start(ctx, "collection.load", trace.WithAttributes(
		attribute.String("role", role),
		attribute.String("source", arg),
	))
	defer span.End()

	paths, err := collection.ResolvePaths(arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}

	r.log().Info("loading sketches", "role", role, "paths", len(paths), "selection", p.Selection.String())

	coll, err := collection.Load(ctx, r.Loader, paths, p.Selection, p.workers(), r.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}

	span.SetAttributes(attribute.Int("loaded", coll.Len()))
	r.log().Info("loaded sketches", "role", role, "loaded", coll.Len(), "paths", len(paths))

	return coll, nil
}

// finish turns load failures into ErrFailedPaths unless allowed.
func (r *Runner) finish(p Params) error {
	if skipped := r.Diagnostics.Skipped(); skipped > 0 {
		r.log().Warn("skipped entries with no compatible sketch", "count", skipped)
	}

	failed := r.Diagnostics.Failed()
	if failed == 0 {
		return nil
	}

	if p.AllowFailed {
		r.log().Warn("entries failed to load", "count", failed)

		return nil
	}

	return fmt.Errorf("%w: %d", ErrFailedPaths, failed)
}

// closeSink closes out and joins its error into err.
func closeSink(out *sink.Sink, err error) error {
	return errors.Join(err, out.Close())
}

// emitter wraps a sink with the row counters.
type emitter struct {
	r     *Runner
	out   *sink.Sink
	table string
}

func (e emitter) emit(ctx context.Context, row sink.Row) error {
	err := e.out.Emit(ctx, row)
	if err != nil {
		return err
	}

	e.r.Diagnostics.AddRows(1)
	e.r.metrics().Rows(ctx, e.table, 1)

	return nil
}

// progress logs every n-th increment.
type progress struct {
	log   *slog.Logger
	every int64
	msg   string
	count atomic.Int64
}

func newProgress(log *slog.Logger, every int64, msg string) *progress {
	return &progress{log: log, every: every, msg: msg}
}

func (p *progress) add(n int64) {
	after := p.count.Add(n)
	before := after - n

	if after/p.every != before/p.every {
		p.log.Info(p.msg, "count", after)
	}
}
