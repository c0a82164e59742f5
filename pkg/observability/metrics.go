package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricComparisons    = "fastsketch.comparisons.total"
	metricRows           = "fastsketch.rows.total"
	metricEntriesSkipped = "fastsketch.entries.skipped.total"
	metricEntriesFailed  = "fastsketch.entries.failed.total"
	metricGatherSteps    = "fastsketch.gather.steps.total"
	metricUnitDuration   = "fastsketch.unit.duration.seconds"

	attrOp    = "op"
	attrTable = "table"
)

// durationBucketBoundaries covers 1ms to 600s: a single subject comparison
// at the low end, a whole-database gather at the high end.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// SearchMetrics holds the OTel instruments of a search run. It records run
// measurements for the search package and diagnostics events for the report
// package. A nil *SearchMetrics records nothing.
type SearchMetrics struct {
	comparisons    metric.Int64Counter
	rows           metric.Int64Counter
	entriesSkipped metric.Int64Counter
	entriesFailed  metric.Int64Counter
	gatherSteps    metric.Int64Counter
	unitDuration   metric.Float64Histogram
}

// NewSearchMetrics creates the search instruments from the given meter.
func NewSearchMetrics(mt metric.Meter) (*SearchMetrics, error) {
	comparisons, err := mt.Int64Counter(metricComparisons,
		metric.WithDescription("Sketch comparisons performed"),
		metric.WithUnit("{comparison}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricComparisons, err)
	}

	rows, err := mt.Int64Counter(metricRows,
		metric.WithDescription("Result rows written"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRows, err)
	}

	skipped, err := mt.Int64Counter(metricEntriesSkipped,
		metric.WithDescription("Entries skipped for lack of a compatible sketch"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEntriesSkipped, err)
	}

	failed, err := mt.Int64Counter(metricEntriesFailed,
		metric.WithDescription("Entries that could not be loaded"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEntriesFailed, err)
	}

	steps, err := mt.Int64Counter(metricGatherSteps,
		metric.WithDescription("Gather steps selected"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGatherSteps, err)
	}

	duration, err := mt.Float64Histogram(metricUnitDuration,
		metric.WithDescription("Duration of one unit of work in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnitDuration, err)
	}

	return &SearchMetrics{
		comparisons:    comparisons,
		rows:           rows,
		entriesSkipped: skipped,
		entriesFailed:  failed,
		gatherSteps:    steps,
		unitDuration:   duration,
	}, nil
}

// Rows records n rows written to table.
func (sm *SearchMetrics) Rows(ctx context.Context, table string, n int64) {
	if sm == nil {
		return
	}

	sm.rows.Add(ctx, n, metric.WithAttributes(attribute.String(attrTable, table)))
}

// GatherSteps records n selected gather steps.
func (sm *SearchMetrics) GatherSteps(ctx context.Context, n int64) {
	if sm == nil {
		return
	}

	sm.gatherSteps.Add(ctx, n)
}

// UnitDuration records how long one unit of op took.
func (sm *SearchMetrics) UnitDuration(ctx context.Context, op string, d time.Duration) {
	if sm == nil {
		return
	}

	sm.unitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrOp, op)))
}

// EntriesCompared records n comparisons.
func (sm *SearchMetrics) EntriesCompared(n int64) {
	if sm == nil {
		return
	}

	sm.comparisons.Add(context.Background(), n)
}

// EntrySkipped records one skipped entry.
func (sm *SearchMetrics) EntrySkipped() {
	if sm == nil {
		return
	}

	sm.entriesSkipped.Add(context.Background(), 1)
}

// EntryFailed records one failed entry.
func (sm *SearchMetrics) EntryFailed() {
	if sm == nil {
		return
	}

	sm.entriesFailed.Add(context.Background(), 1)
}
