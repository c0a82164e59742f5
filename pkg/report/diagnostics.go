// Package report aggregates per-run diagnostics (loaded, compared, skipped and
// failed entries) and renders the end-of-run summary.
package report

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultEntryLimit caps the diagnostic entries kept for the summary.
const DefaultEntryLimit = 20

// Kind classifies a diagnostic entry.
type Kind string

// Diagnostic kinds.
const (
	// KindSkipped marks an entry that was readable but unusable, e.g. no
	// sketch matched the selection or the sketch was incompatible.
	KindSkipped Kind = "skipped"
	// KindFailed marks an entry that could not be loaded.
	KindFailed Kind = "failed"
)

// Entry is one recorded diagnostic.
type Entry struct {
	Kind     Kind   `yaml:"kind"`
	Location string `yaml:"location"`
	Reason   string `yaml:"reason"`
}

// Observer is notified of every skip, failure and comparison batch, e.g. to
// count them in metrics.
type Observer interface {
	EntrySkipped()
	EntryFailed()
	EntriesCompared(n int64)
}

// Diagnostics accumulates run counters. All methods are safe for concurrent
// use and are no-ops on a nil receiver.
type Diagnostics struct {
	logger   *slog.Logger
	observer Observer
	limit    int

	loaded   atomic.Int64
	compared atomic.Int64
	rows     atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64

	mu      sync.Mutex
	entries []Entry
}

// NewDiagnostics creates a Diagnostics logging warnings to logger and keeping
// at most limit entries (DefaultEntryLimit when limit <= 0).
func NewDiagnostics(logger *slog.Logger, limit int) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}

	if limit <= 0 {
		limit = DefaultEntryLimit
	}

	return &Diagnostics{logger: logger, limit: limit}
}

// SetObserver installs obs. It must be called before the run starts.
func (d *Diagnostics) SetObserver(obs Observer) {
	if d == nil {
		return
	}

	d.observer = obs
}

// Skip records an unusable entry.
func (d *Diagnostics) Skip(location string, err error) {
	if d == nil {
		return
	}

	d.skipped.Add(1)
	d.record(KindSkipped, location, err)

	if d.observer != nil {
		d.observer.EntrySkipped()
	}

	d.logger.Warn("skipping entry", "location", location, "reason", reason(err))
}

// Fail records an entry that could not be loaded.
func (d *Diagnostics) Fail(location string, err error) {
	if d == nil {
		return
	}

	d.failed.Add(1)
	d.record(KindFailed, location, err)

	if d.observer != nil {
		d.observer.EntryFailed()
	}

	d.logger.Warn("could not load entry", "location", location, "error", reason(err))
}

func (d *Diagnostics) record(kind Kind, location string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.entries) >= d.limit {
		return
	}

	d.entries = append(d.entries, Entry{Kind: kind, Location: location, Reason: reason(err)})
}

func reason(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// AddLoaded counts successfully loaded sketches.
func (d *Diagnostics) AddLoaded(n int64) {
	if d != nil {
		d.loaded.Add(n)
	}
}

// AddCompared counts performed comparisons.
func (d *Diagnostics) AddCompared(n int64) {
	if d == nil || n == 0 {
		return
	}

	d.compared.Add(n)

	if d.observer != nil {
		d.observer.EntriesCompared(n)
	}
}

// AddRows counts emitted output rows.
func (d *Diagnostics) AddRows(n int64) {
	if d != nil {
		d.rows.Add(n)
	}
}

// Loaded returns the number of loaded sketches.
func (d *Diagnostics) Loaded() int64 {
	if d == nil {
		return 0
	}

	return d.loaded.Load()
}

// Compared returns the number of comparisons.
func (d *Diagnostics) Compared() int64 {
	if d == nil {
		return 0
	}

	return d.compared.Load()
}

// Rows returns the number of emitted rows.
func (d *Diagnostics) Rows() int64 {
	if d == nil {
		return 0
	}

	return d.rows.Load()
}

// Skipped returns the number of skipped entries.
func (d *Diagnostics) Skipped() int64 {
	if d == nil {
		return 0
	}

	return d.skipped.Load()
}

// Failed returns the number of failed entries.
func (d *Diagnostics) Failed() int64 {
	if d == nil {
		return 0
	}

	return d.failed.Load()
}

// Entries returns a copy of the recorded entries in recording order.
func (d *Diagnostics) Entries() []Entry {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Entry, len(d.entries))
	copy(out, d.entries)

	return out
}
