// Package collection loads sketch collections from path lists and hands
// their entries to worker pools through the Source abstraction.
package collection

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

var (
	// ErrLoad is returned when a path is missing, unreadable or undecodable.
	ErrLoad = errors.New("load sketch")

	// ErrEmptyInput is returned when a path list or a loaded collection has
	// no usable entry.
	ErrEmptyInput = errors.New("no usable entries")
)

// Loader reads every sketch stored at a path.
type Loader interface {
	Load(ctx context.Context, path string) ([]*sketch.Sketch, error)
}

// Collection is an ordered, read-only set of sketches with the location each
// one was loaded from. It is safe to share across goroutines.
type Collection struct {
	sketches  []*sketch.Sketch
	locations []string
}

// New builds a Collection. locations must be parallel to sketches.
func New(sketches []*sketch.Sketch, locations []string) *Collection {
	return &Collection{sketches: sketches, locations: locations}
}

// Len returns the number of sketches.
func (c *Collection) Len() int { return len(c.sketches) }

// Sketch returns the i-th sketch.
func (c *Collection) Sketch(i int) *sketch.Sketch { return c.sketches[i] }

// Location returns where the i-th sketch was loaded from.
func (c *Collection) Location(i int) string { return c.locations[i] }

// Sketches returns the sketches. Callers must not modify the slice.
func (c *Collection) Sketches() []*sketch.Sketch { return c.sketches }

// LoadOne loads path and picks the sketch matching sel. Load problems are
// wrapped in ErrLoad, selection misses in sketch.ErrNoCompatible.
func LoadOne(ctx context.Context, loader Loader, path string, sel sketch.Selection) (*sketch.Sketch, error) {
	sketches, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	sk, err := sel.Select(sketches)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sk, nil
}

// Record files an entry error with diag as a failure (ErrLoad) or a skip
// (anything else).
func Record(diag *report.Diagnostics, location string, err error) {
	if errors.Is(err, ErrLoad) {
		diag.Fail(location, err)

		return
	}

	diag.Skip(location, err)
}

// Load loads every path in parallel with at most workers goroutines and keeps
// the selected sketch of each, in path order. Unloadable and unselectable
// paths are recorded in diag and left out. ErrEmptyInput is returned when
// nothing could be loaded.
func Load(
	ctx context.Context, loader Loader, paths []string, sel sketch.Selection, workers int, diag *report.Diagnostics,
) (*Collection, error) {
	loaded := make([]*sketch.Sketch, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, path := range paths {
		g.Go(func() error {
			sk, err := LoadOne(gctx, loader, path, sel)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				Record(diag, path, err)

				return nil
			}

			loaded[i] = sk

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	sketches := make([]*sketch.Sketch, 0, len(paths))
	locations := make([]string, 0, len(paths))

	for i, sk := range loaded {
		if sk == nil {
			continue
		}

		sketches = append(sketches, sk)
		locations = append(locations, paths[i])
	}

	if len(sketches) == 0 {
		return nil, fmt.Errorf("%w: none of %d paths loaded", ErrEmptyInput, len(paths))
	}

	diag.AddLoaded(int64(len(sketches)))

	return New(sketches, locations), nil
}
