package collection

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Entry is one unit of work handed out by a Source.
type Entry struct {
	// Index is the position of the entry in its source, stable across runs.
	Index    int
	Location string
	// Streamed is set when Load reads from storage rather than memory.
	Streamed bool

	load func(ctx context.Context) (*sketch.Sketch, error)
}

// Load returns the entry's sketch, reading it from storage for streamed
// sources. Errors follow LoadOne.
func (e Entry) Load(ctx context.Context) (*sketch.Sketch, error) {
	return e.load(ctx)
}

// Source hands out entries to concurrent workers. Next is safe for
// concurrent use; every entry is returned exactly once.
type Source interface {
	Next() (Entry, bool)
	Len() int
}

type cursor struct {
	mu    sync.Mutex
	next  int
	n     int
	entry func(i int) Entry
}

func newCursor(n int, entry func(i int) Entry) *cursor {
	return &cursor{n: n, entry: entry}
}

func (c *cursor) Next() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next >= c.n {
		return Entry{}, false
	}

	e := c.entry(c.next)
	c.next++

	return e, true
}

func (c *cursor) Len() int { return c.n }

// InMemory returns a Source over the resident sketches of c.
func InMemory(c *Collection) Source {
	return newCursor(c.Len(), func(i int) Entry {
		sk := c.Sketch(i)

		return Entry{
			Index:    i,
			Location: c.Location(i),
			load:     func(context.Context) (*sketch.Sketch, error) { return sk, nil },
		}
	})
}

// Stream returns a Source that loads each path only when its entry is
// loaded, so at most one sketch per worker is resident.
func Stream(paths []string, loader Loader, sel sketch.Selection) Source {
	return newCursor(len(paths), func(i int) Entry {
		path := paths[i]

		return Entry{
			Index:    i,
			Location: path,
			Streamed: true,
			load: func(ctx context.Context) (*sketch.Sketch, error) {
				return LoadOne(ctx, loader, path, sel)
			},
		}
	})
}

// ForEach runs fn on every entry of src with workers goroutines. The first
// error returned by fn cancels the remaining work and is returned.
func ForEach(ctx context.Context, src Source, workers int, fn func(ctx context.Context, e Entry) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for range max(workers, 1) {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}

				e, ok := src.Next()
				if !ok {
					return nil
				}

				err := fn(gctx, e)
				if err != nil {
					return err
				}
			}
		})
	}

	return g.Wait()
}
