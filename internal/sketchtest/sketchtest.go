// Package sketchtest provides in-memory sketch fixtures for tests.
package sketchtest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Ksize is the k-mer size of sketches built by New.
const Ksize = 31

// New builds a scaled=1 sketch named name over hashes.
func New(name string, hashes ...uint64) *sketch.Sketch {
	return NewWith(name, sketch.Params{Ksize: Ksize, Scaled: 1}, hashes...)
}

// NewWith builds a sketch with explicit params. A zero Seed becomes
// sketch.DefaultSeed, as in a signature file without a seed field.
func NewWith(name string, params sketch.Params, hashes ...uint64) *sketch.Sketch {
	if params.Seed == 0 {
		params.Seed = sketch.DefaultSeed
	}

	return sketch.New(name, name+".fa", "", params, hashes)
}

// Range returns the hashes lo..hi inclusive.
func Range(lo, hi uint64) []uint64 {
	out := make([]uint64, 0, hi-lo+1)
	for h := lo; h <= hi; h++ {
		out = append(out, h)
	}

	return out
}

// MapLoader serves sketches from memory, keyed by path. Unknown paths fail
// with os.ErrNotExist. It is safe for concurrent use.
type MapLoader struct {
	mu    sync.RWMutex
	files map[string][]*sketch.Sketch
	errs  map[string]error
	calls atomic.Int64
}

// NewMapLoader creates an empty MapLoader.
func NewMapLoader() *MapLoader {
	return &MapLoader{
		files: make(map[string][]*sketch.Sketch),
		errs:  make(map[string]error),
	}
}

// Add registers the sketches stored at path.
func (l *MapLoader) Add(path string, sketches ...*sketch.Sketch) *MapLoader {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.files[path] = sketches

	return l
}

// Fail makes loading path return err.
func (l *MapLoader) Fail(path string, err error) *MapLoader {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errs[path] = err

	return l
}

// Calls returns the number of Load calls so far.
func (l *MapLoader) Calls() int64 { return l.calls.Load() }

// Load implements collection.Loader.
func (l *MapLoader) Load(ctx context.Context, path string) ([]*sketch.Sketch, error) {
	l.calls.Add(1)

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if err, ok := l.errs[path]; ok {
		return nil, err
	}

	sketches, ok := l.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}

	return sketches, nil
}
