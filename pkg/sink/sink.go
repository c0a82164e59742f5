// Package sink serializes result rows from many producers into one output.
//
// A Sink owns a single writer goroutine fed by a bounded channel. Producers
// call Emit from any goroutine; rows are never interleaved and each row is
// handed to the Backend complete, in one call. Row order across producers is
// not guaranteed: rows from a single producer keep their emission order, but
// rows from different producers interleave in arrival order.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrWrite wraps every backend failure. It is sticky: once a write fails,
	// every later Emit and Close returns it.
	ErrWrite = errors.New("write results")

	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("sink closed")

	// ErrRowWidth is returned for rows whose width differs from the header.
	ErrRowWidth = errors.New("row width does not match columns")
)

// Row is one rendered output record.
type Row []string

// Backend persists rows. Calls come from a single goroutine.
type Backend interface {
	WriteHeader(columns []string) error
	WriteRow(row Row) error
	Close() error
}

// Sink is safe for concurrent use.
type Sink struct {
	backend Backend
	width   int

	rows chan Row
	done chan struct{}

	// mu guards closed and the rows channel against send-after-close.
	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error
}

// New writes the header and starts the writer goroutine. buffer is the
// channel capacity; values below 1 become 1.
func New(backend Backend, columns []string, buffer int) (*Sink, error) {
	err := backend.WriteHeader(columns)
	if err != nil {
		closeErr := backend.Close()

		return nil, errors.Join(fmt.Errorf("%w: header: %w", ErrWrite, err), closeErr)
	}

	s := &Sink{
		backend: backend,
		width:   len(columns),
		rows:    make(chan Row, max(buffer, 1)),
		done:    make(chan struct{}),
	}

	go s.run()

	return s, nil
}

func (s *Sink) run() {
	defer close(s.done)

	for row := range s.rows {
		if s.Err() != nil {
			// Keep draining so producers never block on a dead writer.
			continue
		}

		err := s.backend.WriteRow(row)
		if err != nil {
			s.setErr(fmt.Errorf("%w: %w", ErrWrite, err))
		}
	}
}

func (s *Sink) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.err == nil {
		s.err = err
	}
}

// Err returns the first write error, if any.
func (s *Sink) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.err
}

// Emit queues row for writing. It blocks while the buffer is full and fails
// fast once a write has failed or ctx is done.
func (s *Sink) Emit(ctx context.Context, row Row) error {
	if len(row) != s.width {
		return fmt.Errorf("%w: got %d, want %d", ErrRowWidth, len(row), s.width)
	}

	err := s.Err()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.rows <- row:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued rows, closes the backend and returns the first error.
// It is idempotent.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.rows)
		s.mu.Unlock()

		<-s.done

		err := s.backend.Close()
		if err != nil {
			s.setErr(fmt.Errorf("%w: close: %w", ErrWrite, err))
		}

		s.closeErr = s.Err()
	})

	return s.closeErr
}
