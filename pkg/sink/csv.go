package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSV writes RFC 4180 records. Every row is rendered into memory first and
// written with a single Write call.
type CSV struct {
	w      io.Writer
	closer io.Closer

	buf bytes.Buffer
	enc *csv.Writer
}

// NewCSV writes to w. w is not closed by Close.
func NewCSV(w io.Writer) *CSV {
	c := &CSV{w: w}
	c.enc = csv.NewWriter(&c.buf)

	return c
}

// CreateCSV creates (or truncates) path and writes to it. Close closes the file.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	c := NewCSV(f)
	c.closer = f

	return c, nil
}

// WriteHeader implements Backend.
func (c *CSV) WriteHeader(columns []string) error {
	return c.write(columns)
}

// WriteRow implements Backend.
func (c *CSV) WriteRow(row Row) error {
	return c.write(row)
}

func (c *CSV) write(record []string) error {
	c.buf.Reset()

	err := c.enc.Write(record)
	if err != nil {
		return err
	}

	c.enc.Flush()

	err = c.enc.Error()
	if err != nil {
		return err
	}

	_, err = c.w.Write(c.buf.Bytes())

	return err
}

// Close implements Backend.
func (c *CSV) Close() error {
	if c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// Open picks a backend for path and returns a started Sink: "" and "-" write
// CSV to stdout, *.sqlite and *.db write table into a SQLite database, any
// other path is created as a CSV file.
func Open(path, table string, columns []string, buffer int) (*Sink, error) {
	var (
		backend Backend
		err     error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); {
	case path == "" || path == "-":
		backend = NewCSV(os.Stdout)
	case ext == ".sqlite" || ext == ".db":
		backend, err = NewSQLite(path, table)
	default:
		backend, err = CreateCSV(path)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: open output: %w", ErrWrite, err)
	}

	return New(backend, columns, buffer)
}
