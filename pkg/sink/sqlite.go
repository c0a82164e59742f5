package sink

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver.
)

// sqliteBatch is the number of rows committed per transaction.
const sqliteBatch = 1000

// sqliteBusyTimeoutMS bounds how long a writer waits for another connection
// to release the database, such as a second sink writing another table of
// the same file.
const sqliteBusyTimeoutMS = 5000

// sqliteDSN opens path with a busy timeout. Transactions take the write lock
// on BEGIN so two writers queue instead of deadlocking on a lock upgrade.
func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_txlock=immediate", path, sqliteBusyTimeoutMS)
}

// SQLite stores rows in a table of TEXT columns. Rows are committed in
// batched transactions, so after a crash a row is either fully present or
// absent.
type SQLite struct {
	db    *sql.DB
	table string

	columns []string
	insert  string
	pending []Row
}

// NewSQLite opens (or creates) the database at path. table is created on
// WriteHeader and replaced if it already exists. Several sinks may write
// different tables of one file concurrently.
func NewSQLite(path, table string) (*SQLite, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// A single connection keeps every statement on the same database handle.
	db.SetMaxOpenConns(1)

	return &SQLite{db: db, table: table}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WriteHeader implements Backend.
func (s *SQLite) WriteHeader(columns []string) error {
	s.columns = columns

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))

	for i, col := range columns {
		defs[i] = quoteIdent(col) + " TEXT"
		marks[i] = "?"
	}

	table := quoteIdent(s.table)

	_, err := s.db.Exec("DROP TABLE IF EXISTS " + table)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}

	_, err = s.db.Exec("CREATE TABLE " + table + " (" + strings.Join(defs, ", ") + ")")
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	s.insert = "INSERT INTO " + table + " VALUES (" + strings.Join(marks, ", ") + ")"

	return nil
}

// WriteRow implements Backend.
func (s *SQLite) WriteRow(row Row) error {
	s.pending = append(s.pending, row)
	if len(s.pending) < sqliteBatch {
		return nil
	}

	return s.flush()
}

func (s *SQLite) flush() (err error) {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.Prepare(s.insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))

	for _, row := range s.pending {
		for i, v := range row {
			args[i] = v
		}

		_, err = stmt.Exec(args...)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", s.table, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.pending = s.pending[:0]

	return nil
}

// Close implements Backend. It commits pending rows.
func (s *SQLite) Close() error {
	return errors.Join(s.flush(), s.db.Close())
}
