// Package history records pipeline runs in a SQLite database for audit
// and status reporting. A run row is written whether the run committed or
// failed; the error column carries the failure reason.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type Run struct {
	ID         string          `json:"id"`
	Source     string          `json:"source_dataset"`
	Output     string          `json:"output_dataset,omitempty"`
	Operations json.RawMessage `json:"operations"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	RowsIn     int             `json:"rows_in"`
	RowsOut    int             `json:"rows_out"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

var ErrNotFound = errors.New("run not found")

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		output TEXT,
		operations TEXT,
		status TEXT NOT NULL,
		error TEXT,
		rows_in INTEGER,
		rows_out INTEGER,
		created_at DATETIME
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Record(r Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, source, output, operations, status, error, rows_in, rows_out, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Output, string(r.Operations), r.Status, r.Error, r.RowsIn, r.RowsOut, r.CreatedAt)
	return err
}

func (s *Store) List() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, source, output, operations, status, error, rows_in, rows_out, created_at
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Get(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, source, output, operations, status, error, rows_in, rows_out, created_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func scanRun(scan func(...any) error) (Run, error) {
	var r Run
	var ops string
	err := scan(&r.ID, &r.Source, &r.Output, &ops, &r.Status, &r.Error, &r.RowsIn, &r.RowsOut, &r.CreatedAt)
	if err != nil {
		return Run{}, err
	}
	if ops != "" {
		r.Operations = json.RawMessage(ops)
	}
	return r, nil
}
