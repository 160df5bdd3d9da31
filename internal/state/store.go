// Package state persists trace runs to SQLite: the writer index as built
// for the run and the shaped lineage rows, so past traces can be
// inspected without re-scanning the corpus.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/TongWu/tabletracer/internal/extract"
	"github.com/TongWu/tabletracer/internal/lineage"
)

//go:embed schema.sql
var schemaSQL string

// layerSep joins layer names inside one column. Unit separator cannot
// occur in a canonical table name.
const layerSep = "\x1f"

// Store wraps the SQLite connection. Use ":memory:" as the path for an
// in-memory store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun records a new trace run over the given corpus root and
// returns its id.
func (s *Store) BeginRun(ctx context.Context, root string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("state database not opened")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (root, started_at) VALUES (?, ?)`,
		root, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// WriterEntry is one (table, writer) pair of the built index.
type WriterEntry struct {
	Table  string
	Writer extract.Writer
}

// SaveWriters stores the writer index snapshot for a run.
func (s *Store) SaveWriters(ctx context.Context, runID int64, entries []WriterEntry) error {
	if s.db == nil {
		return fmt.Errorf("state database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO writers (run_id, table_name, file_path, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare writer insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, e.Table, e.Writer.Path, string(e.Writer.Kind)); err != nil {
			return fmt.Errorf("failed to insert writer for %s: %w", e.Table, err)
		}
	}
	return tx.Commit()
}

// SaveRows stores the shaped lineage rows of a run in emission order,
// along with the set of targets whose enumeration was truncated.
func (s *Store) SaveRows(ctx context.Context, runID int64, rows []lineage.Row, truncated []string) error {
	if s.db == nil {
		return fmt.Errorf("state database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lineage_rows (run_id, position, target_table, layers, source_table) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range rows {
		layers := strings.Join(r.Layers, layerSep)
		if _, err := stmt.ExecContext(ctx, runID, i, r.Target, layers, r.Source); err != nil {
			return fmt.Errorf("failed to insert lineage row %d: %w", i, err)
		}
	}

	for _, target := range truncated {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO truncations (run_id, target_table) VALUES (?, ?)`,
			runID, target); err != nil {
			return fmt.Errorf("failed to record truncation for %s: %w", target, err)
		}
	}
	return tx.Commit()
}

// RunRows loads the lineage rows of a run in their original order.
func (s *Store) RunRows(ctx context.Context, runID int64) ([]lineage.Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_table, layers, source_table FROM lineage_rows WHERE run_id = ? ORDER BY position`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []lineage.Row
	for rows.Next() {
		var target, layers, source string
		if err := rows.Scan(&target, &layers, &source); err != nil {
			return nil, fmt.Errorf("failed to scan lineage row: %w", err)
		}
		r := lineage.Row{Target: target, Source: source}
		if layers != "" {
			r.Layers = strings.Split(layers, layerSep)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WritersForRun loads the writer index snapshot of a run.
func (s *Store) WritersForRun(ctx context.Context, runID int64) ([]WriterEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, file_path, kind FROM writers WHERE run_id = ? ORDER BY table_name, file_path`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query writers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []WriterEntry
	for rows.Next() {
		var e WriterEntry
		var kind string
		if err := rows.Scan(&e.Table, &e.Writer.Path, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan writer: %w", err)
		}
		e.Writer.Kind = extract.Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TruncatedTargets returns the targets whose enumeration hit the budget
// during a run.
func (s *Store) TruncatedTargets(ctx context.Context, runID int64) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_table FROM truncations WHERE run_id = ? ORDER BY target_table`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query truncations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan truncation: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
