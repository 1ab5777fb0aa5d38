// Package tracedb stores trace records in a local SQLite database.
package tracedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/types"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("trace database closed")

const schema = `CREATE TABLE IF NOT EXISTS records (
	run_id   TEXT    NOT NULL,
	seq      INTEGER NOT NULL,
	file_off INTEGER NOT NULL,
	data     BLOB    NOT NULL,
	kind     TEXT    NOT NULL,
	category TEXT    NOT NULL,
	text     TEXT    NOT NULL,
	x        INTEGER NOT NULL,
	y        INTEGER NOT NULL,
	layer    INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
)`

const insertRecord = `INSERT OR REPLACE INTO records
	(run_id, seq, file_off, data, kind, category, text, x, y, layer)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// DB is a SQLite-backed policy.Sink.
type DB struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// WriteRecords inserts a batch in one transaction. Re-sent records replace
// the earlier row for the same run and sequence number.
func (d *DB) WriteRecords(ctx context.Context, records []*types.TraceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Seq, r.Offset, r.Data, r.Kind, r.Category, r.Text,
			r.Position.X, r.Position.Y, r.Layer); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting record %d: %w", r.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// Count returns the number of stored records for runID.
func (d *DB) Count(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Categories returns record counts per decode category for runID.
func (d *DB) Categories(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM records WHERE run_id = ? GROUP BY category", runID)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int64)
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out[category] = n
	}
	return out, rows.Err()
}

// Records returns the stored records for runID in sequence order.
// A limit of zero or less returns every record.
func (d *DB) Records(ctx context.Context, runID string, limit int) ([]*types.TraceRecord, error) {
	query := `SELECT run_id, seq, file_off, data, kind, category, text, x, y, layer
		FROM records WHERE run_id = ? ORDER BY seq`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.TraceRecord
	for rows.Next() {
		var r types.TraceRecord
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Offset, &r.Data, &r.Kind, &r.Category, &r.Text,
			&r.Position.X, &r.Position.Y, &r.Layer); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Close closes the database. Further writes return ErrClosed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

var _ policy.Sink = (*DB)(nil)
