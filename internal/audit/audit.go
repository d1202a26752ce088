// Package audit persists RunRecords — one row per compile or save attempt —
// to a per-project SQLite database. Audit rows are pure observability: they
// participate in no hash and are never read by the runtime Loader. History
// returns a unit's rows; the `status` and `check` commands do not read
// them.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord describes one orchestrator operation against one unit.
type RunRecord struct {
	UnitID    string
	Phase     string // scan|compile|test|save|diff|status|check
	Outcome   string // ok|error
	Detail    string
	SpecHash  string
	ChkHash   string
	Duration  time.Duration
	Timestamp time.Time
}

// DB wraps the audit SQLite database.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the audit database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	d := &DB{sql: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS run_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT,
			spec_hash TEXT,
			chk_hash TEXT,
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_records_unit ON run_records(unit_id);
	`)
	if err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// Record appends a RunRecord.
func (d *DB) Record(r RunRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := d.sql.Exec(
		`INSERT INTO run_records (unit_id, phase, outcome, detail, spec_hash, chk_hash, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UnitID, r.Phase, r.Outcome, r.Detail, r.SpecHash, r.ChkHash,
		r.Duration.Milliseconds(), r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// History returns the most recent records for a unit, newest first.
func (d *DB) History(unitID string, limit int) ([]RunRecord, error) {
	rows, err := d.sql.Query(
		`SELECT unit_id, phase, outcome, detail, spec_hash, chk_hash, duration_ms, created_at
		 FROM run_records WHERE unit_id = ? ORDER BY id DESC LIMIT ?`,
		unitID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: history: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var durationMS int64
		if err := rows.Scan(&r.UnitID, &r.Phase, &r.Outcome, &r.Detail, &r.SpecHash, &r.ChkHash, &durationMS, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.sql.Close()
}
