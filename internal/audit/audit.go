// Package audit mirrors completed rounds and detected events into a
// SQLite database for after-the-fact inspection. It is write-only from
// the scheduler's point of view: the tables exist for an operator to
// query directly, the running process never reads them back. Schema
// and upsert idioms follow the migration-strings-plus-Exec pattern of
// the teacher's sqlite package.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/netiads/iads/internal/em"
)

// Migrations returns the audit schema's migration statements, one
// statement per string so SQLite can execute them individually.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at      TEXT NOT NULL,
			duration_ms     INTEGER NOT NULL,
			strategy        TEXT NOT NULL,
			tasks_selected  INTEGER NOT NULL,
			tasks_failed    INTEGER NOT NULL,
			reward          REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			entity_id   TEXT NOT NULL,
			metric      TEXT NOT NULL,
			type        TEXT NOT NULL,
			severity    REAL NOT NULL,
			detected_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_detected_at ON events(detected_at)`,
	}
}

// DB wraps a SQLite connection dedicated to the audit trail.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and runs
// the audit migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	for _, stmt := range Migrations() {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("audit: migrate: %w", err)
		}
	}
	return &DB{db: conn}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// RoundRecord is one completed round, as handed to RecordRound.
type RoundRecord struct {
	StartedAt     time.Time
	Duration      time.Duration
	Strategy      string
	TasksSelected int
	TasksFailed   int
	Reward        float64
}

// RecordRound inserts one row per completed round.
func (d *DB) RecordRound(r RoundRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO rounds (started_at, duration_ms, strategy, tasks_selected, tasks_failed, reward)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.StartedAt.Format(time.RFC3339Nano), r.Duration.Milliseconds(), r.Strategy, r.TasksSelected, r.TasksFailed, r.Reward)
	return err
}

// RecordEvents inserts one row per detected event.
func (d *DB) RecordEvents(events []em.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO events (id, entity_id, metric, type, severity, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.ID, string(ev.EntityID), string(ev.Metric), ev.Type, ev.Severity, ev.Timestamp.Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RoundCount returns the number of rounds recorded, for smoke-testing
// that the mirror is actually receiving writes.
func (d *DB) RoundCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM rounds`).Scan(&n)
	return n, err
}

// EventCountByType returns the number of recorded events per event
// type, for an operator spot-checking the mirror.
func (d *DB) EventCountByType() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
