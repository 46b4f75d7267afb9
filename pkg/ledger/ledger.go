// Package ledger records batch runs, per-video outcomes and the winning
// slopes in a project-level SQLite file.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"climbrate/pkg/results"
)

// Video statuses
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	config_path TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS videos (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	path        TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS videos_path ON videos(path);
CREATE TABLE IF NOT EXISTS slopes (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	video       TEXT NOT NULL,
	vial_id     TEXT NOT NULL,
	first_frame INTEGER NOT NULL,
	last_frame  INTEGER NOT NULL,
	slope       REAL NOT NULL,
	intercept   REAL NOT NULL,
	r_value     REAL NOT NULL,
	p_value     REAL NOT NULL,
	std_err     REAL NOT NULL
);
`

// Ledger is a handle on the SQLite file
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single writer keeps SQLite free of lock contention
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StartRun registers a new batch run and returns its ID
func (l *Ledger) StartRun(ctx context.Context, configPath string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, config_path, started_at) VALUES (?, ?, ?)`,
		id, configPath, now())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run
func (l *Ledger) FinishRun(ctx context.Context, runID string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, now(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// RecordVideo stores the outcome of one video and, when it completed, its slopes
func (l *Ledger) RecordVideo(ctx context.Context, runID, path, status, reason string, rows []results.Row) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nullableReason sql.NullString
	if reason != "" {
		nullableReason = sql.NullString{String: reason, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO videos (run_id, path, status, reason, finished_at) VALUES (?, ?, ?, ?, ?)`,
		runID, path, status, nullableReason, now())
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}

	for _, r := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO slopes (run_id, video, vial_id, first_frame, last_frame,
			                    slope, intercept, r_value, p_value, std_err)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, path, r.VialID, r.FirstFrame, r.LastFrame,
			r.Slope, r.Intercept, r.R, r.PValue, r.StdErr)
		if err != nil {
			return fmt.Errorf("failed to insert slope for %s: %w", r.VialID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit video %s: %w", path, err)
	}
	return nil
}

// Completed returns the videos whose most recent outcome is completed
func (l *Ledger) Completed(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT path, status FROM videos
		ORDER BY finished_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var path, status string
		if err := rows.Scan(&path, &status); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		done[path] = status == StatusCompleted
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read videos: %w", err)
	}
	return done, nil
}

// Slopes returns the slopes recorded for a video in a run, in insertion order
func (l *Ledger) Slopes(ctx context.Context, runID, video string) ([]results.Row, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT vial_id, first_frame, last_frame, slope, intercept, r_value, p_value, std_err
		FROM slopes WHERE run_id = ? AND video = ?
		ORDER BY rowid`, runID, video)
	if err != nil {
		return nil, fmt.Errorf("failed to query slopes: %w", err)
	}
	defer rows.Close()

	var out []results.Row
	for rows.Next() {
		var r results.Row
		if err := rows.Scan(&r.VialID, &r.FirstFrame, &r.LastFrame, &r.Slope, &r.Intercept, &r.R, &r.PValue, &r.StdErr); err != nil {
			return nil, fmt.Errorf("failed to scan slope row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
