// Package history keeps a durable record of past runs in SQLite, the
// queryable side of the summary JSON hand-off. It powers `updrift history`
// and run-to-run duration comparison.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/updrift/updrift/internal/report"
)

// Store provides SQLite persistence for run history.
type Store struct {
	db *sql.DB
}

// Run is one row of the runs table.
type Run struct {
	ID                   string
	RunAt                time.Time
	LogPath              string
	SummaryPath          string
	TotalDurationSeconds float64
	FailedSections       int
}

// SectionRow is one section of a recorded run.
type SectionRow struct {
	Name            string
	Status          string
	DurationSeconds float64
	ExitCode        int
	Installed       int
	Available       int
	Updated         int
	Skipped         int
	Failed          int
}

// New opens (or creates) the history database at dbPath. Use ":memory:" for
// tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertRun records a finished run and its per-section rows.
func (s *Store) InsertRun(summary *report.Summary, summaryPath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, run_at, log_path, summary_path, total_duration_seconds, failed_sections)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.RunAt, summary.LogFilePath, summaryPath,
		summary.TotalDurationSeconds, summary.FailedSections(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, r := range summary.Results {
		_, err = tx.Exec(
			`INSERT INTO run_sections
			 (run_id, position, name, status, duration_seconds, exit_code,
			  installed, available, updated, skipped, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.RunID, i, r.Name, r.Status.String(), r.DurationSeconds, r.ExitCode,
			r.Counts.Installed, r.Counts.Available, r.Counts.Updated,
			r.Counts.Skipped, r.Counts.Failed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert section row %s: %w", r.Name, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, run_at, log_path, summary_path, total_duration_seconds, failed_sections
		 FROM runs ORDER BY run_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunAt, &r.LogPath, &r.SummaryPath,
			&r.TotalDurationSeconds, &r.FailedSections); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id, or nil if absent.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	err := s.db.QueryRow(
		`SELECT id, run_at, log_path, summary_path, total_duration_seconds, failed_sections
		 FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.RunAt, &r.LogPath, &r.SummaryPath,
			&r.TotalDurationSeconds, &r.FailedSections)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return &r, nil
}

// GetSections returns the section rows of a run in declaration order.
func (s *Store) GetSections(runID string) ([]*SectionRow, error) {
	rows, err := s.db.Query(
		`SELECT name, status, duration_seconds, exit_code,
		        installed, available, updated, skipped, failed
		 FROM run_sections WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections for %s: %w", runID, err)
	}
	defer rows.Close()

	var sections []*SectionRow
	for rows.Next() {
		var sr SectionRow
		if err := rows.Scan(&sr.Name, &sr.Status, &sr.DurationSeconds, &sr.ExitCode,
			&sr.Installed, &sr.Available, &sr.Updated, &sr.Skipped, &sr.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan section row: %w", err)
		}
		sections = append(sections, &sr)
	}
	return sections, rows.Err()
}

// CompareRuns computes the duration comparison between two recorded runs.
func (s *Store) CompareRuns(beforeID, afterID string) (report.Comparison, error) {
	before, err := s.GetRun(beforeID)
	if err != nil {
		return report.Comparison{}, err
	}
	if before == nil {
		return report.Comparison{}, fmt.Errorf("run %s not found", beforeID)
	}

	after, err := s.GetRun(afterID)
	if err != nil {
		return report.Comparison{}, err
	}
	if after == nil {
		return report.Comparison{}, fmt.Errorf("run %s not found", afterID)
	}

	return report.CompareDurations(before.TotalDurationSeconds, after.TotalDurationSeconds), nil
}
