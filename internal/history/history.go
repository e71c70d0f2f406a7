// Package history persists completed run summaries to a local SQLite
// database. It feeds the `azmig history` command and gives the project
// matcher its record of previously validated vault names. History
// writes are advisory: callers log failures and keep going.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	azerrors "github.com/mayoit/azmig-tool-assistant-sub000/internal/errors"
	"github.com/mayoit/azmig-tool-assistant-sub000/internal/report"
)

// maxRuns bounds the runs table; older rows are trimmed FIFO.
const maxRuns = 500

// Store is a SQLite-backed run history store.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open opens or creates the history database. An empty path opens an
// in-memory database for testing.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, azerrors.New(azerrors.ErrCodeHistoryIO,
				fmt.Sprintf("cannot create history directory for %s", path), err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, azerrors.New(azerrors.ErrCodeHistoryIO, "cannot open history database", err)
	}

	// Single writer prevents lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN params, so pragmas are applied
	// as statements too.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, azerrors.New(azerrors.ErrCodeHistoryIO, "cannot configure history database", err)
		}
	}

	s := &Store{db: db, path: path, log: log}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, azerrors.New(azerrors.ErrCodeHistoryIO, "cannot initialize history schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		operation_type TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		ready INTEGER NOT NULL DEFAULT 0,
		ready_with_warnings INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		overall_status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS stage_stats (
		run_id INTEGER NOT NULL,
		stage TEXT NOT NULL,
		ok INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, stage)
	);

	CREATE TABLE IF NOT EXISTS project_vaults (
		project TEXT PRIMARY KEY,
		vault TEXT NOT NULL,
		verified_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// RecordRun stores one batch summary with its per-stage breakdown,
// trimming the runs table to its retention bound.
func (s *Store) RecordRun(summary report.BatchSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO runs (session_id, operation_type, started_at, duration_seconds,
			total, ready, ready_with_warnings, failed, skipped, overall_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, summary.SessionID, summary.OperationType,
		summary.StartedAt.UTC().Format(time.RFC3339), summary.DurationSeconds,
		summary.Total, summary.Ready, summary.ReadyWithWarnings,
		summary.Failed, summary.Skipped, summary.OverallStatus)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stage_stats (run_id, stage, ok, warnings, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range summary.StageBreakdown {
		if _, err := stmt.Exec(runID, st.Stage, st.OK, st.Warnings, st.Failed, st.Skipped); err != nil {
			return fmt.Errorf("insert stage stats: %w", err)
		}
	}

	// Trim to the retention bound (delete oldest first).
	if _, err := tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY id DESC LIMIT ?
		)
	`, maxRuns); err != nil {
		return fmt.Errorf("trim runs: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM stage_stats WHERE run_id NOT IN (SELECT id FROM runs)
	`); err != nil {
		return fmt.Errorf("trim stage stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunRecord is one stored run summary.
type RunRecord struct {
	ID                int64
	SessionID         string
	OperationType     string
	StartedAt         time.Time
	DurationSeconds   float64
	Total             int
	Ready             int
	ReadyWithWarnings int
	Failed            int
	Skipped           int
	OverallStatus     string
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, operation_type, started_at, duration_seconds,
			total, ready, ready_with_warnings, failed, skipped, overall_status
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			startedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.OperationType, &startedAt,
			&rec.DurationSeconds, &rec.Total, &rec.Ready, &rec.ReadyWithWarnings,
			&rec.Failed, &rec.Skipped, &rec.OverallStatus); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, startedAt); err == nil {
			rec.StartedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StageTotals aggregates per-stage outcome counts across runs started
// within the window, most failure-prone stages first.
func (s *Store) StageTotals(since time.Time) ([]report.StageStat, error) {
	rows, err := s.db.Query(`
		SELECT ss.stage, SUM(ss.ok), SUM(ss.warnings), SUM(ss.failed), SUM(ss.skipped)
		FROM stage_stats ss
		JOIN runs r ON r.id = ss.run_id
		WHERE r.started_at >= ?
		GROUP BY ss.stage
		ORDER BY SUM(ss.failed) DESC, ss.stage ASC
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query stage totals: %w", err)
	}
	defer rows.Close()

	var stats []report.StageStat
	for rows.Next() {
		var st report.StageStat
		if err := rows.Scan(&st.Stage, &st.OK, &st.Warnings, &st.Failed, &st.Skipped); err != nil {
			return nil, fmt.Errorf("scan stage totals: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RecordVault remembers a verified vault name for a project. Later runs
// prefer this over configured or derived names.
func (s *Store) RecordVault(project, vault string) error {
	if project == "" || vault == "" {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO project_vaults (project, vault, verified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(project) DO UPDATE SET
			vault = excluded.vault,
			verified_at = excluded.verified_at
	`, normalizeProject(project), vault, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert vault: %w", err)
	}
	return nil
}

// VaultFor returns the vault name recorded for a project, if any.
// Lookup failures are logged and reported as a miss so matching can
// fall through to configured or derived names.
func (s *Store) VaultFor(project string) (string, bool) {
	var vault string
	err := s.db.QueryRow(`
		SELECT vault FROM project_vaults WHERE project = ?
	`, normalizeProject(project)).Scan(&vault)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.log.Warn("vault history lookup failed", "project", project, "error", err)
		return "", false
	}
	return vault, true
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeProject keys vault rows case-insensitively.
func normalizeProject(project string) string {
	return strings.ToLower(project)
}
