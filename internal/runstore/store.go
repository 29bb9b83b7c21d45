package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// RunStatus represents the lifecycle of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Video stages recorded while a batch is in flight.
const (
	StageResolving   = "resolving"
	StageDownloading = "downloading"
	StageSampling    = "sampling"
	StageDescribing  = "describing"
	StageSummarizing = "summarizing"
	StageCompleted   = "completed"
	StageFailed      = "failed"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID              string
	Status          RunStatus
	StartedAt       time.Time
	FinishedAt      *time.Time
	VideosRequested int
	VideosSucceeded int
	VideosFailed    int
	FramesSucceeded int
	FramesFailed    int
	TokensUsed      int
	ReportPath      string
	Error           string
}

// VideoRecord is one per-video row of run history.
type VideoRecord struct {
	RunID             string
	VideoID           string
	Source            string
	Stage             string
	Success           bool
	Error             string
	FramesSucceeded   int
	FramesFailed      int
	ProcessingSeconds float64
	UpdatedAt         time.Time
}

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the run history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("runstore: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, runID string, videosRequested int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`INSERT INTO runs (id, status, started_at, videos_requested) VALUES (?, ?, ?, ?)`,
		runID,
		string(RunRunning),
		now,
		videosRequested,
	)
}

// UpsertVideo records or updates one video's stage within a run.
func (s *Store) UpsertVideo(ctx context.Context, record VideoRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`INSERT INTO run_videos (
            run_id, video_id, source, stage, success, error,
            frames_succeeded, frames_failed, processing_seconds, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, video_id) DO UPDATE SET
            stage = excluded.stage,
            success = excluded.success,
            error = excluded.error,
            frames_succeeded = excluded.frames_succeeded,
            frames_failed = excluded.frames_failed,
            processing_seconds = excluded.processing_seconds,
            updated_at = excluded.updated_at`,
		record.RunID,
		record.VideoID,
		record.Source,
		record.Stage,
		boolToInt(record.Success),
		nullableString(record.Error),
		record.FramesSucceeded,
		record.FramesFailed,
		record.ProcessingSeconds,
		now,
	)
}

// SetVideoStage updates just the stage column for an in-flight video.
func (s *Store) SetVideoStage(ctx context.Context, runID, videoID, stage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE run_videos SET stage = ?, updated_at = ? WHERE run_id = ? AND video_id = ?`,
		stage,
		now,
		runID,
		videoID,
	)
}

// FinishRun transitions a run to its terminal state and records totals.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, totals RunRecord) error {
	if status != RunCompleted && status != RunFailed {
		return fmt.Errorf("runstore: %q is not a terminal status", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE runs SET
            status = ?, finished_at = ?,
            videos_succeeded = ?, videos_failed = ?,
            frames_succeeded = ?, frames_failed = ?,
            tokens_used = ?, report_path = ?, error = ?
        WHERE id = ?`,
		string(status),
		now,
		totals.VideosSucceeded,
		totals.VideosFailed,
		totals.FramesSucceeded,
		totals.FramesFailed,
		totals.TokensUsed,
		nullableString(totals.ReportPath),
		nullableString(totals.Error),
		runID,
	)
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, status, started_at, finished_at,
            videos_requested, videos_succeeded, videos_failed,
            frames_succeeded, frames_failed, tokens_used, report_path, error
        FROM runs WHERE id = ?`,
		runID,
	)
	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("runstore: run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, status, started_at, finished_at,
            videos_requested, videos_succeeded, videos_failed,
            frames_succeeded, frames_failed, tokens_used, report_path, error
        FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// ListRunVideos returns the per-video rows of one run in insertion order.
func (s *Store) ListRunVideos(ctx context.Context, runID string) ([]VideoRecord, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT run_id, video_id, source, stage, success, error,
            frames_succeeded, frames_failed, processing_seconds, updated_at
        FROM run_videos WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run videos: %w", err)
	}
	defer rows.Close()

	var records []VideoRecord
	for rows.Next() {
		var (
			record    VideoRecord
			success   int
			errText   sql.NullString
			updatedAt string
		)
		if err := rows.Scan(
			&record.RunID,
			&record.VideoID,
			&record.Source,
			&record.Stage,
			&success,
			&errText,
			&record.FramesSucceeded,
			&record.FramesFailed,
			&record.ProcessingSeconds,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run video: %w", err)
		}
		record.Success = success != 0
		record.Error = errText.String
		record.UpdatedAt = parseTimestamp(updatedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		record     RunRecord
		status     string
		startedAt  string
		finishedAt sql.NullString
		reportPath sql.NullString
		errText    sql.NullString
	)
	if err := row.Scan(
		&record.ID,
		&status,
		&startedAt,
		&finishedAt,
		&record.VideosRequested,
		&record.VideosSucceeded,
		&record.VideosFailed,
		&record.FramesSucceeded,
		&record.FramesFailed,
		&record.TokensUsed,
		&reportPath,
		&errText,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	record.Status = RunStatus(status)
	record.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		when := parseTimestamp(finishedAt.String)
		record.FinishedAt = &when
	}
	record.ReportPath = reportPath.String
	record.Error = errText.String
	return &record, nil
}

func parseTimestamp(value string) time.Time {
	if when, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return when
	}
	return time.Time{}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
