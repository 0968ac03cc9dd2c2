package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("render run not found")

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, kind, label, frame_count, status, error_message, artifact_path, thumbnail_path, started_at, finished_at"

// Begin records a new running render and returns it.
func (s *Store) Begin(ctx context.Context, kind Kind, label string, frameCount int) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:         uuid.NewString(),
		Kind:       kind,
		Label:      strings.TrimSpace(label),
		FrameCount: frameCount,
		Status:     StatusRunning,
		StartedAt:  now,
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO render_runs (id, kind, label, frame_count, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Label, run.FrameCount, string(run.Status), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert render run: %w", err)
	}
	return run, nil
}

// Finish stamps the outcome of a run.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	if outcome.Status != StatusSucceeded && outcome.Status != StatusFailed {
		return fmt.Errorf("finish render run %s: invalid status %q", id, outcome.Status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE render_runs SET status = ?, error_message = ?, artifact_path = ?, thumbnail_path = ?, finished_at = ? WHERE id = ?`,
		string(outcome.Status),
		nullIfEmpty(outcome.ErrorMessage),
		nullIfEmpty(outcome.ArtifactPath),
		nullIfEmpty(outcome.ThumbnailPath),
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish render run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Get fetches a run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM render_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get render run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM render_runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list render runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RecoverInterrupted marks runs left running by a previous process as failed.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE render_runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		string(StatusFailed), InterruptedReason, time.Now().UTC().Format(timeLayout), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// Summarize counts runs by status and returns the newest one.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM render_runs GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("render run stats: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusRunning:
			summary.Running = count
		case StatusSucceeded:
			summary.Succeeded = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	latest, err := s.List(ctx, 1)
	if err != nil {
		return Summary{}, err
	}
	if len(latest) == 1 {
		summary.LastRun = &latest[0]
	}
	return summary, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		kind        string
		status      string
		errorMsg    sql.NullString
		artifact    sql.NullString
		thumbnail   sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&kind,
		&run.Label,
		&run.FrameCount,
		&status,
		&errorMsg,
		&artifact,
		&thumbnail,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Kind = Kind(kind)
	run.Status = Status(status)
	run.ErrorMessage = errorMsg.String
	run.ArtifactPath = artifact.String
	run.ThumbnailPath = thumbnail.String
	if ts, err := time.Parse(timeLayout, startedRaw); err == nil {
		run.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := time.Parse(timeLayout, finishedRaw.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return &run, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
