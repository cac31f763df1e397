package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobarin/topicreel/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const runColumns = `
	id, topic, status, progress, script, duration_ms, loops, segment_count,
	final_video_asset_id, thumbnail_asset_id, settings,
	error_code, error_message, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner, run *models.Run) error {
	return row.Scan(
		&run.ID, &run.Topic, &run.Status, &run.Progress, &run.Script,
		&run.DurationMs, &run.Loops, &run.SegmentCount,
		&run.FinalVideoAssetID, &run.ThumbnailAssetID, &run.Settings,
		&run.ErrorCode, &run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt,
	)
}

func (db *DB) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (id, topic, status, progress, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		run.ID, run.Topic, run.Status, run.Progress, run.Settings,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
}

func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run := &models.Run{}
	err := scanRun(db.QueryRowContext(ctx, query, id), run)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns returns runs ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListRuns(ctx context.Context, status string, limit, offset int) ([]models.Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseSelect := `SELECT ` + runColumns + ` FROM runs`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		if err := scanRun(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// CountRuns returns the total number of runs, optionally filtered by status.
func (db *DB) CountRuns(ctx context.Context, status string) (int, error) {
	var count int
	if status != "" {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = $1`, status).Scan(&count)
		return count, err
	}
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

func (db *DB) UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error {
	query := `UPDATE runs SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

func (db *DB) UpdateRunProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := `UPDATE runs SET progress = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, progress, id)
	return err
}

func (db *DB) SetRunScript(ctx context.Context, id uuid.UUID, script string) error {
	query := `UPDATE runs SET script = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, script, id)
	return err
}

func (db *DB) UpdateRunError(ctx context.Context, id uuid.UUID, errorCode, errorMessage string) error {
	query := `
		UPDATE runs
		SET status = $1, error_code = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.RunStatusFailed, errorCode, errorMessage, id)
	return err
}

// CompleteRun records the render outcome and marks the run completed.
// thumbnailAssetID may be nil when no thumbnail was produced.
func (db *DB) CompleteRun(ctx context.Context, id, videoAssetID uuid.UUID, thumbnailAssetID *uuid.UUID, durationMs, loops, segments int) error {
	query := `
		UPDATE runs
		SET final_video_asset_id = $1, thumbnail_asset_id = $2,
			duration_ms = $3, loops = $4, segment_count = $5,
			status = $6, progress = 100, updated_at = NOW()
		WHERE id = $7
	`
	_, err := db.ExecContext(ctx, query, videoAssetID, thumbnailAssetID, durationMs, loops, segments, models.RunStatusCompleted, id)
	return err
}
