package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"playsync/storage"
)

// Intervals are stored as whole seconds.

func (g *Gateway) LoadSchedules(ctx context.Context) ([]storage.Schedule, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT collection_id, interval_seconds, enabled, last_run_at, next_run_at,
		       retry_count, max_retries, updated_at
		FROM schedules
		ORDER BY next_run_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sch)
	}
	return out, rows.Err()
}

func (g *Gateway) GetSchedule(ctx context.Context, collectionID string) (*storage.Schedule, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT collection_id, interval_seconds, enabled, last_run_at, next_run_at,
		       retry_count, max_retries, updated_at
		FROM schedules
		WHERE collection_id = $1`, collectionID)

	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule for %s: %w", collectionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sch, nil
}

func (g *Gateway) SaveSchedule(ctx context.Context, sch *storage.Schedule) error {
	query := `
		INSERT INTO schedules (
			collection_id, interval_seconds, enabled, last_run_at, next_run_at,
			retry_count, max_retries, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (collection_id) DO UPDATE SET
			interval_seconds = EXCLUDED.interval_seconds,
			enabled = EXCLUDED.enabled,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			retry_count = EXCLUDED.retry_count,
			max_retries = EXCLUDED.max_retries,
			updated_at = NOW()`

	var lastRun interface{}
	if !sch.LastRunAt.IsZero() {
		lastRun = sch.LastRunAt
	}
	_, err := g.db.ExecContext(ctx, query,
		sch.CollectionID, int64(sch.Interval/time.Second), sch.Enabled,
		lastRun, sch.NextRunAt, sch.RetryCount, sch.MaxRetries)
	return err
}

func (g *Gateway) DeleteSchedule(ctx context.Context, collectionID string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM schedules WHERE collection_id = $1`, collectionID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*storage.Schedule, error) {
	var (
		sch     storage.Schedule
		seconds int64
		lastRun sql.NullTime
	)
	if err := row.Scan(&sch.CollectionID, &seconds, &sch.Enabled, &lastRun, &sch.NextRunAt,
		&sch.RetryCount, &sch.MaxRetries, &sch.UpdatedAt); err != nil {
		return nil, err
	}
	sch.Interval = time.Duration(seconds) * time.Second
	if lastRun.Valid {
		sch.LastRunAt = lastRun.Time
	}
	return &sch, nil
}
