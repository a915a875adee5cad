package postgres

import (
	"context"

	"playsync/storage"
)

func (g *Gateway) SaveQuotaDay(ctx context.Context, day storage.QuotaDay) error {
	query := `
		INSERT INTO quota_days (date, units_used, daily_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET
			units_used = GREATEST(quota_days.units_used, EXCLUDED.units_used),
			daily_limit = EXCLUDED.daily_limit`

	_, err := g.db.ExecContext(ctx, query, day.Date, day.UnitsUsed, day.DailyLimit)
	return err
}

// LoadQuotaDays returns the most recent persisted day buckets, newest
// first, for restoring the in-memory ledger after a restart.
func (g *Gateway) LoadQuotaDays(ctx context.Context, limit int) ([]storage.QuotaDay, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT date, units_used, daily_limit
		FROM quota_days
		ORDER BY date DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.QuotaDay
	for rows.Next() {
		var d storage.QuotaDay
		if err := rows.Scan(&d.Date, &d.UnitsUsed, &d.DailyLimit); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
