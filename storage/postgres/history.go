package postgres

import (
	"context"
	"database/sql"

	"playsync/storage"
)

func (g *Gateway) AppendHistory(ctx context.Context, rec *storage.SyncHistory) error {
	query := `
		INSERT INTO sync_history (
			id, collection_id, status, started_at, completed_at,
			items_added, items_removed, items_reordered, quota_units, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var errMsg interface{}
	if rec.Error != "" {
		errMsg = rec.Error
	}
	_, err := g.db.ExecContext(ctx, query,
		rec.ID, rec.CollectionID, rec.Status, rec.StartedAt, rec.CompletedAt,
		rec.ItemsAdded, rec.ItemsRemoved, rec.ItemsReordered, rec.QuotaUnits, errMsg)
	return err
}

// History returns the most recent run records for a collection, newest first.
func (g *Gateway) History(ctx context.Context, collectionID string, limit int) ([]storage.SyncHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, collection_id, status, started_at, completed_at,
		       items_added, items_removed, items_reordered, quota_units, error
		FROM sync_history
		WHERE collection_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := g.db.QueryContext(ctx, query, collectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SyncHistory
	for rows.Next() {
		var (
			rec    storage.SyncHistory
			errMsg sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.CollectionID, &rec.Status, &rec.StartedAt, &rec.CompletedAt,
			&rec.ItemsAdded, &rec.ItemsRemoved, &rec.ItemsReordered, &rec.QuotaUnits, &errMsg); err != nil {
			return nil, err
		}
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
