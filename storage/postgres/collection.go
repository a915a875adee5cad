package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"playsync/storage"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

func (g *Gateway) GetCollection(ctx context.Context, id string) (*storage.Collection, error) {
	query := `
		SELECT id, title, channel_id, item_count, sync_status, last_synced_at, created_at, updated_at
		FROM collections
		WHERE id = $1`

	var (
		c          storage.Collection
		lastSynced sql.NullTime
	)
	err := g.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.ChannelID, &c.ItemCount, &c.SyncStatus,
		&lastSynced, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		c.LastSyncedAt = lastSynced.Time
	}
	return &c, nil
}

func (g *Gateway) SaveCollection(ctx context.Context, c *storage.Collection) error {
	query := `
		INSERT INTO collections (id, title, channel_id, item_count, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			channel_id = EXCLUDED.channel_id,
			item_count = EXCLUDED.item_count,
			updated_at = NOW()`

	_, err := g.db.ExecContext(ctx, query, c.ID, c.Title, c.ChannelID, c.ItemCount, c.SyncStatus)
	return err
}

func (g *Gateway) SetCollectionStatus(ctx context.Context, id, status string) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE collections SET sync_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return nil
}

// LoadSnapshot returns the live (non-tombstoned) item IDs in stored order.
func (g *Gateway) LoadSnapshot(ctx context.Context, collectionID string) ([]string, error) {
	query := `
		SELECT video_id
		FROM collection_items
		WHERE collection_id = $1 AND removed_at IS NULL
		ORDER BY position`

	rows, err := g.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyChanges commits one completed reconciliation atomically: video
// upserts, tombstones, membership inserts, the full live-set position
// rewrite and the collection row update all land in one transaction.
func (g *Gateway) ApplyChanges(ctx context.Context, collectionID string, ch storage.ChangeSet) error {
	return g.tm.WithTransaction(ctx, func(ctx context.Context) error {
		for i := range ch.Videos {
			if err := g.upsertVideo(ctx, &ch.Videos[i]); err != nil {
				return fmt.Errorf("upsert video %s: %w", ch.Videos[i].ID, err)
			}
		}

		if len(ch.RemovedIDs) > 0 {
			_, err := g.executor(ctx).ExecContext(ctx, `
				UPDATE collection_items
				SET removed_at = NOW()
				WHERE collection_id = $1 AND video_id = ANY($2) AND removed_at IS NULL`,
				collectionID, pq.Array(ch.RemovedIDs))
			if err != nil {
				return fmt.Errorf("tombstone items: %w", err)
			}
		}

		for _, add := range ch.Added {
			// Re-adding a previously removed video clears its tombstone.
			_, err := g.executor(ctx).ExecContext(ctx, `
				INSERT INTO collection_items (collection_id, video_id, position, added_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (collection_id, video_id) DO UPDATE SET
					position = EXCLUDED.position,
					removed_at = NULL`,
				collectionID, add.VideoID, add.Position)
			if err != nil {
				return fmt.Errorf("add item %s: %w", add.VideoID, err)
			}
		}

		if len(ch.Positions) > 0 {
			ids := make([]string, 0, len(ch.Positions))
			positions := make([]int64, 0, len(ch.Positions))
			for id, pos := range ch.Positions {
				ids = append(ids, id)
				positions = append(positions, int64(pos))
			}
			_, err := g.executor(ctx).ExecContext(ctx, `
				UPDATE collection_items AS ci
				SET position = u.position
				FROM unnest($2::text[], $3::bigint[]) AS u(video_id, position)
				WHERE ci.collection_id = $1 AND ci.video_id = u.video_id`,
				collectionID, pq.Array(ids), pq.Array(positions))
			if err != nil {
				return fmt.Errorf("rewrite positions: %w", err)
			}
		}

		var lastSynced interface{}
		if !ch.LastSyncedAt.IsZero() {
			lastSynced = ch.LastSyncedAt
		}
		_, err := g.executor(ctx).ExecContext(ctx, `
			UPDATE collections
			SET title = $2, item_count = $3, last_synced_at = $4, sync_status = $5, updated_at = NOW()
			WHERE id = $1`,
			collectionID, ch.CollectionTitle, ch.ItemCount, lastSynced, ch.SyncStatus)
		if err != nil {
			return fmt.Errorf("update collection: %w", err)
		}
		return nil
	})
}

// ListCollections returns all tracked collections ordered by title.
func (g *Gateway) ListCollections(ctx context.Context) ([]storage.Collection, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, title, channel_id, item_count, sync_status, last_synced_at, created_at, updated_at
		FROM collections
		ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Collection
	for rows.Next() {
		var (
			c          storage.Collection
			lastSynced sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.ChannelID, &c.ItemCount, &c.SyncStatus,
			&lastSynced, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if lastSynced.Valid {
			c.LastSyncedAt = lastSynced.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
