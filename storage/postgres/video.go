package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"playsync/storage"
)

func (g *Gateway) upsertVideo(ctx context.Context, v *storage.Video) error {
	query := `
		INSERT INTO videos (
			id, title, channel_id, channel_title, duration, thumbnail_url,
			view_count, like_count, comment_count, published_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			channel_id = EXCLUDED.channel_id,
			channel_title = EXCLUDED.channel_title,
			duration = EXCLUDED.duration,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			published_at = EXCLUDED.published_at,
			updated_at = NOW()`

	var published interface{}
	if !v.PublishedAt.IsZero() {
		published = v.PublishedAt
	}
	_, err := g.executor(ctx).ExecContext(ctx, query,
		v.ID, v.Title, v.ChannelID, v.ChannelTitle, v.Duration, v.ThumbnailURL,
		v.ViewCount, v.LikeCount, v.CommentCount, published)
	return err
}

// LoadVideos returns stored metadata for the given IDs, keyed by ID.
// Unknown IDs are simply absent from the result.
func (g *Gateway) LoadVideos(ctx context.Context, ids []string) (map[string]storage.Video, error) {
	out := make(map[string]storage.Video)
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, title, channel_id, channel_title, duration, thumbnail_url,
		       view_count, like_count, comment_count, published_at, updated_at
		FROM videos
		WHERE id = ANY($1)`

	rows, err := g.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         storage.Video
			published sql.NullTime
		)
		if err := rows.Scan(&v.ID, &v.Title, &v.ChannelID, &v.ChannelTitle, &v.Duration,
			&v.ThumbnailURL, &v.ViewCount, &v.LikeCount, &v.CommentCount,
			&published, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if published.Valid {
			v.PublishedAt = published.Time
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}
