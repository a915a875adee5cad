package reconcile

import "playsync/storage"

// MetadataChanged reports whether a fetched video differs from the
// stored copy in any user-visible field. Metadata reconciliation is
// independent of ordering: a changed video is upserted even when its
// position is untouched.
func MetadataChanged(stored, fetched storage.Video) bool {
	return stored.Title != fetched.Title ||
		stored.ChannelID != fetched.ChannelID ||
		stored.ChannelTitle != fetched.ChannelTitle ||
		stored.Duration != fetched.Duration ||
		stored.ThumbnailURL != fetched.ThumbnailURL ||
		stored.ViewCount != fetched.ViewCount ||
		stored.LikeCount != fetched.LikeCount ||
		stored.CommentCount != fetched.CommentCount ||
		!stored.PublishedAt.Equal(fetched.PublishedAt)
}

// ChangedVideos filters fetched videos down to the ones whose metadata
// differs from the stored state. Videos with no stored counterpart are
// always included.
func ChangedVideos(stored map[string]storage.Video, fetched []storage.Video) []storage.Video {
	var out []storage.Video
	for _, v := range fetched {
		prev, ok := stored[v.ID]
		if !ok || MetadataChanged(prev, v) {
			out = append(out, v)
		}
	}
	return out
}
