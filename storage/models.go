// Package storage defines the persistent data model shared by the sync
// engine, the scheduler and the persistence gateway implementations.
package storage

import "time"

// Sync status values for Collection.SyncStatus and SyncHistory.Status.
const (
	SyncStatusIdle      = "idle"
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// Collection represents a tracked playlist.
type Collection struct {
	ID           string    `json:"id"` // YouTube playlist ID
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"` // Owning channel ID (UC...)
	ItemCount    int64     `json:"item_count"`
	SyncStatus   string    `json:"sync_status"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CollectionItem ties a video to a position within a collection.
// Removed items are tombstoned (RemovedAt set), never deleted, so the
// membership history stays auditable. Position is 0-based and dense
// across the live (non-tombstoned) set after every completed sync.
type CollectionItem struct {
	CollectionID string     `json:"collection_id"`
	VideoID      string     `json:"video_id"`
	Position     int        `json:"position"`
	AddedAt      time.Time  `json:"added_at"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
}

// Video holds content-item metadata as last fetched from the remote API.
// Identity is the YouTube video ID; rows are upserted, never recreated.
type Video struct {
	ID           string    `json:"id"` // YouTube video ID
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Duration     int64     `json:"duration"` // Seconds
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	PublishedAt  time.Time `json:"published_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SyncHistory is the append-only record of one orchestrator run.
type SyncHistory struct {
	ID             string    `json:"id"` // UUID
	CollectionID   string    `json:"collection_id"`
	Status         string    `json:"status"` // completed or failed
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	ItemsAdded     int       `json:"items_added"`
	ItemsRemoved   int       `json:"items_removed"`
	ItemsReordered int       `json:"items_reordered"`
	QuotaUnits     int       `json:"quota_units"`
	Error          string    `json:"error,omitempty"`
}

// Schedule is a recurring sync entry, keyed by collection (at most one
// schedule per collection). LastRunAt, NextRunAt and RetryCount are
// mutated only by the scheduler.
type Schedule struct {
	CollectionID string        `json:"collection_id"`
	Interval     time.Duration `json:"interval"`
	Enabled      bool          `json:"enabled"`
	LastRunAt    time.Time     `json:"last_run_at,omitzero"`
	NextRunAt    time.Time     `json:"next_run_at"`
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// QuotaDay is one persisted UTC-day quota bucket.
type QuotaDay struct {
	Date       string `json:"date"` // YYYY-MM-DD, UTC
	UnitsUsed  int    `json:"units_used"`
	DailyLimit int    `json:"daily_limit"`
}

// ItemAdd describes a new collection membership discovered by reconciliation.
type ItemAdd struct {
	VideoID  string `json:"video_id"`
	Position int    `json:"position"`
}

// ChangeSet is everything a completed reconciliation writes in one
// transaction: membership changes, the full live-set position layout,
// video metadata upserts and the collection row update.
type ChangeSet struct {
	Added      []ItemAdd
	RemovedIDs []string
	// Positions maps every live video ID to its final position. The
	// gateway rewrites the whole live set from this map so the dense
	// 0-based ordering holds at commit.
	Positions map[string]int
	Videos    []Video

	CollectionTitle string
	ItemCount       int64
	LastSyncedAt    time.Time
	SyncStatus      string
}
