package engine

import (
	"context"

	"playsync/storage"
)

// PersistenceGateway is the relational collaborator the engine writes
// through. Implementations must make ApplyChanges atomic: membership
// changes, position rewrites, metadata upserts and the collection row
// update land in one transaction or not at all.
type PersistenceGateway interface {
	GetCollection(ctx context.Context, id string) (*storage.Collection, error)
	SaveCollection(ctx context.Context, c *storage.Collection) error
	SetCollectionStatus(ctx context.Context, id, status string) error

	// LoadSnapshot returns the live (non-tombstoned) item video-ids of a
	// collection in position order.
	LoadSnapshot(ctx context.Context, collectionID string) ([]string, error)
	// LoadVideos returns stored metadata for the given video ids; absent
	// ids are simply missing from the map.
	LoadVideos(ctx context.Context, ids []string) (map[string]storage.Video, error)
	ApplyChanges(ctx context.Context, collectionID string, ch storage.ChangeSet) error

	AppendHistory(ctx context.Context, rec *storage.SyncHistory) error
	History(ctx context.Context, collectionID string, limit int) ([]storage.SyncHistory, error)

	SaveQuotaDay(ctx context.Context, day storage.QuotaDay) error
}

// Publisher fans out run outcomes to interested consumers. A nil
// publisher disables the concern.
type Publisher interface {
	PublishSyncEvent(ctx context.Context, rec *storage.SyncHistory) error
	Close() error
}
