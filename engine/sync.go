package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"playsync/cache"
	"playsync/quota"
	"playsync/reconcile"
	"playsync/retry"
	"playsync/storage"
	"playsync/youtube"
)

// runBudget charges quota for a single run. The minimal call set
// (metadata + first items page + first video batch) is reserved up
// front in one atomic reservation; later pages and batches are charged
// individually, and only on cache miss.
type runBudget struct {
	ledger  *quota.Ledger
	costs   youtube.Costs
	prepaid map[string]int
	units   int
}

func newRunBudget(ledger *quota.Ledger, costs youtube.Costs, prepay bool) *runBudget {
	b := &runBudget{ledger: ledger, costs: costs, prepaid: make(map[string]int)}
	if prepay {
		b.prepaid["meta"] = 1
		b.prepaid["page"] = 1
		b.prepaid["batch"] = 1
	}
	return b
}

// reserveMinimal makes the upfront reservation for the prepaid call set.
func (b *runBudget) reserveMinimal() error {
	total := b.costs.CollectionMeta + b.costs.ItemPage + b.costs.VideoBatch
	if err := b.ledger.Reserve(total); err != nil {
		return err
	}
	b.units += total
	return nil
}

func (b *runBudget) charge(class string, cost int) error {
	if b.prepaid[class] > 0 {
		b.prepaid[class]--
		return nil
	}
	if err := b.ledger.Reserve(cost); err != nil {
		return err
	}
	b.units += cost
	return nil
}

// TriggerSync runs one synchronization for the collection. Expected
// failure classes (quota denial, remote errors, retries exhausted) are
// reported inside the returned history record with Status failed; only
// lock contention (ErrSyncInProgress) and persistence-infrastructure
// failures are returned as errors. Exactly one history record is
// appended per started run.
func (e *Engine) TriggerSync(ctx context.Context, collectionID string) (*storage.SyncHistory, error) {
	if !e.tryAcquire(collectionID) {
		return nil, ErrSyncInProgress
	}
	defer e.release(collectionID)

	logger := e.logger.With("collection", collectionID)
	rec := &storage.SyncHistory{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		StartedAt:    time.Now().UTC(),
	}

	if err := e.store.SetCollectionStatus(ctx, collectionID, storage.SyncStatusRunning); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}

	runErr := e.runSync(ctx, collectionID, rec)
	rec.CompletedAt = time.Now().UTC()
	if runErr != nil {
		rec.Status = storage.SyncStatusFailed
		rec.Error = runErr.Error()
		logger.Warn("sync failed",
			"error", runErr,
			"quota_units", rec.QuotaUnits,
		)
		if err := e.store.SetCollectionStatus(ctx, collectionID, storage.SyncStatusFailed); err != nil {
			logger.Error("failed to mark collection failed", "error", err)
		}
	} else {
		rec.Status = storage.SyncStatusCompleted
		logger.Info("sync completed",
			"added", rec.ItemsAdded,
			"removed", rec.ItemsRemoved,
			"reordered", rec.ItemsReordered,
			"quota_units", rec.QuotaUnits,
			"duration", rec.CompletedAt.Sub(rec.StartedAt),
		)
	}

	if err := e.store.AppendHistory(ctx, rec); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	e.persistQuotaDay(ctx, logger)
	e.publishEvent(ctx, rec, logger)

	return rec, nil
}

// runSync executes steps 2-5 of a run, filling the record's counts as
// they become known so a failed run still reports partial progress.
func (e *Engine) runSync(ctx context.Context, collectionID string, rec *storage.SyncHistory) error {
	budget := newRunBudget(e.ledger, e.gateway.Costs(), true)
	defer func() { rec.QuotaUnits = budget.units }()

	if err := budget.reserveMinimal(); err != nil {
		return err
	}

	meta, err := e.fetchMeta(ctx, collectionID, budget)
	if err != nil {
		return err
	}

	remoteIDs, err := e.fetchAllItems(ctx, collectionID, budget)
	if err != nil {
		return err
	}

	videos, err := e.fetchVideos(ctx, remoteIDs, budget)
	if err != nil {
		return err
	}

	local, err := e.store.LoadSnapshot(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	changes := reconcile.Diff(local, remoteIDs)
	rec.ItemsAdded = len(changes.Added)
	rec.ItemsRemoved = len(changes.Removed)
	rec.ItemsReordered = len(changes.Reordered)

	stored, err := e.store.LoadVideos(ctx, remoteIDs)
	if err != nil {
		return fmt.Errorf("load videos: %w", err)
	}
	upserts := reconcile.ChangedVideos(stored, videos)

	cs := storage.ChangeSet{
		RemovedIDs:      changes.Removed,
		Positions:       changes.Positions,
		Videos:          upserts,
		CollectionTitle: meta.Title,
		ItemCount:       int64(len(remoteIDs)),
		LastSyncedAt:    time.Now().UTC(),
		SyncStatus:      storage.SyncStatusCompleted,
	}
	for _, id := range changes.Added {
		cs.Added = append(cs.Added, storage.ItemAdd{VideoID: id, Position: changes.Positions[id]})
	}

	if err := e.store.ApplyChanges(ctx, collectionID, cs); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	return nil
}

func (e *Engine) fetchMeta(ctx context.Context, collectionID string, budget *runBudget) (*youtube.CollectionMeta, error) {
	fp := cache.Fingerprint("playlists.get", collectionID)
	if v, ok := e.cache.Get(fp); ok {
		return v.(*youtube.CollectionMeta), nil
	}

	if err := budget.charge("meta", budget.costs.CollectionMeta); err != nil {
		return nil, err
	}

	var meta *youtube.CollectionMeta
	err := retry.Do(ctx, e.policy, youtube.Classify, func(ctx context.Context) error {
		m, err := e.gateway.FetchCollectionMeta(ctx, collectionID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch collection meta: %w", err)
	}

	e.cache.Set(fp, meta, e.metaTTL)
	return meta, nil
}

// fetchAllItems walks every membership page, charging quota per page
// only on cache miss, and returns the remote item ids in playlist order.
func (e *Engine) fetchAllItems(ctx context.Context, collectionID string, budget *runBudget) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		fp := cache.Fingerprint("playlistItems.list", collectionID, pageToken)

		var page *youtube.ItemPage
		if v, ok := e.cache.Get(fp); ok {
			page = v.(*youtube.ItemPage)
		} else {
			if err := budget.charge("page", budget.costs.ItemPage); err != nil {
				return nil, err
			}
			err := retry.Do(ctx, e.policy, youtube.Classify, func(ctx context.Context) error {
				p, err := e.gateway.FetchCollectionItems(ctx, collectionID, pageToken)
				if err != nil {
					return err
				}
				page = p
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("fetch items page: %w", err)
			}
			e.cache.Set(fp, page, e.pageTTL)
		}

		ids = append(ids, page.VideoIDs...)
		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// fetchVideos returns metadata for every id, serving fresh entries from
// cache and batching the rest at the API's maximum batch size.
func (e *Engine) fetchVideos(ctx context.Context, ids []string, budget *runBudget) ([]storage.Video, error) {
	videos := make([]storage.Video, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if v, ok := e.cache.Get(cache.Fingerprint("videos.get", id)); ok {
			videos = append(videos, v.(storage.Video))
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += youtube.MaxBatchSize {
		end := min(start+youtube.MaxBatchSize, len(missing))
		batch := missing[start:end]

		if err := budget.charge("batch", budget.costs.VideoBatch); err != nil {
			return nil, err
		}

		var fetched []storage.Video
		err := retry.Do(ctx, e.policy, youtube.Classify, func(ctx context.Context) error {
			vs, err := e.gateway.FetchVideosBatch(ctx, batch)
			if err != nil {
				return err
			}
			fetched = vs
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch video batch: %w", err)
		}

		for _, v := range fetched {
			e.cache.Set(cache.Fingerprint("videos.get", v.ID), v, e.batchTTL)
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func (e *Engine) persistQuotaDay(ctx context.Context, logger *slog.Logger) {
	day := e.ledger.Today()
	err := e.store.SaveQuotaDay(ctx, storage.QuotaDay{
		Date:       day.Date,
		UnitsUsed:  day.Used,
		DailyLimit: day.Limit,
	})
	if err != nil {
		logger.Error("failed to persist quota day", "error", err)
	}
}

func (e *Engine) publishEvent(ctx context.Context, rec *storage.SyncHistory, logger *slog.Logger) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishSyncEvent(ctx, rec); err != nil {
		logger.Error("failed to publish sync event", "error", err)
	}
}

// IsQuotaDenial reports whether a run failed on quota, either the local
// ledger's fail-fast denial or the remote quota signal.
func IsQuotaDenial(err error) bool {
	return errors.Is(err, quota.ErrExceeded) || errors.Is(err, youtube.ErrQuotaExceeded)
}
