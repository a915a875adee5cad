// Package engine drives synchronization runs end to end: acquire the
// per-collection run lock, fetch remote state through cache, quota
// ledger, retry executor and token manager, reconcile against the last
// local snapshot, persist the changes and record history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"playsync/auth"
	"playsync/cache"
	"playsync/quota"
	"playsync/retry"
	"playsync/storage"
	"playsync/youtube"
)

// ErrSyncInProgress is returned by TriggerSync when a run for the same
// collection is already executing. It is contention, not a collection
// error state: no run is started and no history is recorded.
var ErrSyncInProgress = errors.New("sync already in progress")

// Options wires the engine's collaborators.
type Options struct {
	Gateway   youtube.Gateway
	Store     PersistenceGateway
	Cache     *cache.Cache
	Ledger    *quota.Ledger
	Tokens    retry.Refresher // usually *auth.Manager
	Publisher Publisher       // optional
	Logger    *slog.Logger

	RetryPolicy retry.Policy // zero value uses retry.DefaultPolicy
	MetaTTL     time.Duration
	PageTTL     time.Duration
	BatchTTL    time.Duration
}

// Engine is the sync orchestrator. One instance serves all collections;
// runs for different collections proceed concurrently, runs for the
// same collection are mutually exclusive.
type Engine struct {
	gateway   youtube.Gateway
	store     PersistenceGateway
	cache     *cache.Cache
	ledger    *quota.Ledger
	publisher Publisher
	logger    *slog.Logger

	policy   retry.Policy
	metaTTL  time.Duration
	pageTTL  time.Duration
	batchTTL time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// New constructs an engine from its options.
func New(opts Options) *Engine {
	policy := opts.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	policy.Refresher = opts.Tokens

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		gateway:   opts.Gateway,
		store:     opts.Store,
		cache:     opts.Cache,
		ledger:    opts.Ledger,
		publisher: opts.Publisher,
		logger:    logger,
		policy:    policy,
		metaTTL:   opts.MetaTTL,
		pageTTL:   opts.PageTTL,
		batchTTL:  opts.BatchTTL,
		running:   make(map[string]bool),
	}
	if e.cache == nil {
		e.cache = cache.New(0)
	}
	if e.metaTTL == 0 {
		e.metaTTL = cache.TTLCollectionMeta
	}
	if e.pageTTL == 0 {
		e.pageTTL = cache.TTLItemPage
	}
	if e.batchTTL == 0 {
		e.batchTTL = cache.TTLVideoBatch
	}
	return e
}

// tryAcquire takes the run lock for a collection, failing fast if a run
// is already in flight.
func (e *Engine) tryAcquire(collectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[collectionID] {
		return false
	}
	e.running[collectionID] = true
	return true
}

func (e *Engine) release(collectionID string) {
	e.mu.Lock()
	delete(e.running, collectionID)
	e.mu.Unlock()
}

// IsRunning reports whether a run for the collection is in flight.
func (e *Engine) IsRunning(collectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[collectionID]
}

// Status is the request-layer view of a collection's sync state.
type Status struct {
	CollectionID string    `json:"collection_id"`
	Status       string    `json:"status"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
	IsRunning    bool      `json:"is_running"`
}

// GetStatus returns the sync status of a collection.
func (e *Engine) GetStatus(ctx context.Context, collectionID string) (*Status, error) {
	col, err := e.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &Status{
		CollectionID: collectionID,
		Status:       col.SyncStatus,
		LastSyncedAt: col.LastSyncedAt,
		IsRunning:    e.IsRunning(collectionID),
	}, nil
}

// QuotaUsage reports the current day's quota consumption.
func (e *Engine) QuotaUsage() quota.Usage {
	return e.ledger.Usage()
}

// History returns the most recent run records for a collection.
func (e *Engine) History(ctx context.Context, collectionID string, limit int) ([]storage.SyncHistory, error) {
	return e.store.History(ctx, collectionID, limit)
}

// ImportCollection fetches remote metadata for a playlist and creates
// the local collection row in the idle state. The fetch goes through
// the same cache/quota/retry path as a sync run.
func (e *Engine) ImportCollection(ctx context.Context, collectionID string) (*storage.Collection, error) {
	budget := newRunBudget(e.ledger, e.gateway.Costs(), false)
	meta, err := e.fetchMeta(ctx, collectionID, budget)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	col := &storage.Collection{
		ID:         meta.ID,
		Title:      meta.Title,
		ChannelID:  meta.ChannelID,
		ItemCount:  meta.ItemCount,
		SyncStatus: storage.SyncStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.SaveCollection(ctx, col); err != nil {
		return nil, fmt.Errorf("save collection: %w", err)
	}

	e.logger.Info("collection imported",
		"collection", col.ID,
		"title", col.Title,
		"items", col.ItemCount,
	)
	return col, nil
}

// RestoreQuota seeds the ledger from persisted day rows, typically at
// startup.
func (e *Engine) RestoreQuota(days []storage.QuotaDay) {
	for _, d := range days {
		e.ledger.Restore(d.Date, d.UnitsUsed)
	}
}

var _ retry.Refresher = (*auth.Manager)(nil)
