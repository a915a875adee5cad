package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"playsync/engine"
	"playsync/storage"
)

// MinInterval is the smallest schedule interval accepted by SetSchedule.
const MinInterval = time.Minute

// DefaultMaxRetries bounds short-retry attempts before a schedule falls
// back to its regular interval.
const DefaultMaxRetries = 3

// DefaultTick is how often the scheduler scans for due entries.
const DefaultTick = 30 * time.Second

const runTimeout = 5 * time.Minute

// ValidationError reports malformed schedule input. It is returned before
// anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule: %s %s", e.Field, e.Reason)
}

// Syncer runs a synchronization for one collection.
type Syncer interface {
	TriggerSync(ctx context.Context, collectionID string) (*storage.SyncHistory, error)
}

// Store persists schedule entries.
type Store interface {
	LoadSchedules(ctx context.Context) ([]storage.Schedule, error)
	GetSchedule(ctx context.Context, collectionID string) (*storage.Schedule, error)
	SaveSchedule(ctx context.Context, sch *storage.Schedule) error
	DeleteSchedule(ctx context.Context, collectionID string) error
}

type Scheduler struct {
	store  Store
	syncer Syncer
	tick   time.Duration
	logger *slog.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

func New(store Store, syncer Syncer, tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		syncer: syncer,
		tick:   tick,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the scheduling loop until ctx is cancelled. In-flight runs
// are waited for before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick", s.tick)

	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue dispatches one goroutine per due schedule. Entries for distinct
// collections run independently; the engine's per-collection lock is the
// only serialization.
func (s *Scheduler) runDue(ctx context.Context) {
	entries, err := s.store.LoadSchedules(ctx)
	if err != nil {
		s.logger.Error("load schedules", "error", err)
		return
	}

	now := s.now()
	for i := range entries {
		sch := entries[i]
		if !sch.Enabled || sch.NextRunAt.After(now) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runOne(ctx, &sch)
		}()
	}
}

func (s *Scheduler) runOne(ctx context.Context, sch *storage.Schedule) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	rec, err := s.syncer.TriggerSync(runCtx, sch.CollectionID)

	now := s.now()
	sch.LastRunAt = now
	sch.UpdatedAt = now

	switch {
	case errors.Is(err, engine.ErrSyncInProgress):
		// A manual or overlapping run already covers this slot.
		sch.NextRunAt = now.Add(sch.Interval)
	case err != nil:
		s.logger.Error("scheduled sync failed", "collection", sch.CollectionID, "error", err)
		s.recordFailure(sch, now)
	case rec.Status == storage.SyncStatusFailed:
		s.logger.Warn("scheduled sync failed", "collection", sch.CollectionID, "error", rec.Error)
		s.recordFailure(sch, now)
	default:
		sch.RetryCount = 0
		sch.NextRunAt = now.Add(sch.Interval)
	}

	if err := s.store.SaveSchedule(ctx, sch); err != nil {
		s.logger.Error("save schedule", "collection", sch.CollectionID, "error", err)
	}
}

// recordFailure applies the short-retry backoff: 2^retryCount minutes,
// capped at the regular interval. After maxRetries the schedule advances
// by the full interval so it is never permanently stuck.
func (s *Scheduler) recordFailure(sch *storage.Schedule, now time.Time) {
	sch.RetryCount++
	if sch.RetryCount >= sch.MaxRetries {
		sch.NextRunAt = now.Add(sch.Interval)
		return
	}
	backoff := time.Duration(1<<uint(sch.RetryCount)) * time.Minute
	if backoff > sch.Interval {
		backoff = sch.Interval
	}
	sch.NextRunAt = now.Add(backoff)
}

// SetSchedule creates or replaces the schedule for a collection. At most
// one schedule exists per collection.
func (s *Scheduler) SetSchedule(ctx context.Context, collectionID string, interval time.Duration, enabled bool) (*storage.Schedule, error) {
	if collectionID == "" {
		return nil, &ValidationError{Field: "collection_id", Reason: "must not be empty"}
	}
	if interval < MinInterval {
		return nil, &ValidationError{Field: "interval", Reason: fmt.Sprintf("must be at least %s", MinInterval)}
	}

	now := s.now()
	sch := &storage.Schedule{
		CollectionID: collectionID,
		Interval:     interval,
		Enabled:      enabled,
		NextRunAt:    now.Add(interval),
		MaxRetries:   DefaultMaxRetries,
		UpdatedAt:    now,
	}
	if err := s.store.SaveSchedule(ctx, sch); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	return sch, nil
}

// GetSchedule returns the schedule for a collection.
func (s *Scheduler) GetSchedule(ctx context.Context, collectionID string) (*storage.Schedule, error) {
	return s.store.GetSchedule(ctx, collectionID)
}

// ListSchedules returns all schedule entries.
func (s *Scheduler) ListSchedules(ctx context.Context) ([]storage.Schedule, error) {
	return s.store.LoadSchedules(ctx)
}

// RemoveSchedule deletes the schedule for a collection.
func (s *Scheduler) RemoveSchedule(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return &ValidationError{Field: "collection_id", Reason: "must not be empty"}
	}
	return s.store.DeleteSchedule(ctx, collectionID)
}
