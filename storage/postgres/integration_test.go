//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"playsync/storage"
)

type GatewayIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	gw        *Gateway
}

func (s *GatewayIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.gw = NewGateway(db)
}

func (s *GatewayIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *GatewayIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM collection_items")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_history")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM schedules")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM quota_days")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM videos")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM collections")
}

func TestGatewayIntegrationSuite(t *testing.T) {
	suite.Run(t, new(GatewayIntegrationSuite))
}

func (s *GatewayIntegrationSuite) seedCollection(id string) {
	err := s.gw.SaveCollection(s.ctx, &storage.Collection{
		ID: id, Title: "Seed", ChannelID: "UC1", SyncStatus: storage.SyncStatusIdle,
	})
	s.Require().NoError(err)
}

func (s *GatewayIntegrationSuite) TestCollection_SaveAndGet() {
	s.seedCollection("PL1")

	col, err := s.gw.GetCollection(s.ctx, "PL1")
	s.NoError(err)
	s.Equal("Seed", col.Title)
	s.Equal(storage.SyncStatusIdle, col.SyncStatus)
	s.True(col.LastSyncedAt.IsZero())
}

func (s *GatewayIntegrationSuite) TestCollection_GetMissing() {
	_, err := s.gw.GetCollection(s.ctx, "nope")
	s.ErrorIs(err, ErrNotFound)
}

func (s *GatewayIntegrationSuite) TestSetCollectionStatus() {
	s.seedCollection("PL1")

	s.NoError(s.gw.SetCollectionStatus(s.ctx, "PL1", storage.SyncStatusRunning))

	col, err := s.gw.GetCollection(s.ctx, "PL1")
	s.NoError(err)
	s.Equal(storage.SyncStatusRunning, col.SyncStatus)

	s.ErrorIs(s.gw.SetCollectionStatus(s.ctx, "missing", storage.SyncStatusRunning), ErrNotFound)
}

func (s *GatewayIntegrationSuite) TestApplyChanges_FullCycle() {
	s.seedCollection("PL1")
	now := time.Now().Truncate(time.Microsecond)

	initial := storage.ChangeSet{
		Added: []storage.ItemAdd{
			{VideoID: "A", Position: 0},
			{VideoID: "B", Position: 1},
			{VideoID: "C", Position: 2},
		},
		Positions: map[string]int{"A": 0, "B": 1, "C": 2},
		Videos: []storage.Video{
			{ID: "A", Title: "Video A"},
			{ID: "B", Title: "Video B"},
			{ID: "C", Title: "Video C"},
		},
		CollectionTitle: "Seed",
		ItemCount:       3,
		LastSyncedAt:    now,
		SyncStatus:      storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", initial))

	snap, err := s.gw.LoadSnapshot(s.ctx, "PL1")
	s.NoError(err)
	s.Equal([]string{"A", "B", "C"}, snap)

	// Remote becomes [A, C, B, D]: B removed? no — reorder C/B, add D,
	// then a later pass removes B entirely.
	second := storage.ChangeSet{
		Added:     []storage.ItemAdd{{VideoID: "D", Position: 3}},
		Positions: map[string]int{"A": 0, "C": 1, "B": 2, "D": 3},
		Videos:    []storage.Video{{ID: "D", Title: "Video D"}},

		CollectionTitle: "Seed",
		ItemCount:       4,
		LastSyncedAt:    now,
		SyncStatus:      storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", second))

	snap, err = s.gw.LoadSnapshot(s.ctx, "PL1")
	s.NoError(err)
	s.Equal([]string{"A", "C", "B", "D"}, snap)

	third := storage.ChangeSet{
		RemovedIDs: []string{"B"},
		Positions:  map[string]int{"A": 0, "C": 1, "D": 2},

		CollectionTitle: "Seed",
		ItemCount:       3,
		LastSyncedAt:    now,
		SyncStatus:      storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", third))

	snap, err = s.gw.LoadSnapshot(s.ctx, "PL1")
	s.NoError(err)
	s.Equal([]string{"A", "C", "D"}, snap)

	// B's row is tombstoned, not deleted.
	var removed int
	err = s.db.GetContext(s.ctx, &removed,
		"SELECT COUNT(*) FROM collection_items WHERE collection_id = $1 AND removed_at IS NOT NULL", "PL1")
	s.NoError(err)
	s.Equal(1, removed)

	col, err := s.gw.GetCollection(s.ctx, "PL1")
	s.NoError(err)
	s.Equal(storage.SyncStatusCompleted, col.SyncStatus)
	s.Equal(int64(3), col.ItemCount)
	s.WithinDuration(now, col.LastSyncedAt, time.Second)
}

func (s *GatewayIntegrationSuite) TestApplyChanges_ReaddClearsTombstone() {
	s.seedCollection("PL1")
	now := time.Now()

	first := storage.ChangeSet{
		Added:           []storage.ItemAdd{{VideoID: "A", Position: 0}},
		Positions:       map[string]int{"A": 0},
		Videos:          []storage.Video{{ID: "A", Title: "Video A"}},
		CollectionTitle: "Seed", ItemCount: 1, LastSyncedAt: now,
		SyncStatus: storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", first))

	remove := storage.ChangeSet{
		RemovedIDs:      []string{"A"},
		CollectionTitle: "Seed", ItemCount: 0, LastSyncedAt: now,
		SyncStatus: storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", remove))

	readd := storage.ChangeSet{
		Added:           []storage.ItemAdd{{VideoID: "A", Position: 0}},
		Positions:       map[string]int{"A": 0},
		CollectionTitle: "Seed", ItemCount: 1, LastSyncedAt: now,
		SyncStatus: storage.SyncStatusCompleted,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", readd))

	snap, err := s.gw.LoadSnapshot(s.ctx, "PL1")
	s.NoError(err)
	s.Equal([]string{"A"}, snap)
}

func (s *GatewayIntegrationSuite) TestVideos_UpsertAndLoad() {
	s.seedCollection("PL1")
	now := time.Now().Truncate(time.Microsecond)

	ch := storage.ChangeSet{
		Videos: []storage.Video{
			{ID: "A", Title: "First", ChannelID: "UC1", Duration: 300, ViewCount: 10, PublishedAt: now},
		},
		CollectionTitle: "Seed", SyncStatus: storage.SyncStatusCompleted, LastSyncedAt: now,
	}
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", ch))

	ch.Videos[0].Title = "Renamed"
	ch.Videos[0].ViewCount = 25
	s.Require().NoError(s.gw.ApplyChanges(s.ctx, "PL1", ch))

	got, err := s.gw.LoadVideos(s.ctx, []string{"A", "missing"})
	s.NoError(err)
	s.Len(got, 1)
	s.Equal("Renamed", got["A"].Title)
	s.Equal(int64(25), got["A"].ViewCount)
	s.WithinDuration(now, got["A"].PublishedAt, time.Second)
}

func (s *GatewayIntegrationSuite) TestHistory_AppendAndRead() {
	started := time.Now().Add(-time.Minute).Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		rec := &storage.SyncHistory{
			ID:           uuid.NewString(),
			CollectionID: "PL1",
			Status:       storage.SyncStatusCompleted,
			StartedAt:    started.Add(time.Duration(i) * time.Second),
			CompletedAt:  started.Add(time.Duration(i)*time.Second + 500*time.Millisecond),
			ItemsAdded:   i,
			QuotaUnits:   3,
		}
		s.Require().NoError(s.gw.AppendHistory(s.ctx, rec))
	}

	failed := &storage.SyncHistory{
		ID:           uuid.NewString(),
		CollectionID: "PL1",
		Status:       storage.SyncStatusFailed,
		StartedAt:    started.Add(10 * time.Second),
		CompletedAt:  started.Add(11 * time.Second),
		Error:        "quota exceeded",
	}
	s.Require().NoError(s.gw.AppendHistory(s.ctx, failed))

	recs, err := s.gw.History(s.ctx, "PL1", 2)
	s.NoError(err)
	s.Require().Len(recs, 2)
	// Newest first.
	s.Equal(storage.SyncStatusFailed, recs[0].Status)
	s.Equal("quota exceeded", recs[0].Error)
	s.Equal(2, recs[1].ItemsAdded)
	s.Empty(recs[1].Error)
}

func (s *GatewayIntegrationSuite) TestSchedules_CRUD() {
	next := time.Now().Add(time.Hour).Truncate(time.Microsecond)

	sch := &storage.Schedule{
		CollectionID: "PL1",
		Interval:     30 * time.Minute,
		Enabled:      true,
		NextRunAt:    next,
		MaxRetries:   3,
	}
	s.Require().NoError(s.gw.SaveSchedule(s.ctx, sch))

	got, err := s.gw.GetSchedule(s.ctx, "PL1")
	s.NoError(err)
	s.Equal(30*time.Minute, got.Interval)
	s.True(got.Enabled)
	s.True(got.LastRunAt.IsZero())
	s.WithinDuration(next, got.NextRunAt, time.Second)

	sch.RetryCount = 2
	sch.LastRunAt = time.Now()
	s.Require().NoError(s.gw.SaveSchedule(s.ctx, sch))

	got, err = s.gw.GetSchedule(s.ctx, "PL1")
	s.NoError(err)
	s.Equal(2, got.RetryCount)
	s.False(got.LastRunAt.IsZero())

	all, err := s.gw.LoadSchedules(s.ctx)
	s.NoError(err)
	s.Len(all, 1)

	s.NoError(s.gw.DeleteSchedule(s.ctx, "PL1"))
	_, err = s.gw.GetSchedule(s.ctx, "PL1")
	s.ErrorIs(err, ErrNotFound)
}

func (s *GatewayIntegrationSuite) TestQuotaDays_SaveNeverLowers() {
	day := storage.QuotaDay{Date: "2026-03-01", UnitsUsed: 120, DailyLimit: 10000}
	s.Require().NoError(s.gw.SaveQuotaDay(s.ctx, day))

	// A stale write with a lower counter must not regress usage.
	day.UnitsUsed = 80
	s.Require().NoError(s.gw.SaveQuotaDay(s.ctx, day))

	days, err := s.gw.LoadQuotaDays(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(days, 1)
	s.Equal(120, days[0].UnitsUsed)
}

func (s *GatewayIntegrationSuite) TestTransaction_RollsBackOnError() {
	s.seedCollection("PL1")

	// A change set referencing a video that was never upserted violates
	// the foreign key, so nothing from the batch may land.
	bad := storage.ChangeSet{
		Added:           []storage.ItemAdd{{VideoID: "ghost", Position: 0}},
		Positions:       map[string]int{"ghost": 0},
		CollectionTitle: "Seed", ItemCount: 1,
		SyncStatus: storage.SyncStatusCompleted, LastSyncedAt: time.Now(),
	}
	s.Error(s.gw.ApplyChanges(s.ctx, "PL1", bad))

	snap, err := s.gw.LoadSnapshot(s.ctx, "PL1")
	s.NoError(err)
	s.Empty(snap)

	col, err := s.gw.GetCollection(s.ctx, "PL1")
	s.NoError(err)
	s.Equal(storage.SyncStatusIdle, col.SyncStatus)
}
