// Package playsync keeps local copies of YouTube playlists in sync with
// the platform, staying inside the API's daily quota.
//
// # Overview
//
// The engine package is the main entry point. It wires the remote
// gateway, the quota ledger, the response cache and the persistence
// gateway into a per-collection sync run:
//
//	eng := engine.New(engine.Options{
//		Gateway: client,
//		Store:   gateway,
//		Ledger:  quota.NewLedger(10000),
//		Tokens:  tokens,
//	})
//	rec, err := eng.TriggerSync(ctx, "PLxxxxxxxx")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("added %d, removed %d, reordered %d (%d quota units)\n",
//		rec.ItemsAdded, rec.ItemsRemoved, rec.ItemsReordered, rec.QuotaUnits)
//
// Each run fetches the remote playlist through a TTL cache, reserves
// quota before every uncached call, diffs the result against the stored
// snapshot and commits the changes in one transaction together with an
// append-only history record. Removed items are tombstoned, never
// deleted.
//
// # Sub-packages
//
//   - engine: the sync orchestrator and its run state machine
//   - reconcile: pure diffing of local and remote item sequences
//   - quota: UTC-day quota ledger with atomic reservations
//   - cache: fingerprint-keyed TTL cache for remote responses
//   - retry: classified retry with exponential backoff
//   - auth: OAuth token manager with single-flight refresh
//   - youtube: the concrete remote gateway on the YouTube Data API
//   - scheduler: recurring syncs with failure backoff
//   - storage, storage/postgres: data model and persistence gateway
//   - publisher: RabbitMQ events for finished runs
//   - config, cli: service configuration and commands
//
// # Error Handling
//
// Expected failure classes end up inside the returned history record
// rather than as returned errors; see errors.go for the sentinels that
// do propagate:
//
//	if errors.Is(err, playsync.ErrSyncInProgress) {
//		fmt.Println("a run is already in flight")
//	}
package playsync
