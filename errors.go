package playsync

import (
	"playsync/engine"
	"playsync/quota"
	"playsync/retry"
	"playsync/scheduler"
	"playsync/youtube"
)

// Error types exported for library users.
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, playsync.ErrQuotaExceeded) {
//		fmt.Println("daily quota exhausted")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var exhausted *playsync.RetriesExhaustedError
//	if errors.As(err, &exhausted) {
//		fmt.Printf("gave up after %d attempts: %v\n", exhausted.Attempts, exhausted.Err)
//	}

// Type aliases for convenient error handling.
type (
	// QuotaExceededError carries the denied reservation details,
	// including when the quota resets.
	QuotaExceededError = quota.ExceededError
	// RetriesExhaustedError wraps the last error after all transient
	// retries were consumed.
	RetriesExhaustedError = retry.ExhaustedError
	// ValidationError reports malformed schedule input.
	ValidationError = scheduler.ValidationError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrSyncInProgress indicates a run for the collection is already
	// in flight; the trigger was rejected, the collection is fine.
	ErrSyncInProgress = engine.ErrSyncInProgress
	// ErrQuotaExceeded indicates the daily API quota is exhausted.
	ErrQuotaExceeded = quota.ErrExceeded
	// ErrNotFound indicates the remote playlist or video does not exist.
	ErrNotFound = youtube.ErrNotFound
	// ErrRateLimited indicates the remote API rejected a call for rate
	// reasons; it is retried automatically before surfacing.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrAuthExpired indicates authorization failed even after a token
	// refresh.
	ErrAuthExpired = youtube.ErrAuthExpired
)

// IsQuotaDenial reports whether an error is a quota denial, either from
// the local ledger or from the remote API.
func IsQuotaDenial(err error) bool {
	return engine.IsQuotaDenial(err)
}
