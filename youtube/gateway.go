// Package youtube implements the remote gateway on the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"

	"playsync/retry"
	"playsync/storage"
)

// Sentinel errors for remote failure classes. The concrete client wraps
// API errors into these; everything else is treated as transient.
var (
	// ErrNotFound indicates the remote playlist or video does not exist.
	ErrNotFound = errors.New("remote resource not found")
	// ErrQuotaExceeded indicates the remote rejected the call for daily
	// quota exhaustion.
	ErrQuotaExceeded = errors.New("remote quota exceeded")
	// ErrRateLimited indicates a per-second rate limit rejection.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthExpired indicates the access token was rejected.
	ErrAuthExpired = errors.New("authorization expired")
)

// MaxBatchSize is the API's per-call bound for both playlist item pages
// and video batches.
const MaxBatchSize = 50

// CollectionMeta is playlist-level metadata.
type CollectionMeta struct {
	ID        string
	Title     string
	ChannelID string
	ItemCount int64
}

// ItemPage is one page of playlist membership, in playlist order.
type ItemPage struct {
	VideoIDs      []string
	NextPageToken string
}

// Costs holds per-operation quota prices in API units.
type Costs struct {
	CollectionMeta int
	ItemPage       int
	VideoBatch     int
}

// DefaultCosts matches the Data API's list-operation pricing.
func DefaultCosts() Costs {
	return Costs{CollectionMeta: 1, ItemPage: 1, VideoBatch: 1}
}

// Gateway is the capability interface the sync engine consumes. New
// remote sources implement this interface; the engine never sees the
// transport underneath.
type Gateway interface {
	FetchCollectionMeta(ctx context.Context, id string) (*CollectionMeta, error)
	FetchCollectionItems(ctx context.Context, id, pageToken string) (*ItemPage, error)
	FetchVideosBatch(ctx context.Context, ids []string) ([]storage.Video, error)
	Costs() Costs
}

// Classify maps a gateway error to a retry class. Ledger denials are
// handled before the executor ever runs, so only remote failures
// arrive here.
func Classify(err error) retry.Class {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return retry.ClassQuotaExceeded
	case errors.Is(err, ErrAuthExpired):
		return retry.ClassAuthExpired
	case errors.Is(err, ErrNotFound):
		return retry.ClassFatal
	default:
		// Rate limits, timeouts and 5xx all retry per policy.
		return retry.ClassTransient
	}
}
