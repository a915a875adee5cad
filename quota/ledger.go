// Package quota tracks daily API call-cost consumption against a
// configured limit. The ledger is the single gate in front of every
// remote call that is not served from cache.
package quota

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultDailyLimit matches the YouTube Data API default quota.
const DefaultDailyLimit = 10000

// ErrExceeded is returned by Reserve when the requested cost would push
// the current UTC day over its limit. The ledger is left untouched.
var ErrExceeded = errors.New("quota exceeded")

// ExceededError carries the denial detail for callers that surface it.
type ExceededError struct {
	Requested int
	Remaining int
	ResetAt   time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: requested %d units, %d remaining until %s",
		e.Requested, e.Remaining, e.ResetAt.Format(time.RFC3339))
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// Usage is a point-in-time view of the current UTC-day bucket.
type Usage struct {
	Used      int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	used  int
	limit int
}

// Ledger is a day-bucketed quota counter. Buckets roll over lazily on
// the first reservation of a new UTC day; prior days are retained for
// reporting but never consulted for allow/deny.
type Ledger struct {
	mu    sync.Mutex
	limit int
	days  map[string]*bucket

	now func() time.Time
}

// NewLedger creates a ledger with the given daily limit. A non-positive
// limit falls back to DefaultDailyLimit.
func NewLedger(dailyLimit int) *Ledger {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Ledger{
		limit: dailyLimit,
		days:  make(map[string]*bucket),
		now:   time.Now,
	}
}

// Reserve atomically charges cost units against today's bucket. On
// denial the bucket is not mutated and an *ExceededError is returned, so
// the caller must skip the remote call entirely.
func (l *Ledger) Reserve(cost int) error {
	if cost < 0 {
		return fmt.Errorf("negative cost %d", cost)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.todayLocked()
	if b.used+cost > b.limit {
		return &ExceededError{
			Requested: cost,
			Remaining: b.limit - b.used,
			ResetAt:   nextUTCMidnight(l.now()),
		}
	}
	b.used += cost
	return nil
}

// Usage reports the current day's consumption. Reading also performs the
// lazy rollover so a fresh day never shows yesterday's numbers.
func (l *Ledger) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.todayLocked()
	return Usage{
		Used:      b.used,
		Limit:     b.limit,
		Remaining: b.limit - b.used,
		ResetAt:   nextUTCMidnight(l.now()),
	}
}

// Restore seeds a day bucket from persisted state, typically at startup.
// It never lowers an already-observed count.
func (l *Ledger) Restore(date string, used int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.days[date]
	if !ok {
		b = &bucket{limit: l.limit}
		l.days[date] = b
	}
	if used > b.used {
		b.used = used
	}
}

// Day is one materialized ledger bucket for reporting/persistence.
type Day struct {
	Date  string
	Used  int
	Limit int
}

// Days returns all retained buckets ordered by date.
func (l *Ledger) Days() []Day {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Day, 0, len(l.days))
	for date, b := range l.days {
		out = append(out, Day{Date: date, Used: b.used, Limit: b.limit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Today returns the current UTC day bucket as a Day.
func (l *Ledger) Today() Day {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.todayLocked()
	return Day{Date: dayKey(l.now()), Used: b.used, Limit: b.limit}
}

func (l *Ledger) todayLocked() *bucket {
	key := dayKey(l.now())
	b, ok := l.days[key]
	if !ok {
		b = &bucket{limit: l.limit}
		l.days[key] = b
	}
	return b
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
