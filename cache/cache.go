// Package cache provides a fingerprinted TTL cache for remote API
// responses. It is an optimization only: entries may be dropped at any
// time without affecting correctness, since every payload is an
// idempotent read of remote truth.
package cache

import (
	"container/list"
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// Default TTLs by operation class.
const (
	TTLCollectionMeta = 1 * time.Hour
	TTLItemPage       = 30 * time.Minute
	TTLVideoBatch     = 1 * time.Hour
)

// Fingerprint derives a stable cache key from an operation name and its
// ordered parameters.
func Fingerprint(op string, params ...string) string {
	h := fnv.New64a()
	h.Write([]byte(op))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return op + ":" + strconv.FormatUint(h.Sum64(), 16)
}

type entry struct {
	key       string
	payload   any
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache with an optional LRU entry cap.
// Last Set wins on concurrent writes to the same fingerprint.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // Front is most recently used
	maxEntries int

	now func() time.Time
}

// New creates a cache. maxEntries caps the number of live entries with
// LRU eviction; 0 means unbounded.
func New(maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached payload for the fingerprint, or ok=false on a
// miss. Expired entries are removed on access.
func (c *Cache) Get(fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}

	ent := el.Value.(*entry)
	if !c.now().Before(ent.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}

	c.order.MoveToFront(el)
	return ent.payload, true
}

// Set stores the payload under the fingerprint for ttl. A non-positive
// ttl is a no-op.
func (c *Cache) Set(fingerprint string, payload any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.entries[fingerprint]; ok {
		ent := el.Value.(*entry)
		ent.payload = payload
		ent.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: fingerprint, payload: payload, expiresAt: expiresAt})
	c.entries[fingerprint] = el

	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}
}

// Delete drops an entry if present.
func (c *Cache) Delete(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[fingerprint]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of entries, including any not yet swept expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	delete(c.entries, ent.key)
	c.order.Remove(el)
}
