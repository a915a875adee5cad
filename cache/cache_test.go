package cache

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	c := New(0)

	fp := Fingerprint("playlists.get", "PLabc123")
	c.Set(fp, "payload", time.Minute)

	got, ok := c.Get(fp)
	if !ok {
		t.Fatal("Get() missed immediately after Set()")
	}
	if got != "payload" {
		t.Errorf("Get() = %v, want %q", got, "payload")
	}
}

func TestMiss(t *testing.T) {
	c := New(0)

	if _, ok := c.Get(Fingerprint("playlists.get", "unknown")); ok {
		t.Error("Get() returned a hit for an unset fingerprint")
	}
}

func TestExpiry(t *testing.T) {
	c := New(0)
	base := time.Now()
	c.now = func() time.Time { return base }

	fp := Fingerprint("videos.list", "a", "b")
	c.Set(fp, 42, 30*time.Minute)

	c.now = func() time.Time { return base.Add(29 * time.Minute) }
	if _, ok := c.Get(fp); !ok {
		t.Error("Get() missed before TTL elapsed")
	}

	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, ok := c.Get(fp); ok {
		t.Error("Get() hit after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expired access, want 0", c.Len())
	}
}

func TestLastSetWins(t *testing.T) {
	c := New(0)

	fp := Fingerprint("playlists.get", "PLabc123")
	c.Set(fp, "old", time.Minute)
	c.Set(fp, "new", time.Minute)

	got, _ := c.Get(fp)
	if got != "new" {
		t.Errorf("Get() = %v, want %q", got, "new")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestZeroTTLIgnored(t *testing.T) {
	c := New(0)

	c.Set("k", "v", 0)
	if _, ok := c.Get("k"); ok {
		t.Error("Get() hit after Set with zero ttl")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")

	c.Set("c", 3, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("playlistItems.list", "PL1", "page2")
	b := Fingerprint("playlistItems.list", "PL1", "page2")
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %q vs %q", a, b)
	}

	if Fingerprint("playlistItems.list", "PL1") == Fingerprint("playlistItems.list", "PL2") {
		t.Error("different params produced the same fingerprint")
	}
	if Fingerprint("op", "ab", "c") == Fingerprint("op", "a", "bc") {
		t.Error("parameter boundaries are not part of the fingerprint")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(100)
	fp := Fingerprint("playlists.get", "PL1")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				c.Set(fp, n, time.Minute)
				c.Get(fp)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if _, ok := c.Get(fp); !ok {
		t.Error("entry lost after concurrent access")
	}
}
