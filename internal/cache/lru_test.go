package cache

import (
	"strconv"
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	c.Set("k", "v2")
	if got, _ := c.Get("k"); got != "v2" {
		t.Fatalf("overwrite not visible: %q", got)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set("k"+strconv.Itoa(i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 missing before eviction")
	}

	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("k1 should have been evicted")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Fatalf("%s unexpectedly evicted", key)
		}
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set("k", 1)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry served")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Fatalf("Size = %d after cleanup", c.Size())
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set("k"+strconv.Itoa(i), i)
	}

	c.Purge()

	if c.Size() != 0 {
		t.Fatalf("Size = %d after purge", c.Size())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("purged entry served")
	}

	// The cache stays usable after a purge.
	c.Set("fresh", 42)
	if got, ok := c.Get("fresh"); !ok || got != 42 {
		t.Fatalf("Get after purge = %d, %v", got, ok)
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("deleted entry served")
	}
	// Deleting a missing key is a no-op.
	c.Delete("missing")
}
