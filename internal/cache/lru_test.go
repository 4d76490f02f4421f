package cache

import (
	"testing"
	"time"
)

func TestDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("owner-1|monthly|0", 1)
	c.Set("owner-1|weekly|0", 2)
	c.Set("owner-2|monthly|0", 3)

	c.DeletePrefix("owner-1|")

	if _, ok := c.Get("owner-1|monthly|0"); ok {
		t.Fatal("owner-1 monthly entry survived prefix delete")
	}
	if _, ok := c.Get("owner-1|weekly|0"); ok {
		t.Fatal("owner-1 weekly entry survived prefix delete")
	}
	if _, ok := c.Get("owner-2|monthly|0"); !ok {
		t.Fatal("owner-2 entry removed by another owner's prefix")
	}
	if c.Size() != 1 {
		t.Fatalf("size=%d, want 1", c.Size())
	}
}

func TestExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	// Touch a so b is the least recently used entry
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry survived")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used entry evicted")
	}
}

func TestCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(20 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("removed=%d, want 2", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("size=%d after cleanup", c.Size())
	}
}
