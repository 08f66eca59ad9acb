package auth

import (
	"testing"
	"time"
)

func TestValidationCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newValidationCache(2, time.Minute)
	now := time.Now()

	c.Put("a", Context{KeyID: "a"}, now)
	c.Put("b", Context{KeyID: "b"}, now)
	c.Put("c", Context{KeyID: "c"}, now) // evicts "a", the least recently used

	if _, _, ok := c.Get("a", now); ok {
		t.Error("expected \"a\" to have been evicted")
	}
	if _, _, ok := c.Get("b", now); !ok {
		t.Error("expected \"b\" to still be cached")
	}
	if _, _, ok := c.Get("c", now); !ok {
		t.Error("expected \"c\" to still be cached")
	}
}

func TestValidationCache_StaleAfterTTL(t *testing.T) {
	c := newValidationCache(10, time.Second)
	now := time.Now()
	c.Put("a", Context{KeyID: "a"}, now)

	_, fresh, ok := c.Get("a", now.Add(2*time.Second))
	if !ok {
		t.Fatal("expected the entry to still be present past its TTL")
	}
	if fresh {
		t.Error("expected the entry to be reported stale past its TTL")
	}
}

func TestValidationCache_Invalidate(t *testing.T) {
	c := newValidationCache(10, time.Minute)
	now := time.Now()
	c.Put("a", Context{KeyID: "a"}, now)
	c.Invalidate("a")

	if _, _, ok := c.Get("a", now); ok {
		t.Error("expected the invalidated entry to be gone")
	}
}
