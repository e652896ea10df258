package resultcache

import (
	"os"
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	k := KeyFor(1, [][]byte{[]byte("in.c")}, []byte("PATH=/bin"))

	if _, ok := c.Get(k); ok {
		t.Fatal("expected a miss before any Put")
	}
	if err := c.Put(k, []byte("object file contents")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := c.Get(k)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if string(got) != "object file contents" {
		t.Errorf("Get = %q, want %q", got, "object file contents")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Stores != 1 {
		t.Errorf("Stats = %+v, want {Hits:1 Misses:1 Stores:1}", stats)
	}
}

func TestKeyForIsOrderSensitiveButDeterministic(t *testing.T) {
	k1 := KeyFor(1, [][]byte{[]byte("a"), []byte("b")}, []byte("env"))
	k2 := KeyFor(1, [][]byte{[]byte("a"), []byte("b")}, []byte("env"))
	if k1 != k2 {
		t.Error("KeyFor must be deterministic for identical inputs")
	}
	k3 := KeyFor(1, [][]byte{[]byte("b"), []byte("a")}, []byte("env"))
	if k1 == k3 {
		t.Error("KeyFor should distinguish differently-ordered inputs")
	}
}

func TestTrimRemovesOnlyStaleEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fresh := KeyFor(1, nil, nil)
	stale := KeyFor(2, nil, nil)
	if err := c.Put(fresh, []byte("fresh")); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	if err := c.Put(stale, []byte("stale")); err != nil {
		t.Fatalf("Put stale: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(c.path(stale), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := c.Trim(24 * time.Hour)
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if removed != 1 {
		t.Errorf("Trim removed %d entries, want 1", removed)
	}
	if _, ok := c.Get(fresh); !ok {
		t.Error("fresh entry should survive Trim")
	}
	if _, err := os.Stat(c.path(stale)); err == nil {
		t.Error("stale entry should have been removed")
	}
}
