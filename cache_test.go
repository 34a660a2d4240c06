package assetcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCacheLenTracksEntries(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	c := New(src)
	at := NewAssetType(String(), "txt")

	if c.Len() != 0 {
		t.Fatalf("got %d, want 0 on an empty cache", c.Len())
	}

	at.Insert(c, "a", "1")
	at.Insert(c, "b", "2")
	if c.Len() != 2 {
		t.Fatalf("got %d, want 2", c.Len())
	}

	at.Remove(c, "a")
	if c.Len() != 1 {
		t.Fatalf("got %d, want 1 after Remove", c.Len())
	}
}

// TestGetOrCreateEntryRaceSafety covers the "exactly one creator" invariant
// getOrCreateEntry documents: under concurrent misses for the same id, only
// one goroutine must see created == true.
func TestGetOrCreateEntryRaceSafety(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	c := New(src)
	key := entryKey{typ: NewAssetType(String(), "txt").typ(), id: "shared"}

	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	creators := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, created := c.getOrCreateEntry(key, nil)
			if created {
				mu.Lock()
				creators++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if creators != 1 {
		t.Errorf("got %d creators, want exactly 1", creators)
	}
}

func TestWithMetricsRegistersCollectors(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.Put("a", "txt", []byte("1"))
	reg := prometheus.NewRegistry()
	c := New(src, WithMetrics(reg, "test"))

	at := NewAssetType(String(), "txt")
	if _, err := at.Load(context.Background(), c, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := at.Load(context.Background(), c, "missing"); err == nil {
		t.Fatal("expected an error loading a nonexistent id")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	names := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		names[f.GetName()] = f
	}

	if _, ok := names["test_assetcache_load_total"]; !ok {
		t.Error("expected test_assetcache_load_total to be registered")
	}
	if _, ok := names["test_assetcache_entries"]; !ok {
		t.Error("expected test_assetcache_entries to be registered")
	}

	entries := names["test_assetcache_entries"]
	if got := entries.GetMetric()[0].GetGauge().GetValue(); got != float64(c.Len()) {
		t.Errorf("entries gauge reported %v, want %v", got, c.Len())
	}
}

// TestCloseDestroysEveryEntryExactlyOnce:
// dropping the cache must invoke each live entry's destructor exactly
// once, and Take must leave it un-invoked since ownership of the value
// passed to the caller instead.
func TestCloseDestroysEveryEntryExactlyOnce(t *testing.T) {
	t.Parallel()

	var drops int32
	src := newMemSource()
	c := New(src)
	at := NewAssetType(String(), "txt").WithDestructor(func(string) {
		atomic.AddInt32(&drops, 1)
	})

	at.Insert(c, "a", "1")
	at.Insert(c, "b", "2")

	taken, ok := at.Take(c, "b")
	if !ok || taken != "2" {
		t.Fatalf("Take returned (%q, %v), want (2, true)", taken, ok)
	}
	if got := atomic.LoadInt32(&drops); got != 0 {
		t.Errorf("Take must not invoke the destructor, got %d drops", got)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&drops); got != 1 {
		t.Errorf("got %d destructor invocations after Close, want exactly 1 (only entry %q remained)", got, "a")
	}
}

func TestDependentsOfIsEmptyForUnknownKey(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	c := New(src)
	key := entryKey{typ: NewAssetType(String(), "txt").typ(), id: fmt.Sprintf("nope-%d", 1)}
	if deps := c.dependentsOf(key); len(deps) != 0 {
		t.Errorf("got %v, want no dependents for an unregistered key", deps)
	}
}
