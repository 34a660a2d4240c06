package assetcache

import (
	"context"
	"testing"
	"time"
)

// waitFor polls cond every 5ms until it returns true or timeout elapses,
// failing the test if it never does. Hot reload is asynchronous by design,
// so tests observe it by polling rather than asserting immediately.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHotReloadUpdatesAssetInPlace(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.Put("cfg", "txt", []byte("v1"))
	c := New(src, WithHotReload(10*time.Millisecond))
	defer c.Close()

	at := NewAssetType(String(), "txt")
	l, err := at.Load(context.Background(), c, "cfg")
	if err != nil {
		t.Fatal(err)
	}

	src.Put("cfg", "txt", []byte("v2"))
	src.Trigger("cfg")

	waitFor(t, time.Second, func() bool {
		ref, err := l.Read()
		if err != nil {
			return false
		}
		defer ref.Release()
		return *ref.Get() == "v2"
	})
}

func TestHotReloadCascadesIntoCompound(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.Put("name", "txt", []byte("world"))
	c := New(src, WithHotReload(10*time.Millisecond))
	defer c.Close()

	name := NewAssetType(String(), "txt")
	greeting := NewCompoundType(func(ctx context.Context, bc *BuildContext) (string, error) {
		n, err := LoadAsset(bc, name, c, "name")
		if err != nil {
			return "", err
		}
		ref, err := n.Read()
		if err != nil {
			return "", err
		}
		defer ref.Release()
		return "hello, " + *ref.Get(), nil
	})

	l, err := greeting.Load(context.Background(), c, "greeting")
	if err != nil {
		t.Fatal(err)
	}

	src.Put("name", "txt", []byte("there"))
	src.Trigger("name")

	waitFor(t, time.Second, func() bool {
		ref, err := l.Read()
		if err != nil {
			return false
		}
		defer ref.Release()
		return *ref.Get() == "hello, there"
	})
}

func TestHotReloadFailedReloadKeepsPriorValue(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.Put("cfg", "txt", []byte("v1"))
	c := New(src, WithHotReload(10*time.Millisecond))
	defer c.Close()

	at := NewAssetType(String(), "txt")
	l, err := at.Load(context.Background(), c, "cfg")
	if err != nil {
		t.Fatal(err)
	}

	// Removing the backing file makes the next reload attempt fail; the
	// entry must keep serving its last good value rather than being
	// poisoned.
	src.Remove("cfg", "txt")
	src.Trigger("cfg")

	// Give the (failing) reload a chance to run, then assert the old value
	// is still being served.
	time.Sleep(100 * time.Millisecond)

	ref, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Release()
	if got := *ref.Get(); got != "v1" {
		t.Errorf("got %q, want v1 preserved after failed reload", got)
	}
}

// TestAddDirCreatesNewlyDiscoveredMembers: a membership change on a
// watched directory must load and install an entry for every newly
// discovered leaf, not merely invalidate the next LoadDir's snapshot.
func TestAddDirCreatesNewlyDiscoveredMembers(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.dirs["sprites"] = []string{"hero"}
	src.Put("sprites.hero", "txt", []byte("hero-data"))

	c := New(src, WithHotReload(10*time.Millisecond))
	defer c.Close()
	at := NewAssetType(String(), "txt")

	dir, err := at.LoadDir(context.Background(), c, "sprites")
	if err != nil {
		t.Fatal(err)
	}
	if dir.Len() != 1 {
		t.Fatalf("got %d entries, want 1", dir.Len())
	}

	if err := AddDir(c.reloader, at, "sprites"); err != nil {
		t.Fatal(err)
	}

	// A new leaf appears in the directory without any explicit Load.
	src.mu.Lock()
	src.dirs["sprites"] = append(src.dirs["sprites"], "villain")
	src.mu.Unlock()
	src.Put("sprites.villain", "txt", []byte("villain-data"))
	src.Trigger("sprites")

	waitFor(t, time.Second, func() bool {
		return at.Contains(c, "sprites.villain")
	})

	l, ok := at.LoadCached(c, "sprites.villain")
	if !ok {
		t.Fatal("expected the newly discovered member to have a live entry")
	}
	ref, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Release()
	if *ref.Get() != "villain-data" {
		t.Errorf("got %q, want villain-data", *ref.Get())
	}
}

func TestWithReloadWorkersAllowsParallelDispatch(t *testing.T) {
	t.Parallel()

	src := newMemSource()
	src.Put("a", "txt", []byte("1"))
	src.Put("b", "txt", []byte("2"))
	c := New(src, WithHotReload(10*time.Millisecond), WithReloadWorkers(4))
	defer c.Close()

	at := NewAssetType(String(), "txt")
	la, err := at.Load(context.Background(), c, "a")
	if err != nil {
		t.Fatal(err)
	}
	lb, err := at.Load(context.Background(), c, "b")
	if err != nil {
		t.Fatal(err)
	}

	src.Put("a", "txt", []byte("1-new"))
	src.Put("b", "txt", []byte("2-new"))
	src.Trigger("a")
	src.Trigger("b")

	waitFor(t, time.Second, func() bool {
		ra, err := la.Read()
		if err != nil {
			return false
		}
		defer ra.Release()
		rb, err := lb.Read()
		if err != nil {
			return false
		}
		defer rb.Release()
		return *ra.Get() == "1-new" && *rb.Get() == "2-new"
	})
}
