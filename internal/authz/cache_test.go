package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore counts Applications loads and can be made to fail or stall.
type countingStore struct {
	memStore
	loads atomic.Int64
	delay time.Duration
	fail  atomic.Bool
}

func (s *countingStore) Applications(ctx context.Context) ([]Application, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail.Load() {
		return nil, errors.New("store down")
	}
	s.loads.Add(1)
	return s.memStore.Applications(ctx)
}

func testApps() map[string]Application {
	return map[string]Application{
		"budgets": {Key: "budgets", Path: "/budgets", RequiresAuth: true, Active: true},
		"prayer":  {Key: "prayer", Path: "/prayer", RequiresAuth: true, Active: true},
	}
}

func TestAppCache_TTL(t *testing.T) {
	store := &countingStore{memStore: memStore{apps: testApps()}}
	cache := NewAppCache(store, 30*time.Second)

	now := time.Now()
	cache.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		app, err := cache.Application(context.Background(), "budgets")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if app == nil || app.Key != "budgets" {
			t.Fatalf("unexpected app %+v", app)
		}
	}
	if n := store.loads.Load(); n != 1 {
		t.Fatalf("expected 1 load inside TTL, got %d", n)
	}

	now = now.Add(31 * time.Second)
	if _, err := cache.Application(context.Background(), "budgets"); err != nil {
		t.Fatalf("lookup after TTL: %v", err)
	}
	if n := store.loads.Load(); n != 2 {
		t.Fatalf("expected refresh after TTL, got %d loads", n)
	}
}

func TestAppCache_SingleFlightRefresh(t *testing.T) {
	store := &countingStore{memStore: memStore{apps: testApps()}, delay: 50 * time.Millisecond}
	cache := NewAppCache(store, 30*time.Second)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ByPath(context.Background(), "/budgets/2026"); err != nil {
				t.Errorf("concurrent lookup: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.loads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 load for %d concurrent cold lookups, got %d", n, got)
	}
}

func TestAppCache_ByPathLongestPrefix(t *testing.T) {
	store := &countingStore{memStore: memStore{apps: testApps()}}
	cache := NewAppCache(store, time.Minute)

	for path, want := range map[string]string{
		"/budgets":            "budgets",
		"/budgets/":           "budgets",
		"/budgets/2026/lines": "budgets",
		"/prayer/requests/9":  "prayer",
	} {
		app, err := cache.ByPath(context.Background(), path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if app == nil || app.Key != want {
			t.Fatalf("%s: got %+v, want key %s", path, app, want)
		}
	}

	app, err := cache.ByPath(context.Background(), "/totally/unmapped")
	if err != nil {
		t.Fatalf("unmapped path: %v", err)
	}
	if app != nil {
		t.Fatalf("expected nil for unmapped path, got %+v", app)
	}
}

func TestAppCache_ServesStaleOnRefreshFailure(t *testing.T) {
	store := &countingStore{memStore: memStore{apps: testApps()}}
	cache := NewAppCache(store, 30*time.Second)

	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, err := cache.Application(context.Background(), "budgets"); err != nil {
		t.Fatalf("warm-up: %v", err)
	}

	store.fail.Store(true)
	now = now.Add(time.Minute)

	// A failed refresh must not take down requests while a previous snapshot
	// exists.
	app, err := cache.Application(context.Background(), "budgets")
	if err != nil {
		t.Fatalf("expected stale snapshot, got error: %v", err)
	}
	if app == nil || app.Key != "budgets" {
		t.Fatalf("unexpected app %+v", app)
	}
}

func TestAppCache_ColdFailurePropagates(t *testing.T) {
	store := &countingStore{memStore: memStore{apps: testApps()}}
	store.fail.Store(true)
	cache := NewAppCache(store, time.Minute)

	if _, err := cache.Application(context.Background(), "budgets"); err == nil {
		t.Fatal("expected error on cold cache with failing store")
	}
}
