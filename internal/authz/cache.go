package authz

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AppCache is a short-TTL snapshot of the application table, keyed by both
// application key and route path, so the middleware does not hit the store on
// every request. Reads of a fresh snapshot take only an RLock; at most one
// refresh is in flight at a time. Constructed per process — no package-level
// state.
//
// AppCache implements Store (Permissions calls pass through uncached), so it
// can sit directly in front of a Resolver.
type AppCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	byKey   map[string]Application
	byPath  map[string]Application
	fetched time.Time

	group singleflight.Group
}

const defaultAppCacheTTL = 30 * time.Second

func NewAppCache(store Store, ttl time.Duration) *AppCache {
	if ttl <= 0 {
		ttl = defaultAppCacheTTL
	}
	return &AppCache{store: store, ttl: ttl, now: time.Now}
}

// Application returns the application with the given key, or (nil, nil) when
// no such application exists.
func (c *AppCache) Application(ctx context.Context, key string) (*Application, error) {
	byKey, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if app, ok := byKey[strings.ToLower(key)]; ok {
		return &app, nil
	}
	return nil, nil
}

// Applications returns the cached snapshot as a list.
func (c *AppCache) Applications(ctx context.Context) ([]Application, error) {
	byKey, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	apps := make([]Application, 0, len(byKey))
	for _, app := range byKey {
		apps = append(apps, app)
	}
	return apps, nil
}

// Permissions passes through to the underlying store. Permission rows are
// loaded per decision; only the route/application mapping is cached.
func (c *AppCache) Permissions(ctx context.Context, appKey string) ([]Permission, error) {
	return c.store.Permissions(ctx, appKey)
}

// ByPath finds the application gating the given request path by longest
// route-prefix match, or (nil, nil) when no application claims it.
func (c *AppCache) ByPath(ctx context.Context, path string) (*Application, error) {
	_, byPath, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	p := strings.TrimSuffix(path, "/")
	if p == "" {
		p = "/"
	}
	for {
		if app, ok := byPath[strings.ToLower(p)]; ok {
			return &app, nil
		}
		i := strings.LastIndex(p, "/")
		if i <= 0 {
			return nil, nil
		}
		p = p[:i]
	}
}

func (c *AppCache) snapshot(ctx context.Context) (map[string]Application, map[string]Application, error) {
	c.mu.RLock()
	if c.byKey != nil && c.now().Sub(c.fetched) < c.ttl {
		byKey, byPath := c.byKey, c.byPath
		c.mu.RUnlock()
		return byKey, byPath, nil
	}
	c.mu.RUnlock()

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.RLock()
		fresh := c.byKey != nil && c.now().Sub(c.fetched) < c.ttl
		c.mu.RUnlock()
		if fresh {
			return nil, nil
		}

		apps, err := c.store.Applications(ctx)
		if err != nil {
			return nil, err
		}

		byKey := make(map[string]Application, len(apps))
		byPath := make(map[string]Application, len(apps))
		for _, app := range apps {
			byKey[strings.ToLower(app.Key)] = app
			if app.Path != "" {
				byPath[strings.ToLower(strings.TrimSuffix(app.Path, "/"))] = app
			}
		}

		c.mu.Lock()
		c.byKey = byKey
		c.byPath = byPath
		c.fetched = c.now()
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		// Serve the previous snapshot if one exists; a refresh failure must
		// not take down every request for the TTL window.
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.byKey != nil {
			return c.byKey, c.byPath, nil
		}
		return nil, nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKey, c.byPath, nil
}
