package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/timelog/pkg/logging"
)

// ErrNotFound is returned by Store.Get when no bundle exists for a key.
var ErrNotFound = errors.New("session: bundle not found")

var debugLog = logging.MustNew("session")

// Store persists bundles by key.
type Store interface {
	// Get returns the bundle stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (*Bundle, error)

	// Put replaces the bundle stored under key.
	Put(ctx context.Context, key string, bundle *Bundle) error

	// Delete removes the bundle stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
}

// Cache binds a Store to the single global session key and exposes the
// load/save/clear operations the browser flow uses.
type Cache struct {
	store Store
	key   string
	now   func() time.Time
}

// NewCache creates a cache over store using key.
func NewCache(store Store, key string) *Cache {
	return &Cache{store: store, key: key, now: time.Now}
}

// Load returns the cached cookies, or nil when nothing is cached.
// A corrupt or unreadable entry is logged and treated as a miss so the
// caller falls back to a fresh login.
func (c *Cache) Load(ctx context.Context) []Cookie {
	bundle, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			debugLog.Warnf("failed to load session %q: %v", c.key, err)
		}
		return nil
	}
	if len(bundle.Cookies) == 0 {
		return nil
	}
	return bundle.Cookies
}

// Save replaces the cached cookies.
func (c *Cache) Save(ctx context.Context, cookies []Cookie) error {
	bundle := &Bundle{
		Cookies: append([]Cookie(nil), cookies...),
		SavedAt: c.now().UTC(),
	}
	if err := c.store.Put(ctx, c.key, bundle); err != nil {
		return fmt.Errorf("failed to save session %q: %w", c.key, err)
	}
	debugLog.Infof("saved session %q with %d cookies", c.key, len(cookies))
	return nil
}

// Clear removes the cached session.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("failed to clear session %q: %w", c.key, err)
	}
	debugLog.Infof("cleared session %q", c.key)
	return nil
}
