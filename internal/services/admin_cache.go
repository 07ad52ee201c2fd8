package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/repo"
)

// AdminCache memoizes admin lookups with a TTL. Admin grants change rarely
// and every report submission fans a notification out to every admin, so
// the hot path reads from memory and refetches at most once per TTL.
type AdminCache struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	ids       []string
	fetchedAt time.Time
}

// NewAdminCache builds the cache; entries live for ttl.
func NewAdminCache(db *gorm.DB, ttl time.Duration) *AdminCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AdminCache{db: db, ttl: ttl, now: time.Now}
}

// AdminIDs returns the ids of every admin profile, refetching when the
// cached set has expired.
func (c *AdminCache) AdminIDs(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		out := make([]string, len(c.ids))
		copy(out, c.ids)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	ids, err := repo.ListAdminIDs(ctx, c.db)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.ids = ids
	c.fetchedAt = c.now()
	c.mu.Unlock()

	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// IsAdmin reports whether userID holds the admin flag, served from the
// cached set when fresh.
func (c *AdminCache) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ids, err := c.AdminIDs(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached set so the next read refetches. Call after
// granting or revoking an admin flag.
func (c *AdminCache) Invalidate() {
	c.mu.Lock()
	c.ids = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
