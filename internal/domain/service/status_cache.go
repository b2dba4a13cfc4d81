package service

import (
	"context"
	"sync"
	"time"

	"dwelo-bridge/internal/domain/model"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// StatusCache collapses concurrent aggregate status fetches into one vendor
// call and serves the result for a short TTL.
type StatusCache struct {
	fetch func(context.Context) (*model.Snapshot, error)
	ttl   time.Duration
	clock clockwork.Clock
	group singleflight.Group

	mu      sync.RWMutex
	snap    *model.Snapshot
	fetched time.Time
}

func NewStatusCache(fetch func(context.Context) (*model.Snapshot, error), ttl time.Duration, clock clockwork.Clock) *StatusCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StatusCache{fetch: fetch, ttl: ttl, clock: clock}
}

// Get returns the cached snapshot if it is younger than the TTL and fetches
// otherwise.
func (c *StatusCache) Get(ctx context.Context) (*model.Snapshot, error) {
	c.mu.RLock()
	snap, fetched := c.snap, c.fetched
	c.mu.RUnlock()
	if snap != nil && c.clock.Since(fetched) < c.ttl {
		return snap, nil
	}
	return c.Fresh(ctx)
}

// Fresh always goes to the vendor, joining a fetch already in flight.
func (c *StatusCache) Fresh(ctx context.Context) (*model.Snapshot, error) {
	ch := c.group.DoChan("status", func() (any, error) {
		snap, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = snap
		c.fetched = c.clock.Now()
		c.mu.Unlock()
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*model.Snapshot), nil
	}
}

// Latest returns the last snapshot without fetching. It may be nil.
func (c *StatusCache) Latest() *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *StatusCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.fetched = time.Time{}
}
