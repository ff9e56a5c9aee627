// Package session holds the profile of every signed-in subject for the
// lifetime of the process.
package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"metawave/logger"
	"metawave/model"
)

// Loader fetches the profile of a subject from the store.
type Loader func(ctx context.Context, subject string) (*model.Profile, error)

// Cache is the single shared copy of each subject's profile. The first Get
// for a subject loads it; concurrent callers share that one load.
// Failed loads are not cached.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu       sync.Mutex
	profiles map[string]*model.Profile
	// epoch moves on every Set, Invalidate and Clear; a load that started
	// under an older epoch is returned but not stored.
	epoch uint64
}

func NewCache(load Loader) *Cache {
	return &Cache{load: load, profiles: make(map[string]*model.Profile)}
}

// Get returns a copy of the cached profile, loading it on first use.
// The load is detached from ctx so one cancelled caller cannot fail the
// others waiting on the same subject.
func (c *Cache) Get(ctx context.Context, subject string) (*model.Profile, error) {
	c.mu.Lock()
	if p, ok := c.profiles[subject]; ok {
		cp := *p
		c.mu.Unlock()
		return &cp, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	ch := c.group.DoChan(subject, func() (interface{}, error) {
		p, err := c.load(context.WithoutCancel(ctx), subject)
		if err != nil {
			logger.Debug("session profile load failed", logger.String("subject", subject), logger.ErrorField(err))
			return nil, err
		}
		c.mu.Lock()
		if c.epoch == epoch {
			cp := *p
			c.profiles[subject] = &cp
		}
		c.mu.Unlock()
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		cp := *res.Val.(*model.Profile)
		return &cp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set replaces the cached profile, e.g. after the subject edited it.
func (c *Cache) Set(p *model.Profile) {
	if p == nil {
		return
	}
	cp := *p
	c.mu.Lock()
	c.epoch++
	c.profiles[p.ID] = &cp
	c.mu.Unlock()
	c.group.Forget(p.ID)
}

// Invalidate drops the subject so the next Get reloads it.
func (c *Cache) Invalidate(subject string) {
	c.mu.Lock()
	c.epoch++
	delete(c.profiles, subject)
	c.mu.Unlock()
	c.group.Forget(subject)
}

// Clear drops every subject.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.epoch++
	c.profiles = make(map[string]*model.Profile)
	c.mu.Unlock()
}

// Len reports how many subjects are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.profiles)
}
