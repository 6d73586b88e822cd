package cache

import (
	"sync"
	"time"
)

// Aggregate names the cached read models. Every successful mutation on a
// domain invalidates the matching aggregate for the affected users instead
// of refetching everywhere.
type Aggregate string

const (
	AggregateFriends    Aggregate = "friends"
	AggregateChallenges Aggregate = "challenges"
	AggregateActivity   Aggregate = "activity"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a per-process TTL cache keyed by (userID, aggregate).
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

func key(userID string, agg Aggregate) string {
	return userID + ":" + string(agg)
}

func (c *Cache) Get(userID string, agg Aggregate) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(userID, agg)]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key(userID, agg))
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(userID string, agg Aggregate, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(userID, agg)] = &entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops the aggregate for every listed user. Mutations call this
// for all parties whose view changed, e.g. both sides of an accepted
// friend request.
func (c *Cache) Invalidate(agg Aggregate, userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range userIDs {
		delete(c.entries, key(id, agg))
	}
}

// Cleanup evicts expired entries once a minute. Run it in a goroutine from
// main, same as the rate limiter's visitor sweep.
func (c *Cache) Cleanup() {
	for {
		time.Sleep(time.Minute)
		c.mu.Lock()
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}
