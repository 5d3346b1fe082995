// Package cache keeps the most recent series per instrument in memory.
package cache

import (
	"context"
	"sync"
	"time"

	"MarketDashboard/internal/model"
)

// State is an entry's freshness.
type State int

const (
	Empty State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "empty"
	}
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Entry is one instrument's cached series. Entries are replaced whole, never mutated.
type Entry struct {
	Key         string
	Series      model.Series
	RefreshedAt time.Time
	TTL         time.Duration
}

// RefreshFunc fetches a new series. An empty result or an error keeps the old entry.
type RefreshFunc func(ctx context.Context) (model.Series, error)

// Cache maps instrument keys to their last successful refresh.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry), Now: time.Now}
}

// GetOrRefresh returns the cached series for key if it is younger than ttl.
// Otherwise it calls refresh; a non-empty result replaces the entry, anything
// else leaves the previous series (possibly expired) in place and returns it.
// With no previous series and a failed refresh it returns an empty series.
//
// The refresh runs outside the lock, so concurrent callers may refresh the
// same key more than once. The last writer wins.
func (c *Cache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh RefreshFunc) (model.Series, error) {
	if e, ok := c.get(key); ok && c.Now().Sub(e.RefreshedAt) < ttl {
		return e.Series.Clone(), nil
	}

	s, err := refresh(ctx)
	if err == nil && len(s) > 0 {
		c.Store(key, ttl, s)
		return s.Clone(), nil
	}

	if e, ok := c.get(key); ok {
		return e.Series.Clone(), err
	}
	return model.Series{}, err
}

// Store replaces key's entry with s and resets its refresh time.
func (c *Cache) Store(key string, ttl time.Duration, s model.Series) {
	e := Entry{Key: key, Series: s.Clone(), RefreshedAt: c.Now(), TTL: ttl}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Peek returns key's entry and its state without refreshing.
func (c *Cache) Peek(key string) (Entry, State) {
	e, ok := c.get(key)
	if !ok {
		return Entry{Key: key}, Empty
	}
	e.Series = e.Series.Clone()
	if c.Now().Sub(e.RefreshedAt) < e.TTL {
		return e, Fresh
	}
	return e, Stale
}

func (c *Cache) get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}
