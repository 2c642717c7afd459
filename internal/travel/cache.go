package travel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
)

// CostCache stores resolved origin->destination travel cells so repeated
// recommendation rounds for the same room skip provider calls.
type CostCache interface {
	Get(ctx context.Context, origin, destination models.Coord) (maps.MatrixCell, bool)
	Set(ctx context.Context, origin, destination models.Coord, cell maps.MatrixCell)
}

func pairKey(a, b models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}

type memEntry struct {
	cell maps.MatrixCell
	ts   time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memEntry
	ttl   time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]memEntry), ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context, origin, destination models.Coord) (maps.MatrixCell, bool) {
	k := pairKey(origin, destination)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return maps.MatrixCell{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return maps.MatrixCell{}, false
	}
	return e.cell, true
}

func (c *MemoryCache) Set(_ context.Context, origin, destination models.Coord, cell maps.MatrixCell) {
	k := pairKey(origin, destination)
	c.mu.Lock()
	c.store[k] = memEntry{cell: cell, ts: time.Now()}
	c.mu.Unlock()
}
