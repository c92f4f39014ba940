package anchor

import (
	"sync"

	"github.com/jwgray1010/PawCoin/internal/events"
	"github.com/jwgray1010/PawCoin/internal/model"
)

// Snapshot is the full anchor set handed to listeners.
type Snapshot = []model.AnchorRecord

// Cache is the last-known-good mirror of the remote collection.
//
// Every mutating call publishes exactly one snapshot on the bus after the
// mutation is applied. Snapshots are queued under the data lock and drained
// outside it, so delivery follows mutation order even when a listener mutates
// the cache again from inside its callback.
type Cache struct {
	bus *events.Bus[Snapshot]

	mu       sync.Mutex
	order    []string
	byID     map[string]model.AnchorRecord
	pending  []Snapshot
	draining bool
}

// NewCache creates an empty cache publishing on bus.
func NewCache(bus *events.Bus[Snapshot]) *Cache {
	return &Cache{bus: bus, byID: make(map[string]model.AnchorRecord)}
}

// ReplaceAll swaps the entire set.
func (c *Cache) ReplaceAll(records []model.AnchorRecord) {
	c.mutate(func() {
		c.order = make([]string, 0, len(records))
		c.byID = make(map[string]model.AnchorRecord, len(records))
		for _, r := range records {
			if _, dup := c.byID[r.ID]; !dup {
				c.order = append(c.order, r.ID)
			}
			c.byID[r.ID] = r.Clone()
		}
	})
}

// Upsert inserts rec or replaces the entry with the same id in place.
func (c *Cache) Upsert(rec model.AnchorRecord) {
	c.mutate(func() {
		if _, ok := c.byID[rec.ID]; !ok {
			c.order = append(c.order, rec.ID)
		}
		c.byID[rec.ID] = rec.Clone()
	})
}

// Remove drops id. It reports whether the id was present; a snapshot is
// published either way.
func (c *Cache) Remove(id string) bool {
	var found bool
	c.mutate(func() {
		if _, found = c.byID[id]; !found {
			return
		}
		delete(c.byID, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	})
	return found
}

// Patch applies p to the cached entry for id, if any.
func (c *Cache) Patch(id string, p model.Patch) bool {
	var found bool
	c.mutate(func() {
		var rec model.AnchorRecord
		if rec, found = c.byID[id]; !found {
			return
		}
		rec = rec.Clone()
		p.Apply(&rec)
		c.byID[id] = rec
	})
	return found
}

// Get returns a copy of the cached record.
func (c *Cache) Get(id string) (model.AnchorRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byID[id]
	if !ok {
		return model.AnchorRecord{}, false
	}
	return rec.Clone(), true
}

// All returns a snapshot of every record in insertion order.
func (c *Cache) All() []model.AnchorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *Cache) snapshotLocked() []model.AnchorRecord {
	out := make([]model.AnchorRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

func (c *Cache) mutate(fn func()) {
	c.mu.Lock()
	fn()
	c.pending = append(c.pending, c.snapshotLocked())
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		snap := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.bus.Publish(snap)
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
