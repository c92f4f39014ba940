// Package memstore is an in-process anchor collection. A Collection plays the
// role of the shared database; each Client is one device's adapter handle with
// its own subscription slot. It backs the CLI's memory backend and the tests.
package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
)

// Collection is the shared document set.
type Collection struct {
	mu      sync.Mutex
	docs    map[string]model.AnchorRecord
	order   []string
	version uint64
	subs    map[*subscription]struct{}
}

type subscription struct {
	fn        remote.SnapshotFunc
	delivered atomic.Uint64
	closed    atomic.Bool
}

// deliver hands v's snapshot to the subscriber unless a newer one already went out.
func (s *subscription) deliver(version uint64, recs []model.AnchorRecord) {
	for {
		if s.closed.Load() {
			return
		}
		last := s.delivered.Load()
		if version <= last && last != 0 {
			return
		}
		if s.delivered.CompareAndSwap(last, version) {
			s.fn(recs)
			return
		}
	}
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		docs: make(map[string]model.AnchorRecord),
		subs: make(map[*subscription]struct{}),
	}
}

// Connect returns a new client handle on the collection.
func (c *Collection) Connect() *Client {
	return &Client{coll: c, calls: make(map[string]int)}
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) snapshotLocked() []model.AnchorRecord {
	out := make([]model.AnchorRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].Clone())
	}
	return out
}

func (c *Collection) putLocked(rec model.AnchorRecord) {
	if _, ok := c.docs[rec.ID]; !ok {
		c.order = append(c.order, rec.ID)
	}
	c.docs[rec.ID] = rec.Clone()
}

func (c *Collection) deleteLocked(id string) {
	if _, ok := c.docs[id]; !ok {
		return
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// mutate runs fn under the lock and, when fn reports a change, fans the new
// state out to subscribers after the lock is released.
func (c *Collection) mutate(fn func() (bool, error)) error {
	c.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		c.mu.Unlock()
		return err
	}
	c.version++
	version := c.version
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	for _, s := range subs {
		s.deliver(version, model.CloneAll(snap))
	}
	return nil
}

// Client is one adapter handle on a Collection. It implements remote.Store.
type Client struct {
	coll *Collection

	mu    sync.Mutex
	fault func(op, id string) error
	calls map[string]int
	sub   *subscription
}

var _ remote.Store = (*Client)(nil)

// SetFault installs a hook consulted before every operation; a non-nil return
// fails the operation without touching the collection.
func (c *Client) SetFault(fn func(op, id string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = fn
}

// Calls returns how many times op was invoked on this client.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Client) enter(ctx context.Context, op, id string) error {
	c.mu.Lock()
	c.calls[op]++
	fault := c.fault
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.Unavailable(op, err)
	}
	if fault != nil {
		return fault(op, id)
	}
	return nil
}

// GetAll returns every document in insertion order.
func (c *Client) GetAll(ctx context.Context) ([]model.AnchorRecord, error) {
	if err := c.enter(ctx, "getAll", ""); err != nil {
		return nil, err
	}
	c.coll.mu.Lock()
	defer c.coll.mu.Unlock()
	return c.coll.snapshotLocked(), nil
}

// Get returns one document.
func (c *Client) Get(ctx context.Context, id string) (*model.AnchorRecord, error) {
	if err := c.enter(ctx, "get", id); err != nil {
		return nil, err
	}
	c.coll.mu.Lock()
	defer c.coll.mu.Unlock()
	rec, ok := c.coll.docs[id]
	if !ok {
		return nil, model.NotFound("get", id)
	}
	out := rec.Clone()
	return &out, nil
}

// Put creates or replaces a document.
func (c *Client) Put(ctx context.Context, rec model.AnchorRecord) error {
	if err := c.enter(ctx, "put", rec.ID); err != nil {
		return err
	}
	return c.coll.mutate(func() (bool, error) {
		c.coll.putLocked(rec)
		return true, nil
	})
}

// Update patches an existing document.
func (c *Client) Update(ctx context.Context, id string, patch model.Patch) error {
	if err := c.enter(ctx, "update", id); err != nil {
		return err
	}
	return c.coll.mutate(func() (bool, error) {
		rec, ok := c.coll.docs[id]
		if !ok {
			return false, model.NotFound("update", id)
		}
		patch.Apply(&rec)
		c.coll.docs[id] = rec
		return true, nil
	})
}

// Delete removes a document; deleting a missing id succeeds.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.enter(ctx, "delete", id); err != nil {
		return err
	}
	return c.coll.mutate(func() (bool, error) {
		_, ok := c.coll.docs[id]
		c.coll.deleteLocked(id)
		return ok, nil
	})
}

// PutBatch writes all records atomically.
func (c *Client) PutBatch(ctx context.Context, recs []model.AnchorRecord) error {
	if err := c.enter(ctx, "putBatch", ""); err != nil {
		return err
	}
	return c.coll.mutate(func() (bool, error) {
		for _, r := range recs {
			c.coll.putLocked(r)
		}
		return len(recs) > 0, nil
	})
}

// DeleteAll empties the collection.
func (c *Client) DeleteAll(ctx context.Context) error {
	if err := c.enter(ctx, "deleteAll", ""); err != nil {
		return err
	}
	return c.coll.mutate(func() (bool, error) {
		changed := len(c.coll.docs) > 0
		c.coll.docs = make(map[string]model.AnchorRecord)
		c.coll.order = nil
		return changed, nil
	})
}

// SubscribeCollection registers fn, replacing this client's previous
// subscription, and delivers the current state before returning.
func (c *Client) SubscribeCollection(ctx context.Context, fn remote.SnapshotFunc) (remote.Unsubscribe, error) {
	if err := c.enter(ctx, "subscribe", ""); err != nil {
		return nil, err
	}
	s := &subscription{fn: fn}

	c.mu.Lock()
	prev := c.sub
	c.sub = s
	c.mu.Unlock()
	c.coll.detach(prev)

	c.coll.mu.Lock()
	c.coll.subs[s] = struct{}{}
	version := c.coll.version
	snap := c.coll.snapshotLocked()
	c.coll.mu.Unlock()

	s.deliver(version, snap)

	return func() {
		c.mu.Lock()
		if c.sub == s {
			c.sub = nil
		}
		c.mu.Unlock()
		c.coll.detach(s)
	}, nil
}

func (c *Collection) detach(s *subscription) {
	if s == nil {
		return
	}
	s.closed.Store(true)
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}
