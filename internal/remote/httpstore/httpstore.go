// Package httpstore adapts the sync server's bulk endpoints to remote.Store.
// Single-document writes are read-modify-write cycles over the whole set;
// concurrent writers on other devices can overwrite each other, which the
// websocket feed then reconciles.
package httpstore

import (
	"context"
	"sync"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
	"github.com/jwgray1010/PawCoin/internal/syncclient"
)

// Store is a remote.Store over a sync server.
type Store struct {
	client *syncclient.Client

	writeMu sync.Mutex

	feedMu  sync.Mutex
	watcher *syncclient.Watcher
}

var _ remote.Store = (*Store)(nil)

// New wraps client.
func New(client *syncclient.Client) *Store {
	return &Store{client: client}
}

func (s *Store) GetAll(ctx context.Context) ([]model.AnchorRecord, error) {
	return s.client.Pull(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (*model.AnchorRecord, error) {
	all, err := s.client.Pull(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(all, id); i >= 0 {
		return &all[i], nil
	}
	return nil, model.NotFound("get", id)
}

func (s *Store) Put(ctx context.Context, rec model.AnchorRecord) error {
	return s.PutBatch(ctx, []model.AnchorRecord{rec})
}

func (s *Store) PutBatch(ctx context.Context, recs []model.AnchorRecord) error {
	return s.modify(ctx, func(all []model.AnchorRecord) ([]model.AnchorRecord, bool, error) {
		for _, rec := range recs {
			if i := indexOf(all, rec.ID); i >= 0 {
				all[i] = rec.Clone()
			} else {
				all = append(all, rec.Clone())
			}
		}
		return all, len(recs) > 0, nil
	})
}

func (s *Store) Update(ctx context.Context, id string, patch model.Patch) error {
	return s.modify(ctx, func(all []model.AnchorRecord) ([]model.AnchorRecord, bool, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, false, model.NotFound("update", id)
		}
		patch.Apply(&all[i])
		return all, true, nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.modify(ctx, func(all []model.AnchorRecord) ([]model.AnchorRecord, bool, error) {
		i := indexOf(all, id)
		if i < 0 {
			return all, false, nil
		}
		return append(all[:i], all[i+1:]...), true, nil
	})
}

func (s *Store) DeleteAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.client.Push(ctx, []model.AnchorRecord{})
}

// SubscribeCollection opens the server's websocket feed, replacing any feed
// this store already holds.
func (s *Store) SubscribeCollection(ctx context.Context, onSnapshot remote.SnapshotFunc) (remote.Unsubscribe, error) {
	w, err := s.client.Watch(ctx, onSnapshot)
	if err != nil {
		return nil, err
	}

	s.feedMu.Lock()
	prev := s.watcher
	s.watcher = w
	s.feedMu.Unlock()
	if prev != nil {
		prev.Close()
	}

	return func() {
		s.feedMu.Lock()
		if s.watcher == w {
			s.watcher = nil
		}
		s.feedMu.Unlock()
		w.Close()
	}, nil
}

func (s *Store) modify(ctx context.Context, fn func([]model.AnchorRecord) ([]model.AnchorRecord, bool, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.client.Pull(ctx)
	if err != nil {
		return err
	}
	next, changed, err := fn(all)
	if err != nil || !changed {
		return err
	}
	return s.client.Push(ctx, next)
}

func indexOf(all []model.AnchorRecord, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
