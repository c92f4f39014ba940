package redisstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-redis/redis/v8"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
)

type feed struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// delivering is set while the callback runs on the feed goroutine.
	delivering atomic.Bool
}

// stop ends the feed and waits for the delivery goroutine to exit. When a
// delivery is in progress, which includes stop being called from the callback
// itself, it returns without waiting; that delivery is the last one.
func (f *feed) stop() {
	f.once.Do(func() {
		f.cancel()
		_ = f.pubsub.Close()
	})
	if f.delivering.Load() {
		return
	}
	<-f.done
}

// SubscribeCollection delivers the current collection before returning, then
// reloads and delivers it on every change notification. A second call
// replaces the first subscription.
func (s *Store) SubscribeCollection(ctx context.Context, onSnapshot remote.SnapshotFunc) (remote.Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, classify("subscribe", err)
	}
	initial, err := s.GetAll(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	f := &feed{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.feed
	s.feed = f
	s.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	onSnapshot(initial)
	go s.run(feedCtx, f, onSnapshot)

	return func() {
		s.mu.Lock()
		if s.feed == f {
			s.feed = nil
		}
		s.mu.Unlock()
		f.stop()
	}, nil
}

func (s *Store) run(ctx context.Context, f *feed, onSnapshot remote.SnapshotFunc) {
	defer close(f.done)
	ch := f.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			recs, err := s.GetAll(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error().Stack().Err(err).Msg("feed reload failed")
				}
				continue
			}
			f.delivering.Store(true)
			if ctx.Err() != nil {
				f.delivering.Store(false)
				return
			}
			onSnapshot(model.CloneAll(recs))
			f.delivering.Store(false)
		}
	}
}
