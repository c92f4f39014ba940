// Package redisstore keeps the anchor collection in Redis. Documents live as
// JSON in one hash, insertion order in a sorted set, and every write publishes
// on a change channel that drives SubscribeCollection.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
)

const (
	defaultPrefix     = "pawcoin:"
	maxUpdateAttempts = 3
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key and channel.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger used by the subscription feed.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Store is a remote.Store backed by Redis.
type Store struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger

	mu   sync.Mutex
	feed *feed
}

var _ remote.Store = (*Store)(nil)

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classify("dial", err)
	}
	return New(client, opts...), nil
}

func (s *Store) docsKey() string  { return s.prefix + "anchors" }
func (s *Store) orderKey() string { return s.prefix + "anchors:order" }
func (s *Store) channel() string  { return s.prefix + "anchors:changed" }
func (s *Store) seqKey() string   { return s.prefix + "anchors:seq" }

// HealthPing checks connectivity.
func (s *Store) HealthPing(ctx context.Context) error {
	return classify("ping", s.client.Ping(ctx).Err())
}

// Close stops the feed and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	f := s.feed
	s.feed = nil
	s.mu.Unlock()
	if f != nil {
		f.stop()
	}
	return s.client.Close()
}

// GetAll returns every document in insertion order.
func (s *Store) GetAll(ctx context.Context) ([]model.AnchorRecord, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, classify("getAll", err)
	}
	out := make([]model.AnchorRecord, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, s.docsKey(), ids...).Result()
	if err != nil {
		return nil, classify("getAll", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// order entry without a document; a concurrent delete got in between
			continue
		}
		var rec model.AnchorRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("getAll: decode %q: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, id string) (*model.AnchorRecord, error) {
	raw, err := s.client.HGet(ctx, s.docsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, model.NotFound("get", id)
	}
	if err != nil {
		return nil, classify("get", err)
	}
	var rec model.AnchorRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("get: decode %q: %w", id, err)
	}
	return &rec, nil
}

// Put creates or replaces a document.
func (s *Store) Put(ctx context.Context, rec model.AnchorRecord) error {
	return s.PutBatch(ctx, []model.AnchorRecord{rec})
}

// PutBatch writes all records in one MULTI/EXEC.
func (s *Store) PutBatch(ctx context.Context, recs []model.AnchorRecord) error {
	if len(recs) == 0 {
		return nil
	}
	// Order scores come from a counter so records in one batch keep their order.
	last, err := s.client.IncrBy(ctx, s.seqKey(), int64(len(recs))).Result()
	if err != nil {
		return classify("put", err)
	}
	base := last - int64(len(recs)) + 1
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rec := range recs {
			body, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, s.docsKey(), rec.ID, body)
			pipe.ZAddNX(ctx, s.orderKey(), &redis.Z{Score: float64(base + int64(i)), Member: rec.ID})
		}
		pipe.Publish(ctx, s.channel(), "put")
		return nil
	})
	return classify("put", err)
}

// Update applies patch with an optimistic WATCH on the document hash.
func (s *Store) Update(ctx context.Context, id string, patch model.Patch) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.docsKey(), id).Result()
		if errors.Is(err, redis.Nil) {
			return model.NotFound("update", id)
		}
		if err != nil {
			return err
		}
		var rec model.AnchorRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode %q: %w", id, err)
		}
		patch.Apply(&rec)
		body, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.docsKey(), id, body)
			pipe.Publish(ctx, s.channel(), "update")
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, s.docsKey())
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if model.IsNotFound(err) {
		return err
	}
	return classify("update", err)
}

// Delete removes a document; deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.docsKey(), id)
		pipe.ZRem(ctx, s.orderKey(), id)
		pipe.Publish(ctx, s.channel(), "delete")
		return nil
	})
	return classify("delete", err)
}

// DeleteAll drops the whole collection.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docsKey(), s.orderKey())
		pipe.Publish(ctx, s.channel(), "clear")
		return nil
	})
	return classify("deleteAll", err)
}

// classify maps Redis failures onto the store error taxonomy. A nil err stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return model.Rejected(op, err)
	}
	msg := err.Error()
	for _, p := range []string{"NOAUTH", "NOPERM", "WRONGPASS", "READONLY"} {
		if strings.HasPrefix(msg, p) {
			return model.Rejected(op, err)
		}
	}
	return model.Unavailable(op, err)
}
