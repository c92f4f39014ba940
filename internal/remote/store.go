// Package remote defines the document-store boundary the anchor manager talks
// to. Adapters live in subpackages (memstore, redisstore, httpstore) and are
// the only code allowed to perform network I/O against the collection.
package remote

import (
	"context"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// SnapshotFunc receives the full current collection.
type SnapshotFunc func([]model.AnchorRecord)

// Unsubscribe tears down a collection subscription. Safe to call more than once.
type Unsubscribe func()

// Store is a document collection of anchors keyed by id.
//
// Failures wrap model.ErrStoreUnavailable (connectivity) or
// model.ErrStoreRejected (reachable but refused). Get and Update wrap
// model.ErrNotFound when the id is absent.
type Store interface {
	GetAll(ctx context.Context) ([]model.AnchorRecord, error)
	Get(ctx context.Context, id string) (*model.AnchorRecord, error)
	// Put writes the full record under rec.ID, creating or replacing it.
	Put(ctx context.Context, rec model.AnchorRecord) error
	// Update applies a partial-field patch to an existing record.
	Update(ctx context.Context, id string, patch model.Patch) error
	Delete(ctx context.Context, id string) error
	// PutBatch writes every record in one batch.
	PutBatch(ctx context.Context, recs []model.AnchorRecord) error
	DeleteAll(ctx context.Context) error

	// SubscribeCollection pushes the full collection once on subscribe and again
	// after every change, including this process's own writes. Calling it again
	// on the same adapter replaces and tears down the previous subscription.
	SubscribeCollection(ctx context.Context, onSnapshot SnapshotFunc) (Unsubscribe, error)
}
