// Package store persists the sync server's anchor set. The server only ever
// reads the whole set or replaces it, so drivers expose exactly that.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwgray1010/PawCoin/internal/health"
	"github.com/jwgray1010/PawCoin/internal/model"
)

// AnchorSet is the persisted collection behind GET and POST /anchors.
type AnchorSet interface {
	// Load returns every anchor in the order of the last Replace. An empty set
	// is returned as a non-nil empty slice.
	Load(ctx context.Context) ([]model.AnchorRecord, error)
	// Replace swaps the whole set atomically.
	Replace(ctx context.Context, anchors []model.AnchorRecord) error
	health.HealthPinger
	Close() error
}

// ErrInvalidSet is returned for sets that cannot be persisted as-is.
var ErrInvalidSet = errors.New("invalid anchor set")

// CheckSet verifies that every anchor has a non-empty id and that ids are unique.
func CheckSet(anchors []model.AnchorRecord) error {
	seen := make(map[string]struct{}, len(anchors))
	for i, a := range anchors {
		if a.ID == "" {
			return fmt.Errorf("%w: anchor %d has no id", ErrInvalidSet, i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidSet, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
