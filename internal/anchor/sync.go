package anchor

import (
	"context"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// Backend is a bulk mirror of the anchor set, such as the sync server.
type Backend interface {
	Pull(ctx context.Context) ([]model.AnchorRecord, error)
	Push(ctx context.Context, anchors []model.AnchorRecord) error
}

// SyncToBackend pushes the cached set to b, loading it from the store first
// when the cache is empty.
func (m *Manager) SyncToBackend(ctx context.Context, b Backend) (bool, error) {
	if m.cache.Len() == 0 {
		if _, err := m.LoadAnchors(ctx); err != nil {
			return false, err
		}
	}
	anchors := m.cache.All()
	if err := b.Push(ctx, anchors); err != nil {
		return false, m.fail("sync", "", err)
	}
	m.log.Info().Int("anchors", len(anchors)).Msg("pushed anchors to backend")
	m.succeed("sync")
	return true, nil
}

// LoadFromBackend pulls the backend set, writes it into the store in one
// batch and replaces the cache with it.
func (m *Manager) LoadFromBackend(ctx context.Context, b Backend) ([]model.AnchorRecord, error) {
	anchors, err := b.Pull(ctx)
	if err != nil {
		return nil, m.fail("pull", "", err)
	}
	if err := m.store.PutBatch(ctx, anchors); err != nil {
		return nil, m.fail("pull", "", err)
	}
	m.cache.ReplaceAll(anchors)
	m.succeed("pull")
	return m.cache.All(), nil
}
