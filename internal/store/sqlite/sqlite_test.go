package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
	"github.com/jwgray1010/PawCoin/internal/store/storetest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "anchors.db"))
	require.NoError(t, err)
	s, err := New(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.AnchorSet { return newStore(t) })
}

func TestSQLiteStore_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Replace(ctx, []model.AnchorRecord{{ID: "keep"}}))

	err := s.Replace(ctx, []model.AnchorRecord{{ID: "x"}, {ID: "x"}})
	require.Error(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)
}
