// Package storetest is a compliance suite every store.AnchorSet driver runs.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
)

// Run exercises an AnchorSet. makeSet must return a clean, isolated set.
func Run(t *testing.T, makeSet func(t *testing.T) store.AnchorSet) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyLoad", func(t *testing.T) {
		s := makeSet(t)
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		require.NoError(t, s.HealthPing(ctx))
	})

	t.Run("ReplaceRoundTrip", func(t *testing.T) {
		s := makeSet(t)
		in := []model.AnchorRecord{sample("Feed dog"), sample("Dishes"), sample("Trash")}
		in[1].StartedAt = model.Int64(1_700_000_000_000)
		in[1].History = []model.HistoryEntry{{Event: "scanned", Actor: "kid-1", Timestamp: 1_700_000_000_500}}
		in[2].Completed = true

		require.NoError(t, s.Replace(ctx, in))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range in {
			assert.Equal(t, in[i].ID, got[i].ID, "order preserved")
			assert.Equal(t, in[i].Name, got[i].Name)
			assert.Equal(t, *in[i].Position, *got[i].Position)
		}
		require.NotNil(t, got[1].StartedAt)
		assert.Equal(t, *in[1].StartedAt, *got[1].StartedAt)
		require.Len(t, got[1].History, 1)
		assert.Equal(t, "scanned", got[1].History[0].Event)
		assert.True(t, got[2].Completed)
	})

	t.Run("ReplaceDropsPrevious", func(t *testing.T) {
		s := makeSet(t)
		require.NoError(t, s.Replace(ctx, []model.AnchorRecord{sample("a"), sample("b")}))
		only := sample("c")
		require.NoError(t, s.Replace(ctx, []model.AnchorRecord{only}))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, only.ID, got[0].ID)

		require.NoError(t, s.Replace(ctx, []model.AnchorRecord{}))
		got, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func sample(name string) model.AnchorRecord {
	return model.AnchorRecord{
		ID:                 uuid.NewString(),
		Name:               name,
		Description:        name,
		Position:           &model.Position{X: 1.5, Y: 0, Z: -2},
		QRStartCode:        uuid.NewString(),
		QREndCode:          uuid.NewString(),
		MinDurationSeconds: model.DefaultMinDurationSeconds,
		History:            []model.HistoryEntry{},
	}
}
