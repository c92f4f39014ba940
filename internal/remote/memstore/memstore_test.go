package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/model"
)

func rec(id string) model.AnchorRecord {
	return model.AnchorRecord{ID: id, Name: id, Description: id, Position: &model.Position{}}
}

func ids(recs []model.AnchorRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestClient_CRUD(t *testing.T) {
	ctx := context.Background()
	c := NewCollection().Connect()

	require.NoError(t, c.Put(ctx, rec("a")))
	require.NoError(t, c.Put(ctx, rec("b")))

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(all))

	require.NoError(t, c.Update(ctx, "a", model.Patch{Completed: model.Bool(true)}))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Completed)

	err = c.Update(ctx, "missing", model.Patch{Completed: model.Bool(true)})
	assert.True(t, model.IsNotFound(err))
	_, err = c.Get(ctx, "missing")
	assert.True(t, model.IsNotFound(err))

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "a"))
	all, err = c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(all))

	require.NoError(t, c.PutBatch(ctx, []model.AnchorRecord{rec("c"), rec("d")}))
	assert.Equal(t, 3, c.coll.Len())
	require.NoError(t, c.DeleteAll(ctx))
	assert.Equal(t, 0, c.coll.Len())
}

func TestClient_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewCollection().Connect()
	r := rec("a")
	require.NoError(t, c.Put(ctx, r))
	r.Position.X = 42

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Position.X)

	got.Name = "changed"
	again, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestClient_FaultInjection(t *testing.T) {
	ctx := context.Background()
	c := NewCollection().Connect()
	boom := model.Unavailable("put", errors.New("offline"))
	c.SetFault(func(op, _ string) error {
		if op == "put" {
			return boom
		}
		return nil
	})

	err := c.Put(ctx, rec("a"))
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Equal(t, 1, c.Calls("put"))
	assert.Equal(t, 0, c.coll.Len())

	c.SetFault(nil)
	require.NoError(t, c.Put(ctx, rec("a")))
	assert.Equal(t, 2, c.Calls("put"))
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCollection().Connect().GetAll(ctx)
	assert.True(t, model.IsUnavailable(err))
}

func TestSubscribeCollection_FeedsOwnAndForeignWrites(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection()
	device := coll.Connect()
	other := coll.Connect()
	require.NoError(t, other.Put(ctx, rec("seed")))

	var snapshots [][]string
	unsub, err := device.SubscribeCollection(ctx, func(recs []model.AnchorRecord) {
		snapshots = append(snapshots, ids(recs))
	})
	require.NoError(t, err)

	require.NoError(t, device.Put(ctx, rec("mine")))
	require.NoError(t, other.Delete(ctx, "seed"))
	// No-op delete does not produce a snapshot.
	require.NoError(t, other.Delete(ctx, "seed"))

	assert.Equal(t, [][]string{{"seed"}, {"seed", "mine"}, {"mine"}}, snapshots)

	unsub()
	unsub()
	require.NoError(t, other.Put(ctx, rec("late")))
	assert.Len(t, snapshots, 3)
}

func TestSubscribeCollection_ResubscribeReplaces(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection()
	c := coll.Connect()

	var first, second int
	_, err := c.SubscribeCollection(ctx, func([]model.AnchorRecord) { first++ })
	require.NoError(t, err)
	_, err = c.SubscribeCollection(ctx, func([]model.AnchorRecord) { second++ })
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, rec("a")))
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
