package httpstore

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/api"
	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/remote"
	"github.com/jwgray1010/PawCoin/internal/store/filestore"
	"github.com/jwgray1010/PawCoin/internal/syncclient"
)

const token = "test-token"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	set, err := filestore.Open(filepath.Join(t.TempDir(), "anchors.json"))
	require.NoError(t, err)
	hub := api.NewHub(zerolog.Nop())
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Set:       set,
		Hub:       hub,
		Token:     token,
		IsHealthy: func() bool { return true },
		Log:       zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStore(t *testing.T, url, tok string) *Store {
	t.Helper()
	c, err := syncclient.New(url, syncclient.WithToken(tok), syncclient.WithRetry(2, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return New(c)
}

func rec(id, name string) model.AnchorRecord {
	return model.AnchorRecord{ID: id, Name: name, Description: name, Position: &model.Position{X: 1}}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newServer(t).URL, token)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.Put(ctx, rec("a", "Feed dog")))
	require.NoError(t, s.Put(ctx, rec("b", "Make bed")))
	require.NoError(t, s.Put(ctx, rec("a", "Feed cat")))

	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Feed cat", all[0].Name)
	assert.Equal(t, "b", all[1].ID)

	require.NoError(t, s.Update(ctx, "b", model.Patch{Completed: model.Bool(true), AssignedKidID: model.String("kid-1")}))
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "kid-1", got.AssignedKidID)

	err = s.Update(ctx, "zzz", model.Patch{Completed: model.Bool(true)})
	assert.True(t, model.IsNotFound(err))
	_, err = s.Get(ctx, "zzz")
	assert.True(t, model.IsNotFound(err))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.PutBatch(ctx, []model.AnchorRecord{rec("c", "Dishes"), rec("d", "Trash")}))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteAll(ctx))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBadTokenIsRejected(t *testing.T) {
	s := newStore(t, newServer(t).URL, "wrong")
	_, err := s.GetAll(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsRejected(err))
	err = s.Put(context.Background(), rec("a", "Feed dog"))
	assert.True(t, model.IsRejected(err))
}

func TestSubscribeSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	mine := newStore(t, srv.URL, token)
	other := newStore(t, srv.URL, token)

	snaps := make(chan []model.AnchorRecord, 8)
	unsub, err := mine.SubscribeCollection(ctx, func(r []model.AnchorRecord) { snaps <- r })
	require.NoError(t, err)

	select {
	case s := <-snaps:
		assert.Empty(t, s)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, other.Put(ctx, rec("x", "Walk dog")))
	select {
	case s := <-snaps:
		require.Len(t, s, 1)
		assert.Equal(t, "x", s[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after foreign write")
	}

	unsub()
	require.NoError(t, other.Put(ctx, rec("y", "Water plants")))
	select {
	case s := <-snaps:
		t.Fatalf("snapshot after unsubscribe: %v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	mine := newStore(t, srv.URL, token)
	other := newStore(t, srv.URL, token)

	unsubCh := make(chan remote.Unsubscribe, 1)
	stopped := make(chan struct{})
	unsub, err := mine.SubscribeCollection(ctx, func(r []model.AnchorRecord) {
		if len(r) == 0 {
			return
		}
		(<-unsubCh)()
		close(stopped)
	})
	require.NoError(t, err)
	unsubCh <- unsub

	require.NoError(t, other.Put(ctx, rec("x", "Walk dog")))
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("unsubscribe from the feed callback did not return")
	}
	unsub()
}
