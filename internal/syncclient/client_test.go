package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/model"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(url, WithToken("tok"), WithRetry(3, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestPullPush(t *testing.T) {
	var stored []model.AnchorRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(stored)
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stored))
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL+"/")

	got, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	recs := []model.AnchorRecord{{ID: "a", Name: "Feed dog", Position: &model.Position{X: 1, Y: 2, Z: 3}}}
	require.NoError(t, c.Push(context.Background(), recs))

	got, err = c.Pull(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, model.Position{X: 1, Y: 2, Z: 3}, *got[0].Position)
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","code":401}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Pull(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsRejected(err))
	assert.True(t, IsIrrecoverable(err))
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv.URL).Push(context.Background(), nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Push(context.Background(), nil)
	assert.True(t, model.IsUnavailable(err))
	assert.False(t, IsIrrecoverable(err))
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(t, url).Health(context.Background())
	assert.True(t, model.IsUnavailable(err))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
	_, err = New("http://x", WithRetry(0, 0, 0))
	assert.Error(t, err)
	_, err = New("http://x", WithTimeout(0))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	push := make(chan []model.AnchorRecord)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteJSON([]model.AnchorRecord{})
		for recs := range push {
			if err := conn.WriteJSON(recs); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	defer close(push)

	got := make(chan []model.AnchorRecord, 4)
	w, err := newTestClient(t, srv.URL).Watch(context.Background(), func(recs []model.AnchorRecord) { got <- recs })
	require.NoError(t, err)

	assert.Empty(t, <-got)
	push <- []model.AnchorRecord{{ID: "a"}}
	select {
	case recs := <-got:
		require.Len(t, recs, 1)
		assert.Equal(t, "a", recs[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
	w.Close()
	<-w.Done()

	c, err := New(srv.URL, WithToken("wrong"))
	require.NoError(t, err)
	_, err = c.Watch(context.Background(), func([]model.AnchorRecord) {})
	assert.True(t, model.IsRejected(err))
}

func TestWatch_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		if n > 2 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		if n == 1 {
			_ = conn.WriteJSON([]model.AnchorRecord{{ID: "a"}})
			return
		}
		_ = conn.WriteJSON([]model.AnchorRecord{{ID: "b"}})
		<-release
	}))
	defer srv.Close()
	defer close(release)

	got := make(chan []model.AnchorRecord, 4)
	w, err := newTestClient(t, srv.URL).Watch(context.Background(), func(recs []model.AnchorRecord) { got <- recs })
	require.NoError(t, err)
	defer w.Close()

	for _, want := range []string{"a", "b"} {
		select {
		case recs := <-got:
			require.Len(t, recs, 1)
			assert.Equal(t, want, recs[0].ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("no snapshot %q", want)
		}
	}
	assert.Equal(t, int32(2), conns.Load())
}

func TestWatch_StopsWhenReconnectRejected(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn.WriteJSON([]model.AnchorRecord{})
		_ = conn.Close()
	}))
	defer srv.Close()

	w, err := newTestClient(t, srv.URL).Watch(context.Background(), func([]model.AnchorRecord) {})
	require.NoError(t, err)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher kept running after a rejected reconnect")
	}
	assert.True(t, model.IsRejected(w.Err()))
	assert.Equal(t, int32(2), conns.Load())
}

func TestWatch_CloseFromCallback(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteJSON([]model.AnchorRecord{})
		_ = conn.WriteJSON([]model.AnchorRecord{{ID: "a"}})
		<-release
	}))
	defer srv.Close()
	defer close(release)

	watcherCh := make(chan *Watcher, 1)
	stopped := make(chan struct{})
	w, err := newTestClient(t, srv.URL).Watch(context.Background(), func(recs []model.AnchorRecord) {
		if len(recs) == 0 {
			return
		}
		(<-watcherCh).Close()
		close(stopped)
	})
	require.NoError(t, err)
	watcherCh <- w

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Close from the snapshot callback did not return")
	}
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit after Close")
	}
	assert.NoError(t, w.Err())
}
