package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/jwgray1010/PawCoin/internal/model"
)

// Watcher is a live /anchors/watch connection. A dropped connection is
// redialed with the client's retry policy; the server resends the current
// set on every connect, so the feed resumes with a full snapshot.
type Watcher struct {
	c          *Client
	url        string
	header     http.Header
	onSnapshot func([]model.AnchorRecord)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// delivering is set while onSnapshot runs on the reader goroutine.
	delivering atomic.Bool

	done chan struct{}
	once sync.Once
	err  error
}

// Watch opens the websocket feed. onSnapshot receives the current set right
// after connecting and the full set after every server-side replace, on the
// watcher's goroutine. Only the first dial fails Watch; later drops are
// retried in the background.
func (c *Client) Watch(ctx context.Context, onSnapshot func([]model.AnchorRecord)) (*Watcher, error) {
	u, err := url.Parse(c.baseURL + "/anchors/watch")
	if err != nil {
		return nil, fmt.Errorf("watch url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	w := &Watcher{
		c:          c,
		url:        u.String(),
		header:     header,
		onSnapshot: onSnapshot,
		done:       make(chan struct{}),
	}
	conn, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	w.conn = conn
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go w.run(conn)
	return w, nil
}

func (w *Watcher) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil {
			return nil, newHTTPError("watch", resp.StatusCode, "")
		}
		return nil, newNetworkError("watch", err)
	}
	return conn, nil
}

func (w *Watcher) run(conn *websocket.Conn) {
	defer close(w.done)
	for {
		err := w.read(conn)
		if w.isClosed() {
			w.c.log.Debug().Err(err).Msg("watch closed")
			return
		}
		w.c.log.Warn().Err(err).Msg("watch connection lost; reconnecting")

		if conn, err = w.redial(); err != nil {
			w.err = err
			if !w.isClosed() {
				w.c.log.Error().Stack().Err(err).Msg("watch reconnect failed")
			}
			return
		}
		w.c.log.Info().Msg("watch reconnected")
	}
}

// read delivers snapshots from conn until it fails.
func (w *Watcher) read(conn *websocket.Conn) error {
	for {
		var recs []model.AnchorRecord
		if err := conn.ReadJSON(&recs); err != nil {
			return err
		}
		if recs == nil {
			recs = []model.AnchorRecord{}
		}
		w.delivering.Store(true)
		if w.isClosed() {
			w.delivering.Store(false)
			return fmt.Errorf("watch closed")
		}
		w.onSnapshot(recs)
		w.delivering.Store(false)
	}
}

func (w *Watcher) redial() (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		c, err := w.dial(w.ctx)
		if err != nil {
			if IsIrrecoverable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}, w.c.policy(w.ctx))
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		_ = conn.Close()
		return nil, fmt.Errorf("watch closed")
	}
	w.conn = conn
	return conn, nil
}

func (w *Watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Done is closed once the feed stops delivering.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Err returns the error that ended the feed, valid after Done is closed. It
// is nil after Close.
func (w *Watcher) Err() error {
	<-w.done
	if w.isClosed() {
		return nil
	}
	return w.err
}

// Close tears the connection down and waits for the reader to exit. Called
// while a snapshot is being delivered, including from onSnapshot itself, it
// returns without waiting; that snapshot is the last one.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		conn := w.conn
		w.mu.Unlock()

		w.cancel()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	if w.delivering.Load() {
		return
	}
	<-w.done
}
