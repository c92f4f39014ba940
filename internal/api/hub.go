package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/model"
)

const (
	watchSendBuffer   = 16
	watchWriteTimeout = 10 * time.Second
)

// Hub fans anchor sets out to websocket watchers. A watcher that falls
// watchSendBuffer snapshots behind is disconnected; it reconnects and gets
// the current set again.
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*watcher]struct{}
	closed  bool
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (w *watcher) close() {
	w.once.Do(func() { close(w.send) })
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:      log,
		clients:  make(map[*watcher]struct{}),
	}
}

// Len returns the number of connected watchers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues anchors for every watcher.
func (h *Hub) Broadcast(anchors []model.AnchorRecord) {
	msg, err := encodeSet(anchors)
	if err != nil {
		h.log.Error().Stack().Err(err).Msg("encode broadcast")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("watcher too slow; disconnecting")
			h.removeLocked(c)
		}
	}
}

// serve upgrades the request and registers the watcher with initial as its
// first message. The caller must make sure no Broadcast runs between loading
// initial and serve returning.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, initial []model.AnchorRecord) error {
	msg, err := encodeSet(initial)
	if err != nil {
		return err
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &watcher{conn: conn, send: make(chan []byte, watchSendBuffer)}
	c.send <- msg

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[c] = struct{}{}
	watchersGauge.Inc()
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// Close disconnects every watcher and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *watcher) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	watchersGauge.Dec()
	c.close()
}

func (h *Hub) remove(c *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) writeLoop(c *watcher) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Msg("watch write failed")
			h.remove(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readLoop drains client frames so close and ping frames are processed.
func (h *Hub) readLoop(c *watcher) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func encodeSet(anchors []model.AnchorRecord) ([]byte, error) {
	if anchors == nil {
		anchors = []model.AnchorRecord{}
	}
	return json.Marshal(anchors)
}
