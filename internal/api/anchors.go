package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/api/respond"
	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
)

const (
	maxBodyBytes   = 8 << 20
	msgExpectArray = "Expected an array of anchors"
)

// AnchorsHandler serves the bulk anchor endpoints.
type AnchorsHandler struct {
	set store.AnchorSet
	hub *Hub
	log zerolog.Logger

	// mu orders replaces and watcher registration so every watcher sees each
	// replace exactly once, after its initial snapshot.
	mu sync.Mutex
}

// NewAnchorsHandler creates the handler.
func NewAnchorsHandler(set store.AnchorSet, hub *Hub, log zerolog.Logger) *AnchorsHandler {
	return &AnchorsHandler{set: set, hub: hub, log: log}
}

// List handles GET /anchors.
func (h *AnchorsHandler) List(w http.ResponseWriter, r *http.Request) {
	anchors, err := h.set.Load(r.Context())
	if err != nil {
		h.log.Error().Stack().Err(err).Msg("load anchors")
		respond.WriteInternalError(w, "Failed to load anchors")
		return
	}
	respond.WriteJSON(w, http.StatusOK, anchors)
}

// Replace handles POST /anchors: the body replaces the whole set.
func (h *AnchorsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	anchors, err := decodeSet(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn().Err(err).Msg("invalid anchors payload")
		respond.WriteBadRequest(w, msgExpectArray)
		return
	}
	if err := store.CheckSet(anchors); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.set.Replace(r.Context(), anchors); err != nil {
		h.log.Error().Stack().Err(err).Int("anchors", len(anchors)).Msg("save anchors")
		respond.WriteInternalError(w, "Failed to save anchors")
		return
	}
	h.hub.Broadcast(anchors)
	h.log.Info().Int("anchors", len(anchors)).Msg("anchors replaced")
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Watch handles GET /anchors/watch.
func (h *AnchorsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	anchors, err := h.set.Load(r.Context())
	if err != nil {
		h.log.Error().Stack().Err(err).Msg("load anchors for watcher")
		respond.WriteInternalError(w, "Failed to load anchors")
		return
	}
	if err := h.hub.serve(w, r, anchors); err != nil {
		// Upgrade has already answered the client.
		h.log.Warn().Err(err).Msg("watch upgrade failed")
	}
}

var errNotArray = errors.New("body is not a JSON array")

func decodeSet(body io.Reader) ([]model.AnchorRecord, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errNotArray
	}
	var anchors []model.AnchorRecord
	if err := json.Unmarshal(raw, &anchors); err != nil {
		return nil, err
	}
	if anchors == nil {
		anchors = []model.AnchorRecord{}
	}
	return anchors, nil
}
