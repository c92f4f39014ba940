// Package api is the sync server's HTTP surface: bulk anchor read and
// replace, the websocket change feed, health and metrics.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/api/recovery"
	"github.com/jwgray1010/PawCoin/internal/store"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Set       store.AnchorSet
	Hub       *Hub
	Token     string
	IsHealthy func() bool
	Log       zerolog.Logger
}

// NewRouter builds the sync server router.
func NewRouter(d Deps) *mux.Router {
	if d.Hub == nil {
		d.Hub = NewHub(d.Log)
	}
	root := mux.NewRouter()
	root.Use(recovery.Middleware(d.Log))
	root.Use(AccessLog(d.Log))

	health := NewHealthHandler(d.IsHealthy)
	root.HandleFunc("/health", health.CheckHealth).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	anchors := NewAnchorsHandler(d.Set, d.Hub, d.Log)
	authed := root.PathPrefix("/anchors").Subrouter()
	authed.Use(BearerAuth(d.Token, d.Log))
	authed.HandleFunc("", anchors.List).Methods(http.MethodGet)
	authed.HandleFunc("", anchors.Replace).Methods(http.MethodPost)
	authed.HandleFunc("/watch", anchors.Watch).Methods(http.MethodGet)

	return root
}
