package api

import (
	"net/http"

	"github.com/jwgray1010/PawCoin/internal/api/respond"
)

// HealthHandler answers /health from a cached service health flag.
type HealthHandler struct {
	isHealthy func() bool
}

// NewHealthHandler creates a handler; a nil isHealthy always reports ok.
func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return true }
	}
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth handles GET /health.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if !h.isHealthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
