package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/videotube/backend/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Store is pinged when set; a nil Store always reports healthy.
	Store HealthChecker
}

type healthStatus struct {
	Status string `json:"status"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := h.check(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable"})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, healthStatus{Status: "ok"})
}

// Healthcheck implements GET /api/v1/healthcheck using the API envelope.
func (h HealthHandler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	if err := h.check(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		respondFailure(r.Context(), w, http.StatusServiceUnavailable, "Service unavailable", nil)
		return
	}
	respondSuccess(r.Context(), w, http.StatusOK, healthStatus{Status: "ok"}, "OK")
}

func (h HealthHandler) check(ctx context.Context) error {
	if h.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.Store.Ping(ctx)
}
