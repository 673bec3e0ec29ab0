package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/accession-studio/engine/internal/api/types"
)

// Pinger checks a dependency needed to serve traffic.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

// Readiness reports ready only when every dependency answers within two seconds.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	ready := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
			Success: false,
			Data:    status,
			Error:   &types.APIError{Code: "unavailable", Message: "dependencies not ready"},
		})
		return
	}
	status["status"] = "ready"
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: status})
}
