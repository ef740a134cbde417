package api

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/campaign-optimizer/internal/config"
)

// Handlers holds the small set of handlers that are not specific to the
// optimization surface: health and whatever process-wide config the rest of
// the API needs to read.
type Handlers struct {
	config *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers() *Handlers {
	return &Handlers{}
}

// SetConfig sets the application config.
func (h *Handlers) SetConfig(cfg *config.Config) {
	h.config = cfg
}

// HealthCheck returns a minimal liveness response. The fuller dependency
// health check (DB, Redis, S3) is served by HealthChecker at /health/*.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
