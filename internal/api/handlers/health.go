package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Pinger is satisfied by the bundle cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is returned by the liveness and readiness probes
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HealthHandler handles health and readiness checks
type HealthHandler struct {
	cache   Pinger
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(cache Pinger, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		cache:   cache,
		version: version,
		logger:  logger,
	}
}

// HandleHealth handles GET /api/v1/health (liveness probe)
// Returns 200 unconditionally, rendering never depends on the cache.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// HandleReady handles GET /api/v1/ready (readiness probe)
// Checks Redis connectivity when a cache is configured.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed: cache unavailable", zap.Error(err))
			respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ready", Version: h.version})
}
