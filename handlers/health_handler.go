package handlers

import (
	"net/http"
	"time"

	"github.com/upb/answer-detector/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ChainSizer reports how many backends are configured
type ChainSizer interface {
	Len() int
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	chain  ChainSizer
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(chain ChainSizer, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		chain:  chain,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// The service is ready once at least one backend is configured
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.chain == nil || h.chain.Len() == 0 {
		h.logger.Warn("readiness check failed: no classifier backends configured")
		checks["classifiers"] = "none_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["classifiers"] = "configured"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
