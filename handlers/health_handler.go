package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"time"

	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]string      `json:"checks,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Check probes one dependency; nil means healthy
type Check func(ctx context.Context) error

// Detail reports runtime statistics of a component for readiness output
type Detail func(ctx context.Context) interface{}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	checks  map[string]Check
	details map[string]Detail
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Nil checks are skipped.
func NewHealthHandler(checks map[string]Check, logger *zap.Logger) *HealthHandler {
	active := make(map[string]Check, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{
		checks: active,
		logger: logger,
	}
}

// WithDetails adds component statistics to readiness responses. Nil
// entries are skipped.
func (h *HealthHandler) WithDetails(details map[string]Detail) *HealthHandler {
	h.details = make(map[string]Detail, len(details))
	for name, detail := range details {
		if detail != nil {
			h.details[name] = detail
		}
	}
	return h
}

// DatabaseCheck pings the pool and runs a trivial query
func DatabaseCheck(db *sql.DB) Check {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var result int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
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
// Readiness check - validates that all dependencies are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	// Determine overall status
	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if len(h.details) > 0 {
		response.Details = make(map[string]interface{}, len(h.details))
		for name, detail := range h.details {
			response.Details[name] = detail(ctx)
		}
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Success: allHealthy, Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
