package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/onboarding"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// OnboardingService defines the onboarding operations used by OnboardingHandler
type OnboardingService interface {
	Start(ctx context.Context, orgID uuid.UUID) (*onboarding.StartResult, error)
	GetRun(ctx context.Context, orgID, runID uuid.UUID) (*models.OnboardingRun, error)
	RunProgress(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error)
}

// OnboardingHandler handles onboarding run HTTP requests
type OnboardingHandler struct {
	service OnboardingService
	logger  *zap.Logger
}

// NewOnboardingHandler creates a new OnboardingHandler
func NewOnboardingHandler(service OnboardingService, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		service: service,
		logger:  logger,
	}
}

// HandleStart handles POST /v1/onboarding
func (h *OnboardingHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Start(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("onboarding run queued",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("run_id", result.RunID.String()))
	_ = utils.WriteAccepted(w, result)
}

// HandleGetRun handles GET /v1/onboarding/runs/{id}
func (h *OnboardingHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	runID, ok := pathID(w, r, "id", "run")
	if !ok {
		return
	}

	run, err := h.service.GetRun(r.Context(), orgID, runID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, run)
}

// HandleProgress handles GET /v1/onboarding/runs/{id}/progress. It runs
// behind RequireRunToken, which has already bound the run id.
func (h *OnboardingHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	runID := middleware.GetRunIDFromContext(r.Context())
	if runID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing run access token")
		return
	}

	run, err := h.service.RunProgress(r.Context(), runID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	_ = utils.WriteOK(w, run)
}
