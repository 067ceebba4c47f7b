package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/trustportal"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// TrustPortalService defines the trust portal operations used by TrustPortalHandler
type TrustPortalService interface {
	Get(ctx context.Context, orgID uuid.UUID) (*models.TrustPortal, error)
	Update(ctx context.Context, orgID uuid.UUID, req trustportal.UpdateRequest) (*models.TrustPortal, error)
	PublicView(ctx context.Context, friendlyURL string) (*models.PublicTrustView, error)
}

// TrustPortalHandler handles trust portal HTTP requests
type TrustPortalHandler struct {
	service TrustPortalService
	logger  *zap.Logger
}

// NewTrustPortalHandler creates a new TrustPortalHandler
func NewTrustPortalHandler(service TrustPortalService, logger *zap.Logger) *TrustPortalHandler {
	return &TrustPortalHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGet handles GET /v1/trust-portal
func (h *TrustPortalHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	portal, err := h.service.Get(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, portal)
}

// HandleUpdate handles PUT /v1/trust-portal
func (h *TrustPortalHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req trustportal.UpdateRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	portal, err := h.service.Update(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("trust portal updated",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("org_id", orgID.String()),
		zap.Bool("enabled", portal.Enabled))
	_ = utils.WriteOK(w, portal)
}

// HandlePublicView handles GET /v1/public/trust/{friendlyUrl}; no authentication
func (h *TrustPortalHandler) HandlePublicView(w http.ResponseWriter, r *http.Request) {
	friendlyURL := chi.URLParam(r, "friendlyUrl")
	if friendlyURL == "" {
		_ = utils.WriteNotFound(w, "")
		return
	}

	view, err := h.service.PublicView(r.Context(), friendlyURL)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	_ = utils.WriteOK(w, view)
}
