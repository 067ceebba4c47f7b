package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/risks"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// RiskService defines the risk operations used by RiskHandler
type RiskService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Risk, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error)
	Create(ctx context.Context, orgID uuid.UUID, req risks.CreateRiskRequest) (*models.Risk, bool, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req risks.UpdateRiskRequest) (*models.Risk, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) (*risks.DeleteResult, error)
}

// RiskHandler handles risk HTTP requests
type RiskHandler struct {
	service RiskService
	logger  *zap.Logger
}

// NewRiskHandler creates a new RiskHandler
func NewRiskHandler(service RiskService, logger *zap.Logger) *RiskHandler {
	return &RiskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /v1/risks
func (h *RiskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, list)
}

// HandleCreate handles POST /v1/risks. An existing risk with the same
// title is returned with 200 instead of creating a duplicate.
func (h *RiskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req risks.CreateRiskRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	risk, created, err := h.service.Create(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if !created {
		_ = utils.WriteOK(w, risk)
		return
	}

	h.logger.Info("risk created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("risk_id", risk.ID.String()))
	_ = utils.WriteCreated(w, risk)
}

// HandleGet handles GET /v1/risks/{id}
func (h *RiskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "risk")
	if !ok {
		return
	}

	risk, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, risk)
}

// HandleUpdate handles PATCH /v1/risks/{id}
func (h *RiskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "risk")
	if !ok {
		return
	}

	var req risks.UpdateRiskRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	risk, err := h.service.Update(r.Context(), orgID, id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, risk)
}

// HandleDelete handles DELETE /v1/risks/{id}
func (h *RiskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "risk")
	if !ok {
		return
	}

	result, err := h.service.Delete(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}
