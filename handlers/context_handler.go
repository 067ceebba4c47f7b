package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/contextentry"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// ContextService defines the context entry operations used by ContextHandler
type ContextService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.ContextEntry, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.ContextEntry, error)
	Create(ctx context.Context, orgID uuid.UUID, req contextentry.CreateContextRequest) (*models.ContextEntry, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req contextentry.UpdateContextRequest) (*models.ContextEntry, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) (*contextentry.DeleteResult, error)
}

// ContextHandler handles context entry HTTP requests
type ContextHandler struct {
	service ContextService
	logger  *zap.Logger
}

// NewContextHandler creates a new ContextHandler
func NewContextHandler(service ContextService, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /v1/context
func (h *ContextHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	entries, err := h.service.List(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, entries)
}

// HandleCreate handles POST /v1/context
func (h *ContextHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req contextentry.CreateContextRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	entry, err := h.service.Create(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("context entry created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("context_id", entry.ID.String()))
	_ = utils.WriteCreated(w, entry)
}

// HandleGet handles GET /v1/context/{id}
func (h *ContextHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "context")
	if !ok {
		return
	}

	entry, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, entry)
}

// HandleUpdate handles PATCH /v1/context/{id}
func (h *ContextHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "context")
	if !ok {
		return
	}

	var req contextentry.UpdateContextRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	entry, err := h.service.Update(r.Context(), orgID, id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, entry)
}

// HandleDelete handles DELETE /v1/context/{id}
func (h *ContextHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "context")
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
