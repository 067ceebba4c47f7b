package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/findings"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// FindingService defines the finding operations used by FindingHandler
type FindingService interface {
	List(ctx context.Context, orgID uuid.UUID, filter findings.ListFilter) ([]*models.Finding, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Finding, error)
	Create(ctx context.Context, orgID uuid.UUID, actor findings.Actor, req findings.CreateFindingRequest) (*models.Finding, error)
	Update(ctx context.Context, orgID, id uuid.UUID, actor findings.Actor, req findings.UpdateFindingRequest) (*models.Finding, error)
	Transition(ctx context.Context, orgID, id uuid.UUID, actor findings.Actor, req findings.TransitionRequest) (*models.Finding, error)
	Delete(ctx context.Context, orgID, id uuid.UUID, actor findings.Actor) (*findings.DeleteResult, error)
}

// FindingHandler handles finding HTTP requests
type FindingHandler struct {
	service FindingService
	logger  *zap.Logger
}

// NewFindingHandler creates a new FindingHandler
func NewFindingHandler(service FindingService, logger *zap.Logger) *FindingHandler {
	return &FindingHandler{
		service: service,
		logger:  logger,
	}
}

// actorFromRequest maps the authenticated principal to a finding actor
func actorFromRequest(r *http.Request) findings.Actor {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		return findings.Actor{}
	}
	return findings.Actor{MemberID: principal.MemberID, Role: principal.Role}
}

// HandleList handles GET /v1/findings?task_id=&status=
func (h *FindingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var filter findings.ListFilter
	if filter.TaskID, ok = queryID(w, r, "task_id"); !ok {
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.FindingStatus(raw)
		if !status.Valid() {
			_ = utils.WriteBadRequest(w, "Invalid status filter", map[string]interface{}{"status": raw})
			return
		}
		filter.Status = &status
	}

	list, err := h.service.List(r.Context(), orgID, filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, list)
}

// HandleCreate handles POST /v1/findings
func (h *FindingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req findings.CreateFindingRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	finding, err := h.service.Create(r.Context(), orgID, actorFromRequest(r), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("finding created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("finding_id", finding.ID.String()))
	_ = utils.WriteCreated(w, finding)
}

// HandleGet handles GET /v1/findings/{id}
func (h *FindingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "finding")
	if !ok {
		return
	}

	finding, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, finding)
}

// HandleUpdate handles PATCH /v1/findings/{id}
func (h *FindingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "finding")
	if !ok {
		return
	}

	var req findings.UpdateFindingRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	finding, err := h.service.Update(r.Context(), orgID, id, actorFromRequest(r), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, finding)
}

// HandleTransition handles PATCH /v1/findings/{id}/status
func (h *FindingHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "finding")
	if !ok {
		return
	}

	var req findings.TransitionRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	finding, err := h.service.Transition(r.Context(), orgID, id, actorFromRequest(r), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("finding status changed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("finding_id", id.String()),
		zap.String("status", string(finding.Status)))
	_ = utils.WriteOK(w, finding)
}

// HandleDelete handles DELETE /v1/findings/{id}
func (h *FindingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "finding")
	if !ok {
		return
	}

	result, err := h.service.Delete(r.Context(), orgID, id, actorFromRequest(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}
