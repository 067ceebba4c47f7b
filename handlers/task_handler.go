package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/tasks"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// TaskService defines the task operations used by TaskHandler
type TaskService interface {
	List(ctx context.Context, orgID uuid.UUID, filter tasks.ListFilter) ([]*models.Task, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Task, error)
	Create(ctx context.Context, orgID uuid.UUID, req tasks.CreateTaskRequest) (*models.Task, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req tasks.UpdateTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) (*tasks.DeleteResult, error)
}

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	service TaskService
	logger  *zap.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(service TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /v1/tasks?status=&vendor_id=&risk_id=
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var filter tasks.ListFilter
	if filter.VendorID, ok = queryID(w, r, "vendor_id"); !ok {
		return
	}
	if filter.RiskID, ok = queryID(w, r, "risk_id"); !ok {
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TaskStatus(raw)
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

// HandleCreate handles POST /v1/tasks
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req tasks.CreateTaskRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	task, err := h.service.Create(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, task)
}

// HandleGet handles GET /v1/tasks/{id}
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "task")
	if !ok {
		return
	}

	task, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, task)
}

// HandleUpdate handles PATCH /v1/tasks/{id}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "task")
	if !ok {
		return
	}

	var req tasks.UpdateTaskRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	task, err := h.service.Update(r.Context(), orgID, id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, task)
}

// HandleDelete handles DELETE /v1/tasks/{id}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "task")
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
