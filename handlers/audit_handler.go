package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditLogService defines the audit trail reads used by AuditHandler
type AuditLogService interface {
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
	History(ctx context.Context, orgID uuid.UUID, resourceType string, resourceID uuid.UUID) ([]*models.AuditLog, error)
}

// AuditHandler serves the audit trail to admins
type AuditHandler struct {
	service AuditLogService
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditLogService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /v1/audit-logs?limit=&offset= and, with
// resource_type and resource_id, the history of one entity
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	query := r.URL.Query()

	if resourceType := query.Get("resource_type"); resourceType != "" {
		resourceID, ok := queryID(w, r, "resource_id")
		if !ok {
			return
		}
		if resourceID == nil {
			_ = utils.WriteBadRequest(w, "resource_id is required with resource_type", nil)
			return
		}
		logs, err := h.service.History(r.Context(), orgID, resourceType, *resourceID)
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
		_ = utils.WriteOK(w, logs)
		return
	}

	limit, err := intParam(query.Get("limit"), defaultAuditLimit)
	if err != nil || limit < 1 || limit > maxAuditLimit {
		_ = utils.WriteBadRequest(w, "limit must be between 1 and 200", nil)
		return
	}
	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		_ = utils.WriteBadRequest(w, "offset must be a non-negative integer", nil)
		return
	}

	logs, err := h.service.List(r.Context(), orgID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, logs)
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
