package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/integrations"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// IntegrationService defines the integration operations used by IntegrationHandler
type IntegrationService interface {
	ListProviders() []integrations.Provider
	ListConnections(ctx context.Context, orgID uuid.UUID) ([]*models.IntegrationConnection, error)
	GetConnection(ctx context.Context, orgID, id uuid.UUID) (*models.IntegrationConnection, error)
	Connect(ctx context.Context, orgID uuid.UUID, req integrations.ConnectRequest) (*models.IntegrationConnection, error)
	UpdateConnection(ctx context.Context, orgID, id uuid.UUID, req integrations.UpdateConnectionRequest) (*models.IntegrationConnection, error)
	Disconnect(ctx context.Context, orgID, id uuid.UUID) (*integrations.DeleteResult, error)
	Test(ctx context.Context, orgID, id uuid.UUID) (*integrations.TestResult, error)
	SyncCRM(ctx context.Context, orgID uuid.UUID) (*integrations.SyncResult, error)
}

// IntegrationHandler handles integration HTTP requests
type IntegrationHandler struct {
	service IntegrationService
	logger  *zap.Logger
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(service IntegrationService, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListProviders handles GET /v1/integrations/providers
func (h *IntegrationHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.service.ListProviders())
}

// HandleListConnections handles GET /v1/integrations/connections
func (h *IntegrationHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	conns, err := h.service.ListConnections(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, conns)
}

// HandleConnect handles POST /v1/integrations/connections
func (h *IntegrationHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req integrations.ConnectRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	conn, err := h.service.Connect(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("integration connected",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("provider", conn.ProviderSlug),
		zap.String("connection_id", conn.ID.String()))
	_ = utils.WriteCreated(w, conn)
}

// HandleGetConnection handles GET /v1/integrations/connections/{id}
func (h *IntegrationHandler) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "connection")
	if !ok {
		return
	}

	conn, err := h.service.GetConnection(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, conn)
}

// HandleUpdateConnection handles PATCH /v1/integrations/connections/{id}
func (h *IntegrationHandler) HandleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "connection")
	if !ok {
		return
	}

	var req integrations.UpdateConnectionRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	conn, err := h.service.UpdateConnection(r.Context(), orgID, id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, conn)
}

// HandleDisconnect handles DELETE /v1/integrations/connections/{id}
func (h *IntegrationHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "connection")
	if !ok {
		return
	}

	result, err := h.service.Disconnect(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleTest handles POST /v1/integrations/connections/{id}/test. A failed
// probe is reported in the body, not as an error status.
func (h *IntegrationHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "connection")
	if !ok {
		return
	}

	result, err := h.service.Test(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleSyncCRM handles POST /v1/integrations/crm/sync
func (h *IntegrationHandler) HandleSyncCRM(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.SyncCRM(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("crm synced",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("company_id", result.CompanyID))
	_ = utils.WriteOK(w, result)
}
