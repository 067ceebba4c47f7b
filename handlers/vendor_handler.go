package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/vendors"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// VendorService defines the vendor operations used by VendorHandler
type VendorService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Vendor, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error)
	Create(ctx context.Context, orgID uuid.UUID, req vendors.CreateVendorRequest) (*models.Vendor, bool, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req vendors.UpdateVendorRequest) (*models.Vendor, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) (*vendors.DeleteResult, error)
}

// VendorHandler handles vendor HTTP requests
type VendorHandler struct {
	service VendorService
	logger  *zap.Logger
}

// NewVendorHandler creates a new VendorHandler
func NewVendorHandler(service VendorService, logger *zap.Logger) *VendorHandler {
	return &VendorHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /v1/vendors
func (h *VendorHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

// HandleCreate handles POST /v1/vendors. An existing vendor with the same
// name is returned with 200 instead of creating a duplicate.
func (h *VendorHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req vendors.CreateVendorRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	vendor, created, err := h.service.Create(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if !created {
		_ = utils.WriteOK(w, vendor)
		return
	}

	h.logger.Info("vendor created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("vendor_id", vendor.ID.String()))
	_ = utils.WriteCreated(w, vendor)
}

// HandleGet handles GET /v1/vendors/{id}
func (h *VendorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "vendor")
	if !ok {
		return
	}

	vendor, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, vendor)
}

// HandleUpdate handles PATCH /v1/vendors/{id}
func (h *VendorHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "vendor")
	if !ok {
		return
	}

	var req vendors.UpdateVendorRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	vendor, err := h.service.Update(r.Context(), orgID, id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, vendor)
}

// HandleDelete handles DELETE /v1/vendors/{id}
func (h *VendorHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "vendor")
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
