package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/mdm/fleet"
	"github.com/trycompai/comp-sub012/services/devices"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// DeviceService defines the device agent operations used by DeviceHandler
type DeviceService interface {
	EnsureOrgLabel(ctx context.Context, orgID uuid.UUID) (*devices.LabelResult, error)
	ListDevices(ctx context.Context, orgID uuid.UUID) ([]devices.Device, error)
	SetupScript(ctx context.Context, orgID uuid.UUID, platform string) (*fleet.Script, error)
}

// DeviceHandler handles device agent HTTP requests
type DeviceHandler struct {
	service DeviceService
	logger  *zap.Logger
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(service DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		logger:  logger,
	}
}

// HandleEnsureLabel handles POST /v1/devices/label
func (h *DeviceHandler) HandleEnsureLabel(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.EnsureOrgLabel(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if result.Created {
		_ = utils.WriteCreated(w, result)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleList handles GET /v1/devices
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.service.ListDevices(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, list)
}

// HandleSetupScript handles GET /v1/devices/setup-script?platform=
func (h *DeviceHandler) HandleSetupScript(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		_ = utils.WriteBadRequest(w, "platform is required", nil)
		return
	}

	script, err := h.service.SetupScript(r.Context(), orgID, platform)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, script)
}
