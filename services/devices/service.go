package devices

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/internal/mdm/fleet"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"go.uber.org/zap"
)

const resourceType = "device_label"

// MDM is the subset of the Fleet client used for device agents
type MDM interface {
	Configured() bool
	EnsureLabel(ctx context.Context, name, description, query string) (*fleet.Label, bool, error)
	GetLabelByName(ctx context.Context, name string) (*fleet.Label, error)
	ListLabelHosts(ctx context.Context, labelID uint) ([]fleet.Host, error)
}

// LabelResult is returned by EnsureOrgLabel
type LabelResult struct {
	LabelID uint   `json:"label_id"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// Device is a host enrolled under an organization's label
type Device struct {
	ID           uint   `json:"id"`
	Hostname     string `json:"hostname"`
	Platform     string `json:"platform"`
	OSVersion    string `json:"os_version"`
	SerialNumber string `json:"serial_number,omitempty"`
	Model        string `json:"model,omitempty"`
	Status       string `json:"status"`
	LastSeenAt   string `json:"last_seen_at,omitempty"`
}

// Service manages device agent enrollment through Fleet
type Service struct {
	mdm          MDM
	fleetURL     string
	enrollSecret string
	audit        audit.Recorder
	logger       *zap.Logger
}

// NewService creates a device agent service
func NewService(mdm MDM, cfg config.FleetConfig, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		mdm:          mdm,
		fleetURL:     strings.TrimRight(cfg.URL, "/"),
		enrollSecret: cfg.EnrollSecret,
		audit:        recorder,
		logger:       logger,
	}
}

// EnsureOrgLabel creates the organization's Fleet label when it does not exist
func (s *Service) EnsureOrgLabel(ctx context.Context, orgID uuid.UUID) (*LabelResult, error) {
	if err := s.requireConfigured(); err != nil {
		return nil, err
	}

	name := fleet.LabelName(orgID)
	label, created, err := s.mdm.EnsureLabel(ctx, name, "Devices enrolled for organization "+orgID.String(), fleet.LabelQuery(orgID))
	if err != nil {
		s.logger.Error("failed to ensure device label",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrMDMFailed, err)
	}

	if created {
		s.logger.Info("device label created",
			zap.String("organization_id", orgID.String()),
			zap.Uint("label_id", label.ID))
		s.audit.Record(ctx, orgID, models.AuditActionDeviceLabelSetup, resourceType, orgID, map[string]interface{}{
			"label_id": label.ID,
			"name":     label.Name,
		})
	}

	return &LabelResult{LabelID: label.ID, Name: label.Name, Created: created}, nil
}

// ListDevices returns the hosts carrying the organization marker. An
// organization without a label has no devices.
func (s *Service) ListDevices(ctx context.Context, orgID uuid.UUID) ([]Device, error) {
	if err := s.requireConfigured(); err != nil {
		return nil, err
	}

	label, err := s.mdm.GetLabelByName(ctx, fleet.LabelName(orgID))
	if err != nil {
		return nil, services.Wrap(services.ErrMDMFailed, err)
	}
	if label == nil {
		return []Device{}, nil
	}

	hosts, err := s.mdm.ListLabelHosts(ctx, label.ID)
	if err != nil {
		s.logger.Error("failed to list label hosts",
			zap.String("organization_id", orgID.String()),
			zap.Uint("label_id", label.ID),
			zap.Error(err))
		return nil, services.Wrap(services.ErrMDMFailed, err)
	}

	devices := make([]Device, 0, len(hosts))
	for _, h := range hosts {
		d := Device{
			ID:           h.ID,
			Hostname:     h.Hostname,
			Platform:     h.Platform,
			OSVersion:    h.OSVersion,
			SerialNumber: h.HardwareSerial,
			Model:        h.HardwareModel,
			Status:       h.Status,
		}
		if d.Hostname == "" {
			d.Hostname = h.ComputerName
		}
		if !h.SeenTime.IsZero() {
			d.LastSeenAt = h.SeenTime.UTC().Format("2006-01-02T15:04:05Z")
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// SetupScript renders the agent provisioning script for a platform
func (s *Service) SetupScript(ctx context.Context, orgID uuid.UUID, platform string) (*fleet.Script, error) {
	p, ok := fleet.ParsePlatform(platform)
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrUnsupportedPlatform.Message, nil).
			WithDetail("platform", platform).
			WithDetail("supported", fleet.Platforms)
	}

	script, err := fleet.RenderScript(p, fleet.ScriptParams{
		FleetURL:     s.fleetURL,
		EnrollSecret: s.enrollSecret,
		OrgID:        orgID,
	})
	if errors.Is(err, fleet.ErrNotConfigured) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "device agent is not configured", nil)
	}
	if err != nil {
		return nil, services.WrapInternal("failed to render setup script", err)
	}
	return script, nil
}

func (s *Service) requireConfigured() error {
	if s.mdm == nil || !s.mdm.Configured() {
		return services.NewDomainError(services.ErrorTypeValidation, "device agent is not configured", nil)
	}
	return nil
}
