// Package vendors manages the organization's third party vendors.
package vendors

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"go.uber.org/zap"
)

const resourceType = "vendor"

// CreateVendorRequest is the payload for adding a vendor
type CreateVendorRequest struct {
	Name                string `json:"name" validate:"required,min=1,max=255"`
	Description         string `json:"description" validate:"max=5000"`
	Category            string `json:"category" validate:"max=100"`
	Website             string `json:"website" validate:"omitempty,url,max=500"`
	InherentProbability *int   `json:"inherent_probability" validate:"omitempty,min=1,max=5"`
	InherentImpact      *int   `json:"inherent_impact" validate:"omitempty,min=1,max=5"`
}

// UpdateVendorRequest is a partial update; nil fields are left unchanged
type UpdateVendorRequest struct {
	Name                *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description         *string `json:"description" validate:"omitempty,max=5000"`
	Category            *string `json:"category" validate:"omitempty,max=100"`
	Website             *string `json:"website" validate:"omitempty,url,max=500"`
	Status              *string `json:"status" validate:"omitempty,oneof=not_assessed in_progress assessed"`
	InherentProbability *int    `json:"inherent_probability" validate:"omitempty,min=1,max=5"`
	InherentImpact      *int    `json:"inherent_impact" validate:"omitempty,min=1,max=5"`
	ResidualProbability *int    `json:"residual_probability" validate:"omitempty,min=1,max=5"`
	ResidualImpact      *int    `json:"residual_impact" validate:"omitempty,min=1,max=5"`
	Mitigation          *string `json:"mitigation" validate:"omitempty,max=20000"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// Service handles vendor operations
type Service struct {
	repo   repositories.VendorRepository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new vendor service
func NewService(repo repositories.VendorRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// List returns the organization's vendors
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.Vendor, error) {
	vendors, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return vendors, nil
}

// Get returns one vendor of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrVendorNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return vendor, nil
}

// Create adds a vendor. A vendor with the same name, ignoring case, is
// returned instead of creating a duplicate; created reports which happened.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateVendorRequest) (vendor *models.Vendor, created bool, err error) {
	existing, err := s.repo.GetByName(ctx, orgID, req.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, services.Wrap(services.ErrDatabaseError, err)
	}

	vendor = models.NewVendor(orgID, req.Name, req.Description, req.Category, req.Website)
	if req.InherentProbability != nil {
		vendor.InherentProbability = *req.InherentProbability
	}
	if req.InherentImpact != nil {
		vendor.InherentImpact = *req.InherentImpact
	}

	if err := s.repo.Create(ctx, vendor); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// lost a race with a concurrent create
			if existing, getErr := s.repo.GetByName(ctx, orgID, req.Name); getErr == nil {
				return existing, false, nil
			}
		}
		s.logger.Error("failed to create vendor",
			zap.String("organization_id", orgID.String()),
			zap.String("name", req.Name),
			zap.Error(err))
		return nil, false, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("vendor created",
		zap.String("organization_id", orgID.String()),
		zap.String("vendor_id", vendor.ID.String()))
	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, vendor.ID, map[string]string{"name": vendor.Name})

	return vendor, true, nil
}

// Update applies a partial update
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateVendorRequest) (*models.Vendor, error) {
	vendor, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	setString := func(field string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			changed = append(changed, field)
		}
	}
	setInt := func(field string, dst *int, src *int) {
		if src != nil {
			*dst = *src
			changed = append(changed, field)
		}
	}

	setString("name", &vendor.Name, req.Name)
	setString("description", &vendor.Description, req.Description)
	setString("category", &vendor.Category, req.Category)
	setString("website", &vendor.Website, req.Website)
	setString("mitigation", &vendor.Mitigation, req.Mitigation)
	setInt("inherent_probability", &vendor.InherentProbability, req.InherentProbability)
	setInt("inherent_impact", &vendor.InherentImpact, req.InherentImpact)
	setInt("residual_probability", &vendor.ResidualProbability, req.ResidualProbability)
	setInt("residual_impact", &vendor.ResidualImpact, req.ResidualImpact)
	if req.Status != nil {
		vendor.Status = models.VendorStatus(*req.Status)
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return vendor, nil
	}

	if err := s.save(ctx, vendor); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{"fields": changed})
	return vendor, nil
}

// ApplyMitigation records an assessment produced for the vendor
func (s *Service) ApplyMitigation(ctx context.Context, orgID, id uuid.UUID, mitigation string, residualProbability, residualImpact int) (*models.Vendor, error) {
	vendor, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	vendor.Mitigation = mitigation
	vendor.Status = models.VendorStatusAssessed
	vendor.ResidualProbability = clampScore(residualProbability)
	vendor.ResidualImpact = clampScore(residualImpact)

	if err := s.save(ctx, vendor); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{
		"fields": []string{"mitigation", "status", "residual_probability", "residual_impact"},
	})
	return vendor, nil
}

// Delete removes a vendor
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrVendorNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, nil)
	return &DeleteResult{Success: true}, nil
}

func (s *Service) save(ctx context.Context, vendor *models.Vendor) error {
	vendor.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, vendor); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrVendorNotFound
		}
		return services.Wrap(services.ErrDatabaseError, err)
	}
	return nil
}

// clampScore keeps generated scores on the 1-5 scale
func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
