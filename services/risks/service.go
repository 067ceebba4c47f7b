// Package risks manages the organization's risk register.
package risks

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

const resourceType = "risk"

// CreateRiskRequest is the payload for registering a risk
type CreateRiskRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=100"`
	Department  string `json:"department" validate:"max=100"`
	Likelihood  *int   `json:"likelihood" validate:"omitempty,min=1,max=5"`
	Impact      *int   `json:"impact" validate:"omitempty,min=1,max=5"`
}

// UpdateRiskRequest is a partial update; nil fields are left unchanged
type UpdateRiskRequest struct {
	Title                *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description          *string `json:"description" validate:"omitempty,max=5000"`
	Category             *string `json:"category" validate:"omitempty,max=100"`
	Department           *string `json:"department" validate:"omitempty,max=100"`
	Status               *string `json:"status" validate:"omitempty,oneof=open pending closed archived"`
	Likelihood           *int    `json:"likelihood" validate:"omitempty,min=1,max=5"`
	Impact               *int    `json:"impact" validate:"omitempty,min=1,max=5"`
	TreatmentStrategy    *string `json:"treatment_strategy" validate:"omitempty,oneof=accept avoid mitigate transfer"`
	TreatmentDescription *string `json:"treatment_description" validate:"omitempty,max=20000"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// Service handles risk operations
type Service struct {
	repo   repositories.RiskRepository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new risk service
func NewService(repo repositories.RiskRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// List returns the organization's risks
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.Risk, error) {
	risks, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return risks, nil
}

// Get returns one risk of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error) {
	risk, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrRiskNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return risk, nil
}

// Create registers a risk, returning the existing one when the title is
// already registered
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateRiskRequest) (*models.Risk, bool, error) {
	existing, err := s.repo.GetByTitle(ctx, orgID, req.Title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, services.Wrap(services.ErrDatabaseError, err)
	}

	risk := models.NewRisk(orgID, req.Title, req.Description, req.Category, req.Department)
	if req.Likelihood != nil {
		risk.Likelihood = *req.Likelihood
	}
	if req.Impact != nil {
		risk.Impact = *req.Impact
	}

	if err := s.repo.Create(ctx, risk); err != nil {
		s.logger.Error("failed to create risk",
			zap.String("organization_id", orgID.String()),
			zap.String("title", req.Title),
			zap.Error(err))
		return nil, false, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("risk created",
		zap.String("organization_id", orgID.String()),
		zap.String("risk_id", risk.ID.String()))
	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, risk.ID, map[string]string{"title": risk.Title})

	return risk, true, nil
}

// Update applies a partial update
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateRiskRequest) (*models.Risk, error) {
	risk, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if req.Title != nil {
		risk.Title = *req.Title
		changed = append(changed, "title")
	}
	if req.Description != nil {
		risk.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.Category != nil {
		risk.Category = *req.Category
		changed = append(changed, "category")
	}
	if req.Department != nil {
		risk.Department = *req.Department
		changed = append(changed, "department")
	}
	if req.Status != nil {
		risk.Status = models.RiskStatus(*req.Status)
		changed = append(changed, "status")
	}
	if req.Likelihood != nil {
		risk.Likelihood = *req.Likelihood
		changed = append(changed, "likelihood")
	}
	if req.Impact != nil {
		risk.Impact = *req.Impact
		changed = append(changed, "impact")
	}
	if req.TreatmentStrategy != nil {
		risk.TreatmentStrategy = models.TreatmentStrategy(*req.TreatmentStrategy)
		changed = append(changed, "treatment_strategy")
	}
	if req.TreatmentDescription != nil {
		risk.TreatmentDescription = *req.TreatmentDescription
		changed = append(changed, "treatment_description")
	}
	if len(changed) == 0 {
		return risk, nil
	}

	if err := s.save(ctx, risk); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{"fields": changed})
	return risk, nil
}

// ApplyTreatment records a generated mitigation plan on the risk
func (s *Service) ApplyTreatment(ctx context.Context, orgID, id uuid.UUID, description string) (*models.Risk, error) {
	risk, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	risk.TreatmentStrategy = models.TreatmentMitigate
	risk.TreatmentDescription = description
	if risk.Status == models.RiskStatusOpen {
		risk.Status = models.RiskStatusPending
	}

	if err := s.save(ctx, risk); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{
		"fields": []string{"treatment_strategy", "treatment_description"},
	})
	return risk, nil
}

// Delete removes a risk
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrRiskNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, nil)
	return &DeleteResult{Success: true}, nil
}

func (s *Service) save(ctx context.Context, risk *models.Risk) error {
	risk.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, risk); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrRiskNotFound
		}
		return services.Wrap(services.ErrDatabaseError, err)
	}
	return nil
}
