// Package tasks manages evidence tasks and generated mitigation tasks.
package tasks

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

const resourceType = "task"

// CreateTaskRequest is the payload for adding a task
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description string     `json:"description" validate:"max=20000"`
	Frequency   string     `json:"frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
	VendorID    *uuid.UUID `json:"vendor_id"`
	RiskID      *uuid.UUID `json:"risk_id"`
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=20000"`
	Status      *string `json:"status" validate:"omitempty,oneof=todo in_progress done not_relevant"`
	Frequency   *string `json:"frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
}

// ListFilter narrows List
type ListFilter struct {
	Status   *models.TaskStatus
	VendorID *uuid.UUID
	RiskID   *uuid.UUID
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// Service handles task operations
type Service struct {
	repo    repositories.TaskRepository
	vendors repositories.VendorRepository
	risks   repositories.RiskRepository
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewService creates a new task service. The vendor and risk repositories
// check links on create.
func NewService(repo repositories.TaskRepository, vendors repositories.VendorRepository, risks repositories.RiskRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, vendors: vendors, risks: risks, audit: recorder, logger: logger}
}

// List returns the organization's tasks
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]*models.Task, error) {
	tasks, err := s.repo.List(ctx, orgID, repositories.TaskFilter{
		Status:   filter.Status,
		VendorID: filter.VendorID,
		RiskID:   filter.RiskID,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return tasks, nil
}

// Get returns one task of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTaskNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return task, nil
}

// Create adds a task, optionally linked to a vendor or a risk of the same
// organization
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	if req.VendorID != nil && req.RiskID != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "a task links to a vendor or a risk, not both", nil)
	}
	if req.VendorID != nil && s.vendors != nil {
		if _, err := s.vendors.GetByID(ctx, orgID, *req.VendorID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrVendorNotFound
			}
			return nil, services.Wrap(services.ErrDatabaseError, err)
		}
	}
	if req.RiskID != nil && s.risks != nil {
		if _, err := s.risks.GetByID(ctx, orgID, *req.RiskID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrRiskNotFound
			}
			return nil, services.Wrap(services.ErrDatabaseError, err)
		}
	}

	task := models.NewTask(orgID, req.Title, req.Description)
	task.Frequency = req.Frequency
	task.VendorID = req.VendorID
	task.RiskID = req.RiskID

	if err := s.repo.Create(ctx, task); err != nil {
		s.logger.Error("failed to create task",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, task.ID, map[string]string{"title": task.Title})
	return task, nil
}

// Update applies a partial update
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateTaskRequest) (*models.Task, error) {
	task, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if req.Title != nil {
		task.Title = *req.Title
		changed = append(changed, "title")
	}
	if req.Description != nil {
		task.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.Frequency != nil {
		task.Frequency = *req.Frequency
		changed = append(changed, "frequency")
	}
	if req.Status != nil {
		task.Status = models.TaskStatus(*req.Status)
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return task, nil
	}
	task.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTaskNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{"fields": changed})
	return task, nil
}

// Delete removes a task
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTaskNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, nil)
	return &DeleteResult{Success: true}, nil
}
