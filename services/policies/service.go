// Package policies manages the organization's compliance policy documents.
package policies

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

const resourceType = "policy"

// CreatePolicyRequest is the payload for adding a policy
type CreatePolicyRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Content     string `json:"content" validate:"max=200000"`
	Frequency   string `json:"frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
	Department  string `json:"department" validate:"max=100"`
}

// UpdatePolicyRequest is a partial update; nil fields are left unchanged
type UpdatePolicyRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Content     *string `json:"content" validate:"omitempty,max=200000"`
	Status      *string `json:"status" validate:"omitempty,oneof=draft published needs_review"`
	Frequency   *string `json:"frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// Service handles policy operations
type Service struct {
	repo   repositories.PolicyRepository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new policy service
func NewService(repo repositories.PolicyRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// List returns the organization's policies
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	policies, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return policies, nil
}

// ListPublished returns the organization's published policies
func (s *Service) ListPublished(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	policies, err := s.repo.ListByStatus(ctx, orgID, models.PolicyStatusPublished)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return policies, nil
}

// Get returns one policy of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error) {
	policy, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return policy, nil
}

// Create adds a draft policy
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreatePolicyRequest) (*models.Policy, error) {
	policy := models.NewPolicy(orgID, req.Name, req.Description, req.Content)
	policy.Frequency = req.Frequency
	policy.Department = req.Department

	if err := s.repo.Create(ctx, policy); err != nil {
		s.logger.Error("failed to create policy",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, policy.ID, map[string]string{"name": policy.Name})
	return policy, nil
}

// Update applies a partial update. Content edits are recorded with a diff
// summary.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdatePolicyRequest) (*models.Policy, error) {
	policy, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{}
	var changed []string
	if req.Name != nil {
		policy.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil {
		policy.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.Content != nil && *req.Content != policy.Content {
		details["diff"] = Summarize(policy.Content, *req.Content)
		policy.Content = *req.Content
		changed = append(changed, "content")
	}
	if req.Frequency != nil {
		policy.Frequency = *req.Frequency
		changed = append(changed, "frequency")
	}
	if req.Department != nil {
		policy.Department = *req.Department
		changed = append(changed, "department")
	}

	action := models.AuditActionUpdated
	if req.Status != nil && models.PolicyStatus(*req.Status) != policy.Status {
		details["from"] = string(policy.Status)
		details["to"] = *req.Status
		policy.Status = models.PolicyStatus(*req.Status)
		changed = append(changed, "status")
		if len(changed) == 1 {
			action = models.AuditActionStatusChanged
		}
	}
	if len(changed) == 0 {
		return policy, nil
	}
	details["fields"] = changed

	if err := s.save(ctx, policy); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, action, resourceType, id, details)
	return policy, nil
}

// Tailor replaces the policy content with a version adapted to the
// organization and flags it for review
func (s *Service) Tailor(ctx context.Context, orgID, id uuid.UUID, content string) (*models.Policy, DiffSummary, error) {
	policy, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, DiffSummary{}, err
	}

	summary := Summarize(policy.Content, content)
	now := time.Now()
	policy.Content = content
	policy.Status = models.PolicyStatusNeedsReview
	policy.LastTailoredAt = &now

	if err := s.save(ctx, policy); err != nil {
		return nil, DiffSummary{}, err
	}

	s.logger.Info("policy tailored",
		zap.String("organization_id", orgID.String()),
		zap.String("policy_id", id.String()),
		zap.Int("lines_added", summary.LinesAdded),
		zap.Int("lines_removed", summary.LinesRemoved))
	s.audit.Record(ctx, orgID, models.AuditActionPolicyTailored, resourceType, id, summary)

	return policy, summary, nil
}

// Delete removes a policy
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, nil)
	return &DeleteResult{Success: true}, nil
}

func (s *Service) save(ctx context.Context, policy *models.Policy) error {
	policy.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, policy); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrPolicyNotFound
		}
		return services.Wrap(services.ErrDatabaseError, err)
	}
	return nil
}
