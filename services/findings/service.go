// Package findings manages auditor raised findings and their review
// lifecycle.
package findings

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

const resourceType = "finding"

// Actor is the member acting on a finding
type Actor struct {
	MemberID uuid.UUID
	Role     models.MemberRole
}

// CreateFindingRequest is the payload for raising a finding
type CreateFindingRequest struct {
	TaskID               *uuid.UUID `json:"task_id"`
	EvidenceSubmissionID *uuid.UUID `json:"evidence_submission_id"`
	Type                 string     `json:"type" validate:"required,oneof=soc2 iso27001 gdpr other"`
	Content              string     `json:"content" validate:"required,min=1,max=10000"`
}

// UpdateFindingRequest edits the finding text
type UpdateFindingRequest struct {
	Type    *string `json:"type" validate:"omitempty,oneof=soc2 iso27001 gdpr other"`
	Content *string `json:"content" validate:"omitempty,min=1,max=10000"`
}

// TransitionRequest moves a finding through its lifecycle
type TransitionRequest struct {
	Status       string  `json:"status" validate:"required,oneof=open ready_for_review needs_revision closed"`
	RevisionNote *string `json:"revision_note" validate:"omitempty,max=5000"`
}

// ListFilter narrows List
type ListFilter struct {
	TaskID *uuid.UUID
	Status *models.FindingStatus
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// Service handles finding operations
type Service struct {
	repo   repositories.FindingRepository
	tasks  repositories.TaskRepository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new finding service. tasks may be nil, in which case
// task references are not checked.
func NewService(repo repositories.FindingRepository, tasks repositories.TaskRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, tasks: tasks, audit: recorder, logger: logger}
}

// errMemberRequired rejects actors that are not members, such as API keys.
// Findings record who raised them and reviewers are accountable people.
var errMemberRequired = services.NewDomainError(services.ErrorTypeForbidden, "findings can only be managed by organization members", nil)

// requireMember returns errMemberRequired for actors without a member
func requireMember(actor Actor) error {
	if actor.MemberID == uuid.Nil {
		return errMemberRequired
	}
	return nil
}

// CanCreate reports whether role may raise findings
func CanCreate(role models.MemberRole) bool {
	return role == models.RoleAuditor || role == models.RoleOwner || role == models.RoleAdmin
}

// CanTransition reports whether role may move a finding into status to
func CanTransition(role models.MemberRole, to models.FindingStatus) bool {
	switch to {
	case models.FindingStatusClosed, models.FindingStatusNeedsRevision:
		return role == models.RoleAuditor || role == models.RoleOwner
	case models.FindingStatusReadyForReview:
		return role == models.RoleAdmin || role == models.RoleOwner || role == models.RoleEmployee
	case models.FindingStatusOpen:
		return CanCreate(role)
	}
	return false
}

// List returns the organization's findings
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]*models.Finding, error) {
	findings, err := s.repo.List(ctx, orgID, repositories.FindingFilter{TaskID: filter.TaskID, Status: filter.Status})
	if err != nil {
		s.logger.Error("failed to list findings",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return findings, nil
}

// Get returns one finding of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Finding, error) {
	finding, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrFindingNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return finding, nil
}

// Create raises a new open finding
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, actor Actor, req CreateFindingRequest) (*models.Finding, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	if !CanCreate(actor.Role) {
		return nil, services.NewDomainError(services.ErrorTypeForbidden, "only auditors, owners and admins can create findings", nil).
			WithDetail("role", string(actor.Role))
	}
	if req.TaskID == nil && req.EvidenceSubmissionID == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "a finding must reference a task or an evidence submission", nil)
	}
	if req.TaskID != nil && s.tasks != nil {
		if _, err := s.tasks.GetByID(ctx, orgID, *req.TaskID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrTaskNotFound
			}
			return nil, services.Wrap(services.ErrDatabaseError, err)
		}
	}

	finding := models.NewFinding(orgID, actor.MemberID, models.FindingType(req.Type), req.Content)
	finding.TaskID = req.TaskID
	finding.EvidenceSubmissionID = req.EvidenceSubmissionID

	if err := s.repo.Create(ctx, finding); err != nil {
		s.logger.Error("failed to create finding",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("finding created",
		zap.String("organization_id", orgID.String()),
		zap.String("finding_id", finding.ID.String()),
		zap.String("type", req.Type))
	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, finding.ID, map[string]string{"type": req.Type})

	return finding, nil
}

// Update edits the type or content of a finding. Closed findings are frozen.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, actor Actor, req UpdateFindingRequest) (*models.Finding, error) {
	finding, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !CanCreate(actor.Role) && finding.CreatedByMemberID != actor.MemberID {
		return nil, services.ErrInsufficientPermissions
	}
	if finding.Status == models.FindingStatusClosed {
		return nil, services.NewDomainError(services.ErrorTypeInvalidTransition, "closed findings cannot be edited", nil).
			WithDetail("status", string(finding.Status))
	}

	changed := make([]string, 0, 2)
	if req.Type != nil {
		finding.Type = models.FindingType(*req.Type)
		changed = append(changed, "type")
	}
	if req.Content != nil {
		finding.Content = *req.Content
		changed = append(changed, "content")
	}
	if len(changed) == 0 {
		return finding, nil
	}
	finding.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, finding); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrFindingNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{"fields": changed})
	return finding, nil
}

// Transition moves a finding to a new status. Role violations are
// forbidden; edges the lifecycle does not allow are invalid transitions.
func (s *Service) Transition(ctx context.Context, orgID, id uuid.UUID, actor Actor, req TransitionRequest) (*models.Finding, error) {
	to := models.FindingStatus(req.Status)
	if err := requireMember(actor); err != nil {
		return nil, err
	}

	finding, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	from := finding.Status

	if !CanTransition(actor.Role, to) {
		return nil, services.NewDomainError(services.ErrorTypeForbidden, services.ErrInsufficientPermissions.Message, nil).
			WithDetail("role", string(actor.Role)).
			WithDetail("to", string(to))
	}
	if !from.CanTransitionTo(to) {
		return nil, services.NewDomainError(services.ErrorTypeInvalidTransition, services.ErrInvalidTransition.Message, nil).
			WithDetail("from", string(from)).
			WithDetail("to", string(to))
	}

	finding.Status = to
	switch {
	case to == models.FindingStatusNeedsRevision:
		finding.RevisionNote = req.RevisionNote
	case to == models.FindingStatusClosed || to == models.FindingStatusOpen:
		finding.RevisionNote = nil
	}
	finding.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, finding); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrFindingNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("finding status changed",
		zap.String("organization_id", orgID.String()),
		zap.String("finding_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	s.audit.Record(ctx, orgID, models.AuditActionStatusChanged, resourceType, id, map[string]string{
		"from": string(from),
		"to":   string(to),
	})

	return finding, nil
}

// Delete removes a finding
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID, actor Actor) (*DeleteResult, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	if !CanCreate(actor.Role) {
		return nil, services.ErrInsufficientPermissions
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrFindingNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, nil)
	return &DeleteResult{Success: true}, nil
}
