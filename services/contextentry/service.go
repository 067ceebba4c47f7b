// Package contextentry manages the question and answer entries that seed
// AI assisted document generation.
package contextentry

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

const resourceType = "context"

// CreateContextRequest is the payload for creating an entry
type CreateContextRequest struct {
	Question string   `json:"question" validate:"required,min=1,max=2000"`
	Answer   string   `json:"answer" validate:"required,min=1,max=20000"`
	Tags     []string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// UpdateContextRequest is a partial update; nil fields are left unchanged
type UpdateContextRequest struct {
	Question *string   `json:"question" validate:"omitempty,min=1,max=2000"`
	Answer   *string   `json:"answer" validate:"omitempty,min=1,max=20000"`
	Tags     *[]string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// DeletedContext identifies the entry removed by Delete
type DeletedContext struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success        bool           `json:"success"`
	DeletedContext DeletedContext `json:"deletedContext"`
}

// Service handles context entry operations
type Service struct {
	repo   repositories.ContextRepository
	audit  audit.Recorder
	logger *zap.Logger
}

// NewService creates a new context entry service
func NewService(repo repositories.ContextRepository, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// List returns the organization's entries, newest first
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.ContextEntry, error) {
	entries, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		s.logger.Error("failed to list context entries",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return entries, nil
}

// Get returns one entry of the organization
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.ContextEntry, error) {
	entry, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrContextNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return entry, nil
}

// Create persists a new entry for the organization
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateContextRequest) (*models.ContextEntry, error) {
	entry := models.NewContextEntry(orgID, req.Question, req.Answer, req.Tags)

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to create context entry",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("context entry created",
		zap.String("organization_id", orgID.String()),
		zap.String("context_id", entry.ID.String()))
	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, entry.ID, map[string]string{"question": entry.Question})

	return entry, nil
}

// Update applies a partial update to an existing entry
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateContextRequest) (*models.ContextEntry, error) {
	entry, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, 3)
	if req.Question != nil {
		entry.Question = *req.Question
		changed = append(changed, "question")
	}
	if req.Answer != nil {
		entry.Answer = *req.Answer
		changed = append(changed, "answer")
	}
	if req.Tags != nil {
		entry.Tags = *req.Tags
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		changed = append(changed, "tags")
	}
	if len(changed) == 0 {
		return entry, nil
	}
	entry.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrContextNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, entry.ID, map[string]interface{}{"fields": changed})
	return entry, nil
}

// Delete removes an entry and reports which one was removed
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	entry, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrContextNotFound
		}
		s.logger.Error("failed to delete context entry",
			zap.String("context_id", id.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("context entry deleted",
		zap.String("organization_id", orgID.String()),
		zap.String("context_id", id.String()))
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, map[string]string{"question": entry.Question})

	return &DeleteResult{
		Success:        true,
		DeletedContext: DeletedContext{ID: entry.ID, Question: entry.Question},
	}, nil
}
