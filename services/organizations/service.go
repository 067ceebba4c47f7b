// Package organizations creates and removes tenants.
package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"github.com/trycompai/comp-sub012/services/integrations"
	"github.com/trycompai/comp-sub012/services/knowledgebase"
	"go.uber.org/zap"
)

const resourceType = "organization"

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,98}[a-z0-9])?$`)

// CreateOrganizationRequest creates an organization with its first owner
type CreateOrganizationRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Slug        string `json:"slug" validate:"required,max=100"`
	Website     string `json:"website" validate:"omitempty,url,max=500"`
	OwnerUserID string `json:"owner_user_id" validate:"required,max=255"`
	OwnerEmail  string `json:"owner_email" validate:"required,email"`
	OwnerName   string `json:"owner_name" validate:"max=255"`
}

// CreateResult is returned by Create
type CreateResult struct {
	Organization *models.Organization `json:"organization"`
	Owner        *models.Member       `json:"owner"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// ObjectStore removes an organization's files
type ObjectStore interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// VectorIndex removes an organization's indexed chunks
type VectorIndex interface {
	DeleteOrganization(ctx context.Context, orgID uuid.UUID) error
}

// Trigger enqueues background jobs
type Trigger interface {
	Trigger(ctx context.Context, taskID string, payload interface{}, opts ...jobs.TriggerOption) (jobs.Handle, error)
}

// Service handles organization lifecycle
type Service struct {
	orgs    repositories.OrganizationRepository
	members repositories.MemberRepository
	txMgr   repositories.TransactionManager
	store   ObjectStore
	vectors VectorIndex
	trigger Trigger
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewService creates an organization service
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	store ObjectStore,
	vectors VectorIndex,
	trigger Trigger,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		orgs:    repos.Organizations,
		members: repos.Members,
		txMgr:   txMgr,
		store:   store,
		vectors: vectors,
		trigger: trigger,
		audit:   recorder,
		logger:  logger,
	}
}

// Get returns an organization
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return org, nil
}

// Create inserts the organization and its owner in one transaction, then
// queues the CRM sync
func (s *Service) Create(ctx context.Context, req CreateOrganizationRequest) (*CreateResult, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidSlug.Message, nil).
			WithDetail("slug", req.Slug)
	}

	org := models.NewOrganization(strings.TrimSpace(req.Name), slug, req.Website)
	owner := models.NewMember(org.ID, req.OwnerUserID, req.OwnerEmail, req.OwnerName, models.RoleOwner)

	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		return s.members.Create(ctx, owner)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, services.NewDomainError(services.ErrorTypeConflict, services.ErrDuplicateSlug.Message, nil).
				WithDetail("slug", slug)
		}
		s.logger.Error("failed to create organization",
			zap.String("slug", slug),
			zap.Error(err))
		return nil, services.Wrap(services.ErrTransactionFailed, err)
	}

	s.logger.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("slug", slug))
	s.audit.Record(ctx, org.ID, models.AuditActionCreated, resourceType, org.ID, map[string]string{"slug": slug})

	if s.trigger != nil {
		if _, err := s.trigger.Trigger(ctx, integrations.TaskSyncCRM, integrations.SyncPayload(org.ID)); err != nil {
			s.logger.Warn("failed to queue CRM sync",
				zap.String("organization_id", org.ID.String()),
				zap.Error(err))
		}
	}

	return &CreateResult{Organization: org, Owner: owner}, nil
}

// Delete removes the organization's files and vectors, then the row.
// Dependent rows cascade.
func (s *Service) Delete(ctx context.Context, orgID uuid.UUID) (*DeleteResult, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}

	if err := s.store.DeletePrefix(ctx, knowledgebase.OrganizationPrefix(orgID)); err != nil {
		s.logger.Error("failed to delete organization files",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrStorageFailed, err)
	}
	if err := s.vectors.DeleteOrganization(ctx, orgID); err != nil {
		s.logger.Error("failed to delete organization vectors",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrVectorStoreFailed, err)
	}

	if err := s.orgs.Delete(ctx, orgID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("organization deleted", zap.String("organization_id", orgID.String()))
	return &DeleteResult{Success: true}, nil
}
