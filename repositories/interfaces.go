package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
)

var (
	// ErrNotFound is returned when no row matches, including rows owned by
	// another organization
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique constraint is violated
	ErrConflict = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// OrganizationRepository handles organization data operations
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error

	// MarkOnboardingCompleted flags the organization as onboarded
	MarkOnboardingCompleted(ctx context.Context, id uuid.UUID) error

	// Delete deletes an organization; dependent rows cascade
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberRepository handles organization membership
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Member, error)

	// GetByUserID resolves the identity provider subject to a membership
	GetByUserID(ctx context.Context, orgID uuid.UUID, userID string) (*models.Member, error)

	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Member, error)

	// GetOwner returns the earliest owner of the organization
	GetOwner(ctx context.Context, orgID uuid.UUID) (*models.Member, error)
}

// APIKeyRepository handles organization API keys
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error

	// GetByHash returns a non-revoked key by its sha256 hash
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)

	TouchLastUsed(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, orgID, id uuid.UUID) error
}

// ContextRepository handles context entries
type ContextRepository interface {
	Create(ctx context.Context, entry *models.ContextEntry) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.ContextEntry, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.ContextEntry, error)
	Update(ctx context.Context, entry *models.ContextEntry) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// KnowledgeBaseRepository handles knowledge base document metadata
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, doc *models.KnowledgeBaseDocument) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.KnowledgeBaseDocument, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.KnowledgeBaseDocument, error)

	// UpdateProcessing persists processing status, error, chunk count and processed_at
	UpdateProcessing(ctx context.Context, doc *models.KnowledgeBaseDocument) error

	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// TaskFilter narrows task listings
type TaskFilter struct {
	Status   *models.TaskStatus
	VendorID *uuid.UUID
	RiskID   *uuid.UUID
}

// TaskRepository handles evidence and mitigation tasks
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, orgID uuid.UUID, filter TaskFilter) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// FindingFilter narrows finding listings
type FindingFilter struct {
	TaskID *uuid.UUID
	Status *models.FindingStatus
}

// FindingRepository handles findings
type FindingRepository interface {
	Create(ctx context.Context, finding *models.Finding) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Finding, error)
	List(ctx context.Context, orgID uuid.UUID, filter FindingFilter) ([]*models.Finding, error)
	Update(ctx context.Context, finding *models.Finding) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// VendorRepository handles vendors
type VendorRepository interface {
	Create(ctx context.Context, vendor *models.Vendor) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error)

	// GetByName matches case-insensitively
	GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Vendor, error)

	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Vendor, error)
	Update(ctx context.Context, vendor *models.Vendor) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// RiskRepository handles the risk register
type RiskRepository interface {
	Create(ctx context.Context, risk *models.Risk) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error)

	// GetByTitle matches case-insensitively
	GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Risk, error)

	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Risk, error)
	Update(ctx context.Context, risk *models.Risk) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// PolicyRepository handles policy documents
type PolicyRepository interface {
	Create(ctx context.Context, policy *models.Policy) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)
	ListByStatus(ctx context.Context, orgID uuid.UUID, status models.PolicyStatus) ([]*models.Policy, error)
	Update(ctx context.Context, policy *models.Policy) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// IntegrationRepository handles integration connections
type IntegrationRepository interface {
	// Create returns ErrConflict when the provider is already connected
	Create(ctx context.Context, conn *models.IntegrationConnection) error

	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.IntegrationConnection, error)
	GetByProvider(ctx context.Context, orgID uuid.UUID, providerSlug string) (*models.IntegrationConnection, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.IntegrationConnection, error)
	Update(ctx context.Context, conn *models.IntegrationConnection) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// TrustPortalRepository handles trust portal settings
type TrustPortalRepository interface {
	GetByOrgID(ctx context.Context, orgID uuid.UUID) (*models.TrustPortal, error)
	GetByFriendlyURL(ctx context.Context, friendlyURL string) (*models.TrustPortal, error)

	// Upsert returns ErrConflict when friendly_url is taken by another organization
	Upsert(ctx context.Context, portal *models.TrustPortal) error
}

// OnboardingRunRepository persists onboarding run snapshots
type OnboardingRunRepository interface {
	Create(ctx context.Context, run *models.OnboardingRun) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.OnboardingRun, error)

	// Get loads a run without tenant scoping, for run-token readers
	Get(ctx context.Context, id uuid.UUID) (*models.OnboardingRun, error)

	// UpdateProgress applies mutate to the stored run under a row lock and
	// persists it when mutate reports a change
	UpdateProgress(ctx context.Context, id uuid.UUID, mutate func(run *models.OnboardingRun) bool) (*models.OnboardingRun, bool, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByOrgID retrieves audit logs for an organization with pagination
	GetByOrgID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// GetByResource retrieves the history of one entity
	GetByResource(ctx context.Context, orgID uuid.UUID, resourceType string, resourceID uuid.UUID) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Organizations  OrganizationRepository
	Members        MemberRepository
	APIKeys        APIKeyRepository
	Contexts       ContextRepository
	KnowledgeBase  KnowledgeBaseRepository
	Tasks          TaskRepository
	Findings       FindingRepository
	Vendors        VendorRepository
	Risks          RiskRepository
	Policies       PolicyRepository
	Integrations   IntegrationRepository
	TrustPortals   TrustPortalRepository
	OnboardingRuns OnboardingRunRepository
	AuditLogs      AuditRepository
}
