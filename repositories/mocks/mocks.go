// Package mocks provides testify mocks of the repository interfaces for
// service and handler tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
)

// MockOrganizationRepository is a mock implementation of repositories.OrganizationRepository
type MockOrganizationRepository struct {
	mock.Mock
}

func (m *MockOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockOrganizationRepository) MarkOnboardingCompleted(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMemberRepository is a mock implementation of repositories.MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) Create(ctx context.Context, member *models.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Member, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByUserID(ctx context.Context, orgID uuid.UUID, userID string) (*models.Member, error) {
	args := m.Called(ctx, orgID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Member, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockMemberRepository) GetOwner(ctx context.Context, orgID uuid.UUID) (*models.Member, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

// MockAPIKeyRepository is a mock implementation of repositories.APIKeyRepository
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	args := m.Called(ctx, keyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) Revoke(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockContextRepository is a mock implementation of repositories.ContextRepository
type MockContextRepository struct {
	mock.Mock
}

func (m *MockContextRepository) Create(ctx context.Context, entry *models.ContextEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockContextRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.ContextEntry, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContextEntry), args.Error(1)
}

func (m *MockContextRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.ContextEntry, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ContextEntry), args.Error(1)
}

func (m *MockContextRepository) Update(ctx context.Context, entry *models.ContextEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockContextRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockKnowledgeBaseRepository is a mock implementation of repositories.KnowledgeBaseRepository
type MockKnowledgeBaseRepository struct {
	mock.Mock
}

func (m *MockKnowledgeBaseRepository) Create(ctx context.Context, doc *models.KnowledgeBaseDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockKnowledgeBaseRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.KnowledgeBaseDocument, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KnowledgeBaseDocument), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.KnowledgeBaseDocument, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.KnowledgeBaseDocument), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) UpdateProcessing(ctx context.Context, doc *models.KnowledgeBaseDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockKnowledgeBaseRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockTaskRepository is a mock implementation of repositories.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Task, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, orgID uuid.UUID, filter repositories.TaskFilter) ([]*models.Task, error) {
	args := m.Called(ctx, orgID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockFindingRepository is a mock implementation of repositories.FindingRepository
type MockFindingRepository struct {
	mock.Mock
}

func (m *MockFindingRepository) Create(ctx context.Context, finding *models.Finding) error {
	args := m.Called(ctx, finding)
	return args.Error(0)
}

func (m *MockFindingRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Finding, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Finding), args.Error(1)
}

func (m *MockFindingRepository) List(ctx context.Context, orgID uuid.UUID, filter repositories.FindingFilter) ([]*models.Finding, error) {
	args := m.Called(ctx, orgID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Finding), args.Error(1)
}

func (m *MockFindingRepository) Update(ctx context.Context, finding *models.Finding) error {
	args := m.Called(ctx, finding)
	return args.Error(0)
}

func (m *MockFindingRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockVendorRepository is a mock implementation of repositories.VendorRepository
type MockVendorRepository struct {
	mock.Mock
}

func (m *MockVendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Vendor, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vendor), args.Error(1)
}

func (m *MockVendorRepository) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Vendor, error) {
	args := m.Called(ctx, orgID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vendor), args.Error(1)
}

func (m *MockVendorRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Vendor, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Vendor), args.Error(1)
}

func (m *MockVendorRepository) Update(ctx context.Context, vendor *models.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockRiskRepository is a mock implementation of repositories.RiskRepository
type MockRiskRepository struct {
	mock.Mock
}

func (m *MockRiskRepository) Create(ctx context.Context, risk *models.Risk) error {
	args := m.Called(ctx, risk)
	return args.Error(0)
}

func (m *MockRiskRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Risk, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Risk), args.Error(1)
}

func (m *MockRiskRepository) GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Risk, error) {
	args := m.Called(ctx, orgID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Risk), args.Error(1)
}

func (m *MockRiskRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Risk, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Risk), args.Error(1)
}

func (m *MockRiskRepository) Update(ctx context.Context, risk *models.Risk) error {
	args := m.Called(ctx, risk)
	return args.Error(0)
}

func (m *MockRiskRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockPolicyRepository is a mock implementation of repositories.PolicyRepository
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Policy, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

func (m *MockPolicyRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Policy), args.Error(1)
}

func (m *MockPolicyRepository) ListByStatus(ctx context.Context, orgID uuid.UUID, status models.PolicyStatus) ([]*models.Policy, error) {
	args := m.Called(ctx, orgID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Policy), args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockIntegrationRepository is a mock implementation of repositories.IntegrationRepository
type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) Create(ctx context.Context, conn *models.IntegrationConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockIntegrationRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationRepository) GetByProvider(ctx context.Context, orgID uuid.UUID, providerSlug string) (*models.IntegrationConnection, error) {
	args := m.Called(ctx, orgID, providerSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.IntegrationConnection, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IntegrationConnection), args.Error(1)
}

func (m *MockIntegrationRepository) Update(ctx context.Context, conn *models.IntegrationConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockIntegrationRepository) Delete(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

// MockTrustPortalRepository is a mock implementation of repositories.TrustPortalRepository
type MockTrustPortalRepository struct {
	mock.Mock
}

func (m *MockTrustPortalRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID) (*models.TrustPortal, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustPortal), args.Error(1)
}

func (m *MockTrustPortalRepository) GetByFriendlyURL(ctx context.Context, friendlyURL string) (*models.TrustPortal, error) {
	args := m.Called(ctx, friendlyURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustPortal), args.Error(1)
}

func (m *MockTrustPortalRepository) Upsert(ctx context.Context, portal *models.TrustPortal) error {
	args := m.Called(ctx, portal)
	return args.Error(0)
}

// MockOnboardingRunRepository is a mock implementation of repositories.OnboardingRunRepository
type MockOnboardingRunRepository struct {
	mock.Mock
}

func (m *MockOnboardingRunRepository) Create(ctx context.Context, run *models.OnboardingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockOnboardingRunRepository) GetByID(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.OnboardingRun, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OnboardingRun), args.Error(1)
}

func (m *MockOnboardingRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.OnboardingRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OnboardingRun), args.Error(1)
}

func (m *MockOnboardingRunRepository) UpdateProgress(ctx context.Context, id uuid.UUID, mutate func(run *models.OnboardingRun) bool) (*models.OnboardingRun, bool, error) {
	args := m.Called(ctx, id, mutate)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.OnboardingRun), args.Bool(1), args.Error(2)
}

// MockAuditRepository is a mock implementation of repositories.AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID, limit int, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) GetByResource(ctx context.Context, orgID uuid.UUID, resourceType string, resourceID uuid.UUID) ([]*models.AuditLog, error) {
	args := m.Called(ctx, orgID, resourceType, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

// MockTransactionManager runs InTransaction callbacks inline with the caller's context
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx := &MockTransaction{ctx: ctx}
	if err := fn(ctx, tx); err != nil {
		tx.RolledBack = true
		return err
	}
	tx.Committed = true
	return nil
}

// MockTransaction records whether it was committed or rolled back
type MockTransaction struct {
	ctx        context.Context
	Committed  bool
	RolledBack bool
}

// NewMockTransaction returns a transaction bound to ctx
func NewMockTransaction(ctx context.Context) *MockTransaction {
	return &MockTransaction{ctx: ctx}
}

func (t *MockTransaction) Commit() error {
	t.Committed = true
	return nil
}

func (t *MockTransaction) Rollback() error {
	t.RolledBack = true
	return nil
}

func (t *MockTransaction) Context() context.Context {
	return t.ctx
}

// NewRepositories returns a Repositories aggregate backed entirely by mocks
func NewRepositories() (*repositories.Repositories, *Set) {
	s := &Set{
		Organizations:  new(MockOrganizationRepository),
		Members:        new(MockMemberRepository),
		APIKeys:        new(MockAPIKeyRepository),
		Contexts:       new(MockContextRepository),
		KnowledgeBase:  new(MockKnowledgeBaseRepository),
		Tasks:          new(MockTaskRepository),
		Findings:       new(MockFindingRepository),
		Vendors:        new(MockVendorRepository),
		Risks:          new(MockRiskRepository),
		Policies:       new(MockPolicyRepository),
		Integrations:   new(MockIntegrationRepository),
		TrustPortals:   new(MockTrustPortalRepository),
		OnboardingRuns: new(MockOnboardingRunRepository),
		AuditLogs:      new(MockAuditRepository),
	}
	return &repositories.Repositories{
		Organizations:  s.Organizations,
		Members:        s.Members,
		APIKeys:        s.APIKeys,
		Contexts:       s.Contexts,
		KnowledgeBase:  s.KnowledgeBase,
		Tasks:          s.Tasks,
		Findings:       s.Findings,
		Vendors:        s.Vendors,
		Risks:          s.Risks,
		Policies:       s.Policies,
		Integrations:   s.Integrations,
		TrustPortals:   s.TrustPortals,
		OnboardingRuns: s.OnboardingRuns,
		AuditLogs:      s.AuditLogs,
	}, s
}

// Set exposes the concrete mocks behind NewRepositories for setting expectations
type Set struct {
	Organizations  *MockOrganizationRepository
	Members        *MockMemberRepository
	APIKeys        *MockAPIKeyRepository
	Contexts       *MockContextRepository
	KnowledgeBase  *MockKnowledgeBaseRepository
	Tasks          *MockTaskRepository
	Findings       *MockFindingRepository
	Vendors        *MockVendorRepository
	Risks          *MockRiskRepository
	Policies       *MockPolicyRepository
	Integrations   *MockIntegrationRepository
	TrustPortals   *MockTrustPortalRepository
	OnboardingRuns *MockOnboardingRunRepository
	AuditLogs      *MockAuditRepository
}
