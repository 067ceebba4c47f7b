package postgres

import (
	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositoryFactoryFromDB creates a factory over an existing pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Organizations:  NewOrganizationRepository(f.db, f.logger),
		Members:        NewMemberRepository(f.db, f.logger),
		APIKeys:        NewAPIKeyRepository(f.db, f.logger),
		Contexts:       NewContextRepository(f.db, f.logger),
		KnowledgeBase:  NewKnowledgeBaseRepository(f.db, f.logger),
		Tasks:          NewTaskRepository(f.db, f.logger),
		Findings:       NewFindingRepository(f.db, f.logger),
		Vendors:        NewVendorRepository(f.db, f.logger),
		Risks:          NewRiskRepository(f.db, f.logger),
		Policies:       NewPolicyRepository(f.db, f.logger),
		Integrations:   NewIntegrationRepository(f.db, f.logger),
		TrustPortals:   NewTrustPortalRepository(f.db, f.logger),
		OnboardingRuns: NewOnboardingRunRepository(f.db, f.logger),
		AuditLogs:      NewAuditRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
