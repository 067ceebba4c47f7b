package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const organizationColumns = `id, name, slug, website, onboarding_completed, created_at, updated_at`

// OrganizationRepository implements the repositories.OrganizationRepository interface
type OrganizationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB, logger *zap.Logger) repositories.OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Website,
		org.OnboardingCompleted,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create organization")
	}

	r.logger.Debug("organization created", zap.String("id", org.ID.String()), zap.String("slug", org.Slug))
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves an organization by slug
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, slug))
}

// Update updates an organization
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, website = $4, onboarding_completed = $5, updated_at = $6
		WHERE id = $1
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Website,
		org.OnboardingCompleted,
		org.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update organization")
	}
	return expectOneRow(res, "update organization")
}

// MarkOnboardingCompleted flags the organization as onboarded
func (r *OrganizationRepository) MarkOnboardingCompleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE organizations SET onboarding_completed = true, updated_at = now() WHERE id = $1`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return translateError(err, "mark onboarding completed")
	}
	return expectOneRow(res, "mark onboarding completed")
}

// Delete deletes an organization; dependent rows cascade
func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return translateError(err, "delete organization")
	}
	if err := expectOneRow(res, "delete organization"); err != nil {
		return err
	}

	r.logger.Info("organization deleted", zap.String("id", id.String()))
	return nil
}

func (r *OrganizationRepository) scan(row rowScanner) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Website,
		&org.OnboardingCompleted,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "get organization")
	}
	return org, nil
}
