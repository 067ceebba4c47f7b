package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const policyColumns = `id, organization_id, name, description, content, status, frequency, department,
	last_tailored_at, created_at, updated_at`

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		policy.ID,
		policy.OrganizationID,
		policy.Name,
		policy.Description,
		policy.Content,
		policy.Status,
		policy.Frequency,
		policy.Department,
		policy.LastTailoredAt,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create policy")
	}

	r.logger.Debug("policy created", zap.String("id", policy.ID.String()))
	return nil
}

// GetByID retrieves a policy of the organization
func (r *PolicyRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// ListByOrg retrieves all policies for an organization
func (r *PolicyRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE organization_id = $1 ORDER BY name ASC`
	return r.queryPolicies(ctx, query, orgID)
}

// ListByStatus retrieves policies in the given status
func (r *PolicyRepository) ListByStatus(ctx context.Context, orgID uuid.UUID, status models.PolicyStatus) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE organization_id = $1 AND status = $2 ORDER BY name ASC`
	return r.queryPolicies(ctx, query, orgID, status)
}

// Update updates a policy
func (r *PolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	query := `
		UPDATE policies
		SET name = $3, description = $4, content = $5, status = $6, frequency = $7, department = $8,
		    last_tailored_at = $9, updated_at = $10
		WHERE organization_id = $1 AND id = $2
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		policy.OrganizationID,
		policy.ID,
		policy.Name,
		policy.Description,
		policy.Content,
		policy.Status,
		policy.Frequency,
		policy.Department,
		policy.LastTailoredAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update policy")
	}
	if err := expectOneRow(res, "update policy"); err != nil {
		return err
	}

	r.logger.Debug("policy updated", zap.String("id", policy.ID.String()))
	return nil
}

// Delete deletes a policy
func (r *PolicyRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM policies WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete policy")
	}
	return expectOneRow(res, "delete policy")
}

// queryPolicies is a helper method to query multiple policies
func (r *PolicyRepository) queryPolicies(ctx context.Context, query string, args ...interface{}) ([]*models.Policy, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	policies := []*models.Policy{}
	for rows.Next() {
		policy, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}
	return policies, nil
}

func (r *PolicyRepository) scan(row rowScanner) (*models.Policy, error) {
	policy := &models.Policy{}
	err := row.Scan(
		&policy.ID,
		&policy.OrganizationID,
		&policy.Name,
		&policy.Description,
		&policy.Content,
		&policy.Status,
		&policy.Frequency,
		&policy.Department,
		&policy.LastTailoredAt,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan policy")
	}
	return policy, nil
}
