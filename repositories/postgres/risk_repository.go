package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const riskColumns = `id, organization_id, title, description, category, department, status,
	likelihood, impact, treatment_strategy, treatment_description, created_at, updated_at`

// RiskRepository implements the repositories.RiskRepository interface
type RiskRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRiskRepository creates a new risk repository
func NewRiskRepository(db *DB, logger *zap.Logger) repositories.RiskRepository {
	return &RiskRepository{db: db, logger: logger}
}

// Create creates a new risk
func (r *RiskRepository) Create(ctx context.Context, risk *models.Risk) error {
	query := `
		INSERT INTO risks (` + riskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		risk.ID, risk.OrganizationID, risk.Title, risk.Description, risk.Category, risk.Department, risk.Status,
		risk.Likelihood, risk.Impact, risk.TreatmentStrategy, risk.TreatmentDescription, risk.CreatedAt, risk.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create risk")
	}
	return nil
}

// GetByID retrieves a risk of the organization
func (r *RiskRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// GetByTitle matches case-insensitively
func (r *RiskRepository) GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE organization_id = $1 AND lower(title) = lower($2)`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, title))
}

// ListByOrg retrieves the risk register, newest first
func (r *RiskRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE organization_id = $1 ORDER BY created_at DESC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}
	defer rows.Close()

	risks := []*models.Risk{}
	for rows.Next() {
		risk, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		risks = append(risks, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk rows: %w", err)
	}
	return risks, nil
}

// Update updates a risk
func (r *RiskRepository) Update(ctx context.Context, risk *models.Risk) error {
	query := `
		UPDATE risks
		SET title = $3, description = $4, category = $5, department = $6, status = $7,
		    likelihood = $8, impact = $9, treatment_strategy = $10, treatment_description = $11, updated_at = $12
		WHERE organization_id = $1 AND id = $2
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		risk.OrganizationID, risk.ID, risk.Title, risk.Description, risk.Category, risk.Department, risk.Status,
		risk.Likelihood, risk.Impact, risk.TreatmentStrategy, risk.TreatmentDescription, risk.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update risk")
	}
	return expectOneRow(res, "update risk")
}

// Delete deletes a risk
func (r *RiskRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM risks WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete risk")
	}
	return expectOneRow(res, "delete risk")
}

func (r *RiskRepository) scan(row rowScanner) (*models.Risk, error) {
	risk := &models.Risk{}
	err := row.Scan(
		&risk.ID, &risk.OrganizationID, &risk.Title, &risk.Description, &risk.Category, &risk.Department, &risk.Status,
		&risk.Likelihood, &risk.Impact, &risk.TreatmentStrategy, &risk.TreatmentDescription, &risk.CreatedAt, &risk.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan risk")
	}
	return risk, nil
}
