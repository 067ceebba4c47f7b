package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const vendorColumns = `id, organization_id, name, description, category, website, status,
	inherent_probability, inherent_impact, residual_probability, residual_impact, mitigation,
	created_at, updated_at`

// VendorRepository implements the repositories.VendorRepository interface
type VendorRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *DB, logger *zap.Logger) repositories.VendorRepository {
	return &VendorRepository{db: db, logger: logger}
}

// Create creates a new vendor
func (r *VendorRepository) Create(ctx context.Context, v *models.Vendor) error {
	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		v.ID, v.OrganizationID, v.Name, v.Description, v.Category, v.Website, v.Status,
		v.InherentProbability, v.InherentImpact, v.ResidualProbability, v.ResidualImpact, v.Mitigation,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create vendor")
	}
	return nil
}

// GetByID retrieves a vendor of the organization
func (r *VendorRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// GetByName matches case-insensitively
func (r *VendorRepository) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE organization_id = $1 AND lower(name) = lower($2)`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, name))
}

// ListByOrg retrieves all vendors ordered by name
func (r *VendorRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE organization_id = $1 ORDER BY name ASC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	vendors := []*models.Vendor{}
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vendor rows: %w", err)
	}
	return vendors, nil
}

// Update updates a vendor
func (r *VendorRepository) Update(ctx context.Context, v *models.Vendor) error {
	query := `
		UPDATE vendors
		SET name = $3, description = $4, category = $5, website = $6, status = $7,
		    inherent_probability = $8, inherent_impact = $9, residual_probability = $10,
		    residual_impact = $11, mitigation = $12, updated_at = $13
		WHERE organization_id = $1 AND id = $2
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		v.OrganizationID, v.ID, v.Name, v.Description, v.Category, v.Website, v.Status,
		v.InherentProbability, v.InherentImpact, v.ResidualProbability, v.ResidualImpact,
		v.Mitigation, v.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update vendor")
	}
	return expectOneRow(res, "update vendor")
}

// Delete deletes a vendor
func (r *VendorRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM vendors WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete vendor")
	}
	return expectOneRow(res, "delete vendor")
}

func (r *VendorRepository) scan(row rowScanner) (*models.Vendor, error) {
	v := &models.Vendor{}
	err := row.Scan(
		&v.ID, &v.OrganizationID, &v.Name, &v.Description, &v.Category, &v.Website, &v.Status,
		&v.InherentProbability, &v.InherentImpact, &v.ResidualProbability, &v.ResidualImpact, &v.Mitigation,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan vendor")
	}
	return v, nil
}
