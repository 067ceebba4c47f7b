package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const integrationColumns = `id, organization_id, provider_slug, status, settings, credentials,
	last_sync_at, last_error, created_at, updated_at`

// IntegrationRepository implements the repositories.IntegrationRepository interface
type IntegrationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIntegrationRepository creates a new integration connection repository
func NewIntegrationRepository(db *DB, logger *zap.Logger) repositories.IntegrationRepository {
	return &IntegrationRepository{db: db, logger: logger}
}

// Create returns ErrConflict when the provider is already connected
func (r *IntegrationRepository) Create(ctx context.Context, c *models.IntegrationConnection) error {
	query := `
		INSERT INTO integration_connections (` + integrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.OrganizationID, c.ProviderSlug, c.Status, []byte(c.Settings), []byte(c.Credentials),
		c.LastSyncAt, c.LastError, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create integration connection")
	}
	r.logger.Info("integration connected",
		zap.String("org_id", c.OrganizationID.String()),
		zap.String("provider", c.ProviderSlug))
	return nil
}

// GetByID retrieves a connection of the organization
func (r *IntegrationRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.IntegrationConnection, error) {
	query := `SELECT ` + integrationColumns + ` FROM integration_connections WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// GetByProvider retrieves the organization's connection to a provider
func (r *IntegrationRepository) GetByProvider(ctx context.Context, orgID uuid.UUID, providerSlug string) (*models.IntegrationConnection, error) {
	query := `SELECT ` + integrationColumns + ` FROM integration_connections WHERE organization_id = $1 AND provider_slug = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, providerSlug))
}

// ListByOrg retrieves all connections of the organization
func (r *IntegrationRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.IntegrationConnection, error) {
	query := `SELECT ` + integrationColumns + ` FROM integration_connections WHERE organization_id = $1 ORDER BY provider_slug ASC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integration connections: %w", err)
	}
	defer rows.Close()

	conns := []*models.IntegrationConnection{}
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integration connection rows: %w", err)
	}
	return conns, nil
}

// Update updates status, settings, credentials and sync bookkeeping
func (r *IntegrationRepository) Update(ctx context.Context, c *models.IntegrationConnection) error {
	query := `
		UPDATE integration_connections
		SET status = $3, settings = $4, credentials = $5, last_sync_at = $6, last_error = $7, updated_at = $8
		WHERE organization_id = $1 AND id = $2
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		c.OrganizationID, c.ID, c.Status, []byte(c.Settings), []byte(c.Credentials),
		c.LastSyncAt, c.LastError, c.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update integration connection")
	}
	return expectOneRow(res, "update integration connection")
}

// Delete deletes a connection
func (r *IntegrationRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM integration_connections WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete integration connection")
	}
	return expectOneRow(res, "delete integration connection")
}

func (r *IntegrationRepository) scan(row rowScanner) (*models.IntegrationConnection, error) {
	c := &models.IntegrationConnection{}
	var settings, credentials []byte
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.ProviderSlug, &c.Status, &settings, &credentials,
		&c.LastSyncAt, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan integration connection")
	}
	c.Settings = settings
	c.Credentials = credentials
	return c, nil
}
