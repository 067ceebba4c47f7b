package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const trustPortalColumns = `organization_id, enabled, friendly_url, custom_domain, domain_verified, contact_email,
	soc2_enabled, soc2_status, iso27001_enabled, iso27001_status, gdpr_enabled, gdpr_status,
	created_at, updated_at`

// TrustPortalRepository implements the repositories.TrustPortalRepository interface
type TrustPortalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTrustPortalRepository creates a new trust portal repository
func NewTrustPortalRepository(db *DB, logger *zap.Logger) repositories.TrustPortalRepository {
	return &TrustPortalRepository{db: db, logger: logger}
}

// GetByOrgID retrieves the organization's portal settings
func (r *TrustPortalRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID) (*models.TrustPortal, error) {
	query := `SELECT ` + trustPortalColumns + ` FROM trust_portals WHERE organization_id = $1`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID))
}

// GetByFriendlyURL retrieves portal settings by public slug
func (r *TrustPortalRepository) GetByFriendlyURL(ctx context.Context, friendlyURL string) (*models.TrustPortal, error) {
	query := `SELECT ` + trustPortalColumns + ` FROM trust_portals WHERE friendly_url = $1`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, friendlyURL))
}

// Upsert returns ErrConflict when friendly_url is taken by another organization
func (r *TrustPortalRepository) Upsert(ctx context.Context, p *models.TrustPortal) error {
	query := `
		INSERT INTO trust_portals (` + trustPortalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (organization_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			friendly_url = EXCLUDED.friendly_url,
			custom_domain = EXCLUDED.custom_domain,
			domain_verified = EXCLUDED.domain_verified,
			contact_email = EXCLUDED.contact_email,
			soc2_enabled = EXCLUDED.soc2_enabled,
			soc2_status = EXCLUDED.soc2_status,
			iso27001_enabled = EXCLUDED.iso27001_enabled,
			iso27001_status = EXCLUDED.iso27001_status,
			gdpr_enabled = EXCLUDED.gdpr_enabled,
			gdpr_status = EXCLUDED.gdpr_status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		p.OrganizationID, p.Enabled, p.FriendlyURL, p.CustomDomain, p.DomainVerified, p.ContactEmail,
		p.SOC2Enabled, p.SOC2Status, p.ISO27001Enabled, p.ISO27001Status, p.GDPREnabled, p.GDPRStatus,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "upsert trust portal")
	}
	return nil
}

func (r *TrustPortalRepository) scan(row rowScanner) (*models.TrustPortal, error) {
	p := &models.TrustPortal{}
	err := row.Scan(
		&p.OrganizationID, &p.Enabled, &p.FriendlyURL, &p.CustomDomain, &p.DomainVerified, &p.ContactEmail,
		&p.SOC2Enabled, &p.SOC2Status, &p.ISO27001Enabled, &p.ISO27001Status, &p.GDPREnabled, &p.GDPRStatus,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan trust portal")
	}
	return p, nil
}
