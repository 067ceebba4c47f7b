package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

// APIKeyRepository implements the repositories.APIKeyRepository interface
type APIKeyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB, logger *zap.Logger) repositories.APIKeyRepository {
	return &APIKeyRepository{db: db, logger: logger}
}

// Create stores a new key hash
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, organization_id, name, key_hash, prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		key.ID, key.OrganizationID, key.Name, key.KeyHash, key.Prefix, key.CreatedAt,
	)
	if err != nil {
		return translateError(err, "create api key")
	}
	r.logger.Info("api key created", zap.String("org_id", key.OrganizationID.String()), zap.String("prefix", key.Prefix))
	return nil
}

// GetByHash returns a non-revoked key by its sha256 hash
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, name, key_hash, prefix, last_used_at, revoked_at, created_at
		FROM api_keys
		WHERE key_hash = $1 AND revoked_at IS NULL
	`

	key := &models.APIKey{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, keyHash).Scan(
		&key.ID, &key.OrganizationID, &key.Name, &key.KeyHash, &key.Prefix,
		&key.LastUsedAt, &key.RevokedAt, &key.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err, "get api key")
	}
	return key, nil
}

// TouchLastUsed records key usage
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	return translateError(err, "touch api key")
}

// Revoke revokes a key of the organization
func (r *APIKeyRepository) Revoke(ctx context.Context, orgID, id uuid.UUID) error {
	query := `UPDATE api_keys SET revoked_at = now() WHERE organization_id = $1 AND id = $2 AND revoked_at IS NULL`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, orgID, id)
	if err != nil {
		return translateError(err, "revoke api key")
	}
	return expectOneRow(res, "revoke api key")
}
