package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const memberColumns = `id, organization_id, user_id, email, name, role, device_agent_enabled, created_at, updated_at`

// MemberRepository implements the repositories.MemberRepository interface
type MemberRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *DB, logger *zap.Logger) repositories.MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

// Create creates a new member
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		m.ID, m.OrganizationID, m.UserID, m.Email, m.Name, m.Role,
		m.DeviceAgentEnabled, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create member")
	}
	return nil
}

// GetByID retrieves a member of the organization
func (r *MemberRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// GetByUserID resolves the identity provider subject to a membership
func (r *MemberRepository) GetByUserID(ctx context.Context, orgID uuid.UUID, userID string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE organization_id = $1 AND user_id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, userID))
}

// GetOwner returns the earliest owner of the organization
func (r *MemberRepository) GetOwner(ctx context.Context, orgID uuid.UUID) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE organization_id = $1 AND role = 'owner'
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID))
}

// ListByOrg retrieves all members of an organization
func (r *MemberRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE organization_id = $1 ORDER BY created_at ASC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []*models.Member{}
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

func (r *MemberRepository) scan(row rowScanner) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Email, &m.Name, &m.Role,
		&m.DeviceAgentEnabled, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan member")
	}
	return m, nil
}
