package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const contextColumns = `id, organization_id, question, answer, tags, created_at, updated_at`

// ContextRepository implements the repositories.ContextRepository interface
type ContextRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewContextRepository creates a new context entry repository
func NewContextRepository(db *DB, logger *zap.Logger) repositories.ContextRepository {
	return &ContextRepository{db: db, logger: logger}
}

// Create creates a new context entry
func (r *ContextRepository) Create(ctx context.Context, entry *models.ContextEntry) error {
	query := `
		INSERT INTO context_entries (` + contextColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.Question,
		entry.Answer,
		pq.Array(entry.Tags),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create context entry")
	}

	r.logger.Debug("context entry created", zap.String("id", entry.ID.String()))
	return nil
}

// GetByID retrieves a context entry of the organization
func (r *ContextRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.ContextEntry, error) {
	query := `SELECT ` + contextColumns + ` FROM context_entries WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// ListByOrg retrieves all context entries, newest first
func (r *ContextRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.ContextEntry, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM context_entries
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query context entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.ContextEntry{}
	for rows.Next() {
		entry, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating context entry rows: %w", err)
	}
	return entries, nil
}

// Update updates a context entry
func (r *ContextRepository) Update(ctx context.Context, entry *models.ContextEntry) error {
	query := `
		UPDATE context_entries
		SET question = $3, answer = $4, tags = $5, updated_at = $6
		WHERE organization_id = $1 AND id = $2
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.OrganizationID,
		entry.ID,
		entry.Question,
		entry.Answer,
		pq.Array(entry.Tags),
		entry.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update context entry")
	}
	return expectOneRow(res, "update context entry")
}

// Delete deletes a context entry
func (r *ContextRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM context_entries WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete context entry")
	}
	return expectOneRow(res, "delete context entry")
}

func (r *ContextRepository) scan(row rowScanner) (*models.ContextEntry, error) {
	entry := &models.ContextEntry{}
	var tags pq.StringArray
	err := row.Scan(
		&entry.ID,
		&entry.OrganizationID,
		&entry.Question,
		&entry.Answer,
		&tags,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan context entry")
	}
	entry.Tags = []string(tags)
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}
