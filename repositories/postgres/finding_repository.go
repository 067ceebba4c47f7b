package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const findingColumns = `id, organization_id, task_id, evidence_submission_id, type, status, content,
	created_by_member_id, revision_note, created_at, updated_at`

// FindingRepository implements the repositories.FindingRepository interface
type FindingRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFindingRepository creates a new finding repository
func NewFindingRepository(db *DB, logger *zap.Logger) repositories.FindingRepository {
	return &FindingRepository{db: db, logger: logger}
}

// Create creates a new finding
func (r *FindingRepository) Create(ctx context.Context, f *models.Finding) error {
	query := `
		INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		f.ID, f.OrganizationID, f.TaskID, f.EvidenceSubmissionID, f.Type, f.Status, f.Content,
		f.CreatedByMemberID, f.RevisionNote, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create finding")
	}
	r.logger.Debug("finding created", zap.String("id", f.ID.String()))
	return nil
}

// GetByID retrieves a finding of the organization
func (r *FindingRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// List retrieves findings matching the filter, newest first
func (r *FindingRepository) List(ctx context.Context, orgID uuid.UUID, filter repositories.FindingFilter) ([]*models.Finding, error) {
	conds := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	if filter.TaskID != nil {
		args = append(args, *filter.TaskID)
		conds = append(conds, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + findingColumns + ` FROM findings WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := []*models.Finding{}
	for rows.Next() {
		f, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating finding rows: %w", err)
	}
	return findings, nil
}

// Update updates a finding
func (r *FindingRepository) Update(ctx context.Context, f *models.Finding) error {
	query := `
		UPDATE findings
		SET task_id = $3, evidence_submission_id = $4, type = $5, status = $6, content = $7,
		    revision_note = $8, updated_at = $9
		WHERE organization_id = $1 AND id = $2
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		f.OrganizationID, f.ID, f.TaskID, f.EvidenceSubmissionID, f.Type, f.Status, f.Content,
		f.RevisionNote, f.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update finding")
	}
	return expectOneRow(res, "update finding")
}

// Delete deletes a finding
func (r *FindingRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM findings WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete finding")
	}
	return expectOneRow(res, "delete finding")
}

func (r *FindingRepository) scan(row rowScanner) (*models.Finding, error) {
	f := &models.Finding{}
	err := row.Scan(
		&f.ID, &f.OrganizationID, &f.TaskID, &f.EvidenceSubmissionID, &f.Type, &f.Status, &f.Content,
		&f.CreatedByMemberID, &f.RevisionNote, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan finding")
	}
	return f, nil
}
