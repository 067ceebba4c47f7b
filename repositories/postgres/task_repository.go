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

const taskColumns = `id, organization_id, title, description, status, frequency, vendor_id, risk_id, created_at, updated_at`

// TaskRepository implements the repositories.TaskRepository interface
type TaskRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB, logger *zap.Logger) repositories.TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		t.ID, t.OrganizationID, t.Title, t.Description, t.Status, t.Frequency,
		t.VendorID, t.RiskID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create task")
	}
	return nil
}

// GetByID retrieves a task of the organization
func (r *TaskRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// List retrieves tasks matching the filter
func (r *TaskRepository) List(ctx context.Context, orgID uuid.UUID, filter repositories.TaskFilter) ([]*models.Task, error) {
	conds := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		conds = append(conds, fmt.Sprintf("vendor_id = $%d", len(args)))
	}
	if filter.RiskID != nil {
		args = append(args, *filter.RiskID)
		conds = append(conds, fmt.Sprintf("risk_id = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// Update updates a task
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, frequency = $6, vendor_id = $7, risk_id = $8, updated_at = $9
		WHERE organization_id = $1 AND id = $2
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		t.OrganizationID, t.ID, t.Title, t.Description, t.Status, t.Frequency,
		t.VendorID, t.RiskID, t.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update task")
	}
	return expectOneRow(res, "update task")
}

// Delete deletes a task
func (r *TaskRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete task")
	}
	return expectOneRow(res, "delete task")
}

func (r *TaskRepository) scan(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.Status, &t.Frequency,
		&t.VendorID, &t.RiskID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan task")
	}
	return t, nil
}
