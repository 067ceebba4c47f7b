package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const onboardingRunColumns = `id, organization_id, status,
	vendors_total, vendors_completed, vendors_failed,
	risks_total, risks_completed, risks_failed,
	policies_total, policies_completed, policies_failed,
	item_statuses, error, started_at, completed_at, created_at, updated_at`

// OnboardingRunRepository implements the repositories.OnboardingRunRepository interface
type OnboardingRunRepository struct {
	db        *DB
	txManager repositories.TransactionManager
	logger    *zap.Logger
}

// NewOnboardingRunRepository creates a new onboarding run repository
func NewOnboardingRunRepository(db *DB, logger *zap.Logger) repositories.OnboardingRunRepository {
	return &OnboardingRunRepository{
		db:        db,
		txManager: NewTransactionManager(db, logger),
		logger:    logger,
	}
}

// Create creates a new run row
func (r *OnboardingRunRepository) Create(ctx context.Context, run *models.OnboardingRun) error {
	items, err := json.Marshal(run.ItemStatuses)
	if err != nil {
		return fmt.Errorf("failed to marshal item statuses: %w", err)
	}

	query := `
		INSERT INTO onboarding_runs (` + onboardingRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = GetExecutor(ctx, r.db).ExecContext(ctx, query,
		run.ID, run.OrganizationID, run.Status,
		run.Vendors.Total, run.Vendors.Completed, run.Vendors.Failed,
		run.Risks.Total, run.Risks.Completed, run.Risks.Failed,
		run.Policies.Total, run.Policies.Completed, run.Policies.Failed,
		items, run.Error, run.StartedAt, run.CompletedAt, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create onboarding run")
	}
	return nil
}

// GetByID retrieves a run of the organization
func (r *OnboardingRunRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.OnboardingRun, error) {
	query := `SELECT ` + onboardingRunColumns + ` FROM onboarding_runs WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// Get loads a run without tenant scoping, for run-token readers
func (r *OnboardingRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.OnboardingRun, error) {
	query := `SELECT ` + onboardingRunColumns + ` FROM onboarding_runs WHERE id = $1`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
}

// UpdateProgress loads the run under a row lock, applies mutate and writes
// the result back when mutate reports a change. Writers in other processes
// block on the lock, so every event is folded into the latest state.
func (r *OnboardingRunRepository) UpdateProgress(ctx context.Context, id uuid.UUID, mutate func(run *models.OnboardingRun) bool) (*models.OnboardingRun, bool, error) {
	var (
		run     *models.OnboardingRun
		changed bool
	)
	err := r.txManager.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		query := `SELECT ` + onboardingRunColumns + ` FROM onboarding_runs WHERE id = $1 FOR UPDATE`
		loaded, err := r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}
		run = loaded
		if !mutate(run) {
			return nil
		}
		changed = true
		return r.saveProgress(ctx, run)
	})
	if err != nil {
		return nil, false, err
	}
	return run, changed, nil
}

// saveProgress overwrites status, counters and item statuses
func (r *OnboardingRunRepository) saveProgress(ctx context.Context, run *models.OnboardingRun) error {
	items, err := json.Marshal(run.ItemStatuses)
	if err != nil {
		return fmt.Errorf("failed to marshal item statuses: %w", err)
	}

	query := `
		UPDATE onboarding_runs
		SET status = $2,
		    vendors_total = $3, vendors_completed = $4, vendors_failed = $5,
		    risks_total = $6, risks_completed = $7, risks_failed = $8,
		    policies_total = $9, policies_completed = $10, policies_failed = $11,
		    item_statuses = $12, error = $13, started_at = $14, completed_at = $15, updated_at = $16
		WHERE id = $1
	`
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		run.ID, run.Status,
		run.Vendors.Total, run.Vendors.Completed, run.Vendors.Failed,
		run.Risks.Total, run.Risks.Completed, run.Risks.Failed,
		run.Policies.Total, run.Policies.Completed, run.Policies.Failed,
		items, run.Error, run.StartedAt, run.CompletedAt, run.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "save onboarding progress")
	}
	return expectOneRow(res, "save onboarding progress")
}

func (r *OnboardingRunRepository) scan(row rowScanner) (*models.OnboardingRun, error) {
	run := &models.OnboardingRun{}
	var items []byte
	err := row.Scan(
		&run.ID, &run.OrganizationID, &run.Status,
		&run.Vendors.Total, &run.Vendors.Completed, &run.Vendors.Failed,
		&run.Risks.Total, &run.Risks.Completed, &run.Risks.Failed,
		&run.Policies.Total, &run.Policies.Completed, &run.Policies.Failed,
		&items, &run.Error, &run.StartedAt, &run.CompletedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan onboarding run")
	}

	run.ItemStatuses = map[string]models.ItemStatus{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &run.ItemStatuses); err != nil {
			return nil, fmt.Errorf("failed to decode item statuses: %w", err)
		}
	}
	return run, nil
}
