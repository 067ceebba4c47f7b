// Package onboarding generates an organization's initial compliance program
// as a graph of background jobs: vendors and risks are extracted from the
// organization's context, mitigations are generated per entity and the
// policy library is tailored. Progress flows to the aggregator as events.
package onboarding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/llm"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"github.com/trycompai/comp-sub012/services/policies"
	"github.com/trycompai/comp-sub012/services/risks"
	"github.com/trycompai/comp-sub012/services/tasks"
	"github.com/trycompai/comp-sub012/services/vendors"
	"go.uber.org/zap"
)

const (
	TaskOnboardOrganization = "onboard-organization"
	TaskVendorMitigation    = "generate-vendor-mitigation"
	TaskRiskMitigation      = "generate-risk-mitigation"
	TaskUpdatePolicy        = "update-policy"

	QueueOnboarding  = "onboarding"
	QueueMitigations = "mitigations"
	QueuePolicies    = "policies"

	resourceType = "onboarding_run"
)

// Runner enqueues jobs and waits for children
type Runner interface {
	Trigger(ctx context.Context, taskID string, payload interface{}, opts ...jobs.TriggerOption) (jobs.Handle, error)
	BatchTriggerAndWait(ctx context.Context, taskID string, payloads []interface{}) ([]jobs.Result, error)
}

// Progress receives progress events and answers snapshot reads
type Progress interface {
	Emit(ctx context.Context, ev jobs.ProgressEvent) error
	Snapshot(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error)
}

// TokenIssuer signs run access tokens
type TokenIssuer interface {
	IssueRunToken(runID uuid.UUID) (string, time.Time, error)
}

// Revalidator tells frontends to re-render paths
type Revalidator interface {
	Revalidate(ctx context.Context, paths ...string) error
}

// Chat is the LLM used for generation
type Chat interface {
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// VendorStore is the vendor operations used by onboarding
type VendorStore interface {
	Create(ctx context.Context, orgID uuid.UUID, req vendors.CreateVendorRequest) (*models.Vendor, bool, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error)
	ApplyMitigation(ctx context.Context, orgID, id uuid.UUID, mitigation string, residualProbability, residualImpact int) (*models.Vendor, error)
}

// RiskStore is the risk operations used by onboarding
type RiskStore interface {
	Create(ctx context.Context, orgID uuid.UUID, req risks.CreateRiskRequest) (*models.Risk, bool, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error)
	ApplyTreatment(ctx context.Context, orgID, id uuid.UUID, description string) (*models.Risk, error)
}

// PolicyStore is the policy operations used by onboarding
type PolicyStore interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error)
	Tailor(ctx context.Context, orgID, id uuid.UUID, content string) (*models.Policy, policies.DiffSummary, error)
}

// TaskStore is the task operations used by onboarding
type TaskStore interface {
	List(ctx context.Context, orgID uuid.UUID, filter tasks.ListFilter) ([]*models.Task, error)
	Create(ctx context.Context, orgID uuid.UUID, req tasks.CreateTaskRequest) (*models.Task, error)
}

// Deps are the collaborators of the onboarding service
type Deps struct {
	Runs        repositories.OnboardingRunRepository
	Orgs        repositories.OrganizationRepository
	Contexts    repositories.ContextRepository
	Vendors     VendorStore
	Risks       RiskStore
	Policies    PolicyStore
	Tasks       TaskStore
	Chat        Chat
	Runner      Runner
	Progress    Progress
	Tokens      TokenIssuer
	Revalidator Revalidator
	Audit       audit.Recorder
}

// StartResult is returned by Start
type StartResult struct {
	RunID             uuid.UUID `json:"runId"`
	PublicAccessToken string    `json:"publicAccessToken"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Service starts onboarding runs and executes their jobs
type Service struct {
	Deps
	model  string
	logger *zap.Logger
}

// NewService creates an onboarding service. model overrides the provider's
// chat model when set.
func NewService(deps Deps, model string, logger *zap.Logger) *Service {
	return &Service{Deps: deps, model: model, logger: logger}
}

// Start creates a run, queues the onboarding job and returns a token that
// lets a browser follow the run's progress
func (s *Service) Start(ctx context.Context, orgID uuid.UUID) (*StartResult, error) {
	if _, err := s.Orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	run := models.NewOnboardingRun(orgID)
	if err := s.Runs.Create(ctx, run); err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	token, expiresAt, err := s.Tokens.IssueRunToken(run.ID)
	if err != nil {
		return nil, services.WrapInternal("failed to issue run token", err)
	}

	payload := orgPayload{OrganizationID: orgID, RunID: run.ID}
	if _, err := s.Runner.Trigger(ctx, TaskOnboardOrganization, payload, jobs.WithRunID(run.ID)); err != nil {
		s.logger.Error("failed to queue onboarding",
			zap.String("organization_id", orgID.String()),
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		s.emit(ctx, jobs.ProgressEvent{RunID: run.ID, Kind: jobs.EventRunFailed, Error: "failed to queue onboarding"})
		return nil, services.WrapInternal("failed to queue onboarding", err)
	}

	s.logger.Info("onboarding started",
		zap.String("organization_id", orgID.String()),
		zap.String("run_id", run.ID.String()))
	s.Audit.Record(ctx, orgID, models.AuditActionOnboardingStart, resourceType, run.ID, nil)

	return &StartResult{RunID: run.ID, PublicAccessToken: token, ExpiresAt: expiresAt}, nil
}

// GetRun returns the live snapshot of one of the organization's runs
func (s *Service) GetRun(ctx context.Context, orgID, runID uuid.UUID) (*models.OnboardingRun, error) {
	run, err := s.RunProgress(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.OrganizationID != orgID {
		return nil, services.ErrRunNotFound
	}
	return run, nil
}

// RunProgress returns the live snapshot of a run. Callers have already
// authorized access to runID.
func (s *Service) RunProgress(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error) {
	run, err := s.Progress.Snapshot(ctx, runID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrRunNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return run, nil
}

// emit sends a progress event. Progress is advisory; failures are logged.
func (s *Service) emit(ctx context.Context, ev jobs.ProgressEvent) {
	if err := s.Progress.Emit(ctx, ev); err != nil {
		s.logger.Warn("failed to emit onboarding progress",
			zap.String("run_id", ev.RunID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}
