package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/llm"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/risks"
	"github.com/trycompai/comp-sub012/services/tasks"
	"github.com/trycompai/comp-sub012/services/vendors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	entityVendor = "vendor"
	entityRisk   = "risk"
	entityPolicy = "policy"

	maxTaskDescription = 20000
)

type orgPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	RunID          uuid.UUID `json:"run_id"`
}

type entityPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	RunID          uuid.UUID `json:"run_id"`
	EntityID       uuid.UUID `json:"entity_id"`
}

// Summary is the output of the onboarding job
type Summary struct {
	Vendors          int  `json:"vendors"`
	VendorsCreated   int  `json:"vendors_created"`
	Risks            int  `json:"risks"`
	RisksCreated     int  `json:"risks_created"`
	Policies         int  `json:"policies"`
	FailedChildren   int  `json:"failed_children"`
	ContextEntries   int  `json:"context_entries"`
	RevalidateFailed bool `json:"revalidate_failed,omitempty"`
}

// RegisterTasks registers the onboarding task graph
func (s *Service) RegisterTasks(registry *jobs.Registry, maxAttempts int) error {
	defs := []jobs.TaskDefinition{
		// the orchestrator does not retry; its children do
		{ID: TaskOnboardOrganization, Queue: QueueOnboarding, MaxAttempts: 1, Handler: s.handleOnboard},
		{ID: TaskVendorMitigation, Queue: QueueMitigations, MaxAttempts: maxAttempts, Handler: s.handleVendorMitigation},
		{ID: TaskRiskMitigation, Queue: QueueMitigations, MaxAttempts: maxAttempts, Handler: s.handleRiskMitigation},
		{ID: TaskUpdatePolicy, Queue: QueuePolicies, MaxAttempts: maxAttempts, Handler: s.handleUpdatePolicy},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) handleOnboard(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p orgPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, jobs.Permanent(fmt.Errorf("invalid payload: %w", err))
	}

	// the runner recovers panics, but the run must still be closed
	defer func() {
		if r := recover(); r != nil {
			s.emit(ctx, jobs.ProgressEvent{RunID: p.RunID, Kind: jobs.EventRunFailed, Error: "onboarding crashed"})
			panic(r)
		}
	}()

	summary, err := s.OnboardOrganization(ctx, p.OrganizationID, p.RunID)
	if err != nil {
		s.emit(ctx, jobs.ProgressEvent{RunID: p.RunID, Kind: jobs.EventRunFailed, Error: err.Error()})
		return nil, jobs.Permanent(err)
	}
	return json.Marshal(summary)
}

// OnboardOrganization runs the whole graph for one organization: extract
// vendors and risks, fan out their mitigations, tailor policies, then mark
// the organization onboarded
func (s *Service) OnboardOrganization(ctx context.Context, orgID, runID uuid.UUID) (*Summary, error) {
	logger := s.logger.With(zap.String("organization_id", orgID.String()), zap.String("run_id", runID.String()))

	org, err := s.Orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	entries, err := s.Contexts.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	companyCtx := companyContext(org, entries)
	summary := &Summary{ContextEntries: len(entries)}

	extractedVendors, err := s.extractVendors(ctx, companyCtx)
	if err != nil {
		return nil, services.Wrap(services.ErrLLMFailed, err)
	}
	vendorIDs := make([]uuid.UUID, 0, len(extractedVendors))
	for _, v := range extractedVendors {
		vendor, created, err := s.Vendors.Create(ctx, orgID, vendors.CreateVendorRequest{
			Name:        truncate(v.Name, 255),
			Description: truncate(v.Description, 5000),
			Category:    truncate(v.Category, 100),
			Website:     truncate(v.Website, 500),
		})
		if err != nil {
			return nil, fmt.Errorf("create vendor %q: %w", v.Name, err)
		}
		if created {
			summary.VendorsCreated++
		}
		vendorIDs = append(vendorIDs, vendor.ID)
	}

	extractedRisks, err := s.extractRisks(ctx, companyCtx)
	if err != nil {
		return nil, services.Wrap(services.ErrLLMFailed, err)
	}
	riskIDs := make([]uuid.UUID, 0, len(extractedRisks))
	for _, r := range extractedRisks {
		risk, created, err := s.Risks.Create(ctx, orgID, risks.CreateRiskRequest{
			Title:       truncate(r.Title, 255),
			Description: truncate(r.Description, 5000),
			Category:    truncate(r.Category, 100),
			Department:  truncate(r.Department, 100),
			Likelihood:  optionalScore(r.Likelihood),
			Impact:      optionalScore(r.Impact),
		})
		if err != nil {
			return nil, fmt.Errorf("create risk %q: %w", r.Title, err)
		}
		if created {
			summary.RisksCreated++
		}
		riskIDs = append(riskIDs, risk.ID)
	}

	policyList, err := s.Policies.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	policyIDs := make([]uuid.UUID, 0, len(policyList))
	for _, p := range policyList {
		policyIDs = append(policyIDs, p.ID)
	}

	summary.Vendors, summary.Risks, summary.Policies = len(vendorIDs), len(riskIDs), len(policyIDs)
	s.emit(ctx, jobs.ProgressEvent{
		RunID: runID,
		Kind:  jobs.EventTotals,
		Counts: map[string]int{
			entityVendor: len(vendorIDs),
			entityRisk:   len(riskIDs),
			entityPolicy: len(policyIDs),
		},
	})
	logger.Info("onboarding entities extracted",
		zap.Int("vendors", len(vendorIDs)),
		zap.Int("risks", len(riskIDs)),
		zap.Int("policies", len(policyIDs)))

	// vendor and risk mitigations are independent
	var vendorFailed, riskFailed int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.fanOut(gctx, TaskVendorMitigation, entityVendor, orgID, runID, vendorIDs)
		vendorFailed = n
		return err
	})
	g.Go(func() error {
		n, err := s.fanOut(gctx, TaskRiskMitigation, entityRisk, orgID, runID, riskIDs)
		riskFailed = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	policyFailed, err := s.fanOut(ctx, TaskUpdatePolicy, entityPolicy, orgID, runID, policyIDs)
	if err != nil {
		return nil, err
	}
	summary.FailedChildren = vendorFailed + riskFailed + policyFailed

	prefix := "/" + orgID.String()
	if s.Revalidator != nil {
		if err := s.Revalidator.Revalidate(ctx, prefix+"/vendors", prefix+"/risk", prefix+"/policies", prefix); err != nil {
			summary.RevalidateFailed = true
		}
	}

	if err := s.Orgs.MarkOnboardingCompleted(ctx, orgID); err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	s.emit(ctx, jobs.ProgressEvent{RunID: runID, Kind: jobs.EventRunCompleted})

	logger.Info("onboarding completed",
		zap.Int("failed_children", summary.FailedChildren),
		zap.Int("vendors_created", summary.VendorsCreated),
		zap.Int("risks_created", summary.RisksCreated))
	return summary, nil
}

// fanOut runs one child job per entity and waits. Children that exhausted
// their attempts are reported failed to the aggregator; the count is returned.
func (s *Service) fanOut(ctx context.Context, taskID, entityType string, orgID, runID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	payloads := make([]interface{}, len(ids))
	for i, id := range ids {
		payloads[i] = entityPayload{OrganizationID: orgID, RunID: runID, EntityID: id}
	}

	results, err := s.Runner.BatchTriggerAndWait(ctx, taskID, payloads)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", taskID, err)
	}

	failed := 0
	for i, res := range results {
		if res.OK() {
			continue
		}
		failed++
		s.emit(ctx, jobs.ProgressEvent{
			RunID:      runID,
			Kind:       jobs.EventItemFailed,
			EntityType: entityType,
			EntityID:   ids[i].String(),
			Error:      res.Error,
		})
	}
	return failed, nil
}

// child wraps an entity handler with progress events and retry
// classification
func (s *Service) child(entityType string, fn func(ctx context.Context, p entityPayload) (interface{}, error)) jobs.Handler {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var p entityPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, jobs.Permanent(fmt.Errorf("invalid payload: %w", err))
		}
		ev := jobs.ProgressEvent{RunID: p.RunID, EntityType: entityType, EntityID: p.EntityID.String()}

		ev.Kind = jobs.EventItemStarted
		s.emit(ctx, ev)

		out, err := fn(ctx, p)
		if err != nil {
			if services.IsNotFoundError(err) || services.IsValidationError(err) {
				return nil, jobs.Permanent(err)
			}
			var providerErr *llm.ProviderError
			if errors.As(err, &providerErr) && !providerErr.Retryable {
				return nil, jobs.Permanent(err)
			}
			return nil, err
		}

		ev.Kind = jobs.EventItemCompleted
		s.emit(ctx, ev)
		return json.Marshal(out)
	}
}

func (s *Service) handleVendorMitigation(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	return s.child(entityVendor, s.generateVendorMitigation)(ctx, raw)
}

func (s *Service) handleRiskMitigation(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	return s.child(entityRisk, s.generateRiskMitigation)(ctx, raw)
}

func (s *Service) handleUpdatePolicy(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	return s.child(entityPolicy, s.updatePolicy)(ctx, raw)
}

// generateVendorMitigation assesses one vendor and adds its evidence task
func (s *Service) generateVendorMitigation(ctx context.Context, p entityPayload) (interface{}, error) {
	vendor, err := s.Vendors.Get(ctx, p.OrganizationID, p.EntityID)
	if err != nil {
		return nil, err
	}
	companyCtx, err := s.loadContext(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nVendor: %s\nCategory: %s\nWebsite: %s\nDescription: %s",
		companyCtx, vendor.Name, vendor.Category, vendor.Website, vendor.Description)
	var gen vendorMitigation
	if err := s.completeJSON(ctx, vendorMitigationPrompt, prompt, &gen); err != nil {
		return nil, err
	}
	if strings.TrimSpace(gen.Mitigation) == "" {
		return nil, fmt.Errorf("model returned an empty mitigation for vendor %s", vendor.ID)
	}

	if _, err := s.Vendors.ApplyMitigation(ctx, p.OrganizationID, vendor.ID, gen.Mitigation, gen.ResidualProbability, gen.ResidualImpact); err != nil {
		return nil, err
	}

	taskID, err := s.ensureTask(ctx, p.OrganizationID, gen.Task, "Review "+vendor.Name, tasks.ListFilter{VendorID: &vendor.ID})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"vendor_id": vendor.ID, "task_id": taskID}, nil
}

// generateRiskMitigation writes one risk's treatment plan and adds its
// evidence task
func (s *Service) generateRiskMitigation(ctx context.Context, p entityPayload) (interface{}, error) {
	risk, err := s.Risks.Get(ctx, p.OrganizationID, p.EntityID)
	if err != nil {
		return nil, err
	}
	companyCtx, err := s.loadContext(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nRisk: %s\nCategory: %s\nDepartment: %s\nDescription: %s",
		companyCtx, risk.Title, risk.Category, risk.Department, risk.Description)
	var gen riskTreatment
	if err := s.completeJSON(ctx, riskTreatmentPrompt, prompt, &gen); err != nil {
		return nil, err
	}
	if strings.TrimSpace(gen.Treatment) == "" {
		return nil, fmt.Errorf("model returned an empty treatment for risk %s", risk.ID)
	}

	if _, err := s.Risks.ApplyTreatment(ctx, p.OrganizationID, risk.ID, gen.Treatment); err != nil {
		return nil, err
	}

	taskID, err := s.ensureTask(ctx, p.OrganizationID, gen.Task, "Mitigate "+risk.Title, tasks.ListFilter{RiskID: &risk.ID})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"risk_id": risk.ID, "task_id": taskID}, nil
}

// updatePolicy tailors one policy to the organization
func (s *Service) updatePolicy(ctx context.Context, p entityPayload) (interface{}, error) {
	policy, err := s.Policies.Get(ctx, p.OrganizationID, p.EntityID)
	if err != nil {
		return nil, err
	}
	companyCtx, err := s.loadContext(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nPolicy: %s\n\nTemplate:\n%s", companyCtx, policy.Name, policy.Content)
	content, err := s.completeText(ctx, policySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("model returned an empty policy for %s", policy.ID)
	}

	_, diff, err := s.Policies.Tailor(ctx, p.OrganizationID, policy.ID, content)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"policy_id":     policy.ID,
		"lines_added":   diff.LinesAdded,
		"lines_removed": diff.LinesRemoved,
	}, nil
}

func (s *Service) loadContext(ctx context.Context, orgID uuid.UUID) (string, error) {
	org, err := s.Orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", services.ErrOrganizationNotFound
		}
		return "", services.Wrap(services.ErrDatabaseError, err)
	}
	entries, err := s.Contexts.ListByOrg(ctx, orgID)
	if err != nil {
		return "", services.Wrap(services.ErrDatabaseError, err)
	}
	return companyContext(org, entries), nil
}

// ensureTask creates the linked task unless a previous attempt already did
func (s *Service) ensureTask(ctx context.Context, orgID uuid.UUID, gen generatedTask, fallbackTitle string, filter tasks.ListFilter) (uuid.UUID, error) {
	existing, err := s.Tasks.List(ctx, orgID, filter)
	if err != nil {
		return uuid.Nil, err
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	title := strings.TrimSpace(gen.Title)
	if title == "" {
		title = fallbackTitle
	}
	task, err := s.Tasks.Create(ctx, orgID, tasks.CreateTaskRequest{
		Title:       truncate(title, 255),
		Description: truncate(gen.Description, maxTaskDescription),
		Frequency:   "yearly",
		VendorID:    filter.VendorID,
		RiskID:      filter.RiskID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return task.ID, nil
}
