package onboarding

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/llm"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/policies"
	"github.com/trycompai/comp-sub012/services/risks"
	"github.com/trycompai/comp-sub012/services/tasks"
	"github.com/trycompai/comp-sub012/services/vendors"
)

// inlineRunner executes registered handlers synchronously, without retries
type inlineRunner struct {
	registry  *jobs.Registry
	mu        sync.Mutex
	triggered []string
	runIDs    []uuid.UUID
	err       error
}

func (r *inlineRunner) Trigger(ctx context.Context, taskID string, payload interface{}, opts ...jobs.TriggerOption) (jobs.Handle, error) {
	job := &jobs.Job{RunID: uuid.New(), TaskID: taskID}
	for _, opt := range opts {
		opt(job)
	}
	r.mu.Lock()
	r.triggered = append(r.triggered, taskID)
	r.runIDs = append(r.runIDs, job.RunID)
	r.mu.Unlock()
	return jobs.Handle{RunID: job.RunID, TaskID: taskID}, r.err
}

func (r *inlineRunner) BatchTriggerAndWait(ctx context.Context, taskID string, payloads []interface{}) ([]jobs.Result, error) {
	def, ok := r.registry.Get(taskID)
	if !ok {
		return nil, jobs.ErrUnknownTask
	}
	results := make([]jobs.Result, len(payloads))
	for i, payload := range payloads {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		out, err := def.Handler(ctx, raw)
		results[i] = jobs.Result{RunID: uuid.New(), TaskID: taskID, Output: out, Attempts: 1}
		if err != nil {
			results[i].Error = err.Error()
		}
	}
	return results, nil
}

// recordingProgress keeps events and folds them into runs
type recordingProgress struct {
	mu     sync.Mutex
	events []jobs.ProgressEvent
	runs   map[uuid.UUID]*models.OnboardingRun
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{runs: map[uuid.UUID]*models.OnboardingRun{}}
}

func (p *recordingProgress) track(run *models.OnboardingRun) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs[run.ID] = run
}

func (p *recordingProgress) Emit(ctx context.Context, ev jobs.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if run, ok := p.runs[ev.RunID]; ok {
		jobs.Apply(run, ev, time.Now())
	}
	return nil
}

func (p *recordingProgress) Snapshot(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	run, ok := p.runs[runID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return run.Clone(), nil
}

func (p *recordingProgress) kinds() []jobs.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]jobs.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

// scriptedChat answers by matching the system prompt
type scriptedChat struct {
	mu       sync.Mutex
	replies  map[string]func(user string) (string, error)
	requests []*llm.ChatRequest
}

func (c *scriptedChat) on(systemPrefix string, reply func(user string) (string, error)) {
	if c.replies == nil {
		c.replies = map[string]func(string) (string, error){}
	}
	c.replies[systemPrefix] = reply
}

func (c *scriptedChat) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	system, user := req.Messages[0].Content, req.Messages[1].Content
	for prefix, reply := range c.replies {
		if strings.HasPrefix(system, prefix) {
			content, err := reply(user)
			if err != nil {
				return nil, err
			}
			return &llm.ChatResponse{Content: content}, nil
		}
	}
	return &llm.ChatResponse{Content: "{}"}, nil
}

type fakeVendors struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.Vendor
	mitigated map[uuid.UUID]string
}

func newFakeVendors() *fakeVendors {
	return &fakeVendors{byID: map[uuid.UUID]*models.Vendor{}, mitigated: map[uuid.UUID]string{}}
}

func (f *fakeVendors) Create(ctx context.Context, orgID uuid.UUID, req vendors.CreateVendorRequest) (*models.Vendor, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byID {
		if strings.EqualFold(v.Name, req.Name) {
			return v, false, nil
		}
	}
	v := models.NewVendor(orgID, req.Name, req.Description, req.Category, req.Website)
	f.byID[v.ID] = v
	return v, true, nil
}

func (f *fakeVendors) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, services.ErrVendorNotFound
	}
	return v, nil
}

func (f *fakeVendors) ApplyMitigation(ctx context.Context, orgID, id uuid.UUID, mitigation string, residualProbability, residualImpact int) (*models.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mitigated[id] = mitigation
	v := f.byID[id]
	v.Mitigation = mitigation
	v.Status = models.VendorStatusAssessed
	return v, nil
}

type fakeRisks struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.Risk
	treated map[uuid.UUID]string
}

func newFakeRisks() *fakeRisks {
	return &fakeRisks{byID: map[uuid.UUID]*models.Risk{}, treated: map[uuid.UUID]string{}}
}

func (f *fakeRisks) Create(ctx context.Context, orgID uuid.UUID, req risks.CreateRiskRequest) (*models.Risk, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := models.NewRisk(orgID, req.Title, req.Description, req.Category, req.Department)
	if req.Likelihood != nil {
		r.Likelihood = *req.Likelihood
	}
	f.byID[r.ID] = r
	return r, true, nil
}

func (f *fakeRisks) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, services.ErrRiskNotFound
	}
	return r, nil
}

func (f *fakeRisks) ApplyTreatment(ctx context.Context, orgID, id uuid.UUID, description string) (*models.Risk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treated[id] = description
	return f.byID[id], nil
}

type fakePolicies struct {
	mu       sync.Mutex
	list     []*models.Policy
	tailored map[uuid.UUID]string
}

func (f *fakePolicies) List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	return f.list, nil
}

func (f *fakePolicies) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error) {
	for _, p := range f.list {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, services.ErrPolicyNotFound
}

func (f *fakePolicies) Tailor(ctx context.Context, orgID, id uuid.UUID, content string) (*models.Policy, policies.DiffSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tailored == nil {
		f.tailored = map[uuid.UUID]string{}
	}
	p, _ := f.Get(ctx, orgID, id)
	diff := policies.Summarize(p.Content, content)
	f.tailored[id] = content
	return p, diff, nil
}

type fakeTasks struct {
	mu      sync.Mutex
	created []*models.Task
}

func (f *fakeTasks) List(ctx context.Context, orgID uuid.UUID, filter tasks.ListFilter) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Task
	for _, t := range f.created {
		if filter.VendorID != nil && (t.VendorID == nil || *t.VendorID != *filter.VendorID) {
			continue
		}
		if filter.RiskID != nil && (t.RiskID == nil || *t.RiskID != *filter.RiskID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) Create(ctx context.Context, orgID uuid.UUID, req tasks.CreateTaskRequest) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.NewTask(orgID, req.Title, req.Description)
	t.Frequency = req.Frequency
	t.VendorID = req.VendorID
	t.RiskID = req.RiskID
	f.created = append(f.created, t)
	return t, nil
}

type fakeTokens struct{}

func (fakeTokens) IssueRunToken(runID uuid.UUID) (string, time.Time, error) {
	return "run-token-" + runID.String(), time.Now().Add(time.Hour), nil
}

type fakeRevalidator struct {
	paths []string
}

func (f *fakeRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	f.paths = append(f.paths, paths...)
	return nil
}

func riskRequest(title string) risks.CreateRiskRequest {
	return risks.CreateRiskRequest{Title: title}
}

func tasksFilterVendor(id uuid.UUID) tasks.ListFilter {
	return tasks.ListFilter{VendorID: &id}
}
