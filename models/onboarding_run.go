package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of an onboarding run
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsTerminal returns true for completed and failed runs
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ItemStatus is the state of one entity processed by an onboarding run
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// IsTerminal returns true for completed and failed items
func (s ItemStatus) IsTerminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// Counter tallies one entity type within a run
type Counter struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// OnboardingRun is the persisted progress snapshot of one onboarding run.
// It is written only by the progress aggregator.
type OnboardingRun struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	OrganizationID uuid.UUID             `json:"organization_id" db:"organization_id"`
	Status         RunStatus             `json:"status" db:"status"`
	Vendors        Counter               `json:"vendors"`
	Risks          Counter               `json:"risks"`
	Policies       Counter               `json:"policies"`
	ItemStatuses   map[string]ItemStatus `json:"item_statuses" db:"item_statuses"` // keyed by entity id
	Error          *string               `json:"error,omitempty" db:"error"`
	StartedAt      *time.Time            `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the OnboardingRun model
func (OnboardingRun) TableName() string {
	return "onboarding_runs"
}

// NewOnboardingRun creates a queued run
func NewOnboardingRun(orgID uuid.UUID) *OnboardingRun {
	now := time.Now()
	return &OnboardingRun{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Status:         RunQueued,
		ItemStatuses:   map[string]ItemStatus{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CounterFor returns the counter tracking entityType, or nil
func (r *OnboardingRun) CounterFor(entityType string) *Counter {
	switch entityType {
	case "vendor":
		return &r.Vendors
	case "risk":
		return &r.Risks
	case "policy":
		return &r.Policies
	}
	return nil
}

// Clone returns a deep copy safe to hand to other goroutines
func (r *OnboardingRun) Clone() *OnboardingRun {
	cp := *r
	cp.ItemStatuses = make(map[string]ItemStatus, len(r.ItemStatuses))
	for k, v := range r.ItemStatuses {
		cp.ItemStatuses[k] = v
	}
	return &cp
}
