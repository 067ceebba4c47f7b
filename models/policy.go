package models

import (
	"time"

	"github.com/google/uuid"
)

// PolicyStatus represents the publication state of a policy document
type PolicyStatus string

const (
	PolicyStatusDraft       PolicyStatus = "draft"
	PolicyStatusPublished   PolicyStatus = "published"
	PolicyStatusNeedsReview PolicyStatus = "needs_review"
)

// Policy is a markdown compliance policy owned by an organization
type Policy struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Name           string       `json:"name" db:"name"`
	Description    string       `json:"description" db:"description"`
	Content        string       `json:"content" db:"content"` // markdown
	Status         PolicyStatus `json:"status" db:"status"`
	Frequency      string       `json:"frequency" db:"frequency"`
	Department     string       `json:"department" db:"department"`
	LastTailoredAt *time.Time   `json:"last_tailored_at,omitempty" db:"last_tailored_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates a new draft Policy instance
func NewPolicy(orgID uuid.UUID, name, description, content string) *Policy {
	now := time.Now()
	return &Policy{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Content:        content,
		Status:         PolicyStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
