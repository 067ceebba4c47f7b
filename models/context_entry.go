package models

import (
	"time"

	"github.com/google/uuid"
)

// ContextEntry is an organization scoped question and answer used to seed
// AI assisted document generation
type ContextEntry struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Question       string    `json:"question" db:"question"`
	Answer         string    `json:"answer" db:"answer"`
	Tags           []string  `json:"tags" db:"tags"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the ContextEntry model
func (ContextEntry) TableName() string {
	return "context_entries"
}

// NewContextEntry creates a new ContextEntry instance
func NewContextEntry(orgID uuid.UUID, question, answer string, tags []string) *ContextEntry {
	now := time.Now()
	if tags == nil {
		tags = []string{}
	}
	return &ContextEntry{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Question:       question,
		Answer:         answer,
		Tags:           tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
