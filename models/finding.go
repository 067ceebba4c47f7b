package models

import (
	"time"

	"github.com/google/uuid"
)

// FindingType is the framework a finding was raised against
type FindingType string

const (
	FindingTypeSOC2     FindingType = "soc2"
	FindingTypeISO27001 FindingType = "iso27001"
	FindingTypeGDPR     FindingType = "gdpr"
	FindingTypeOther    FindingType = "other"
)

// FindingStatus is the lifecycle state of a finding
type FindingStatus string

const (
	FindingStatusOpen           FindingStatus = "open"
	FindingStatusReadyForReview FindingStatus = "ready_for_review"
	FindingStatusNeedsRevision  FindingStatus = "needs_revision"
	FindingStatusClosed         FindingStatus = "closed"
)

var findingTransitions = map[FindingStatus][]FindingStatus{
	FindingStatusOpen:           {FindingStatusReadyForReview, FindingStatusNeedsRevision, FindingStatusClosed},
	FindingStatusNeedsRevision:  {FindingStatusReadyForReview},
	FindingStatusReadyForReview: {FindingStatusClosed, FindingStatusNeedsRevision},
	FindingStatusClosed:         {FindingStatusOpen},
}

// Valid reports whether s is a known status
func (s FindingStatus) Valid() bool {
	_, ok := findingTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s FindingStatus) CanTransitionTo(next FindingStatus) bool {
	for _, allowed := range findingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Finding is an auditor or admin raised issue attached to a task or an
// evidence submission
type Finding struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	OrganizationID       uuid.UUID     `json:"organization_id" db:"organization_id"`
	TaskID               *uuid.UUID    `json:"task_id,omitempty" db:"task_id"`
	EvidenceSubmissionID *uuid.UUID    `json:"evidence_submission_id,omitempty" db:"evidence_submission_id"`
	Type                 FindingType   `json:"type" db:"type"`
	Status               FindingStatus `json:"status" db:"status"`
	Content              string        `json:"content" db:"content"`
	CreatedByMemberID    uuid.UUID     `json:"created_by_member_id" db:"created_by_member_id"`
	RevisionNote         *string       `json:"revision_note,omitempty" db:"revision_note"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Finding model
func (Finding) TableName() string {
	return "findings"
}

// NewFinding creates an open finding
func NewFinding(orgID, createdBy uuid.UUID, findingType FindingType, content string) *Finding {
	now := time.Now()
	return &Finding{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		Type:              findingType,
		Status:            FindingStatusOpen,
		Content:           content,
		CreatedByMemberID: createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
