package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreated          AuditAction = "created"
	AuditActionUpdated          AuditAction = "updated"
	AuditActionDeleted          AuditAction = "deleted"
	AuditActionStatusChanged    AuditAction = "status_changed"
	AuditActionUploaded         AuditAction = "uploaded"
	AuditActionPolicyTailored   AuditAction = "policy_tailored"
	AuditActionOnboardingStart  AuditAction = "onboarding_started"
	AuditActionIntegrationSync  AuditAction = "integration_synced"
	AuditActionIntegrationTest  AuditAction = "integration_tested"
	AuditActionDeviceLabelSetup AuditAction = "device_label_setup"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	MemberID       *uuid.UUID      `json:"member_id,omitempty" db:"member_id"`
	Action         AuditAction     `json:"action" db:"action"`
	ResourceType   string          `json:"resource_type" db:"resource_type"` // finding, vendor, policy, etc.
	ResourceID     *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details        json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	IPAddress      string          `json:"ip_address" db:"ip_address"`
	UserAgent      string          `json:"user_agent" db:"user_agent"`
	RequestID      string          `json:"request_id" db:"request_id"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(orgID uuid.UUID, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Action:         action,
		ResourceType:   resourceType,
		Details:        json.RawMessage("{}"),
		Timestamp:      time.Now(),
	}
}

// WithMember sets the acting member ID
func (a *AuditLog) WithMember(memberID uuid.UUID) *AuditLog {
	if memberID != uuid.Nil {
		a.MemberID = &memberID
	}
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
