package models

import (
	"time"

	"github.com/google/uuid"
)

// FrameworkStatus is the publicly displayed progress of a framework
type FrameworkStatus string

const (
	FrameworkStarted    FrameworkStatus = "started"
	FrameworkInProgress FrameworkStatus = "in_progress"
	FrameworkCompliant  FrameworkStatus = "compliant"
)

// TrustPortal holds an organization's public trust page settings
type TrustPortal struct {
	OrganizationID  uuid.UUID       `json:"organization_id" db:"organization_id"`
	Enabled         bool            `json:"enabled" db:"enabled"`
	FriendlyURL     *string         `json:"friendly_url,omitempty" db:"friendly_url"`
	CustomDomain    *string         `json:"custom_domain,omitempty" db:"custom_domain"`
	DomainVerified  bool            `json:"domain_verified" db:"domain_verified"`
	ContactEmail    string          `json:"contact_email" db:"contact_email"`
	SOC2Enabled     bool            `json:"soc2_enabled" db:"soc2_enabled"`
	SOC2Status      FrameworkStatus `json:"soc2_status" db:"soc2_status"`
	ISO27001Enabled bool            `json:"iso27001_enabled" db:"iso27001_enabled"`
	ISO27001Status  FrameworkStatus `json:"iso27001_status" db:"iso27001_status"`
	GDPREnabled     bool            `json:"gdpr_enabled" db:"gdpr_enabled"`
	GDPRStatus      FrameworkStatus `json:"gdpr_status" db:"gdpr_status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the TrustPortal model
func (TrustPortal) TableName() string {
	return "trust_portals"
}

// NewTrustPortal creates disabled portal settings
func NewTrustPortal(orgID uuid.UUID) *TrustPortal {
	now := time.Now()
	return &TrustPortal{
		OrganizationID: orgID,
		SOC2Status:     FrameworkStarted,
		ISO27001Status: FrameworkStarted,
		GDPRStatus:     FrameworkStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PublicFramework is one framework as shown on the public trust page
type PublicFramework struct {
	Name   string          `json:"name"`
	Status FrameworkStatus `json:"status"`
}

// PublicTrustView is the read-only view served to unauthenticated visitors
type PublicTrustView struct {
	OrganizationName string            `json:"organization_name"`
	Website          string            `json:"website,omitempty"`
	ContactEmail     string            `json:"contact_email,omitempty"`
	Frameworks       []PublicFramework `json:"frameworks"`
	Policies         []string          `json:"policies"`
}
