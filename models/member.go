package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole represents the role of a member within an organization
type MemberRole string

const (
	RoleOwner    MemberRole = "owner"
	RoleAdmin    MemberRole = "admin"
	RoleAuditor  MemberRole = "auditor"
	RoleEmployee MemberRole = "employee"
)

// Valid reports whether r is a known role
func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAuditor, RoleEmployee:
		return true
	}
	return false
}

// Member is a user's membership in one organization
type Member struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	OrganizationID     uuid.UUID  `json:"organization_id" db:"organization_id"`
	UserID             string     `json:"user_id" db:"user_id"` // identity provider subject
	Email              string     `json:"email" db:"email"`
	Name               string     `json:"name" db:"name"`
	Role               MemberRole `json:"role" db:"role"`
	DeviceAgentEnabled bool       `json:"device_agent_enabled" db:"device_agent_enabled"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Member model
func (Member) TableName() string {
	return "members"
}

// NewMember creates a new Member instance
func NewMember(orgID uuid.UUID, userID, email, name string, role MemberRole) *Member {
	now := time.Now()
	return &Member{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Email:          email,
		Name:           name,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsPrivileged returns true for owners and admins
func (m *Member) IsPrivileged() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
