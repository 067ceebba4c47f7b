package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is an organization scoped key presented in the X-API-Key header.
// Only the sha256 hash of the key is stored.
type APIKey struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	KeyHash        string     `json:"-" db:"key_hash"`
	Prefix         string     `json:"prefix" db:"prefix"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the APIKey model
func (APIKey) TableName() string {
	return "api_keys"
}

// NewAPIKey creates a new APIKey instance
func NewAPIKey(orgID uuid.UUID, name, keyHash, prefix string) *APIKey {
	return &APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		KeyHash:        keyHash,
		Prefix:         prefix,
		CreatedAt:      time.Now(),
	}
}

// IsRevoked returns true once the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
