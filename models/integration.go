package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus represents the state of an integration connection
type ConnectionStatus string

const (
	ConnectionActive       ConnectionStatus = "active"
	ConnectionPaused       ConnectionStatus = "paused"
	ConnectionError        ConnectionStatus = "error"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// IntegrationConnection links an organization to a third party provider.
// Credentials are persisted but never serialized.
type IntegrationConnection struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	OrganizationID uuid.UUID        `json:"organization_id" db:"organization_id"`
	ProviderSlug   string           `json:"provider_slug" db:"provider_slug"`
	Status         ConnectionStatus `json:"status" db:"status"`
	Settings       json.RawMessage  `json:"settings" db:"settings"`
	Credentials    json.RawMessage  `json:"-" db:"credentials"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty" db:"last_sync_at"`
	LastError      *string          `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the IntegrationConnection model
func (IntegrationConnection) TableName() string {
	return "integration_connections"
}

// NewIntegrationConnection creates an active connection
func NewIntegrationConnection(orgID uuid.UUID, providerSlug string, settings, credentials json.RawMessage) *IntegrationConnection {
	now := time.Now()
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	if len(credentials) == 0 {
		credentials = json.RawMessage("{}")
	}
	return &IntegrationConnection{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ProviderSlug:   providerSlug,
		Status:         ConnectionActive,
		Settings:       settings,
		Credentials:    credentials,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
