package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorStatus tracks the assessment of a vendor
type VendorStatus string

const (
	VendorStatusNotAssessed VendorStatus = "not_assessed"
	VendorStatusInProgress  VendorStatus = "in_progress"
	VendorStatusAssessed    VendorStatus = "assessed"
)

// Vendor is a third party the organization depends on
type Vendor struct {
	ID                  uuid.UUID    `json:"id" db:"id"`
	OrganizationID      uuid.UUID    `json:"organization_id" db:"organization_id"`
	Name                string       `json:"name" db:"name"`
	Description         string       `json:"description" db:"description"`
	Category            string       `json:"category" db:"category"`
	Website             string       `json:"website" db:"website"`
	Status              VendorStatus `json:"status" db:"status"`
	InherentProbability int          `json:"inherent_probability" db:"inherent_probability"`
	InherentImpact      int          `json:"inherent_impact" db:"inherent_impact"`
	ResidualProbability int          `json:"residual_probability" db:"residual_probability"`
	ResidualImpact      int          `json:"residual_impact" db:"residual_impact"`
	Mitigation          string       `json:"mitigation" db:"mitigation"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Vendor model
func (Vendor) TableName() string {
	return "vendors"
}

// NewVendor creates a not yet assessed vendor with mid range scores
func NewVendor(orgID uuid.UUID, name, description, category, website string) *Vendor {
	now := time.Now()
	return &Vendor{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		Name:                name,
		Description:         description,
		Category:            category,
		Website:             website,
		Status:              VendorStatusNotAssessed,
		InherentProbability: 3,
		InherentImpact:      3,
		ResidualProbability: 3,
		ResidualImpact:      3,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
