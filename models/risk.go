package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskStatus represents the state of a risk register entry
type RiskStatus string

const (
	RiskStatusOpen     RiskStatus = "open"
	RiskStatusPending  RiskStatus = "pending"
	RiskStatusClosed   RiskStatus = "closed"
	RiskStatusArchived RiskStatus = "archived"
)

// TreatmentStrategy is how the organization handles a risk
type TreatmentStrategy string

const (
	TreatmentAccept   TreatmentStrategy = "accept"
	TreatmentAvoid    TreatmentStrategy = "avoid"
	TreatmentMitigate TreatmentStrategy = "mitigate"
	TreatmentTransfer TreatmentStrategy = "transfer"
)

// Risk is an entry in the organization's risk register
type Risk struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	OrganizationID       uuid.UUID         `json:"organization_id" db:"organization_id"`
	Title                string            `json:"title" db:"title"`
	Description          string            `json:"description" db:"description"`
	Category             string            `json:"category" db:"category"`
	Department           string            `json:"department" db:"department"`
	Status               RiskStatus        `json:"status" db:"status"`
	Likelihood           int               `json:"likelihood" db:"likelihood"`
	Impact               int               `json:"impact" db:"impact"`
	TreatmentStrategy    TreatmentStrategy `json:"treatment_strategy" db:"treatment_strategy"`
	TreatmentDescription string            `json:"treatment_description" db:"treatment_description"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Risk model
func (Risk) TableName() string {
	return "risks"
}

// NewRisk creates an open risk that is accepted until a treatment is chosen
func NewRisk(orgID uuid.UUID, title, description, category, department string) *Risk {
	now := time.Now()
	return &Risk{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		Title:             title,
		Description:       description,
		Category:          category,
		Department:        department,
		Status:            RiskStatusOpen,
		Likelihood:        3,
		Impact:            3,
		TreatmentStrategy: TreatmentAccept,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
