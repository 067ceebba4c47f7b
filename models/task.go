package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the state of an evidence task
type TaskStatus string

const (
	TaskStatusTodo        TaskStatus = "todo"
	TaskStatusInProgress  TaskStatus = "in_progress"
	TaskStatusDone        TaskStatus = "done"
	TaskStatusNotRelevant TaskStatus = "not_relevant"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusNotRelevant:
		return true
	}
	return false
}

// Task is an evidence collection task or a mitigation generated for a
// vendor or risk
type Task struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	Status         TaskStatus `json:"status" db:"status"`
	Frequency      string     `json:"frequency" db:"frequency"` // monthly, quarterly, yearly or empty
	VendorID       *uuid.UUID `json:"vendor_id,omitempty" db:"vendor_id"`
	RiskID         *uuid.UUID `json:"risk_id,omitempty" db:"risk_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// NewTask creates a new Task instance in the todo state
func NewTask(orgID uuid.UUID, title, description string) *Task {
	now := time.Now()
	return &Task{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Title:          title,
		Description:    description,
		Status:         TaskStatusTodo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
