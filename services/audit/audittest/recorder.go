// Package audittest provides an in-memory audit.Recorder for service tests.
package audittest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
)

// Event is one recorded audit call
type Event struct {
	OrgID        uuid.UUID
	Action       models.AuditAction
	ResourceType string
	ResourceID   uuid.UUID
	Details      interface{}
}

// Recorder keeps every Record call in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record implements audit.Recorder
func (r *Recorder) Record(_ context.Context, orgID uuid.UUID, action models.AuditAction, resourceType string, resourceID uuid.UUID, details interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		OrgID:        orgID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	})
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Actions returns the recorded actions in order
func (r *Recorder) Actions() []models.AuditAction {
	events := r.Events()
	out := make([]models.AuditAction, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}
