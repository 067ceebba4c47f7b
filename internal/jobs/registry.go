package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one job. The returned output is handed to waiters.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// TaskDefinition describes a registered task
type TaskDefinition struct {
	ID          string
	Queue       string
	MaxAttempts int // 0 uses the runner default
	Handler     Handler
}

// Registry holds task definitions by id
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]TaskDefinition
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]TaskDefinition)}
}

// Register adds a task definition. Ids must be unique.
func (r *Registry) Register(def TaskDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if def.Queue == "" {
		return fmt.Errorf("task %s: queue is required", def.ID)
	}
	if def.Handler == nil {
		return fmt.Errorf("task %s: handler is required", def.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[def.ID]; exists {
		return fmt.Errorf("task %s already registered", def.ID)
	}
	r.tasks[def.ID] = def
	return nil
}

// Get returns the definition for id
func (r *Registry) Get(id string) (TaskDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tasks[id]
	return def, ok
}

// Queues returns the distinct queue names, sorted
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, def := range r.tasks {
		seen[def.Queue] = struct{}{}
	}
	queues := make([]string, 0, len(seen))
	for q := range seen {
		queues = append(queues, q)
	}
	sort.Strings(queues)
	return queues
}
