package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"go.uber.org/zap"
)

// EventKind is the type of a progress event
type EventKind string

const (
	EventTotals        EventKind = "totals"
	EventItemStarted   EventKind = "item_started"
	EventItemCompleted EventKind = "item_completed"
	EventItemFailed    EventKind = "item_failed"
	EventRunCompleted  EventKind = "run_completed"
	EventRunFailed     EventKind = "run_failed"
)

// ErrAggregatorStopped is returned once the aggregator no longer accepts events
var ErrAggregatorStopped = errors.New("progress aggregator stopped")

// ProgressEvent is a message sent by a job to report onboarding progress
type ProgressEvent struct {
	RunID      uuid.UUID      `json:"run_id"`
	Kind       EventKind      `json:"kind"`
	EntityType string         `json:"entity_type,omitempty"` // vendor, risk or policy
	EntityID   string         `json:"entity_id,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"` // totals per entity type
	Error      string         `json:"error,omitempty"`
}

// ProgressStore persists run snapshots. UpdateProgress must serialize
// concurrent writers of the same run, including writers in other processes.
type ProgressStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.OnboardingRun, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, mutate func(run *models.OnboardingRun) bool) (*models.OnboardingRun, bool, error)
}

// ProgressPublisher pushes snapshots to live readers
type ProgressPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// ProgressChannel is the pub/sub channel carrying snapshots of runID
func ProgressChannel(runID uuid.UUID) string {
	return "onboarding:" + runID.String()
}

type snapshotRequest struct {
	runID uuid.UUID
	reply chan *models.OnboardingRun
}

// Aggregator folds progress events into runs. Jobs send events to its inbox
// and never touch counters directly. Each event is applied to the stored run
// under the store's lock, so aggregators in several processes sharing one
// queue never overwrite each other.
type Aggregator struct {
	inbox     chan ProgressEvent
	snapshots chan snapshotRequest
	store     ProgressStore
	publisher ProgressPublisher
	logger    *zap.Logger

	// shared is set when other processes write the same runs; snapshots are
	// then read from the store instead of the local copy
	shared bool

	// last state this aggregator wrote, owned by the loop goroutine
	runs map[uuid.UUID]*models.OnboardingRun

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
	mu      sync.Mutex
}

// NewAggregator creates an aggregator. publisher may be nil. shared marks a
// deployment where runners in other processes report progress for the same runs.
func NewAggregator(store ProgressStore, publisher ProgressPublisher, logger *zap.Logger, bufferSize int, shared bool) *Aggregator {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Aggregator{
		inbox:     make(chan ProgressEvent, bufferSize),
		snapshots: make(chan snapshotRequest),
		store:     store,
		publisher: publisher,
		logger:    logger,
		shared:    shared,
		runs:      make(map[uuid.UUID]*models.OnboardingRun),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the aggregation loop
func (a *Aggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("progress aggregator already started")
	}
	a.started = true
	go a.loop()
	return nil
}

// Stop drains queued events and stops the loop
func (a *Aggregator) Stop(timeout time.Duration) error {
	a.once.Do(func() { close(a.stop) })
	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("progress aggregator stop timeout after %v", timeout)
	}
}

// Emit queues an event, blocking while the inbox is full
func (a *Aggregator) Emit(ctx context.Context, ev ProgressEvent) error {
	select {
	case <-a.stop:
		return ErrAggregatorStopped
	default:
	}
	select {
	case a.inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stop:
		return ErrAggregatorStopped
	}
}

// Snapshot returns a copy of the run's current progress. Runs not held in
// memory, and every run in shared mode, are loaded from the store.
func (a *Aggregator) Snapshot(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error) {
	if a.shared {
		return a.store.Get(ctx, runID)
	}

	req := snapshotRequest{runID: runID, reply: make(chan *models.OnboardingRun, 1)}

	select {
	case a.snapshots <- req:
		select {
		case run := <-req.reply:
			if run != nil {
				return run, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	case <-a.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return a.store.Get(ctx, runID)
}

func (a *Aggregator) loop() {
	defer close(a.done)

	for {
		select {
		case ev := <-a.inbox:
			a.apply(ev)
		case req := <-a.snapshots:
			if run, ok := a.runs[req.runID]; ok {
				req.reply <- run.Clone()
			} else {
				req.reply <- nil
			}
		case <-a.stop:
			for {
				select {
				case ev := <-a.inbox:
					a.apply(ev)
				default:
					return
				}
			}
		}
	}
}

// apply folds one event into the stored run and publishes the result
func (a *Aggregator) apply(ev ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	run, changed, err := a.store.UpdateProgress(ctx, ev.RunID, func(run *models.OnboardingRun) bool {
		if run.ItemStatuses == nil {
			run.ItemStatuses = map[string]models.ItemStatus{}
		}
		return Apply(run, ev, now)
	})
	if err != nil {
		a.logger.Error("failed to apply onboarding progress event",
			zap.String("run_id", ev.RunID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
		return
	}

	if run.Status.IsTerminal() || a.shared {
		delete(a.runs, ev.RunID)
	} else {
		a.runs[ev.RunID] = run.Clone()
	}

	if !changed {
		a.logger.Debug("progress event changed nothing",
			zap.String("run_id", ev.RunID.String()),
			zap.String("kind", string(ev.Kind)))
		return
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, ProgressChannel(ev.RunID), run); err != nil {
			a.logger.Warn("failed to publish onboarding progress",
				zap.String("run_id", ev.RunID.String()),
				zap.Error(err))
		}
	}
}

// Apply folds ev into run and reports whether anything changed. Counters
// only grow and an item is counted once, when it first reaches a terminal
// status.
func Apply(run *models.OnboardingRun, ev ProgressEvent, now time.Time) bool {
	if run.Status.IsTerminal() {
		return false
	}

	markRunning := func() {
		if run.Status == models.RunQueued {
			run.Status = models.RunRunning
		}
		if run.StartedAt == nil {
			started := now
			run.StartedAt = &started
		}
	}

	changed := false
	switch ev.Kind {
	case EventTotals:
		markRunning()
		for entityType, total := range ev.Counts {
			counter := run.CounterFor(entityType)
			if counter != nil && total > counter.Total {
				counter.Total = total
			}
		}
		changed = true

	case EventItemStarted:
		if ev.EntityID == "" {
			return false
		}
		markRunning()
		if current, ok := run.ItemStatuses[ev.EntityID]; ok && current.IsTerminal() {
			return false
		}
		run.ItemStatuses[ev.EntityID] = models.ItemProcessing
		changed = true

	case EventItemCompleted, EventItemFailed:
		if ev.EntityID == "" {
			return false
		}
		if current, ok := run.ItemStatuses[ev.EntityID]; ok && current.IsTerminal() {
			return false
		}
		markRunning()
		counter := run.CounterFor(ev.EntityType)
		if ev.Kind == EventItemCompleted {
			run.ItemStatuses[ev.EntityID] = models.ItemCompleted
			if counter != nil {
				counter.Completed++
			}
		} else {
			run.ItemStatuses[ev.EntityID] = models.ItemFailed
			if counter != nil {
				counter.Failed++
			}
		}
		if counter != nil && counter.Completed+counter.Failed > counter.Total {
			counter.Total = counter.Completed + counter.Failed
		}
		changed = true

	case EventRunCompleted, EventRunFailed:
		markRunning()
		finished := now
		run.CompletedAt = &finished
		if ev.Kind == EventRunCompleted {
			run.Status = models.RunCompleted
		} else {
			run.Status = models.RunFailed
			msg := ev.Error
			if msg == "" {
				msg = "onboarding failed"
			}
			run.Error = &msg
		}
		changed = true
	}

	if changed {
		run.UpdatedAt = now
	}
	return changed
}
