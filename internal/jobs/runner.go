package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownTask is returned when triggering an unregistered task
var ErrUnknownTask = errors.New("unknown task")

// Permanent marks a handler error that must not be retried
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

// Handle identifies a triggered job
type Handle struct {
	RunID  uuid.UUID `json:"run_id"`
	TaskID string    `json:"task_id"`
}

// RunnerConfig holds runner settings
type RunnerConfig struct {
	Concurrency        map[string]int // workers per queue
	DefaultConcurrency int
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
}

// DefaultRunnerConfig returns the default configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Concurrency:        map[string]int{},
		DefaultConcurrency: 2,
		MaxAttempts:        3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      30 * time.Second,
	}
}

// Runner executes registered tasks from a queue with per-queue worker pools
type Runner struct {
	registry *Registry
	queue    Queue
	bus      ResultBus
	config   RunnerConfig
	logger   *zap.Logger

	waitersMu sync.Mutex
	waiters   map[uuid.UUID]chan Result

	pollCtx    context.Context
	stopPoll   context.CancelFunc
	jobCtx     context.Context
	cancelJobs context.CancelFunc
	busCancel  func() error
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewRunner creates a Runner. bus may be nil for single process deployments.
func NewRunner(registry *Registry, queue Queue, bus ResultBus, config RunnerConfig, logger *zap.Logger) *Runner {
	if config.DefaultConcurrency <= 0 {
		config.DefaultConcurrency = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}
	pollCtx, stopPoll := context.WithCancel(context.Background())
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	return &Runner{
		registry:   registry,
		queue:      queue,
		bus:        bus,
		config:     config,
		logger:     logger,
		waiters:    make(map[uuid.UUID]chan Result),
		pollCtx:    pollCtx,
		stopPoll:   stopPoll,
		jobCtx:     jobCtx,
		cancelJobs: cancelJobs,
	}
}

// Start launches the workers of every registered queue
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("job runner already started")
	}

	if r.bus != nil {
		results, cancel, err := r.bus.Subscribe(r.pollCtx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to job results: %w", err)
		}
		r.busCancel = cancel
		go func() {
			for res := range results {
				r.deliver(res)
			}
		}()
	}

	for _, queue := range r.registry.Queues() {
		workers := r.config.Concurrency[queue]
		if workers <= 0 {
			workers = r.config.DefaultConcurrency
		}
		for i := 0; i < workers; i++ {
			r.wg.Add(1)
			go r.worker(queue, i)
		}
		r.logger.Info("started job workers",
			zap.String("queue", queue),
			zap.Int("worker_count", workers))
	}

	r.started = true
	return nil
}

// Stop stops dequeuing and waits for in-flight jobs. Jobs still running
// when timeout elapses have their context cancelled.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("job runner not started")
	}
	r.stopped = true
	r.mu.Unlock()

	r.logger.Info("stopping job runner")
	r.stopPoll()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		r.logger.Info("job runner stopped gracefully")
	case <-time.After(timeout):
		err = fmt.Errorf("job runner stop timeout after %v", timeout)
	}
	r.cancelJobs()
	if r.busCancel != nil {
		_ = r.busCancel()
	}
	return err
}

// TriggerOption customizes a triggered job
type TriggerOption func(*Job)

// WithRunID sets the job run id instead of generating one
func WithRunID(id uuid.UUID) TriggerOption {
	return func(j *Job) { j.RunID = id }
}

// Trigger enqueues one job and returns without waiting
func (r *Runner) Trigger(ctx context.Context, taskID string, payload interface{}, opts ...TriggerOption) (Handle, error) {
	def, job, err := r.newJob(taskID, payload, opts...)
	if err != nil {
		return Handle{}, err
	}
	if err := r.queue.Enqueue(ctx, def.Queue, job); err != nil {
		return Handle{}, fmt.Errorf("failed to trigger %s: %w", taskID, err)
	}

	r.logger.Debug("job triggered",
		zap.String("task_id", taskID),
		zap.String("job_run_id", job.RunID.String()))

	return Handle{RunID: job.RunID, TaskID: taskID}, nil
}

// BatchTrigger enqueues one job per payload
func (r *Runner) BatchTrigger(ctx context.Context, taskID string, payloads []interface{}) ([]Handle, error) {
	handles := make([]Handle, 0, len(payloads))
	for _, payload := range payloads {
		h, err := r.Trigger(ctx, taskID, payload)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// BatchTriggerAndWait enqueues one job per payload and waits for all of
// them. Results are in payload order. A failed child is reported in its
// Result; the returned error is only set when ctx ends or enqueueing fails.
func (r *Runner) BatchTriggerAndWait(ctx context.Context, taskID string, payloads []interface{}) ([]Result, error) {
	if len(payloads) == 0 {
		return []Result{}, nil
	}

	jobs := make([]*Job, len(payloads))
	var def TaskDefinition
	for i, payload := range payloads {
		d, job, err := r.newJob(taskID, payload)
		if err != nil {
			return nil, err
		}
		def = d
		jobs[i] = job
	}

	// register before enqueueing so fast children are not missed
	waiters := make([]chan Result, len(jobs))
	for i, job := range jobs {
		waiters[i] = r.register(job.RunID)
	}
	defer func() {
		for _, job := range jobs {
			r.unregister(job.RunID)
		}
	}()

	for _, job := range jobs {
		if err := r.queue.Enqueue(ctx, def.Queue, job); err != nil {
			return nil, fmt.Errorf("failed to trigger %s: %w", taskID, err)
		}
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range jobs {
		i := i
		g.Go(func() error {
			select {
			case res := <-waiters[i]:
				results[i] = res
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("waiting for %s batch: %w", taskID, err)
	}
	return results, nil
}

func (r *Runner) newJob(taskID string, payload interface{}, opts ...TriggerOption) (TaskDefinition, *Job, error) {
	def, ok := r.registry.Get(taskID)
	if !ok {
		return TaskDefinition{}, nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	var data json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		data = p
	case nil:
		data = json.RawMessage("{}")
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return TaskDefinition{}, nil, fmt.Errorf("failed to encode %s payload: %w", taskID, err)
		}
		data = encoded
	}

	job := &Job{
		RunID:      uuid.New(),
		TaskID:     taskID,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(job)
	}
	return def, job, nil
}

func (r *Runner) register(runID uuid.UUID) chan Result {
	ch := make(chan Result, 1)
	r.waitersMu.Lock()
	r.waiters[runID] = ch
	r.waitersMu.Unlock()
	return ch
}

func (r *Runner) unregister(runID uuid.UUID) {
	r.waitersMu.Lock()
	delete(r.waiters, runID)
	r.waitersMu.Unlock()
}

// deliver hands res to its local waiter, at most once
func (r *Runner) deliver(res Result) {
	r.waitersMu.Lock()
	ch, ok := r.waiters[res.RunID]
	if ok {
		delete(r.waiters, res.RunID)
	}
	r.waitersMu.Unlock()

	if ok {
		ch <- res
	}
}

func (r *Runner) worker(queue string, id int) {
	defer r.wg.Done()

	r.logger.Debug("job worker started", zap.String("queue", queue), zap.Int("worker_id", id))

	for {
		job, err := r.queue.Dequeue(r.pollCtx, queue)
		if err != nil {
			if r.pollCtx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				r.logger.Debug("job worker stopped", zap.String("queue", queue), zap.Int("worker_id", id))
				return
			}
			r.logger.Error("failed to dequeue job", zap.String("queue", queue), zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-r.pollCtx.Done():
				return
			}
			continue
		}

		res := r.execute(job)
		r.deliver(res)
		if r.bus != nil {
			if err := r.bus.Publish(r.jobCtx, res); err != nil {
				r.logger.Warn("failed to publish job result",
					zap.String("job_run_id", res.RunID.String()),
					zap.Error(err))
			}
		}
	}
}

// execute runs job with exponential backoff retries
func (r *Runner) execute(job *Job) Result {
	res := Result{RunID: job.RunID, TaskID: job.TaskID}

	def, ok := r.registry.Get(job.TaskID)
	if !ok {
		res.Error = fmt.Sprintf("%v: %s", ErrUnknownTask, job.TaskID)
		r.failed.Add(1)
		return res
	}

	maxAttempts := def.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.config.MaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.RetryBaseDelay
	if r.config.RetryMaxDelay > 0 {
		b.MaxInterval = r.config.RetryMaxDelay
	}
	b.MaxElapsedTime = 0

	start := time.Now()
	operation := func() error {
		res.Attempts++
		out, err := r.invoke(def, job)
		if err != nil {
			r.logger.Warn("job attempt failed",
				zap.String("task_id", job.TaskID),
				zap.String("job_run_id", job.RunID.String()),
				zap.Int("attempt", res.Attempts),
				zap.Error(err))
			return err
		}
		res.Output = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), r.jobCtx)
	if err := backoff.Retry(operation, policy); err != nil {
		res.Error = err.Error()
		r.failed.Add(1)
		r.logger.Error("job failed",
			zap.String("task_id", job.TaskID),
			zap.String("job_run_id", job.RunID.String()),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
		return res
	}

	r.processed.Add(1)
	r.logger.Info("job completed",
		zap.String("task_id", job.TaskID),
		zap.String("job_run_id", job.RunID.String()),
		zap.Int("attempts", res.Attempts),
		zap.Duration("duration", time.Since(start)))
	return res
}

// invoke calls the handler, converting panics into errors
func (r *Runner) invoke(def TaskDefinition, job *Job) (out json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return def.Handler(r.jobCtx, job.Payload)
}

// Stats represents job runner statistics
type Stats struct {
	Processed int64            `json:"processed"`
	Failed    int64            `json:"failed"`
	Waiting   int              `json:"waiting"`
	Queued    map[string]int64 `json:"queued"`
	Started   bool             `json:"started"`
}

// GetStats returns statistics about the runner. Queued holds the depth of
// every registered queue; queues whose length cannot be read are left out.
func (r *Runner) GetStats(ctx context.Context) Stats {
	r.mu.Lock()
	started := r.started && !r.stopped
	r.mu.Unlock()

	r.waitersMu.Lock()
	waiting := len(r.waiters)
	r.waitersMu.Unlock()

	queued := make(map[string]int64)
	for _, name := range r.registry.Queues() {
		n, err := r.queue.Len(ctx, name)
		if err != nil {
			r.logger.Warn("failed to read queue length", zap.String("queue", name), zap.Error(err))
			continue
		}
		queued[name] = n
	}

	return Stats{
		Processed: r.processed.Load(),
		Failed:    r.failed.Load(),
		Waiting:   waiting,
		Queued:    queued,
		Started:   started,
	}
}
