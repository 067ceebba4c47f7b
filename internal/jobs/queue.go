package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Dequeue once the queue has been closed
var ErrQueueClosed = errors.New("queue closed")

// Job is one enqueued execution of a task
type Job struct {
	RunID      uuid.UUID       `json:"run_id"`
	TaskID     string          `json:"task_id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue transports jobs to workers
type Queue interface {
	Enqueue(ctx context.Context, queue string, job *Job) error

	// Dequeue blocks until a job is available, ctx is done or the queue is closed
	Dequeue(ctx context.Context, queue string) (*Job, error)

	// Len returns the number of jobs waiting in queue
	Len(ctx context.Context, queue string) (int64, error)

	Close() error
}

// MemoryQueue is a buffered channel per queue name
type MemoryQueue struct {
	mu       sync.Mutex
	buffer   int
	channels map[string]chan *Job
	closed   chan struct{}
	once     sync.Once
}

// NewMemoryQueue creates an in-process queue with the given per-queue buffer
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 100
	}
	return &MemoryQueue{
		buffer:   buffer,
		channels: make(map[string]chan *Job),
		closed:   make(chan struct{}),
	}
}

func (q *MemoryQueue) channel(name string) chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.channels[name]
	if !ok {
		ch = make(chan *Job, q.buffer)
		q.channels[name] = ch
	}
	return ch
}

// Enqueue blocks while the queue is full
func (q *MemoryQueue) Enqueue(ctx context.Context, queue string, job *Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.channel(queue) <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	}
}

// Dequeue implements Queue
func (q *MemoryQueue) Dequeue(ctx context.Context, queue string) (*Job, error) {
	select {
	case job := <-q.channel(queue):
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, ErrQueueClosed
	}
}

// Len implements Queue
func (q *MemoryQueue) Len(ctx context.Context, queue string) (int64, error) {
	return int64(len(q.channel(queue))), nil
}

// Close wakes blocked callers; buffered jobs are dropped
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
