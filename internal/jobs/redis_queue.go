package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores jobs in Redis lists: LPUSH to enqueue, BRPOP to dequeue,
// so several API processes can share workers
type RedisQueue struct {
	client      *redis.Client
	prefix      string
	pollTimeout time.Duration
}

// NewRedisQueue creates a queue on client. Keys are "<prefix>:<queue>".
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "jobs"
	}
	return &RedisQueue{
		client:      client,
		prefix:      prefix,
		pollTimeout: 2 * time.Second,
	}
}

func (q *RedisQueue) key(queue string) string {
	return q.prefix + ":" + queue
}

// Enqueue implements Queue
func (q *RedisQueue) Enqueue(ctx context.Context, queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key(queue), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue polls with a bounded BRPOP so ctx cancellation is observed
func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := q.client.BRPop(ctx, q.pollTimeout, q.key(queue)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrQueueClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		// result is [key, value]
		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		return &job, nil
	}
}

// Len implements Queue with LLEN
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, q.key(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Close is a no-op; the client is owned by the caller
func (q *RedisQueue) Close() error {
	return nil
}
