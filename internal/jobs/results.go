package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one job after all attempts
type Result struct {
	RunID    uuid.UUID       `json:"run_id"`
	TaskID   string          `json:"task_id"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`
}

// OK reports whether the job succeeded
func (r Result) OK() bool {
	return r.Error == ""
}

// Err returns the job failure as an error, or nil
func (r Result) Err() error {
	if r.Error == "" {
		return nil
	}
	return errors.New(r.Error)
}

// Decode unmarshals the job output into v
func (r Result) Decode(v interface{}) error {
	if !r.OK() {
		return r.Err()
	}
	if len(r.Output) == 0 {
		return nil
	}
	return json.Unmarshal(r.Output, v)
}

// ResultBus carries results between processes sharing a Redis queue, so a
// parent waiting in one process sees children finished in another
type ResultBus interface {
	Publish(ctx context.Context, res Result) error

	// Subscribe is confirmed before it returns; cancel releases it
	Subscribe(ctx context.Context) (results <-chan Result, cancel func() error, err error)
}

// RedisResultBus publishes results on a Redis pub/sub channel
type RedisResultBus struct {
	client  *redis.Client
	channel string
}

// NewRedisResultBus creates a bus on channel
func NewRedisResultBus(client *redis.Client, channel string) *RedisResultBus {
	if channel == "" {
		channel = "jobs:results"
	}
	return &RedisResultBus{client: client, channel: channel}
}

// Publish implements ResultBus
func (b *RedisResultBus) Publish(ctx context.Context, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// Subscribe implements ResultBus
func (b *RedisResultBus) Subscribe(ctx context.Context) (<-chan Result, func() error, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan Result, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var res Result
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				continue
			}
			out <- res
		}
	}()

	return out, sub.Close, nil
}
