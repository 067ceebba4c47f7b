// Package revalidate publishes cache invalidation and live progress
// messages over Redis pub/sub.
package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PubSub is the subset of the redis client used for publishing
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher sends JSON messages to Redis channels. A nil client turns
// every publish into a debug log line.
type Publisher struct {
	client PubSub
	logger *zap.Logger
}

// NewPublisher creates a publisher
func NewPublisher(client PubSub, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish marshals message to JSON and publishes it on channel
func (p *Publisher) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", channel, err)
	}

	if p.client == nil {
		p.logger.Debug("redis disabled, dropping message", zap.String("channel", channel))
		return nil
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Message tells web frontends which paths to re-render
type Message struct {
	Paths     []string  `json:"paths"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes path revalidation messages
type Notifier struct {
	publisher *Publisher
	channel   string
	logger    *zap.Logger
}

// NewNotifier creates a notifier publishing on channel
func NewNotifier(publisher *Publisher, channel string, logger *zap.Logger) *Notifier {
	if channel == "" {
		channel = "revalidate"
	}
	return &Notifier{publisher: publisher, channel: channel, logger: logger}
}

// Revalidate publishes paths. Failures are logged and returned; callers
// normally treat them as non-fatal.
func (n *Notifier) Revalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	err := n.publisher.Publish(ctx, n.channel, Message{Paths: paths, Timestamp: time.Now().UTC()})
	if err != nil {
		n.logger.Warn("failed to publish revalidation",
			zap.Strings("paths", paths),
			zap.Error(err))
		return err
	}

	n.logger.Debug("published revalidation", zap.Strings("paths", paths))
	return nil
}
