package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	channel string
	payload []byte
}

type fakePubSub struct {
	messages []published
	err      error
}

func (f *fakePubSub) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.messages = append(f.messages, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func TestPublisher_Publish(t *testing.T) {
	fake := &fakePubSub{}
	p := NewPublisher(fake, zap.NewNop())

	err := p.Publish(context.Background(), "onboarding:run-1", map[string]int{"completed": 2})
	require.NoError(t, err)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "onboarding:run-1", fake.messages[0].channel)
	assert.JSONEq(t, `{"completed":2}`, string(fake.messages[0].payload))
}

func TestPublisher_NilClient(t *testing.T) {
	p := NewPublisher(nil, zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), "c", "x"))
}

func TestPublisher_Unmarshalable(t *testing.T) {
	p := NewPublisher(&fakePubSub{}, zap.NewNop())
	assert.Error(t, p.Publish(context.Background(), "c", make(chan int)))
}

func TestNotifier_Revalidate(t *testing.T) {
	fake := &fakePubSub{}
	n := NewNotifier(NewPublisher(fake, zap.NewNop()), "", zap.NewNop())

	require.NoError(t, n.Revalidate(context.Background(), "/org/vendors", "/org/risk"))
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "revalidate", fake.messages[0].channel)

	var msg Message
	require.NoError(t, json.Unmarshal(fake.messages[0].payload, &msg))
	assert.Equal(t, []string{"/org/vendors", "/org/risk"}, msg.Paths)
	assert.False(t, msg.Timestamp.IsZero())

	// nothing to publish
	require.NoError(t, n.Revalidate(context.Background()))
	assert.Len(t, fake.messages, 1)
}

func TestNotifier_PublishFailure(t *testing.T) {
	fake := &fakePubSub{err: errors.New("connection refused")}
	n := NewNotifier(NewPublisher(fake, zap.NewNop()), "pages", zap.NewNop())

	err := n.Revalidate(context.Background(), "/x")
	assert.ErrorContains(t, err, "connection refused")
}
