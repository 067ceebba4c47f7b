package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		def     TaskDefinition
		wantErr string
	}{
		{"valid", TaskDefinition{ID: "sync-crm", Queue: "crm", Handler: noopHandler}, ""},
		{"missing id", TaskDefinition{Queue: "crm", Handler: noopHandler}, "task id is required"},
		{"missing queue", TaskDefinition{ID: "x", Handler: noopHandler}, "queue is required"},
		{"missing handler", TaskDefinition{ID: "x", Queue: "crm"}, "handler is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.def)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_DuplicateAndQueues(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TaskDefinition{ID: "update-policy", Queue: "policies", Handler: noopHandler}))
	require.NoError(t, r.Register(TaskDefinition{ID: "generate-vendor-mitigation", Queue: "mitigations", Handler: noopHandler}))
	require.NoError(t, r.Register(TaskDefinition{ID: "generate-risk-mitigation", Queue: "mitigations", Handler: noopHandler}))

	err := r.Register(TaskDefinition{ID: "update-policy", Queue: "policies", Handler: noopHandler})
	assert.ErrorContains(t, err, "already registered")

	assert.Equal(t, []string{"mitigations", "policies"}, r.Queues())

	def, ok := r.Get("update-policy")
	assert.True(t, ok)
	assert.Equal(t, "policies", def.Queue)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	job := &Job{RunID: uuid.New(), TaskID: "t", Payload: json.RawMessage(`{}`)}
	require.NoError(t, q.Enqueue(ctx, "a", job))
	assert.Equal(t, int64(1), queueLen(t, q, "a"))
	assert.Equal(t, int64(0), queueLen(t, q, "b"))

	got, err := q.Dequeue(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, job.RunID, got.RunID)

	t.Run("dequeue honours context", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := q.Dequeue(cctx, "a")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("enqueue blocks when full", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "full", job))
		require.NoError(t, q.Enqueue(ctx, "full", job))
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, q.Enqueue(cctx, "full", job), context.DeadlineExceeded)
	})

	t.Run("close wakes blocked consumers", func(t *testing.T) {
		errCh := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(ctx, "empty")
			errCh <- err
		}()
		require.NoError(t, q.Close())
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrQueueClosed)
		case <-time.After(time.Second):
			t.Fatal("dequeue did not return after close")
		}
		assert.ErrorIs(t, q.Enqueue(ctx, "a", job), ErrQueueClosed)
	})
}
