package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoPayload struct {
	N int `json:"n"`
}

func newTestRunner(t *testing.T, defs ...TaskDefinition) *Runner {
	t.Helper()
	registry := NewRegistry()
	for _, def := range defs {
		require.NoError(t, registry.Register(def))
	}
	runner := NewRunner(registry, NewMemoryQueue(100), nil, RunnerConfig{
		Concurrency:        map[string]int{"fast": 4},
		DefaultConcurrency: 1,
		MaxAttempts:        3,
		RetryBaseDelay:     time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, runner.Start())
	t.Cleanup(func() { _ = runner.Stop(2 * time.Second) })
	return runner
}

// triggerAndWait runs a single job to completion
func triggerAndWait(ctx context.Context, runner *Runner, taskID string, payload interface{}) (Result, error) {
	results, err := runner.BatchTriggerAndWait(ctx, taskID, []interface{}{payload})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

func TestRunner_TriggerRunsHandler(t *testing.T) {
	done := make(chan echoPayload, 1)
	runner := newTestRunner(t, TaskDefinition{
		ID:    "echo",
		Queue: "fast",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			var p echoPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}
			done <- p
			return nil, nil
		},
	})

	runID := uuid.New()
	handle, err := runner.Trigger(context.Background(), "echo", echoPayload{N: 7}, WithRunID(runID))
	require.NoError(t, err)
	assert.Equal(t, runID, handle.RunID)
	assert.Equal(t, "echo", handle.TaskID)

	select {
	case p := <-done:
		assert.Equal(t, 7, p.N)
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestRunner_UnknownTask(t *testing.T) {
	runner := newTestRunner(t)
	_, err := runner.Trigger(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = runner.BatchTriggerAndWait(context.Background(), "nope", []interface{}{1})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRunner_RetriesUpToMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	runner := newTestRunner(t, TaskDefinition{
		ID:    "flaky",
		Queue: "fast",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			calls.Add(1)
			return nil, errors.New("upstream unavailable")
		},
	})

	res, err := triggerAndWait(context.Background(), runner, "flaky", nil)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.EqualError(t, res.Err(), "upstream unavailable")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), runner.GetStats(context.Background()).Failed)
}

func TestRunner_SucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	runner := newTestRunner(t, TaskDefinition{
		ID:    "eventually",
		Queue: "fast",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			if calls.Add(1) < 2 {
				return nil, errors.New("timeout")
			}
			return json.RawMessage(`{"ok":true}`), nil
		},
	})

	res, err := triggerAndWait(context.Background(), runner, "eventually", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)

	var out struct{ OK bool }
	require.NoError(t, res.Decode(&out))
	assert.True(t, out.OK)
}

func TestRunner_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	runner := newTestRunner(t, TaskDefinition{
		ID:          "bad-input",
		Queue:       "fast",
		MaxAttempts: 5,
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			calls.Add(1)
			return nil, Permanent(errors.New("document not found"))
		},
	})

	res, err := triggerAndWait(context.Background(), runner, "bad-input", nil)
	require.NoError(t, err)
	assert.Equal(t, "document not found", res.Error)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	runner := newTestRunner(t, TaskDefinition{
		ID:          "panics",
		Queue:       "fast",
		MaxAttempts: 1,
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			panic("nil map")
		},
	})

	res, err := triggerAndWait(context.Background(), runner, "panics", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "job panicked")
}

func TestRunner_BatchTriggerAndWaitKeepsOrder(t *testing.T) {
	runner := newTestRunner(t, TaskDefinition{
		ID:    "square",
		Queue: "fast",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			var p echoPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, Permanent(err)
			}
			// later payloads finish first
			time.Sleep(time.Duration(10-p.N) * time.Millisecond)
			if p.N == 3 {
				return nil, Permanent(fmt.Errorf("item %d failed", p.N))
			}
			return json.Marshal(echoPayload{N: p.N * p.N})
		},
	})

	payloads := make([]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		payloads = append(payloads, echoPayload{N: i})
	}

	results, err := runner.BatchTriggerAndWait(context.Background(), "square", payloads)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, res := range results {
		if i == 3 {
			assert.Equal(t, "item 3 failed", res.Error)
			continue
		}
		var out echoPayload
		require.NoError(t, res.Decode(&out))
		assert.Equal(t, i*i, out.N, "result %d out of order", i)
	}
	assert.Equal(t, 0, runner.GetStats(context.Background()).Waiting)
}

func TestRunner_BatchTriggerAndWaitEmpty(t *testing.T) {
	runner := newTestRunner(t)
	results, err := runner.BatchTriggerAndWait(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunner_BatchTriggerAndWaitContext(t *testing.T) {
	release := make(chan struct{})
	runner := newTestRunner(t, TaskDefinition{
		ID:    "slow",
		Queue: "slow",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		},
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := runner.BatchTriggerAndWait(ctx, "slow", []interface{}{1, 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_ParentWaitsOnChildrenInOtherQueue(t *testing.T) {
	registry := NewRegistry()
	runner := NewRunner(registry, NewMemoryQueue(10), nil, RunnerConfig{
		DefaultConcurrency: 1,
		MaxAttempts:        1,
		RetryBaseDelay:     time.Millisecond,
	}, zap.NewNop())

	var mu sync.Mutex
	var seen []int
	require.NoError(t, registry.Register(TaskDefinition{
		ID:    "child",
		Queue: "children",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			var n int
			_ = json.Unmarshal(payload, &n)
			mu.Lock()
			seen = append(seen, n)
			mu.Unlock()
			return nil, nil
		},
	}))
	require.NoError(t, registry.Register(TaskDefinition{
		ID:    "parent",
		Queue: "parents",
		Handler: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			results, err := runner.BatchTriggerAndWait(ctx, "child", []interface{}{1, 2, 3})
			if err != nil {
				return nil, err
			}
			return json.Marshal(len(results))
		},
	}))
	require.NoError(t, runner.Start())
	defer runner.Stop(time.Second)

	res, err := triggerAndWait(context.Background(), runner, "parent", nil)
	require.NoError(t, err)
	var n int
	require.NoError(t, res.Decode(&n))
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestRunner_StartStop(t *testing.T) {
	runner := NewRunner(NewRegistry(), NewMemoryQueue(1), nil, DefaultRunnerConfig(), zap.NewNop())
	require.NoError(t, runner.Start())
	assert.Error(t, runner.Start())
	assert.True(t, runner.GetStats(context.Background()).Started)
	require.NoError(t, runner.Stop(time.Second))
	assert.Error(t, runner.Stop(time.Second))
	assert.False(t, runner.GetStats(context.Background()).Started)
}

// fakeBus is an in-process ResultBus used to check cross process delivery
type fakeBus struct {
	mu   sync.Mutex
	subs []chan Result
}

func (b *fakeBus) Publish(ctx context.Context, res Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		ch <- res
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context) (<-chan Result, func() error, error) {
	ch := make(chan Result, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, func() error { return nil }, nil
}

func TestRunner_ResultBusDeliversToOtherRunner(t *testing.T) {
	queue := NewMemoryQueue(10)
	bus := &fakeBus{}
	cfg := RunnerConfig{DefaultConcurrency: 1, MaxAttempts: 1, RetryBaseDelay: time.Millisecond}

	handler := func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"done"`), nil
	}

	// the producer registers the task but runs no workers for it
	producerRegistry := NewRegistry()
	require.NoError(t, producerRegistry.Register(TaskDefinition{ID: "work", Queue: "work", Handler: handler}))
	producer := NewRunner(producerRegistry, queue, bus, cfg, zap.NewNop())
	producer.registry = NewRegistry() // no queues, so Start launches no workers
	require.NoError(t, producer.Start())
	producer.registry = producerRegistry
	defer producer.Stop(time.Second)

	consumerRegistry := NewRegistry()
	require.NoError(t, consumerRegistry.Register(TaskDefinition{ID: "work", Queue: "work", Handler: handler}))
	consumer := NewRunner(consumerRegistry, queue, bus, cfg, zap.NewNop())
	require.NoError(t, consumer.Start())
	defer consumer.Stop(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := triggerAndWait(ctx, producer, "work", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.JSONEq(t, `"done"`, string(res.Output))
}

func TestRunner_StatsReportQueueDepth(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(TaskDefinition{ID: "idle", Queue: "backlog", Handler: noopHandler}))
	runner := NewRunner(registry, NewMemoryQueue(10), nil, DefaultRunnerConfig(), zap.NewNop())

	ctx := context.Background()
	_, err := runner.BatchTrigger(ctx, "idle", []interface{}{1, 2})
	require.NoError(t, err)

	stats := runner.GetStats(ctx)
	assert.False(t, stats.Started)
	assert.Equal(t, map[string]int64{"backlog": 2}, stats.Queued)
	assert.Zero(t, stats.Processed)
}
