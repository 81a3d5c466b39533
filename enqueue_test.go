package action

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Enqueue(t *testing.T) {
	t.Run("validates before handing off", func(t *testing.T) {
		handed := false
		a := quiet("Queued", nil,
			Expects("name", Type[string]()),
			WithEnqueuer(EnqueuerFunc(func(ctx context.Context, a *Action, args Args) error {
				handed = true
				return nil
			})),
		)

		err := a.Enqueue(context.Background(), Args{"name": 5})
		var ce *ContractError
		require.ErrorAs(t, err, &ce)
		assert.False(t, handed, "invalid args never reach the adapter")

		require.NoError(t, a.Enqueue(context.Background(), Args{"name": "Doug"}))
		assert.True(t, handed)
	})

	t.Run("original args are handed off", func(t *testing.T) {
		var got Args
		a := quiet("Queued", nil,
			Expects("n", Default(7)),
			WithEnqueuer(EnqueuerFunc(func(ctx context.Context, a *Action, args Args) error {
				got = args
				return nil
			})),
		)

		require.NoError(t, a.Enqueue(context.Background(), Args{}))
		// Defaults apply at execution time, not enqueue time.
		assert.Empty(t, got)
	})

	t.Run("no enqueuer configured", func(t *testing.T) {
		a := quiet("Unqueued", nil)
		assert.ErrorIs(t, a.Enqueue(context.Background(), nil), ErrNoEnqueuer)
	})

	t.Run("in-process adapter runs the action", func(t *testing.T) {
		var calls atomic.Int32
		enq := &InProcess{}
		a := quiet("Async", func(c *Context) error {
			calls.Add(1)
			return nil
		},
			WithEnqueuer(enq),
		)

		require.NoError(t, a.Enqueue(context.Background(), nil))
		require.NoError(t, a.Enqueue(context.Background(), nil))
		enq.Wait()
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestRetryInfo_ContextRoundTrip(t *testing.T) {
	_, ok := RetryInfoFrom(context.Background())
	assert.False(t, ok)

	ctx := WithRetryInfo(context.Background(), RetryInfo{Attempt: 3, MaxAttempts: 10, JobID: "j-1"})
	info, ok := RetryInfoFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, 3, info.Attempt)
	assert.Equal(t, "j-1", info.JobID)
}

func TestRetryCommand(t *testing.T) {
	cmd := retryCommand("Charge", map[string]any{"amount": 5, "currency": "USD"})
	assert.Equal(t, `Charge.Call(ctx, action.Args{"amount": 5, "currency": "USD"})`, cmd)
}
