package action

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	t.Run("registered strategies contribute options", func(t *testing.T) {
		RegisterStrategy("audit_test", StrategyFunc(func(config map[string]any) ([]Option, error) {
			topic, _ := config["topic"].(string)
			return []Option{
				Success(fmt.Sprintf("audited to %s", topic)),
			}, nil
		}))

		a := quiet("Audited", nil, Use("audit_test", map[string]any{"topic": "billing"}))
		res := a.Call(context.Background(), nil)
		require.True(t, res.OK())
		assert.Equal(t, "audited to billing", res.SuccessMessage())
	})

	t.Run("unknown strategy panics at declaration", func(t *testing.T) {
		assert.Panics(t, func() { Use("no_such_strategy", nil) })
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		RegisterStrategy("dup_test", StrategyFunc(func(map[string]any) ([]Option, error) { return nil, nil }))
		assert.Panics(t, func() {
			RegisterStrategy("dup_test", StrategyFunc(func(map[string]any) ([]Option, error) { return nil, nil }))
		})
	})

	t.Run("setup failure panics at declaration", func(t *testing.T) {
		RegisterStrategy("broken_test", StrategyFunc(func(map[string]any) ([]Option, error) {
			return nil, errors.New("bad config")
		}))
		assert.Panics(t, func() { Use("broken_test", nil) })
	})
}

func TestCircuitBreakerStrategy(t *testing.T) {
	t.Run("open breaker becomes a deliberate failure", func(t *testing.T) {
		shouldFail := true
		a := quiet("Flaky", func(c *Context) error {
			if shouldFail {
				return errors.New("upstream 503")
			}
			return nil
		},
			Use("circuit_breaker", map[string]any{
				"failure_threshold": 2,
				"message":           "upstream unavailable",
			}),
		)

		// Trip the breaker.
		assert.Equal(t, OutcomeException, a.Call(context.Background(), nil).Outcome())
		assert.Equal(t, OutcomeException, a.Call(context.Background(), nil).Outcome())

		// Now rejected without running the body at all.
		shouldFail = false
		res := a.Call(context.Background(), nil)
		assert.Equal(t, OutcomeFailure, res.Outcome())
		assert.Equal(t, "upstream unavailable", res.ErrorMessage())
	})

	t.Run("closed breaker passes results through", func(t *testing.T) {
		a := quiet("Healthy", func(c *Context) error {
			return c.Expose("n", 1)
		},
			Exposes("n"),
			Use("circuit_breaker", nil),
		)

		res := a.Call(context.Background(), nil)
		require.True(t, res.OK())
		n, err := Value[int](res, "n")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("early done does not count as a breaker failure", func(t *testing.T) {
		a := quiet("Cached", func(c *Context) error { return c.Done("cache hit") },
			Use("circuit_breaker", map[string]any{"failure_threshold": 1}),
		)

		for i := 0; i < 3; i++ {
			res := a.Call(context.Background(), nil)
			require.True(t, res.OK())
			assert.Equal(t, "cache hit", res.SuccessMessage())
		}
	})

	t.Run("duration strings decode", func(t *testing.T) {
		assert.NotPanics(t, func() {
			quiet("Timed", nil, Use("circuit_breaker", map[string]any{"timeout": "30s"}))
		})
	})
}
