package action

import (
	"errors"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sony/gobreaker/v2"
)

// circuitBreakerConfig parameterizes the built-in circuit_breaker
// strategy. Duration values accept Go duration strings ("30s").
type circuitBreakerConfig struct {
	Name             string        `mapstructure:"name"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Message          string        `mapstructure:"message"`
}

func init() {
	RegisterStrategy("circuit_breaker", StrategyFunc(setupCircuitBreaker))
}

// setupCircuitBreaker wraps the user phase in a circuit breaker shared by
// every invocation of the declaring action. An open breaker rejects the
// invocation as a deliberate failure, not an exception: a tripped breaker
// is an expected operating condition.
func setupCircuitBreaker(config map[string]any) ([]Option, error) {
	cfg := circuitBreakerConfig{
		FailureThreshold: 5,
		Message:          "service unavailable",
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &cfg,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if config != nil {
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
	}

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})

	around := Around(func(c *Context, next func() error) error {
		signal, err := cb.Execute(func() (any, error) {
			err := next()
			var done *doneSignal
			if errors.As(err, &done) {
				// An early Done is a success as far as the breaker goes.
				return err, nil
			}
			return nil, err
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return c.Fail(cfg.Message)
		}
		if err == nil && signal != nil {
			return signal.(error)
		}
		return err
	})
	return []Option{around}, nil
}
