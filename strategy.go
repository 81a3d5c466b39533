package action

import (
	"fmt"
	"sync"
)

// Strategy is a named, reusable bundle of declaration options,
// parameterized by a config map. Strategies let applications package
// cross-cutting behavior (timeouts, circuit breaking, auditing) and apply
// it to many actions with one Use call.
type Strategy interface {
	// Setup resolves the config into the options the strategy contributes
	// to a declaration. It is called once per Use, at declaration time.
	Setup(config map[string]any) ([]Option, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(config map[string]any) ([]Option, error)

// Setup implements the Strategy interface.
func (f StrategyFunc) Setup(config map[string]any) ([]Option, error) {
	return f(config)
}

var strategyRegistry = struct {
	mu sync.RWMutex
	m  map[string]Strategy
}{m: map[string]Strategy{}}

// RegisterStrategy makes a strategy available to Use under the given
// name. Registering an empty name or a name twice panics: strategies are
// declared once, at boot.
func RegisterStrategy(name string, s Strategy) {
	if name == "" {
		panic("action: strategy name cannot be empty")
	}
	if s == nil {
		panic("action: strategy cannot be nil")
	}
	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()
	if _, exists := strategyRegistry.m[name]; exists {
		panic(fmt.Sprintf("action: strategy %q already registered", name))
	}
	strategyRegistry.m[name] = s
}

// Use applies a registered strategy to the declaration. Unknown names and
// setup failures panic at declaration time.
//
//	action.New("ChargeCard", charge,
//	    action.Use("circuit_breaker", map[string]any{"failure_threshold": 3}),
//	)
func Use(name string, config map[string]any) Option {
	strategyRegistry.mu.RLock()
	s, ok := strategyRegistry.m[name]
	strategyRegistry.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("action: unknown strategy %q", name))
	}

	opts, err := s.Setup(config)
	if err != nil {
		panic(fmt.Sprintf("action: strategy %q setup failed: %v", name, err))
	}
	return func(a *Action) {
		for _, opt := range opts {
			opt(a)
		}
	}
}
