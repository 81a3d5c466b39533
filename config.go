package action

import (
	"log/slog"
	"sync"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// settings are the environment toggles read once per process:
//
//	ACTION_ENV                  environment name (default "development")
//	ACTION_RAISE_ON_EXCEPTIONS  opt-in fail-fast re-panic on exception
//	                            outcomes; ignored in production
type settings struct {
	Env               string `env:"ACTION_ENV" envDefault:"development"`
	RaiseOnExceptions bool   `env:"ACTION_RAISE_ON_EXCEPTIONS"`
}

// loadSettings is a var so tests can stub the environment.
var loadSettings = sync.OnceValue(parseSettings)

func parseSettings() settings {
	s := settings{Env: "development"}
	if err := env.Parse(&s); err != nil {
		report(nil, "parsing environment settings", err)
	}
	return s
}

// failFast reports whether exception outcomes should re-panic for
// developer ergonomics. Never true in production.
func failFast() bool {
	s := loadSettings()
	return s.RaiseOnExceptions && s.Env != "production"
}

// ExceptionContext is the payload handed to package-level exception hooks:
// filtered inbound and exposed data, optional background-retry metadata
// supplied by the host via WithRetryInfo, and a best-effort command string
// for re-running the invocation (omitted for unnamed actions).
type ExceptionContext struct {
	Action       string
	Input        map[string]any
	Exposed      map[string]any
	Retry        *RetryInfo
	RetryCommand string
}

// ExceptionHook observes exception outcomes across all actions. Hooks run
// after every action-level OnException callback for the same invocation.
type ExceptionHook func(err error, ec ExceptionContext)

// globalConfig holds process-wide defaults set via Configure.
type globalConfig struct {
	mu          sync.RWMutex
	onException []ExceptionHook
	logger      *slog.Logger
	tracer      trace.Tracer
	enqueuer    Enqueuer
}

var global globalConfig

// ConfigOption configures package-wide behavior.
type ConfigOption func(*globalConfig)

// Configure sets process-wide defaults. Call it once at boot, before
// dispatching actions.
//
//	action.Configure(
//	    action.WithExceptionHook(reportToSentry),
//	    action.WithDefaultLogger(logger),
//	)
func Configure(opts ...ConfigOption) {
	global.mu.Lock()
	defer global.mu.Unlock()
	for _, opt := range opts {
		opt(&global)
	}
}

// WithExceptionHook adds a package-level exception hook.
func WithExceptionHook(fn ExceptionHook) ConfigOption {
	return func(c *globalConfig) {
		c.onException = append(c.onException, fn)
	}
}

// WithDefaultLogger sets the logger used by actions without WithLogger.
func WithDefaultLogger(l *slog.Logger) ConfigOption {
	return func(c *globalConfig) {
		c.logger = l
	}
}

// WithDefaultTracer sets the tracer used by actions without WithTracer.
func WithDefaultTracer(t trace.Tracer) ConfigOption {
	return func(c *globalConfig) {
		c.tracer = t
	}
}

// WithDefaultEnqueuer sets the enqueuer used by actions without
// WithEnqueuer.
func WithDefaultEnqueuer(e Enqueuer) ConfigOption {
	return func(c *globalConfig) {
		c.enqueuer = e
	}
}

func configuredLogger() *slog.Logger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.logger
}

func configuredEnqueuer() Enqueuer {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.enqueuer
}

// trace returns the action's tracer, falling back to the configured
// default and then to the globally registered OpenTelemetry provider.
func (a *Action) trace() trace.Tracer {
	if a.tracer != nil {
		return a.tracer
	}
	global.mu.RLock()
	t := global.tracer
	global.mu.RUnlock()
	if t != nil {
		return t
	}
	return otel.Tracer("github.com/bjaus/action")
}

// fireGlobalExceptionHooks runs every configured hook, shielding the
// pipeline from hook panics.
func fireGlobalExceptionHooks(cause error, ec ExceptionContext) {
	global.mu.RLock()
	hooks := append([]ExceptionHook(nil), global.onException...)
	global.mu.RUnlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					report(nil, "executing global exception hook", &panicError{value: p}, "action", ec.Action)
				}
			}()
			hook(cause, ec)
		}()
	}
}
