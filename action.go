package action

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Args holds keyword inputs for an action invocation, keyed by declared
// field name.
type Args map[string]any

// Body is the user-supplied work of an action. It receives the execution
// context, reads validated inputs with Get, publishes outputs with Expose,
// and may end early with Fail or Done. A nil Body is allowed for actions
// that only compose hooks and declarations.
type Body func(c *Context) error

// HookFunc runs before or after the action body. Returning an error (or a
// Fail/Done signal) short-circuits the invocation the same way the body can.
type HookFunc func(c *Context) error

// AroundFunc wraps the before-hooks/body/after-hooks phase. It must call
// next exactly once to run the inner phase, and may act on its error.
//
// Example:
//
//	action.Around(func(c *action.Context, next func() error) error {
//	    release := acquire()
//	    defer release()
//	    return next()
//	})
type AroundFunc func(c *Context, next func() error) error

// RollbackFunc runs after an invocation is classified as a failure.
type RollbackFunc func(c *Context)

// Action is one declared unit of business logic: a name, inbound and
// outbound field contracts, lifecycle hooks, and handler registrations.
//
// Usage:
//  1. Declare the action with New (or derive one with Extend)
//  2. Invoke it with Call, CallStrict, or Enqueue
//
// An Action is immutable after New returns and safe for concurrent use:
// every invocation owns a private Context, and the handler registry is
// never mutated after declaration.
type Action struct {
	name     string
	body     Body
	inbound  []*fieldSpec
	outbound []*fieldSpec

	registry *registry

	before   []HookFunc
	after    []HookFunc
	around   []AroundFunc
	rollback RollbackFunc

	logger   *slog.Logger
	tracer   trace.Tracer
	enqueuer Enqueuer
}

// Option configures an Action at declaration time.
type Option func(*Action)

// New declares an action. The name identifies the action in logs, traces,
// and nested-failure attribution; body is the unit of work (may be nil).
//
// Declaration mistakes (duplicate or reserved field names, sub-fields
// naming an undeclared parent, From combined with If/Unless, unknown
// strategies, unsupported handler shapes) panic
// immediately: declarations happen once at program start, and a definition
// that cannot be built should never dispatch.
//
// Example:
//
//	greet := action.New("Greet",
//	    func(c *action.Context) error {
//	        return c.Expose("greeting", "Hello, "+c.Get("name").(string))
//	    },
//	    action.Expects("name", action.Type[string]()),
//	    action.Exposes("greeting", action.Type[string]()),
//	)
//
//	res := greet.Call(ctx, action.Args{"name": "Doug"})
func New(name string, body Body, opts ...Option) *Action {
	a := &Action{
		name:     name,
		body:     body,
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	checkSubFieldParents(a)
	return a
}

// Extend derives a new action from a. The child starts with a copy of the
// parent's field specs, hooks, and handler registry; the parent is never
// affected. Handler registrations added by opts are consulted before the
// inherited ones, so children override parents without mutation.
func (a *Action) Extend(name string, body Body, opts ...Option) *Action {
	child := &Action{
		name:     name,
		body:     body,
		inbound:  append([]*fieldSpec(nil), a.inbound...),
		outbound: append([]*fieldSpec(nil), a.outbound...),
		registry: a.registry,
		before:   append([]HookFunc(nil), a.before...),
		after:    append([]HookFunc(nil), a.after...),
		around:   append([]AroundFunc(nil), a.around...),
		rollback: a.rollback,
		logger:   a.logger,
		tracer:   a.tracer,
		enqueuer: a.enqueuer,
	}
	if body == nil {
		child.body = a.body
	}
	for _, opt := range opts {
		opt(child)
	}
	checkSubFieldParents(child)
	return child
}

// Name returns the declared action name. Anonymous actions (declared with
// an empty name) are valid but are omitted from retry-command rendering.
func (a *Action) Name() string { return a.name }

// Call runs the action and always returns a sealed Result. It never
// returns an error and never panics for business-shaped failures: explicit
// Fail, contract violations, and panics inside the body all surface as a
// non-ok Result with a classified outcome.
func (a *Action) Call(ctx context.Context, args Args) *Result {
	return a.run(ctx, args)
}

// CallStrict runs the action and additionally returns a non-nil error when
// the Result is not ok. The error is always a *Failure carrying the source
// Result, so an enclosing action can attribute the failure with From and
// errors.Is/As still reach the underlying cause.
func (a *Action) CallStrict(ctx context.Context, args Args) (*Result, error) {
	r := a.run(ctx, args)
	if r.OK() {
		return r, nil
	}
	return r, &Failure{Result: r}
}

// Before adds a hook that runs after inbound validation and before the
// body. Multiple hooks run in declaration order.
func Before(fn HookFunc) Option {
	return func(a *Action) {
		a.before = append(a.before, fn)
	}
}

// After adds a hook that runs after the body completes without error.
// Multiple hooks run in declaration order.
func After(fn HookFunc) Option {
	return func(a *Action) {
		a.after = append(a.after, fn)
	}
}

// Around wraps the before/body/after phase. The first Around declared is
// outermost. Contract validation and outcome classification happen outside
// every Around.
func Around(fn AroundFunc) Option {
	return func(a *Action) {
		a.around = append(a.around, fn)
	}
}

// Rollback sets a function invoked when the invocation is classified as a
// failure. There is no transactional machinery behind it: if defined it is
// called, nothing else.
func Rollback(fn RollbackFunc) Option {
	return func(a *Action) {
		a.rollback = fn
	}
}

// WithLogger overrides the package default logger for this action.
func WithLogger(l *slog.Logger) Option {
	return func(a *Action) {
		a.logger = l
	}
}

// WithTracer overrides the package default tracer for this action.
func WithTracer(t trace.Tracer) Option {
	return func(a *Action) {
		a.tracer = t
	}
}

// WithEnqueuer overrides the package default enqueuer for this action.
func WithEnqueuer(e Enqueuer) Option {
	return func(a *Action) {
		a.enqueuer = e
	}
}

// log returns the action's logger, falling back to the package default.
func (a *Action) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return defaultLogger()
}
