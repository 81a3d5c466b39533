package action

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// run is the execution pipeline. Every invocation passes through the same
// ordered stages: tracing, logging, timing, panic recovery and outcome
// classification, inbound contract, before hooks, the around-wrapped body,
// after hooks, outbound contract, then callback dispatch and message
// resolution. Whatever happens inside, exactly one sealed Result comes out.
func (a *Action) run(ctx context.Context, args Args) *Result {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := a.trace().Start(ctx, a.spanName())
	defer span.End()

	log := a.log()
	log.Debug("action started", "action", a.name)

	c := newContext(ctx, a)
	start := time.Now()
	err := a.execute(c, args)
	elapsed := time.Since(start)

	outcome, cause, explicitMsg := classify(err)

	a.dispatch(c, outcome, cause, args)

	r := a.seal(c, outcome, cause, explicitMsg)

	span.SetAttributes(
		attribute.String("action.name", a.name),
		attribute.String("action.outcome", string(outcome)),
	)
	switch outcome {
	case OutcomeSuccess:
		log.Info("action completed", "action", a.name, "outcome", outcome, "duration", elapsed)
	case OutcomeFailure:
		log.Warn("action failed", "action", a.name, "outcome", outcome, "duration", elapsed, "error", r.ErrorMessage())
	case OutcomeException:
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
		log.Error("action raised", "action", a.name, "outcome", outcome, "duration", elapsed, "error", cause)
		if failFast() {
			panic(cause)
		}
	}

	return r
}

// execute runs the contract and user phases. Panics anywhere inside are
// converted to an error so they ride the same classification path.
func (a *Action) execute(c *Context, args Args) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()

	if verr := validateInbound(c, a, args); verr != nil {
		return verr
	}

	phase := func() error {
		for _, h := range a.before {
			if err := h(c); err != nil {
				return err
			}
		}
		if a.body != nil {
			if err := a.body(c); err != nil {
				return err
			}
		}
		for _, h := range a.after {
			if err := h(c); err != nil {
				return err
			}
		}
		return nil
	}
	// First declared Around is outermost.
	for i := len(a.around) - 1; i >= 0; i-- {
		inner, wrap := phase, a.around[i]
		phase = func() error { return wrap(c, inner) }
	}

	err = phase()

	var done *doneSignal
	if errors.As(err, &done) {
		// Early success still honors the outbound contract.
		if verr := validateOutbound(c, a); verr != nil {
			return verr
		}
		return err
	}
	if err != nil {
		return err
	}
	return validateOutbound(c, a)
}

// classify maps the terminal error of execute onto the sealed outcome.
// Local signals are checked before nested failures: a Fail in this action
// wins over whatever a nested call returned earlier. A nested *Failure
// propagates its own classification (failure stays failure, an inner
// exception is this action's exception too); everything else is an
// exception.
func classify(err error) (Outcome, error, string) {
	if err == nil {
		return OutcomeSuccess, nil, ""
	}

	var done *doneSignal
	if errors.As(err, &done) {
		return OutcomeSuccess, nil, done.msg
	}

	// Nested failures are checked before local signals: a *Failure unwraps
	// to the inner action's own signal, which must not read as this
	// action's Fail.
	if f, ok := asFailure(err); ok && f.Result != nil {
		if f.Result.Outcome() == OutcomeFailure {
			return OutcomeFailure, err, ""
		}
		return OutcomeException, err, ""
	}

	var fail *failSignal
	if errors.As(err, &fail) {
		return OutcomeFailure, err, fail.msg
	}

	return OutcomeException, err, ""
}

// dispatch fires the callback channels for the outcome. Error callbacks
// fire before the more specific failure/exception callbacks; within one
// channel, most recently declared fires first; every matching callback
// fires. The package-level exception hook runs strictly after all
// action-level OnException callbacks.
func (a *Action) dispatch(c *Context, outcome Outcome, cause error, args Args) {
	switch outcome {
	case OutcomeSuccess:
		a.fire(c, chanSuccess, nil, "executing OnSuccess callback")
	case OutcomeFailure:
		a.fire(c, chanError, cause, "executing OnError callback")
		a.fire(c, chanFailure, cause, "executing OnFailure callback")
		if a.rollback != nil {
			safeRollback(a, c)
		}
	case OutcomeException:
		a.fire(c, chanError, cause, "executing OnError callback")
		a.fire(c, chanException, cause, "executing OnException callback")
		fireGlobalExceptionHooks(cause, a.exceptionContext(c, args))
	}
}

func (a *Action) fire(c *Context, ch channel, cond error, phase string) {
	for _, d := range a.registry.handlers(ch) {
		if !d.applies(c, cond) {
			continue
		}
		if err := d.body.invoke(c, cond); err != nil {
			report(c.logger(), phase, err, "action", a.name)
		}
	}
}

func safeRollback(a *Action, c *Context) {
	defer func() {
		if p := recover(); p != nil {
			report(c.logger(), "executing rollback", &panicError{value: p}, "action", a.name)
		}
	}()
	a.rollback(c)
}

// seal assembles the one and only Result of the invocation.
func (a *Action) seal(c *Context, outcome Outcome, cause error, explicitMsg string) *Result {
	r := &Result{
		source:    a.name,
		outcome:   outcome,
		err:       cause,
		exposed:   make(map[string]any, len(c.exposed)),
		declared:  make(map[string]bool, len(a.outbound)),
		sensitive: sensitiveSet(a.outbound),
	}
	for name, value := range c.exposed {
		r.exposed[name] = value
	}
	for _, spec := range a.outbound {
		r.declared[spec.name] = true
	}

	switch outcome {
	case OutcomeSuccess:
		if explicitMsg != "" {
			r.okMsg = explicitMsg
		} else {
			r.okMsg = resolveMessage(a, c, chanSuccessMessage, nil, defaultSuccessMessage)
		}
	default:
		if explicitMsg != "" {
			r.errMsg = explicitMsg
		} else {
			r.errMsg = resolveMessage(a, c, chanErrorMessage, cause, errorFallback(cause))
		}
	}
	return r
}

// errorFallback picks the static fallback for an unmatched error message.
// Contract violations render their own structured text (generated here,
// safe to show); a nested failure carries the inner action's resolved
// message; anything else gets the generic default, since raw error text
// is never assumed display-safe.
func errorFallback(cause error) string {
	var ce *ContractError
	if errors.As(cause, &ce) {
		return ce.Error()
	}
	if f, ok := asFailure(cause); ok && f.Result != nil {
		if msg := f.Result.ErrorMessage(); msg != "" {
			return msg
		}
	}
	return defaultErrorMessage
}

// exceptionContext builds the payload handed to the package-level
// exception hook: redacted inbound and exposed data, retry metadata from
// the invocation context, and a best-effort retry command (omitted for
// unnamed actions).
func (a *Action) exceptionContext(c *Context, args Args) ExceptionContext {
	ec := ExceptionContext{
		Action:  a.name,
		Input:   redact(c.input, sensitiveSet(a.inbound)),
		Exposed: redact(c.exposed, sensitiveSet(a.outbound)),
	}
	if info, ok := RetryInfoFrom(c.Context()); ok {
		ec.Retry = &info
	}
	if a.name != "" {
		ec.RetryCommand = retryCommand(a.name, redact(args, sensitiveSet(a.inbound)))
	}
	return ec
}

func sensitiveSet(specs []*fieldSpec) map[string]bool {
	out := map[string]bool{}
	for _, spec := range specs {
		if spec.sensitive {
			out[spec.key()] = true
			if spec.finder != nil {
				out[spec.hydratedName()] = true
			}
		}
	}
	// Sub-fields extracted from a sensitive parent are just as sensitive.
	for _, spec := range specs {
		if spec.parent != "" && out[spec.parent] {
			out[spec.key()] = true
		}
	}
	return out
}

func (a *Action) spanName() string {
	if a.name == "" {
		return "action"
	}
	return "action " + a.name
}
