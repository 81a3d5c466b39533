package action

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Outcome is the sealed classification of one invocation. Exactly one of
// the three states holds; an invocation is never both a failure and an
// exception.
type Outcome string

const (
	// OutcomeSuccess means the body completed (or ended early with Done)
	// and the outbound contract was satisfied.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the invocation was deliberately rejected via
	// Fail or a nested action's failure. Business rule, not a bug.
	OutcomeFailure Outcome = "failure"

	// OutcomeException means an unhandled error, contract violation, or
	// panic ended the invocation.
	OutcomeException Outcome = "exception"
)

// String returns the outcome name.
func (o Outcome) String() string { return string(o) }

// Result is the sealed value returned by every invocation. It is
// assembled exactly once, from exactly one terminal state, and is
// immutable afterward; the caller owns it.
type Result struct {
	source    string
	outcome   Outcome
	err       error
	errMsg    string
	okMsg     string
	exposed   map[string]any
	declared  map[string]bool
	sensitive map[string]bool
}

// OK reports whether the outcome is success.
func (r *Result) OK() bool { return r.outcome == OutcomeSuccess }

// Outcome returns the sealed classification.
func (r *Result) Outcome() Outcome { return r.outcome }

// Err returns the underlying error for failure and exception outcomes:
// the Fail signal, the nested *Failure, the *ContractError, or the raw
// error/panic. Nil on success.
func (r *Result) Err() error { return r.err }

// ErrorMessage returns the resolved, display-safe error message. Empty on
// success.
func (r *Result) ErrorMessage() string { return r.errMsg }

// SuccessMessage returns the resolved success message. Empty unless the
// outcome is success.
func (r *Result) SuccessMessage() string { return r.okMsg }

// Source returns the name of the action that produced this result, used
// for nested-failure attribution via From.
func (r *Result) Source() string { return r.source }

// Get returns the value of a declared exposed field. Accessing a field
// outside the outbound contract is an error, not a nil.
func (r *Result) Get(name string) (any, error) {
	if !r.declared[name] {
		return nil, fmt.Errorf("action: %q is not a declared exposed field of %s", name, r.source)
	}
	return r.exposed[name], nil
}

// Value returns a declared exposed field as T.
func Value[T any](r *Result, name string) (T, error) {
	var zero T
	v, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("action: field %q is %T, not %T", name, v, zero)
	}
	return t, nil
}

// redactedExposed returns the exposed data with sensitive fields replaced
// by the redaction marker. Used by every logging/inspection surface; the
// plain accessors are never redacted.
func (r *Result) redactedExposed() map[string]any {
	return redact(r.exposed, r.sensitive)
}

// String renders the result with sensitive fields redacted.
func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "action.Result{%s outcome=%s", r.source, r.outcome)
	if r.errMsg != "" {
		fmt.Fprintf(&b, " error=%q", r.errMsg)
	}
	exposed := r.redactedExposed()
	names := make([]string, 0, len(exposed))
	for name := range exposed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, exposed[name])
	}
	b.WriteString("}")
	return b.String()
}

// LogValue implements slog.LogValuer with sensitive fields redacted.
func (r *Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("action", r.source),
		slog.String("outcome", string(r.outcome)),
	}
	if r.errMsg != "" {
		attrs = append(attrs, slog.String("error", r.errMsg))
	}
	if len(r.exposed) > 0 {
		attrs = append(attrs, slog.Any("exposed", r.redactedExposed()))
	}
	return slog.GroupValue(attrs...)
}

// redactionMarker replaces sensitive values in logs and exception context.
const redactionMarker = "[FILTERED]"

func redact(data map[string]any, sensitive map[string]bool) map[string]any {
	out := make(map[string]any, len(data))
	for name, value := range data {
		if sensitive[name] {
			out[name] = redactionMarker
			continue
		}
		out[name] = value
	}
	return out
}
