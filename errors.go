package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure is the error returned by CallStrict when an invocation does not
// succeed. It carries the source Result so enclosing actions can attribute
// nested failures with From, and it unwraps to the underlying cause so
// errors.Is and errors.As keep working across action boundaries.
type Failure struct {
	// Result is the sealed result of the failed invocation.
	Result *Result
}

// Error returns the resolved error message of the source result, falling
// back to the underlying cause.
func (f *Failure) Error() string {
	if f.Result == nil {
		return "action failed"
	}
	if msg := f.Result.ErrorMessage(); msg != "" {
		return msg
	}
	if err := f.Result.Err(); err != nil {
		return err.Error()
	}
	return "action failed"
}

// Unwrap returns the underlying cause of the failed invocation.
func (f *Failure) Unwrap() error {
	if f.Result == nil {
		return nil
	}
	return f.Result.Err()
}

// asFailure extracts a nested-action Failure from an error chain.
func asFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ContractError reports every field contract violation found in a single
// validation pass, keyed by field name. It surfaces through the pipeline
// as an exception outcome like any other unhandled error.
type ContractError struct {
	// Action is the name of the action whose contract was violated.
	Action string

	// Violations maps field names to their violation messages.
	Violations map[string][]string
}

// Error joins all violations into one deterministic message.
func (e *ContractError) Error() string {
	names := make([]string, 0, len(e.Violations))
	for name := range e.Violations {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		for _, msg := range e.Violations[name] {
			parts = append(parts, name+" "+msg)
		}
	}

	label := e.Action
	if label == "" {
		label = "action"
	}
	return fmt.Sprintf("contract violation in %s: %s", label, strings.Join(parts, "; "))
}

// Of returns the violation messages recorded for a field.
func (e *ContractError) Of(field string) []string {
	return e.Violations[field]
}

// failSignal is the sentinel returned by Context.Fail. It unwinds to the
// pipeline, which classifies the invocation as a deliberate failure.
type failSignal struct {
	msg string
}

func (s *failSignal) Error() string {
	if s.msg == "" {
		return "action failed"
	}
	return s.msg
}

// doneSignal is the sentinel returned by Context.Done. It unwinds to the
// pipeline, which classifies the invocation as an early success.
type doneSignal struct {
	msg string
}

func (s *doneSignal) Error() string {
	if s.msg == "" {
		return "action done"
	}
	return s.msg
}

// panicError wraps a recovered panic value so it can travel the same
// classification path as any other unhandled error.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
