package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoEnqueuer is returned by Enqueue when neither the action nor the
// package configuration provides an enqueuer.
var ErrNoEnqueuer = errors.New("action: no enqueuer configured")

// Enqueuer hands an invocation off to a background execution mechanism.
// Retry, backoff, and dead-letter behavior belong entirely to the adapter;
// this package only validates the args up front and, at execution time,
// reads back any RetryInfo the adapter placed on the context.
type Enqueuer interface {
	Enqueue(ctx context.Context, a *Action, args Args) error
}

// EnqueuerFunc adapts a function to the Enqueuer interface.
type EnqueuerFunc func(ctx context.Context, a *Action, args Args) error

// Enqueue implements the Enqueuer interface.
func (f EnqueuerFunc) Enqueue(ctx context.Context, a *Action, args Args) error {
	return f(ctx, a, args)
}

// Enqueue validates args against the inbound contract and hands the
// original args to the configured enqueuer. The synchronous Call path is
// never altered by adapter presence. A *ContractError is returned without
// enqueueing when the args do not satisfy the contract.
func (a *Action) Enqueue(ctx context.Context, args Args) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := newContext(ctx, a)
	if err := validateInbound(c, a, args); err != nil {
		return err
	}

	e := a.enqueuer
	if e == nil {
		e = configuredEnqueuer()
	}
	if e == nil {
		return ErrNoEnqueuer
	}
	return e.Enqueue(ctx, a, args)
}

// RetryInfo is background-retry metadata a job adapter can attach to the
// invocation context so exception hooks can inspect it.
type RetryInfo struct {
	Attempt     int
	MaxAttempts int
	JobID       string
}

type retryInfoKey struct{}

// WithRetryInfo returns a context carrying retry metadata for the
// invocation it is passed to.
func WithRetryInfo(ctx context.Context, info RetryInfo) context.Context {
	return context.WithValue(ctx, retryInfoKey{}, info)
}

// RetryInfoFrom extracts retry metadata placed on the context by a job
// adapter.
func RetryInfoFrom(ctx context.Context) (RetryInfo, bool) {
	info, ok := ctx.Value(retryInfoKey{}).(RetryInfo)
	return info, ok
}

// InProcess is the reference Enqueuer: it runs each enqueued invocation on
// its own goroutine, detached from the caller's cancellation. Real
// deployments wire a durable job system instead; InProcess exists for
// tests and fire-and-forget use.
type InProcess struct {
	wg sync.WaitGroup
}

// Enqueue runs the action on a new goroutine. The returned error is
// always nil; the invocation's own Result is observable only through its
// callbacks and hooks.
func (e *InProcess) Enqueue(ctx context.Context, a *Action, args Args) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		a.Call(context.WithoutCancel(ctx), args)
	}()
	return nil
}

// Wait blocks until every enqueued invocation has finished.
func (e *InProcess) Wait() {
	e.wg.Wait()
}

// retryCommand renders a best-effort call expression reconstructing the
// invocation from its inputs, for inclusion in exception context.
func retryCommand(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q: %#v", k, args[k]))
	}
	return fmt.Sprintf("%s.Call(ctx, action.Args{%s})", name, strings.Join(parts, ", "))
}
