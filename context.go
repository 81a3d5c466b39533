package action

import (
	"context"
	"fmt"
	"log/slog"
)

// Context is the per-invocation execution context: validated inbound data,
// values exposed so far, and the control-flow signals available to the
// body and hooks. A Context is owned exclusively by one invocation and
// must not be retained after the Result is produced.
type Context struct {
	ctx    context.Context
	action *Action

	input   map[string]any
	exposed map[string]any

	// undeclared records attempts to expose fields outside the outbound
	// contract; they surface as contract violations at outbound validation.
	undeclared map[string][]string
}

func newContext(ctx context.Context, a *Action) *Context {
	return &Context{
		ctx:        ctx,
		action:     a,
		input:      map[string]any{},
		exposed:    map[string]any{},
		undeclared: map[string][]string{},
	}
}

// Context returns the context.Context of the invocation, for passing to
// nested actions and blocking calls.
func (c *Context) Context() context.Context { return c.ctx }

// Name returns the name of the executing action.
func (c *Context) Name() string { return c.action.name }

// Get returns the validated value of an inbound field (including hydrated
// models and sub-fields, keyed "parent.child"). Undeclared names return
// nil.
func (c *Context) Get(name string) any { return c.input[name] }

// Has reports whether name was populated during inbound validation.
func (c *Context) Has(name string) bool {
	_, ok := c.input[name]
	return ok
}

// Input returns the validated value of an inbound field as T. It panics
// when the field is absent or of a different type; use it for fields the
// contract already guarantees.
func Input[T any](c *Context, name string) T {
	v, ok := c.input[name]
	if !ok {
		panic(fmt.Sprintf("action: input field %q was not populated", name))
	}
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("action: input field %q is %T, not %T", name, v, *new(T)))
	}
	return t
}

// Expose publishes a declared outbound field. Exposing an undeclared
// field returns an error and records a contract violation that will fail
// the invocation at outbound validation even if the error is ignored.
func (c *Context) Expose(name string, value any) error {
	if !c.action.declaresOutbound(name) {
		c.undeclared[name] = append(c.undeclared[name], "is not a declared exposed field")
		return fmt.Errorf("action: %q is not a declared exposed field of %s", name, c.action.name)
	}
	c.exposed[name] = value
	return nil
}

// Exposed returns the value of an outbound field exposed so far, or nil.
// Useful in After hooks and callbacks that act on the action's outputs.
func (c *Context) Exposed(name string) any { return c.exposed[name] }

// Fail ends the invocation as a deliberate failure. The optional message
// takes precedence over Error declarations; exposures are applied before
// unwinding. Return the result directly from the body or hook:
//
//	if balance < amount {
//	    return c.Fail("insufficient funds", action.Args{"missing": amount - balance})
//	}
func (c *Context) Fail(msg string, exposures ...Args) error {
	c.applyExposures(exposures)
	return &failSignal{msg: msg}
}

// Done ends the invocation early as a success. The optional message takes
// precedence over Success declarations. Outbound validation still runs
// against whatever was exposed, so required outputs must be exposed (or
// defaulted) before calling Done.
func (c *Context) Done(msg string, exposures ...Args) error {
	c.applyExposures(exposures)
	return &doneSignal{msg: msg}
}

func (c *Context) applyExposures(exposures []Args) {
	for _, args := range exposures {
		for name, value := range args {
			if err := c.Expose(name, value); err != nil {
				report(c.logger(), "applying signal exposures", err, "action", c.Name())
			}
		}
	}
}

func (c *Context) logger() *slog.Logger { return c.action.log() }

// inputView returns the inbound data for expression environments.
func (c *Context) inputView() map[string]any { return c.input }

// exposedView returns the exposed-so-far data for expression environments.
func (c *Context) exposedView() map[string]any { return c.exposed }

// declaresOutbound reports whether name is part of the outbound contract.
func (a *Action) declaresOutbound(name string) bool {
	for _, spec := range a.outbound {
		if spec.name == name {
			return true
		}
	}
	return false
}
