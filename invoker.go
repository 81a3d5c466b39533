package action

import (
	"fmt"
	"log/slog"
)

// payload is a handler body resolved at declaration time: either a literal
// string or a callable normalized to a canonical signature. Declared
// callables may accept the execution context and the triggering condition
// in any of the supported shapes; the richest matching shape wins once,
// here, instead of being re-inspected on every dispatch.
type payload struct {
	literal string
	static  bool

	msgFn func(c *Context, cond error) string
	cbFn  func(c *Context, cond error) error
}

// resolveMessagePayload normalizes a message handler. Supported shapes:
// string, func() string, func(error) string, func(*Context) string,
// func(*Context, error) string. Anything else is a declaration mistake.
func resolveMessagePayload(v any, what string) *payload {
	switch h := v.(type) {
	case string:
		return &payload{literal: h, static: true}
	case func() string:
		return &payload{msgFn: func(*Context, error) string { return h() }}
	case func(error) string:
		return &payload{msgFn: func(_ *Context, cond error) string { return h(cond) }}
	case func(*Context) string:
		return &payload{msgFn: func(c *Context, _ error) string { return h(c) }}
	case func(*Context, error) string:
		return &payload{msgFn: h}
	default:
		panic(fmt.Sprintf("action: unsupported %s %T (want string or a string-returning func)", what, v))
	}
}

// resolveCallbackPayload normalizes a callback handler. Supported shapes:
// func(), func(error), func(*Context), func(*Context, error), and the same
// four returning error. Anything else is a declaration mistake.
func resolveCallbackPayload(v any, what string) *payload {
	switch h := v.(type) {
	case func():
		return &payload{cbFn: func(*Context, error) error { h(); return nil }}
	case func(error):
		return &payload{cbFn: func(_ *Context, cond error) error { h(cond); return nil }}
	case func(*Context):
		return &payload{cbFn: func(c *Context, _ error) error { h(c); return nil }}
	case func(*Context, error):
		return &payload{cbFn: func(c *Context, cond error) error { h(c, cond); return nil }}
	case func() error:
		return &payload{cbFn: func(*Context, error) error { return h() }}
	case func(error) error:
		return &payload{cbFn: func(_ *Context, cond error) error { return h(cond) }}
	case func(*Context) error:
		return &payload{cbFn: func(c *Context, _ error) error { return h(c) }}
	case func(*Context, error) error:
		return &payload{cbFn: h}
	default:
		panic(fmt.Sprintf("action: unsupported %s %T (want a func accepting (*Context)(error))", what, v))
	}
}

// message resolves the payload to a string. Panics inside the handler are
// converted into errors for the caller to report.
func (p *payload) message(c *Context, cond error) (msg string, err error) {
	if p.static {
		return p.literal, nil
	}
	defer func() {
		if r := recover(); r != nil {
			msg = ""
			err = fmt.Errorf("message handler panicked: %v", r)
		}
	}()
	return p.msgFn(c, cond), nil
}

// invoke runs a callback payload. Panics inside the handler are converted
// into errors for the caller to report.
func (p *payload) invoke(c *Context, cond error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return p.cbFn(c, cond)
}

// report is the swallow-and-log helper for failures inside the dispatch
// machinery itself. The phase names what the system was doing when the
// secondary failure happened, so diagnostics never obscure the original
// condition being dispatched.
func report(l *slog.Logger, phase string, err error, attrs ...any) {
	if l == nil {
		l = defaultLogger()
	}
	args := make([]any, 0, len(attrs)+4)
	args = append(args, slog.String("phase", phase), slog.Any("error", err))
	args = append(args, attrs...)
	l.Warn("action internal error", args...)
}
