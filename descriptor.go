package action

import "fmt"

// descriptor pairs a matcher with a handler payload plus auxiliary data
// (message prefix, nested-source filter). Descriptors are immutable and
// owned by the registry; one is built per Error/Success/On* declaration.
type descriptor struct {
	match   *matcher // nil matches every condition
	body    *payload
	prefix  *payload // messages only
	sources []string // nested-source filter; empty means unfiltered
}

// applies reports whether the descriptor should handle the condition.
func (d *descriptor) applies(c *Context, cond error) bool {
	if len(d.sources) > 0 && !matchesSource(cond, d.sources) {
		return false
	}
	if d.match == nil {
		return true
	}
	return d.match.matches(c, cond)
}

// matchesSource reports whether cond is a nested action failure whose
// source action is one of the declared names.
func matchesSource(cond error, sources []string) bool {
	f, ok := asFailure(cond)
	if !ok || f.Result == nil {
		return false
	}
	name := f.Result.Source()
	if name == "" {
		return false
	}
	for _, s := range sources {
		if s == name {
			return true
		}
	}
	return false
}

// declaration accumulates the keyword arguments of one handler
// registration before it is sealed into a descriptor.
type declaration struct {
	what    string
	rules   []rule
	invert  bool
	sources []string
	prefix  *payload
}

// HandlerOption configures a single Error/Success/On* declaration.
type HandlerOption func(*declaration)

// From filters a descriptor to failures raised by specific nested actions
// invoked with CallStrict. Sources may be *Action values or action names.
// From cannot be combined with If or Unless on the same declaration, and
// is meaningless for success handling.
//
//	action.Error(func(err error) string {
//	    return "billing rejected: " + err.Error()
//	}, action.From(chargeCard))
func From(sources ...any) HandlerOption {
	if len(sources) == 0 {
		panic("action: From requires at least one source")
	}
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		switch src := s.(type) {
		case *Action:
			if src.name == "" {
				panic("action: From cannot reference an unnamed action")
			}
			names = append(names, src.name)
		case string:
			if src == "" {
				panic("action: From requires non-empty source names")
			}
			names = append(names, src)
		default:
			panic(fmt.Sprintf("action: unsupported From source %T (want *Action or string)", s))
		}
	}
	return func(d *declaration) {
		d.sources = append(d.sources, names...)
	}
}

// Prefix prepends text to a resolved message. Accepts the same shapes as a
// message handler (string or string-returning func). The prefix is applied
// only when the resolved message is non-blank.
func Prefix(v any) HandlerOption {
	p := resolveMessagePayload(v, "prefix")
	return func(d *declaration) {
		d.prefix = p
	}
}

// seal validates the combined options and produces the final descriptor.
func (d *declaration) seal(body *payload) *descriptor {
	if len(d.sources) > 0 && (len(d.rules) > 0 || d.invert) {
		panic(fmt.Sprintf("action: %s cannot combine From with If/Unless", d.what))
	}
	desc := &descriptor{
		body:    body,
		prefix:  d.prefix,
		sources: d.sources,
	}
	if len(d.rules) > 0 || d.invert {
		desc.match = &matcher{rules: d.rules, invert: d.invert}
	}
	return desc
}

func buildDeclaration(what string, opts []HandlerOption) *declaration {
	d := &declaration{what: what}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Error registers a message descriptor consulted when an invocation does
// not succeed. Descriptors are consulted most-recently-declared first; the
// first one that matches and resolves to a non-blank message wins.
//
//	action.Error("could not save"),
//	action.Error("card declined", action.MatchError(ErrDeclined)),
func Error(v any, opts ...HandlerOption) Option {
	d := buildDeclaration("Error", opts)
	desc := d.seal(resolveMessagePayload(v, "error message"))
	return func(a *Action) {
		a.registry = a.registry.register(chanErrorMessage, desc)
	}
}

// Success registers a message descriptor consulted when an invocation
// succeeds. From is not supported: success is never attributed to a nested
// failure source.
func Success(v any, opts ...HandlerOption) Option {
	d := buildDeclaration("Success", opts)
	if len(d.sources) > 0 {
		panic("action: Success does not support From")
	}
	desc := d.seal(resolveMessagePayload(v, "success message"))
	return func(a *Action) {
		a.registry = a.registry.register(chanSuccessMessage, desc)
	}
}

// OnSuccess registers a callback fired after a successful invocation.
// Every matching callback fires, most recently declared first. A callback
// error never alters the outcome; it is reported and swallowed.
func OnSuccess(fn any, opts ...HandlerOption) Option {
	return registerCallback(chanSuccess, "OnSuccess", fn, opts)
}

// OnError registers a callback fired for any non-success (deliberate
// failure or exception). Error callbacks fire before the more specific
// OnFailure/OnException callbacks.
func OnError(fn any, opts ...HandlerOption) Option {
	return registerCallback(chanError, "OnError", fn, opts)
}

// OnFailure registers a callback fired only for deliberate failures
// (Fail or a nested action's failure), never for exceptions.
func OnFailure(fn any, opts ...HandlerOption) Option {
	return registerCallback(chanFailure, "OnFailure", fn, opts)
}

// OnException registers a callback fired only for unhandled errors,
// contract violations, and panics, never for deliberate failures. The
// package-level exception hook (see Configure) fires after all matching
// OnException callbacks.
func OnException(fn any, opts ...HandlerOption) Option {
	return registerCallback(chanException, "OnException", fn, opts)
}

func registerCallback(ch channel, what string, fn any, opts []HandlerOption) Option {
	d := buildDeclaration(what, opts)
	if d.prefix != nil {
		panic(fmt.Sprintf("action: %s does not support Prefix", what))
	}
	desc := d.seal(resolveCallbackPayload(fn, what+" callback"))
	return func(a *Action) {
		a.registry = a.registry.register(ch, desc)
	}
}
