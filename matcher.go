package action

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// rule is a single normalized predicate evaluated against the triggering
// condition and the execution context. All declared rule shapes (predicate
// funcs, sentinel errors, error types, expression strings) are resolved
// into this form once, at declaration time.
type rule struct {
	desc string
	eval func(c *Context, cond error) (bool, error)
}

// matcher conjoins the rules of one descriptor. invert flips the final
// boolean of the whole conjunction, not individual rules; a descriptor
// mixing If and Unless inverts everything together. That mirrors the
// documented behavior this package preserves.
type matcher struct {
	rules  []rule
	invert bool
}

// matches reports whether every rule holds (inverted when invert is set).
// A rule that fails to evaluate disables the descriptor outright: the
// failure is reported and the descriptor does not apply, regardless of
// inversion, so broken diagnostics never change how a condition routes.
func (m *matcher) matches(c *Context, cond error) bool {
	ok := true
	for _, r := range m.rules {
		v, err := r.eval(c, cond)
		if err != nil {
			report(c.logger(), "determining if handler applies", err, "rule", r.desc, "action", c.Name())
			return false
		}
		if !v {
			ok = false
			break
		}
	}
	if m.invert {
		ok = !ok
	}
	return ok
}

// MatchError returns a handler condition that applies when the triggering
// error is (per errors.Is) the given sentinel.
//
//	action.OnException(notify, action.MatchError(context.DeadlineExceeded))
func MatchError(target error) HandlerOption {
	if target == nil {
		panic("action: MatchError requires a non-nil target")
	}
	r := rule{
		desc: fmt.Sprintf("errors.Is(%v)", target),
		eval: func(_ *Context, cond error) (bool, error) {
			return cond != nil && errors.Is(cond, target), nil
		},
	}
	return func(d *declaration) {
		d.rules = append(d.rules, r)
	}
}

// MatchErrorType returns a handler condition that applies when the
// triggering error is (per errors.As) of type T.
//
//	action.Error("bad input", action.MatchErrorType[*action.ContractError]())
func MatchErrorType[T error]() HandlerOption {
	r := rule{
		desc: fmt.Sprintf("errors.As(%T)", *new(T)),
		eval: func(_ *Context, cond error) (bool, error) {
			if cond == nil {
				return false, nil
			}
			var target T
			return errors.As(cond, &target), nil
		},
	}
	return func(d *declaration) {
		d.rules = append(d.rules, r)
	}
}

// If adds a condition that must hold for the handler to apply. Supported
// shapes, resolved at declaration time:
//
//   - func() bool
//   - func(error) bool
//   - func(*Context) bool
//   - func(*Context, error) bool
//   - string: an expression compiled with expr-lang, evaluated against
//     {name, input, exposed, error}
//
// Multiple conditions on one declaration are conjoined. Any other shape
// panics at declaration time.
func If(v any) HandlerOption {
	r := resolveRule(v)
	return func(d *declaration) {
		d.rules = append(d.rules, r)
	}
}

// Unless adds a condition like If but inverts the descriptor's entire
// conjunction. The inversion applies to all of the declaration's rules
// together, never per rule.
func Unless(v any) HandlerOption {
	r := resolveRule(v)
	return func(d *declaration) {
		d.rules = append(d.rules, r)
		d.invert = true
	}
}

// resolveRule normalizes one declared condition into a rule.
func resolveRule(v any) rule {
	switch fn := v.(type) {
	case func() bool:
		return rule{desc: "func() bool", eval: func(*Context, error) (bool, error) {
			return safeBool(func() bool { return fn() })
		}}
	case func(error) bool:
		return rule{desc: "func(error) bool", eval: func(_ *Context, cond error) (bool, error) {
			return safeBool(func() bool { return fn(cond) })
		}}
	case func(*Context) bool:
		return rule{desc: "func(*Context) bool", eval: func(c *Context, _ error) (bool, error) {
			return safeBool(func() bool { return fn(c) })
		}}
	case func(*Context, error) bool:
		return rule{desc: "func(*Context, error) bool", eval: func(c *Context, cond error) (bool, error) {
			return safeBool(func() bool { return fn(c, cond) })
		}}
	case string:
		return exprRule(fn)
	default:
		panic(fmt.Sprintf("action: unsupported condition %T (want a bool predicate or an expression string)", v))
	}
}

// exprRule compiles a string condition into an expression program. The
// compile happens once, at declaration time; a program that does not
// compile is a declaration mistake and panics.
func exprRule(code string) rule {
	prog, err := expr.Compile(code,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		panic(fmt.Sprintf("action: invalid condition expression %q: %v", code, err))
	}
	return rule{
		desc: "expr " + code,
		eval: func(c *Context, cond error) (bool, error) {
			return runExpr(prog, c, cond)
		},
	}
}

func runExpr(prog *vm.Program, c *Context, cond error) (bool, error) {
	env := map[string]any{
		"name":    c.Name(),
		"input":   c.inputView(),
		"exposed": c.exposedView(),
		"error":   "",
	}
	if cond != nil {
		env["error"] = cond.Error()
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return b, nil
}

// safeBool runs a predicate, converting panics into evaluation errors so
// they can be swallowed and reported instead of escaping to the caller.
func safeBool(fn func() bool) (v bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = false
			err = fmt.Errorf("condition panicked: %v", p)
		}
	}()
	return fn(), nil
}
