// Package action provides a declarative convention for units of business
// logic: declared inbound and outbound field contracts, lifecycle hooks,
// conditional success/error messaging, error-to-handler matching, and an
// execution pipeline that always returns one sealed result.
//
// The package routes every invocation through the same ordered stages
// (tracing, logging, timing, panic recovery, inbound contract, hooks, the
// body, outbound contract) and classifies the terminal state into exactly
// one of three outcomes: success, failure (a deliberate business
// rejection), or exception (a bug or environmental error). Callers get a
// Result no matter what happened inside.
//
// # Quick Start
//
// Declare an action with its field contracts and a body:
//
//	greet := action.New("Greet",
//	    func(c *action.Context) error {
//	        name := action.Input[string](c, "name")
//	        return c.Expose("greeting", "Hello, "+name)
//	    },
//	    action.Expects("name", action.Type[string]()),
//	    action.Exposes("greeting", action.Type[string]()),
//	)
//
// Invoke it and inspect the sealed result:
//
//	res := greet.Call(ctx, action.Args{"name": "Doug"})
//	if res.OK() {
//	    greeting, _ := action.Value[string](res, "greeting")
//	}
//
// # Design Philosophy
//
// The package separates concerns into three layers:
//
//   - Contracts: Expects/Exposes declare what flows in and out, with
//     defaults, type constraints, preprocessing, and custom validation
//   - Pipeline: every invocation passes the same wrapping stages, so
//     observability and classification are uniform across the codebase
//   - Handlers: messages and callbacks registered per outcome channel,
//     matched per condition, declared next to the action they serve
//
// Declarations happen once, at program start; mistakes there (duplicate
// fields, contradictory options, unknown strategies) panic immediately
// rather than surfacing at dispatch time. After declaration an Action is
// immutable and safe for concurrent use.
//
// # Outcomes
//
// Every invocation seals exactly one outcome:
//
//   - success: the body completed (or ended early with Context.Done) and
//     the outbound contract was satisfied
//   - failure: the body deliberately rejected the invocation with
//     Context.Fail, or a nested action's failure propagated up
//   - exception: an unhandled error, contract violation, or panic
//
// Call never returns an error; CallStrict additionally returns a *Failure
// carrying the source Result, for callers that want error-style control
// flow and for nested-failure attribution.
//
// # Contracts
//
// Field declarations compose from options:
//
//	action.Expects("amount", action.Type[int](), action.Min(1)),
//	action.Expects("currency", action.Default("USD"), action.In("USD", "EUR")),
//	action.Expects("card_number", action.Sensitive()),
//	action.Expects("user_id", action.Model(findUser)),
//	action.Expects("email", action.On("profile")),
//	action.Exposes("receipt_id", action.UUID()),
//
// Inbound processing order per field: default, preprocess, built-in
// validators (presence, type, inclusion, numeric bounds, format), custom
// Validate, model hydration. All violations from one pass aggregate into a
// single *ContractError. Outbound validation runs after the body: a
// declared field that was never exposed (and has no default) fails the
// invocation, as does exposing an undeclared field.
//
// Model fields must be named with an "_id" suffix; the hydrated value is
// stored under the name with the suffix removed, so "user_id" yields
// c.Get("user"). Sub-fields declared with On look inside an already
// validated parent (maps by key, JSON values by gjson path, structs by
// field name) and are read back as c.Get("parent.child").
//
// # Messages and Callbacks
//
// Error and Success register message descriptors; On* register callbacks
// on four channels (success, error, failure, exception). Descriptors are
// consulted most-recently-declared first, so later declarations (and
// children created with Extend) override earlier ones. Conditions attach
// with If, Unless, MatchError, MatchErrorType, and From:
//
//	action.Error("could not charge card"),
//	action.Error("card declined", action.MatchError(ErrDeclined)),
//	action.Error(func(err error) string {
//	    return "invalid: " + err.Error()
//	}, action.MatchErrorType[*action.ContractError]()),
//	action.Success("charged", action.Prefix("billing: ")),
//	action.OnFailure(func(c *action.Context) { metrics.Incr("charge.rejected") }),
//
// For messages, the first matching descriptor that resolves to a
// non-blank string wins and its Prefix is applied. For callbacks, every
// matching descriptor fires; error callbacks fire before the more
// specific failure/exception ones, and the package-level exception hook
// (see Configure) fires after all action-level OnException callbacks. A
// broken matcher or callback never escapes to the caller: it is reported
// through the logger with a phase description and skipped.
//
// String conditions are compiled once as expressions over
// {name, input, exposed, error}:
//
//	action.Error("high-value charge failed", action.If(`input.amount > 1000`))
//
// # Nested Actions
//
// An action body may invoke another action with CallStrict and return its
// error. The *Failure carries the inner Result, so the outer action can
// attribute messages to the source:
//
//	action.Error(func(err error) string {
//	    return "billing rejected the charge"
//	}, action.From(chargeCard)),
//
// A nested failure stays a failure in the outer action; a nested
// exception stays an exception.
//
// # Background Execution
//
// Enqueue validates the args and hands them to an Enqueuer. The adapter
// owns retry, backoff, and dead-letter policy entirely; it can attach
// RetryInfo to the context it executes with so exception hooks see the
// attempt metadata. InProcess is the reference adapter for tests and
// fire-and-forget use.
//
// # Sensitive Data
//
// Fields declared Sensitive are replaced with "[FILTERED]" in every
// logging, inspection, and exception-context surface. The plain Result
// accessors used by application code are never redacted. The default
// logger additionally masks secret-shaped attribute keys.
//
// # Strategies
//
// RegisterStrategy names a reusable, parameterized bundle of declaration
// options; Use applies it. The built-in "circuit_breaker" strategy wraps
// the user phase in a circuit breaker and converts an open breaker into a
// deliberate failure.
//
// # Thread Safety
//
// Actions are immutable after New/Extend and safe for concurrent
// invocation. Each invocation owns its Context exclusively; Results are
// immutable. Configure and RegisterStrategy are for boot time.
package action
