package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quiet declares an action with logging discarded, for tests.
func quiet(name string, body Body, opts ...Option) *Action {
	return New(name, body, append(opts, WithLogger(discardLogger()))...)
}

func TestContract_Inbound(t *testing.T) {
	t.Run("applies defaults for omitted fields", func(t *testing.T) {
		var got string
		a := quiet("Defaults", func(c *Context) error {
			got = Input[string](c, "currency")
			return nil
		},
			Expects("currency", Type[string](), Default("USD")),
		)

		res := a.Call(context.Background(), Args{})
		require.True(t, res.OK())
		assert.Equal(t, "USD", got)
	})

	t.Run("computes func defaults per invocation", func(t *testing.T) {
		n := 0
		var got []int
		a := quiet("LazyDefault", func(c *Context) error {
			got = append(got, Input[int](c, "seq"))
			return nil
		},
			Expects("seq", Default(func() any { n++; return n })),
		)

		require.True(t, a.Call(context.Background(), Args{}).OK())
		require.True(t, a.Call(context.Background(), Args{}).OK())
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("missing required field is a contract violation", func(t *testing.T) {
		a := quiet("Required", nil, Expects("name"))

		res := a.Call(context.Background(), Args{})
		require.False(t, res.OK())
		assert.Equal(t, OutcomeException, res.Outcome())

		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"is required"}, ce.Of("name"))
	})

	t.Run("type mismatch is a contract violation", func(t *testing.T) {
		a := quiet("Typed", nil, Expects("name", Type[string]()))

		res := a.Call(context.Background(), Args{"name": 5})
		require.False(t, res.OK())
		assert.Equal(t, OutcomeException, res.Outcome())
		assert.Contains(t, res.Err().Error(), "must be a string")
	})

	t.Run("map values coerce into struct types", func(t *testing.T) {
		type address struct {
			City string `mapstructure:"city"`
		}
		var got address
		a := quiet("Coerce", func(c *Context) error {
			got = Input[address](c, "address")
			return nil
		},
			Expects("address", Type[address]()),
		)

		res := a.Call(context.Background(), Args{"address": map[string]any{"city": "Tulsa"}})
		require.True(t, res.OK(), res.ErrorMessage())
		assert.Equal(t, "Tulsa", got.City)
	})

	t.Run("allow nil and allow blank", func(t *testing.T) {
		a := quiet("Nilable", nil,
			Expects("note", AllowNil()),
			Expects("tag", AllowBlank()),
		)

		// note omitted (AllowNil), tag blank (AllowBlank): both fine.
		assert.True(t, a.Call(context.Background(), Args{"tag": ""}).OK())
		assert.True(t, a.Call(context.Background(), Args{"note": "x", "tag": "  "}).OK())
	})

	t.Run("blank values rejected by default", func(t *testing.T) {
		a := quiet("NoBlank", nil, Expects("name"))

		res := a.Call(context.Background(), Args{"name": "   "})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"cannot be blank"}, ce.Of("name"))
	})

	t.Run("preprocess runs before validation", func(t *testing.T) {
		var got string
		a := quiet("Pre", func(c *Context) error {
			got = Input[string](c, "code")
			return nil
		},
			Expects("code", Type[string](), Preprocess(func(v any) (any, error) {
				return fmt.Sprintf("normalized-%v", v), nil
			})),
		)

		require.True(t, a.Call(context.Background(), Args{"code": 7}).OK())
		assert.Equal(t, "normalized-7", got)
	})

	t.Run("preprocess failure folds into a violation", func(t *testing.T) {
		a := quiet("PreFail", nil,
			Expects("code", Preprocess(func(v any) (any, error) {
				return nil, errors.New("bad wire format")
			})),
		)

		res := a.Call(context.Background(), Args{"code": "x"})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"could not be processed"}, ce.Of("code"))
	})

	t.Run("custom validate", func(t *testing.T) {
		a := quiet("Custom", nil,
			Expects("age", Validate(func(v any) error {
				if v.(int) < 18 {
					return errors.New("must be an adult")
				}
				return nil
			})),
		)

		assert.True(t, a.Call(context.Background(), Args{"age": 21}).OK())

		res := a.Call(context.Background(), Args{"age": 12})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"must be an adult"}, ce.Of("age"))
	})

	t.Run("panicking validate folds into a violation", func(t *testing.T) {
		a := quiet("ValidatePanic", nil,
			Expects("age", Validate(func(v any) error { panic("boom") })),
		)

		res := a.Call(context.Background(), Args{"age": 1})
		require.False(t, res.OK())
		assert.Equal(t, OutcomeException, res.Outcome())
	})

	t.Run("builtin generic validations", func(t *testing.T) {
		a := quiet("Generic", nil,
			Expects("amount", Min(1), Max(100)),
			Expects("currency", In("USD", "EUR")),
			Expects("sku", Format(regexp.MustCompile(`^[A-Z]{3}-\d+$`))),
		)

		ok := Args{"amount": 50, "currency": "USD", "sku": "ABC-123"}
		assert.True(t, a.Call(context.Background(), ok).OK())

		res := a.Call(context.Background(), Args{"amount": 500, "currency": "GBP", "sku": "nope"})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Len(t, ce.Violations, 3)
	})

	t.Run("boolean and uuid tags", func(t *testing.T) {
		a := quiet("Tags", nil,
			Expects("active", Boolean()),
			Expects("token_id", UUID()),
		)

		ok := Args{"active": true, "token_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}
		assert.True(t, a.Call(context.Background(), ok).OK())

		res := a.Call(context.Background(), Args{"active": "yes", "token_id": "nope"})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Contains(t, ce.Of("active")[0], "must be a boolean")
		assert.Equal(t, []string{"must be a valid UUID"}, ce.Of("token_id"))
	})

	t.Run("all violations surface in one pass", func(t *testing.T) {
		a := quiet("Aggregate", nil,
			Expects("name", Type[string]()),
			Expects("amount", Min(1)),
		)

		res := a.Call(context.Background(), Args{"amount": 0})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Len(t, ce.Violations, 2)
	})
}

func TestContract_ModelHydration(t *testing.T) {
	users := map[string]string{"u-1": "Doug"}
	finder := func(ctx context.Context, id any) (any, error) {
		name, ok := users[id.(string)]
		if !ok {
			return nil, nil
		}
		return name, nil
	}

	t.Run("hydrates under the trimmed name", func(t *testing.T) {
		var got string
		a := quiet("Hydrate", func(c *Context) error {
			got = Input[string](c, "user")
			return nil
		},
			Expects("user_id", Type[string](), Model(finder)),
		)

		res := a.Call(context.Background(), Args{"user_id": "u-1"})
		require.True(t, res.OK())
		assert.Equal(t, "Doug", got)
	})

	t.Run("not found is a validation failure", func(t *testing.T) {
		a := quiet("HydrateMissing", nil, Expects("user_id", Model(finder)))

		res := a.Call(context.Background(), Args{"user_id": "u-404"})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"could not be found"}, ce.Of("user_id"))
	})

	t.Run("finder error folds into the same failure", func(t *testing.T) {
		broken := func(ctx context.Context, id any) (any, error) {
			return nil, errors.New("backend down")
		}
		a := quiet("HydrateError", nil, Expects("user_id", Model(broken)))

		res := a.Call(context.Background(), Args{"user_id": "u-1"})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"could not be found"}, ce.Of("user_id"))
	})

	t.Run("model fields need the id suffix", func(t *testing.T) {
		assert.Panics(t, func() {
			quiet("BadModel", nil, Expects("user", Model(finder)))
		})
	})
}

func TestContract_SubFields(t *testing.T) {
	t.Run("looks inside map parents", func(t *testing.T) {
		var got string
		a := quiet("SubMap", func(c *Context) error {
			got = Input[string](c, "profile.email")
			return nil
		},
			Expects("profile", Type[map[string]any]()),
			Expects("email", On("profile")),
		)

		res := a.Call(context.Background(), Args{"profile": map[string]any{"email": "d@example.com"}})
		require.True(t, res.OK(), res.ErrorMessage())
		assert.Equal(t, "d@example.com", got)
	})

	t.Run("looks inside JSON parents via path query", func(t *testing.T) {
		var got string
		a := quiet("SubJSON", func(c *Context) error {
			got = Input[string](c, "payload.detail.kind")
			return nil
		},
			Expects("payload"),
			Expects("detail.kind", On("payload")),
		)

		raw := json.RawMessage(`{"detail": {"kind": "order"}}`)
		res := a.Call(context.Background(), Args{"payload": raw})
		require.True(t, res.OK(), res.ErrorMessage())
		assert.Equal(t, "order", got)
	})

	t.Run("looks inside struct parents", func(t *testing.T) {
		type profile struct{ Email string }
		var got string
		a := quiet("SubStruct", func(c *Context) error {
			got = Input[string](c, "profile.Email")
			return nil
		},
			Expects("profile", Type[profile]()),
			Expects("Email", On("profile")),
		)

		res := a.Call(context.Background(), Args{"profile": profile{Email: "d@example.com"}})
		require.True(t, res.OK(), res.ErrorMessage())
		assert.Equal(t, "d@example.com", got)
	})

	t.Run("missing sub-field is a violation on the composite key", func(t *testing.T) {
		a := quiet("SubMissing", nil,
			Expects("profile", Type[map[string]any]()),
			Expects("email", On("profile")),
		)

		res := a.Call(context.Background(), Args{"profile": map[string]any{}})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"is required"}, ce.Of("profile.email"))
	})

	t.Run("parent failure suppresses sub-field noise", func(t *testing.T) {
		a := quiet("SubParentFail", nil,
			Expects("profile", Type[map[string]any]()),
			Expects("email", On("profile")),
		)

		res := a.Call(context.Background(), Args{})
		require.False(t, res.OK())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Len(t, ce.Violations, 1)
		assert.Equal(t, []string{"is required"}, ce.Of("profile"))
	})

	t.Run("sub-field with an undeclared parent panics at declaration", func(t *testing.T) {
		assert.Panics(t, func() {
			quiet("Orphan", nil, Expects("email", On("profile")))
		})
		assert.Panics(t, func() {
			parent := quiet("Base", nil)
			parent.Extend("OrphanChild", nil, Expects("email", On("profile")))
		})
	})

	t.Run("parent may be declared after its sub-fields", func(t *testing.T) {
		assert.NotPanics(t, func() {
			quiet("LateParent", nil,
				Expects("email", On("profile")),
				Expects("profile", Type[map[string]any]()),
			)
		})
	})

	t.Run("sub-fields cannot carry defaults or sensitivity", func(t *testing.T) {
		assert.Panics(t, func() {
			quiet("BadSub", nil, Expects("email", On("profile"), Default("x")))
		})
		assert.Panics(t, func() {
			quiet("BadSub2", nil, Expects("email", On("profile"), Sensitive()))
		})
	})
}

func TestContract_Outbound(t *testing.T) {
	t.Run("unexposed required output is a violation", func(t *testing.T) {
		a := quiet("Forgetful", func(c *Context) error { return nil },
			Exposes("receipt"),
		)

		res := a.Call(context.Background(), nil)
		require.False(t, res.OK())
		assert.Equal(t, OutcomeException, res.Outcome())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"must be exposed"}, ce.Of("receipt"))
	})

	t.Run("outbound defaults apply", func(t *testing.T) {
		a := quiet("OutDefault", nil, Exposes("status", Default("pending")))

		res := a.Call(context.Background(), nil)
		require.True(t, res.OK())
		status, err := Value[string](res, "status")
		require.NoError(t, err)
		assert.Equal(t, "pending", status)
	})

	t.Run("exposing an undeclared field fails the invocation", func(t *testing.T) {
		a := quiet("Undeclared", func(c *Context) error {
			err := c.Expose("surprise", 42)
			assert.Error(t, err)
			return nil // ignoring the error does not help
		})

		res := a.Call(context.Background(), nil)
		require.False(t, res.OK())
		assert.Equal(t, OutcomeException, res.Outcome())
		var ce *ContractError
		require.ErrorAs(t, res.Err(), &ce)
		assert.Equal(t, []string{"is not a declared exposed field"}, ce.Of("surprise"))
	})

	t.Run("outbound values are validated", func(t *testing.T) {
		a := quiet("OutTyped", func(c *Context) error {
			return c.Expose("count", "many")
		},
			Exposes("count", Type[int]()),
		)

		res := a.Call(context.Background(), nil)
		require.False(t, res.OK())
		assert.Contains(t, res.Err().Error(), "must be a int")
	})
}

func TestContract_DeclarationErrors(t *testing.T) {
	assert.Panics(t, func() { quiet("Dup", nil, Expects("name"), Expects("name")) })
	assert.Panics(t, func() { quiet("Reserved", nil, Expects("outcome")) })
	assert.Panics(t, func() { quiet("Empty", nil, Expects("")) })
	assert.Panics(t, func() { quiet("OutPre", nil, Exposes("x", Preprocess(func(v any) (any, error) { return v, nil }))) })
	assert.Panics(t, func() { quiet("OutOn", nil, Exposes("x", On("y"))) })
}
