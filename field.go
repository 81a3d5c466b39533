package action

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// modelSuffix is the required name suffix for fields carrying a model
// hydration directive; the hydrated value is stored under the name with
// the suffix removed.
const modelSuffix = "_id"

// reservedFieldNames collide with the Result surface and cannot be
// declared as fields.
var reservedFieldNames = map[string]bool{
	"ok":        true,
	"outcome":   true,
	"error":     true,
	"success":   true,
	"failure":   true,
	"exception": true,
}

// Finder loads a model by id for a hydrated field. Returning (nil, nil)
// means not found; both not-found and a finder error surface as a
// validation failure on the field.
type Finder func(ctx context.Context, id any) (any, error)

// ValidateFunc is a custom per-field validation. A non-nil return records
// a violation on the field.
type ValidateFunc func(c *Context, value any) error

// PreprocessFunc transforms an inbound value before validation. An error
// records a violation instead of surfacing raw.
type PreprocessFunc func(value any) (any, error)

// fieldSpec is the declared contract of one inbound or outbound field.
type fieldSpec struct {
	name    string
	inbound bool

	typ reflect.Type
	tag string // symbolic type: "bool" or "uuid"

	def        any
	defFn      func() any
	hasDefault bool

	allowNil   bool
	allowBlank bool
	sensitive  bool

	validate   ValidateFunc
	preprocess PreprocessFunc

	parent string // sub-field lookup target
	finder Finder

	oneOf  []any
	min    *float64
	max    *float64
	format *regexp.Regexp
}

// hydratedName is the input key the finder's result is stored under.
func (f *fieldSpec) hydratedName() string {
	return strings.TrimSuffix(f.name, modelSuffix)
}

// key is the context key the field's validated value lives under.
func (f *fieldSpec) key() string {
	if f.parent != "" {
		return f.parent + "." + f.name
	}
	return f.name
}

// FieldOption configures a single Expects or Exposes declaration.
type FieldOption func(*fieldSpec)

// Type constrains the field to values assignable to T. Values of map
// shape are coerced into struct-typed fields when direct assignment
// fails; coercion failure is a type violation.
func Type[T any]() FieldOption {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return func(f *fieldSpec) {
		f.typ = t
	}
}

// Boolean constrains the field to bool values.
func Boolean() FieldOption {
	return func(f *fieldSpec) {
		f.tag = "bool"
	}
}

// UUID constrains the field to canonical UUID strings (or uuid.UUID
// values).
func UUID() FieldOption {
	return func(f *fieldSpec) {
		f.tag = "uuid"
	}
}

// Default supplies a value used when the field is absent. Pass a func()
// value to compute the default per invocation.
func Default(v any) FieldOption {
	return func(f *fieldSpec) {
		f.hasDefault = true
		if fn, ok := v.(func() any); ok {
			f.defFn = fn
			return
		}
		f.def = v
	}
}

// AllowNil permits the field to be absent or nil, skipping the remaining
// validators when it is.
func AllowNil() FieldOption {
	return func(f *fieldSpec) {
		f.allowNil = true
	}
}

// AllowBlank permits blank values (nil, empty or whitespace-only strings,
// empty collections).
func AllowBlank() FieldOption {
	return func(f *fieldSpec) {
		f.allowBlank = true
	}
}

// Sensitive marks the field for redaction in logs, inspection output, and
// exception context. Normal accessors are unaffected.
func Sensitive() FieldOption {
	return func(f *fieldSpec) {
		f.sensitive = true
	}
}

// Validate attaches a custom validation run after the built-in validators.
// Accepts func(any) error or func(*Context, any) error.
func Validate(fn any) FieldOption {
	var v ValidateFunc
	switch h := fn.(type) {
	case func(any) error:
		v = func(_ *Context, value any) error { return h(value) }
	case func(*Context, any) error:
		v = h
	default:
		panic(fmt.Sprintf("action: unsupported Validate func %T", fn))
	}
	return func(f *fieldSpec) {
		f.validate = v
	}
}

// Preprocess transforms the inbound value before any validation runs.
// Only valid on Expects.
func Preprocess(fn PreprocessFunc) FieldOption {
	return func(f *fieldSpec) {
		f.preprocess = fn
	}
}

// On declares the field as a sub-field looked up inside an already
// validated parent field. Sub-fields cannot carry Default, Preprocess, or
// Sensitive, and are only valid on Expects.
func On(parent string) FieldOption {
	if parent == "" {
		panic("action: On requires a parent field name")
	}
	return func(f *fieldSpec) {
		f.parent = parent
	}
}

// Model attaches a hydration finder. The field name must end in "_id";
// the loaded model is stored under the name minus that suffix. A finder
// error or a nil result is a validation failure on the field.
//
//	action.Expects("user_id", action.Model(func(ctx context.Context, id any) (any, error) {
//	    return users.Find(ctx, id.(string))
//	})),
func Model(finder Finder) FieldOption {
	return func(f *fieldSpec) {
		f.finder = finder
	}
}

// In constrains the field to one of the given values.
func In(values ...any) FieldOption {
	return func(f *fieldSpec) {
		f.oneOf = values
	}
}

// Min constrains a numeric field to values >= n.
func Min(n float64) FieldOption {
	return func(f *fieldSpec) {
		f.min = &n
	}
}

// Max constrains a numeric field to values <= n.
func Max(n float64) FieldOption {
	return func(f *fieldSpec) {
		f.max = &n
	}
}

// Format constrains a string field to match re.
func Format(re *regexp.Regexp) FieldOption {
	return func(f *fieldSpec) {
		f.format = re
	}
}

// Expects declares an inbound field. Declaring a reserved or duplicate
// name, or combining options that do not compose (On with Default,
// Preprocess, or Sensitive; Model without the "_id" suffix), panics at
// declaration time.
func Expects(name string, opts ...FieldOption) Option {
	spec := buildFieldSpec(name, true, opts)
	return func(a *Action) {
		checkFieldName(a, spec)
		a.inbound = append(a.inbound, spec)
	}
}

// Exposes declares an outbound field. The action must expose every
// declared outbound field without a default before completing; exposing
// an undeclared field is a distinct contract violation.
func Exposes(name string, opts ...FieldOption) Option {
	spec := buildFieldSpec(name, false, opts)
	return func(a *Action) {
		checkFieldName(a, spec)
		a.outbound = append(a.outbound, spec)
	}
}

func buildFieldSpec(name string, inbound bool, opts []FieldOption) *fieldSpec {
	if name == "" {
		panic("action: field name cannot be empty")
	}
	if reservedFieldNames[name] {
		panic(fmt.Sprintf("action: field name %q is reserved", name))
	}

	spec := &fieldSpec{name: name, inbound: inbound}
	for _, opt := range opts {
		opt(spec)
	}

	if !inbound {
		if spec.preprocess != nil {
			panic(fmt.Sprintf("action: Exposes %q cannot use Preprocess", name))
		}
		if spec.parent != "" {
			panic(fmt.Sprintf("action: Exposes %q cannot use On", name))
		}
		if spec.finder != nil {
			panic(fmt.Sprintf("action: Exposes %q cannot use Model", name))
		}
	}
	if spec.parent != "" {
		if spec.hasDefault || spec.preprocess != nil || spec.sensitive {
			panic(fmt.Sprintf("action: sub-field %q cannot combine On with Default, Preprocess, or Sensitive", name))
		}
	}
	if spec.finder != nil && !strings.HasSuffix(name, modelSuffix) {
		panic(fmt.Sprintf("action: Model field %q must end in %q", name, modelSuffix))
	}
	return spec
}

func checkFieldName(a *Action, spec *fieldSpec) {
	for _, existing := range append(append([]*fieldSpec(nil), a.inbound...), a.outbound...) {
		if existing.key() == spec.key() && existing.inbound == spec.inbound {
			panic(fmt.Sprintf("action: field %q declared twice", spec.key()))
		}
	}
}

// checkSubFieldParents verifies every sub-field names a declared top-level
// inbound field. Runs after all options apply, so declaration order does
// not matter.
func checkSubFieldParents(a *Action) {
	declared := map[string]bool{}
	for _, spec := range a.inbound {
		if spec.parent == "" {
			declared[spec.name] = true
		}
	}
	for _, spec := range a.inbound {
		if spec.parent != "" && !declared[spec.parent] {
			panic(fmt.Sprintf("action: sub-field %q references undeclared parent field %q", spec.name, spec.parent))
		}
	}
}
