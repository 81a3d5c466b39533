package action

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// violations accumulates contract violations across one validation pass so
// a single error surfaces every problem at once.
type violations map[string][]string

func (v violations) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v violations) err(actionName string) error {
	if len(v) == 0 {
		return nil
	}
	return &ContractError{Action: actionName, Violations: v}
}

// validateInbound checks the caller-supplied args against the declared
// inbound contract and populates the context's input data. Per-field
// order: default, preprocess, built-in validators, custom validation,
// model hydration. Sub-fields run after their parents so lookups see
// validated values.
func validateInbound(c *Context, a *Action, args Args) error {
	errs := violations{}

	for _, spec := range a.inbound {
		if spec.parent != "" {
			continue
		}
		validateTopLevel(c, spec, args, errs)
	}
	for _, spec := range a.inbound {
		if spec.parent == "" {
			continue
		}
		validateSubField(c, spec, errs)
	}

	return errs.err(a.name)
}

func validateTopLevel(c *Context, spec *fieldSpec, args Args, errs violations) {
	value, present := args[spec.name]
	if !present && spec.hasDefault {
		value = spec.defaultValue()
		present = true
	}

	if !present || value == nil {
		if spec.allowNil || spec.allowBlank {
			c.input[spec.name] = nil
			return
		}
		errs.add(spec.name, "is required")
		return
	}

	if spec.preprocess != nil {
		processed, err := spec.preprocess(value)
		if err != nil {
			report(c.logger(), "preprocessing input field", err, "field", spec.name, "action", c.Name())
			errs.add(spec.name, "could not be processed")
			return
		}
		value = processed
	}

	value, ok := checkValue(c, spec, value, errs)
	if !ok {
		return
	}
	c.input[spec.name] = value

	if spec.finder != nil {
		hydrate(c, spec, value, errs)
	}
}

func validateSubField(c *Context, spec *fieldSpec, errs violations) {
	parent, ok := c.input[spec.parent]
	if !ok {
		// Parent failed its own validation; its violation already covers this.
		return
	}

	value, found := lookupSubField(parent, spec.name)
	if !found || value == nil {
		if spec.allowNil || spec.allowBlank {
			c.input[spec.key()] = nil
			return
		}
		errs.add(spec.key(), "is required")
		return
	}

	value, ok = checkValue(c, spec, value, errs)
	if !ok {
		return
	}
	c.input[spec.key()] = value
}

// validateOutbound checks exposed values against the declared outbound
// contract: defaults are applied, a declared field that was never exposed
// and has no default is a violation, and undeclared exposures recorded
// during the call are surfaced as their own violation kind.
func validateOutbound(c *Context, a *Action) error {
	errs := violations{}

	for name, msgs := range c.undeclared {
		for _, msg := range msgs {
			errs.add(name, msg)
		}
	}

	for _, spec := range a.outbound {
		value, present := c.exposed[spec.name]
		if !present && spec.hasDefault {
			value = spec.defaultValue()
			c.exposed[spec.name] = value
			present = true
		}
		if !present || value == nil {
			if present && (spec.allowNil || spec.allowBlank) {
				continue
			}
			if !present && spec.allowNil {
				c.exposed[spec.name] = nil
				continue
			}
			errs.add(spec.name, "must be exposed")
			continue
		}
		if checked, ok := checkValue(c, spec, value, errs); ok {
			c.exposed[spec.name] = checked
		}
	}

	return errs.err(a.name)
}

// checkValue runs the built-in validators and the custom validation for
// one field. It returns the (possibly coerced) value and whether the field
// passed.
func checkValue(c *Context, spec *fieldSpec, value any, errs violations) (any, bool) {
	field := spec.key()

	if isBlank(value) && !spec.allowBlank {
		errs.add(field, "cannot be blank")
		return value, false
	}

	switch spec.tag {
	case "bool":
		if _, ok := value.(bool); !ok {
			errs.add(field, fmt.Sprintf("must be a boolean, got %T", value))
			return value, false
		}
	case "uuid":
		switch v := value.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.FromString(v); err != nil {
				errs.add(field, "must be a valid UUID")
				return value, false
			}
		default:
			errs.add(field, fmt.Sprintf("must be a UUID, got %T", value))
			return value, false
		}
	}

	if spec.typ != nil {
		coerced, ok := coerceType(spec.typ, value)
		if !ok {
			errs.add(field, fmt.Sprintf("must be a %s, got %T", spec.typ, value))
			return value, false
		}
		value = coerced
	}

	if len(spec.oneOf) > 0 && !contains(spec.oneOf, value) {
		errs.add(field, "is not an allowed value")
		return value, false
	}

	if spec.min != nil || spec.max != nil {
		n, ok := toFloat(value)
		switch {
		case !ok:
			errs.add(field, fmt.Sprintf("must be numeric, got %T", value))
			return value, false
		case spec.min != nil && n < *spec.min:
			errs.add(field, fmt.Sprintf("must be at least %v", *spec.min))
			return value, false
		case spec.max != nil && n > *spec.max:
			errs.add(field, fmt.Sprintf("must be at most %v", *spec.max))
			return value, false
		}
	}

	if spec.format != nil {
		s, ok := value.(string)
		if !ok || !spec.format.MatchString(s) {
			errs.add(field, "has an invalid format")
			return value, false
		}
	}

	if spec.validate != nil {
		if err := safeValidate(spec.validate, c, value); err != nil {
			errs.add(field, err.Error())
			return value, false
		}
	}

	return value, true
}

// hydrate loads the model behind an id-carrying field. Finder errors and
// not-found results both fold into a validation failure; the error is
// reported separately so operators can tell them apart in logs.
func hydrate(c *Context, spec *fieldSpec, id any, errs violations) {
	model, err := safeFind(spec.finder, c, id)
	if err != nil {
		report(c.logger(), "hydrating model field", err, "field", spec.name, "action", c.Name())
		errs.add(spec.name, "could not be found")
		return
	}
	if model == nil {
		errs.add(spec.name, "could not be found")
		return
	}
	c.input[spec.hydratedName()] = model
}

func safeFind(finder Finder, c *Context, id any) (model any, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = fmt.Errorf("finder panicked: %v", r)
		}
	}()
	return finder(c.Context(), id)
}

func safeValidate(fn ValidateFunc, c *Context, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("is invalid (validation panicked: %v)", r)
		}
	}()
	return fn(c, value)
}

// lookupSubField reads a key from inside a validated parent value. Map
// parents use key lookup, JSON-carrying parents use gjson path queries,
// and struct parents use an exported field of the same name.
func lookupSubField(parent any, name string) (any, bool) {
	switch p := parent.(type) {
	case map[string]any:
		v, ok := p[name]
		return v, ok
	case map[string]string:
		v, ok := p[name]
		return v, ok
	case json.RawMessage:
		return gjsonLookup(string(p), name)
	case []byte:
		return gjsonLookup(string(p), name)
	case string:
		return gjsonLookup(p, name)
	}

	rv := reflect.ValueOf(parent)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		field := rv.FieldByNameFunc(func(f string) bool {
			return strings.EqualFold(f, name)
		})
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), true
		}
	}
	return nil, false
}

func gjsonLookup(raw, path string) (any, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	r := gjson.Get(raw, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// coerceType reports whether value satisfies t, decoding map-shaped values
// into struct or map targets when direct assignment fails.
func coerceType(t reflect.Type, value any) (any, bool) {
	vt := reflect.TypeOf(value)
	if vt != nil && vt.AssignableTo(t) {
		return value, true
	}
	if t.Kind() == reflect.Interface && vt != nil && vt.Implements(t) {
		return value, true
	}

	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		if _, ok := value.(map[string]any); !ok {
			return nil, false
		}
		target := reflect.New(t)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:     target.Interface(),
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return nil, false
		}
		if err := decoder.Decode(value); err != nil {
			return nil, false
		}
		return target.Elem().Interface(), true
	}
	return nil, false
}

func (f *fieldSpec) defaultValue() any {
	if f.defFn != nil {
		return f.defFn()
	}
	return f.def
}

// isBlank reports whether a value is nil, a whitespace-only string, or an
// empty collection.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

func contains(values []any, v any) bool {
	for _, candidate := range values {
		if reflect.DeepEqual(candidate, v) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
