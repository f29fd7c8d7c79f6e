package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields is a partial record keyed by field name, as accepted by create and
// update. Values may be strings (or string-kinded enums), integers, integral
// floats, json.Number or time.Time for date fields.
type Fields map[string]any

// Clone returns a shallow copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Without returns a copy of f with the named keys removed.
func (f Fields) Without(keys ...string) Fields {
	out := f.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the named field as a string. ok is false when absent.
func (f Fields) String(entity EntityType, name string) (string, bool, error) {
	raw, present := f[name]
	if !present {
		return "", false, nil
	}
	s, err := coerceString(raw)
	if err != nil {
		return "", true, InvalidArgumentError{Entity: entity, Field: name, Value: fmt.Sprint(raw), Reason: err.Error()}
	}
	return s, true, nil
}

// dateField marks a string target that must hold a YYYY-MM-DD date.
type dateField struct{ dst *string }

// ignoredField accepts a key without writing it anywhere.
type ignoredField struct{}

// apply writes each entry of f into its target. Keys without a target are
// rejected, as are values that cannot be coerced to the target type.
func (f Fields) apply(entity EntityType, targets map[string]any) error {
	for _, name := range f.Keys() {
		raw := f[name]
		target, ok := targets[name]
		if !ok {
			return InvalidArgumentError{Entity: entity, Field: name, Reason: "unknown field"}
		}
		if err := assign(target, raw); err != nil {
			return InvalidArgumentError{Entity: entity, Field: name, Value: fmt.Sprint(raw), Reason: err.Error()}
		}
	}
	return nil
}

func assign(target, raw any) error {
	switch dst := target.(type) {
	case ignoredField:
		return nil
	case *string:
		s, err := coerceString(raw)
		if err != nil {
			return err
		}
		*dst = s
	case *int64:
		n, err := coerceInt(raw)
		if err != nil {
			return err
		}
		*dst = n
	case dateField:
		if t, ok := raw.(time.Time); ok {
			*dst.dst = t.Format(DateLayout)
			return nil
		}
		s, err := coerceString(raw)
		if err != nil {
			return err
		}
		if s != "" {
			if _, err := time.Parse(DateLayout, s); err != nil {
				return fmt.Errorf("expected YYYY-MM-DD")
			}
		}
		*dst.dst = s
	default:
		return fmt.Errorf("unsupported target %T", target)
	}
	return nil
}

func coerceString(raw any) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("expected string, got null")
	}
	if s, ok := raw.(string); ok {
		return s, nil
	}
	v := reflect.ValueOf(raw)
	if v.Kind() == reflect.String {
		return v.String(), nil
	}
	return "", fmt.Errorf("expected string, got %T", raw)
}

func coerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("expected integer, got null")
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}
