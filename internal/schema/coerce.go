package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coerce returns a copy of data whose keys are exactly the declared fields.
// Missing fields become nil and undeclared keys are dropped. Values are
// converted to their declared type where the conversion is lossless.
func (s *Schema) Coerce(data map[string]any) (map[string]any, error) {
	return coerceFields(s.Fields, data, "")
}

func coerceFields(fields []Field, data map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := coerceValue(f, data[f.Name], joinPath(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func coerceValue(f Field, v any, path string) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case String:
		return toString(v, path)
	case Integer:
		return toInteger(v, path)
	case Number:
		return toNumber(v, path)
	case Boolean:
		return toBoolean(v, path)
	case Array:
		items, ok := v.([]any)
		if !ok {
			// A lone value stands for a one-element list.
			items = []any{v}
		}
		item := Field{Type: String}
		if f.Items != nil {
			item = *f.Items
		}
		out := make([]any, 0, len(items))
		for i, it := range items {
			c, err := coerceValue(item, it, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	case Object:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, mismatch(path, f.Type, v)
		}
		if len(f.Fields) == 0 {
			return m, nil
		}
		return coerceFields(f.Fields, m, path)
	default:
		return v, nil
	}
}

func toString(v any, path string) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return nil, mismatch(path, String, v)
	}
}

func toInteger(v any, path string) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return nil, mismatch(path, Integer, v)
		}
		return int64(t), nil
	case string:
		s := cleanNumber(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
		return nil, mismatch(path, Integer, v)
	default:
		return nil, mismatch(path, Integer, v)
	}
}

func toNumber(v any, path string) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(cleanNumber(t), 64)
		if err != nil {
			return nil, mismatch(path, Number, v)
		}
		return f, nil
	default:
		return nil, mismatch(path, Number, v)
	}
}

func toBoolean(v any, path string) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return nil, mismatch(path, Boolean, v)
}

// cleanNumber strips whitespace and thousands separators.
func cleanNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

func mismatch(path string, want Type, v any) error {
	return fmt.Errorf("field %q: expected %s, got %T: %w", path, want, v, ErrTypeMismatch)
}
