package objects

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Error is returned when a value cannot be normalized.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func errorf(format string, a ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, a...)}
}

// Normalizer converts a decoded JSON value into its canonical form.
type Normalizer func(v interface{}) (interface{}, error)

func normBool(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		if t == "" {
			return false, nil
		}
	}
	return nil, errorf("Expected bool, received %s", describe(v))
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func normReal(v interface{}) (interface{}, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, errorf("Could not convert %s to float: %s", typeName(v), describe(v))
	}
	return f, nil
}

func toInt(v interface{}) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func normInt(v interface{}) (interface{}, error) {
	n, ok := toInt(v)
	if !ok {
		return nil, errorf("Could not convert %s to int: %s", typeName(v), describe(v))
	}
	return n, nil
}

func intAtLeast(min int) Normalizer {
	return func(v interface{}) (interface{}, error) {
		out, err := normInt(v)
		if err != nil {
			return nil, err
		}
		if out.(int) < min {
			return nil, errorf("Validation failed: is_at_least ({'min_value': %d}) for object %d", min, out.(int))
		}
		return out, nil
	}
}

func normUnicode(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errorf("Expected unicode string, received %s", describe(v))
	}
	return s, nil
}

func normNormalizedString(v interface{}) (interface{}, error) {
	out, err := normUnicode(v)
	if err != nil {
		return nil, err
	}
	return strings.Join(strings.Fields(out.(string)), " "), nil
}

func normCodeString(v interface{}) (interface{}, error) {
	out, err := normUnicode(v)
	if err != nil {
		return nil, err
	}
	if strings.Contains(out.(string), "\t") {
		return nil, errorf("Unexpected tab characters in code string: %s", out)
	}
	return out, nil
}

func choices(allowed ...string) Normalizer {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return func(v interface{}) (interface{}, error) {
		out, err := normUnicode(v)
		if err != nil {
			return nil, err
		}
		if !set[out.(string)] {
			return nil, errorf("Received %s which is not in the allowed range of choices", out)
		}
		return out, nil
	}
}

func asList(v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		return t, nil
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	}
	return nil, errorf("Expected list, received %s", describe(v))
}

type listOpts struct {
	length    int
	minLength int
	unique    bool
}

func listOf(item Normalizer, opts listOpts) Normalizer {
	return func(v interface{}) (interface{}, error) {
		list, err := asList(v)
		if err != nil {
			return nil, err
		}
		if opts.length > 0 && len(list) != opts.length {
			return nil, errorf("Expected length of %d got %d", opts.length, len(list))
		}
		out := make([]interface{}, 0, len(list))
		for _, e := range list {
			n, err := item(e)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		if opts.minLength > 0 && len(out) < opts.minLength {
			return nil, errorf("Validation failed: has_length_at_least ({'min_value': %d}) for object %s", opts.minLength, repr(out))
		}
		if opts.unique {
			seen := make(map[string]bool, len(out))
			for _, e := range out {
				k := repr(e)
				if seen[k] {
					return nil, errorf("Validation failed: is_uniquified ({}) for object %s", repr(out))
				}
				seen[k] = true
			}
		}
		return out, nil
	}
}

type property struct {
	name string
	norm Normalizer
}

// dictOf normalizes a dict whose keys must be exactly props. Properties are
// normalized in declaration order.
func dictOf(props ...property) Normalizer {
	return func(v interface{}) (interface{}, error) {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, errorf("Expected dict, received %s", describe(v))
		}
		if err := checkKeys(m, props); err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(props))
		for _, p := range props {
			n, err := p.norm(m[p.name])
			if err != nil {
				return nil, err
			}
			out[p.name] = n
		}
		return out, nil
	}
}

func checkKeys(m map[string]interface{}, props []property) error {
	want := make(map[string]bool, len(props))
	var missing, extra []interface{}
	for _, p := range props {
		want[p.name] = true
	}
	for _, k := range sortedPropNames(props) {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	for _, k := range sortedKeys(m) {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return errorf("Missing keys: %s, Extra keys: %s", reprList(missing), reprList(extra))
	}
	return nil
}

func sortedPropNames(props []property) []string {
	m := make(map[string]interface{}, len(props))
	for _, p := range props {
		m[p.name] = nil
	}
	return sortedKeys(m)
}

func reprList(l []interface{}) string {
	if l == nil {
		return "[]"
	}
	return repr(l)
}

// wrapAll replaces any error from n with a single conversion message.
func wrapAll(n Normalizer, format string) Normalizer {
	return func(v interface{}) (interface{}, error) {
		out, err := n(v)
		if err != nil {
			var oe *Error
			if errors.As(err, &oe) {
				return nil, errorf(format, describe(v))
			}
			return nil, err
		}
		return out, nil
	}
}
