package changes

import (
	"fmt"
	"math"
)

// Change is a validated command dict.
type Change struct {
	cmd   string
	attrs map[string]interface{}
}

// New builds a Change without validation; callers use it to record
// system-generated commits such as schema migrations.
func New(cmd string, attrs map[string]interface{}) Change {
	c := Change{cmd: cmd, attrs: make(map[string]interface{}, len(attrs))}
	for k, v := range attrs {
		c.attrs[k] = v
	}
	return c
}

func (c Change) Cmd() string { return c.cmd }

// Get returns the attribute value, or nil when absent.
func (c Change) Get(attr string) interface{} { return c.attrs[attr] }

// Has reports whether attr was present in the dict.
func (c Change) Has(attr string) bool {
	_, ok := c.attrs[attr]
	return ok
}

// String returns the attribute formatted as a string ("" when absent).
func (c Change) String(attr string) string {
	v, ok := c.attrs[attr]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the attribute as an int. JSON numbers decode as float64 and
// are accepted when they hold an integral value.
func (c Change) Int(attr string) (int, error) {
	switch v := c.attrs[attr].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s: expected integer, received %v", attr, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s: expected integer, received %v", attr, v)
	}
}

// StringSlice returns a []string attribute, converting []interface{} values.
func (c Change) StringSlice(attr string) ([]string, error) {
	switch v := c.attrs[attr].(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected list of strings, received %v", attr, c.attrs[attr])
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("%s: expected list of strings, received %v", attr, v)
	}
}

// ToMap returns the dict form, including cmd.
func (c Change) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(c.attrs)+1)
	out["cmd"] = c.cmd
	for k, v := range c.attrs {
		out[k] = v
	}
	return out
}

// ToMaps converts a change list back to dicts for commit logs.
func ToMaps(list []Change) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, c := range list {
		out = append(out, c.ToMap())
	}
	return out
}
