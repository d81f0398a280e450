package objects

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// describe renders v for error messages. Top-level strings are printed raw.
func describe(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

// repr renders decoded JSON values in a compact literal form:
// None, True/False, 'str', [a, b], {'k': v} with sorted keys.
func repr(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.ReplaceAll(t, "'", `\'`) + "'"
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, repr(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, repr(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := sortedKeys(t)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, repr(k)+": "+repr(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// typeName names the decoded JSON type of v.
func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case float64, float32:
		return "float"
	case int, int32, int64:
		return "int"
	case []interface{}, []string:
		return "list"
	case map[string]interface{}:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Repr renders a decoded JSON value for log and error messages.
func Repr(v interface{}) string {
	return repr(v)
}
