package database

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plain converts values decoded by the mongo driver into the shapes produced
// by encoding/json: map[string]interface{}, []interface{} and float64 numbers.
// Schema migrations operate on those shapes only.
func Plain(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = Plain(e.Value)
		}
		return m
	case primitive.M:
		return plainMap(t)
	case map[string]interface{}:
		return plainMap(t)
	case primitive.A:
		return plainSlice(t)
	case []interface{}:
		return plainSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return v
	}
}

// PlainMap is Plain for a top-level document.
func PlainMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return plainMap(m)
}

func plainMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Plain(v)
	}
	return out
}

func plainSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = Plain(v)
	}
	return out
}
