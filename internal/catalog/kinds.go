package catalog

import (
	"encoding/json"
	"math"
)

// Kind is the closed set of argument types tools accept.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// kindOf maps a JSON-schema type name onto a Kind; unknown or missing types become strings.
func kindOf(schemaType string) Kind {
	switch schemaType {
	case "number":
		return KindNumber
	case "integer":
		return KindInteger
	case "boolean":
		return KindBoolean
	case "array":
		return KindArray
	case "object":
		return KindObject
	default:
		return KindString
	}
}

// Accepts reports whether v is an acceptable value for k.
// Strings also take other scalars, which are formatted on the wire anyway.
func (k Kind) Accepts(v any) bool {
	switch k {
	case KindString:
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case KindNumber:
		_, ok := asFloat(v)
		return ok
	case KindInteger:
		f, ok := asFloat(v)
		return ok && f == math.Trunc(f)
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindArray:
		switch v.(type) {
		case []any, []string, []float64, []int:
			return true
		}
		return false
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
