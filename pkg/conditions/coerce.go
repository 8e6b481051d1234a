package conditions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// toFloat64 coerces numbers and numeric strings.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}

		f, err := strconv.ParseFloat(s, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}

	if f, ok := toFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return fmt.Sprint(v)
}

func fold(v any) string {
	return strings.ToLower(toString(v))
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))

		return parsed, err == nil
	}

	if f, ok := toFloat64(v); ok {
		return f != 0, true
	}

	return false, false
}

func toList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}

	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, true
}

// equal compares numerically when both sides are numeric, then as booleans, and
// otherwise as case-insensitive strings.
func equal(a, b any) bool {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			return fa == fb
		}
	}

	if ba, ok := a.(bool); ok {
		if bb, ok := toBool(b); ok {
			return ba == bb
		}
	}

	return strings.EqualFold(toString(a), toString(b))
}

// compare orders numerically when both sides are numeric and lexicographically
// (case-insensitive) otherwise.
func compare(a, b any) int {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	return strings.Compare(fold(a), fold(b))
}
