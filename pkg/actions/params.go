package actions

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/budgetflow/automations/pkg/conditions"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Interpolate replaces {{field}} placeholders with entity values. Placeholders that do
// not resolve are left as written.
func Interpolate(template string, entity map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := conditions.Lookup(entity, path)
		if !ok {
			return match
		}

		return stringify(value)
	})
}

func stringify(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing parameter: %s", key)
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case float64, float32, int, int32, int64:
		return stringify(v), nil
	default:
		return "", fmt.Errorf("parameter %s must be a string, got %T", key, raw)
	}
}

func optionalString(params map[string]any, key string) string {
	s, err := stringParam(params, key)
	if err != nil {
		return ""
	}

	return s
}

// idParam returns an identifier parameter unchanged, so numeric ids stay numeric in
// the produced change.
func idParam(params map[string]any, key string) (any, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing parameter: %s", key)
	}

	switch raw.(type) {
	case string, float64, float32, int, int32, int64:
		return raw, nil
	default:
		return nil, fmt.Errorf("parameter %s must be a string or number, got %T", key, raw)
	}
}

func boolParam(params map[string]any, key string, fallback bool) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %s must be a boolean, got %T", key, raw)
	}

	return b, nil
}

func numberParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing parameter: %s", key)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %s must be a number: %w", key, err)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number, got %T", key, raw)
	}
}

func idString(v any) string {
	if v == nil {
		return ""
	}

	return stringify(v)
}

// sameValue compares numbers by value and everything else structurally.
func sameValue(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}

	return reflect.DeepEqual(a, b)
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
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, stringify(item))
		}

		return out
	default:
		return nil
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}

	return false
}
