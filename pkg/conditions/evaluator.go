package conditions

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/budgetflow/automations/pkg/models"
)

var operators map[models.Operator]operatorFunc

func init() {
	operators = map[models.Operator]operatorFunc{
		models.OpEquals:             opEquals,
		models.OpNotEquals:          not(opEquals),
		models.OpGreaterThan:        ordered(func(cmp int) bool { return cmp > 0 }),
		models.OpGreaterThanOrEqual: ordered(func(cmp int) bool { return cmp >= 0 }),
		models.OpLessThan:           ordered(func(cmp int) bool { return cmp < 0 }),
		models.OpLessThanOrEqual:    ordered(func(cmp int) bool { return cmp <= 0 }),
		models.OpBetween:            opBetween,
		models.OpNotBetween:         not(opBetween),
		models.OpContains:           opContains,
		models.OpNotContains:        not(opContains),
		models.OpStartsWith:         stringOp(strings.HasPrefix),
		models.OpEndsWith:           stringOp(strings.HasSuffix),
		models.OpMatches:            opMatches,
		models.OpIn:                 opIn,
		models.OpNotIn:              not(opIn),
		models.OpIsEmpty:            func(_ *Evaluator, field any, _ models.Condition) (bool, error) { return isEmpty(field), nil },
		models.OpIsNotEmpty:         func(_ *Evaluator, field any, _ models.Condition) (bool, error) { return !isEmpty(field), nil },
		models.OpIsTrue:             truthiness(true),
		models.OpIsFalse:            truthiness(false),
	}
}

// Evaluator evaluates condition trees. It is safe for concurrent use; the only state
// it holds is a cache of compiled patterns for the matches operator.
type Evaluator struct {
	patterns *patternCache
}

// NewEvaluator creates an evaluator with its own pattern cache.
func NewEvaluator() (*Evaluator, error) {
	patterns, err := newPatternCache()
	if err != nil {
		return nil, err
	}

	return &Evaluator{patterns: patterns}, nil
}

// Close releases the pattern cache.
func (e *Evaluator) Close() {
	e.patterns.Close()
}

// Evaluate evaluates a condition group against entity. An empty AND group is true and
// an empty OR group is false.
func (e *Evaluator) Evaluate(group models.ConditionGroup, entity map[string]any) (bool, error) {
	switch group.Operator {
	case models.GroupAnd:
		for _, node := range group.Conditions {
			ok, err := e.EvaluateNode(node, entity)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	case models.GroupOr:
		for _, node := range group.Conditions {
			ok, err := e.EvaluateNode(node, entity)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, &EvaluationError{Message: fmt.Sprintf("unsupported group operator %q", group.Operator)}
	}
}

// EvaluateNode evaluates either a leaf or a nested group.
func (e *Evaluator) EvaluateNode(node models.ConditionNode, entity map[string]any) (bool, error) {
	switch {
	case node.Group != nil:
		return e.Evaluate(*node.Group, entity)
	case node.Condition != nil:
		return e.EvaluateCondition(*node.Condition, entity)
	default:
		return false, &EvaluationError{Message: "empty condition node"}
	}
}

// EvaluateCondition evaluates a single leaf. A missing field satisfies only isEmpty;
// negate is applied last.
func (e *Evaluator) EvaluateCondition(c models.Condition, entity map[string]any) (bool, error) {
	fn, ok := operators[c.Operator]
	if !ok {
		return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "unsupported operator"}
	}

	field, present := Lookup(entity, c.Field)

	var result bool

	switch {
	case !present:
		result = c.Operator == models.OpIsEmpty
	default:
		var err error

		result, err = fn(e, field, c)
		if err != nil {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Message: "operator execution failed", Err: err}
		}
	}

	if c.Negate {
		return !result, nil
	}

	return result, nil
}

// Lookup resolves a dotted path such as "payee.name" through nested maps. A JSON null is
// reported as absent.
func Lookup(entity map[string]any, path string) (any, bool) {
	if entity == nil || path == "" {
		return nil, false
	}

	if v, ok := entity[path]; ok {
		return v, v != nil
	}

	var current any = entity

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, current != nil
}

func not(fn operatorFunc) operatorFunc {
	return func(e *Evaluator, field any, c models.Condition) (bool, error) {
		ok, err := fn(e, field, c)
		if err != nil {
			return false, err
		}

		return !ok, nil
	}
}

func opEquals(_ *Evaluator, field any, c models.Condition) (bool, error) {
	return equal(field, c.Value), nil
}

func ordered(accept func(cmp int) bool) operatorFunc {
	return func(_ *Evaluator, field any, c models.Condition) (bool, error) {
		if c.Value == nil {
			return false, nil
		}

		return accept(compare(field, c.Value)), nil
	}
}

func opBetween(_ *Evaluator, field any, c models.Condition) (bool, error) {
	if c.Value == nil || c.Value2 == nil {
		return false, fmt.Errorf("between requires value and value2")
	}

	low, high := c.Value, c.Value2
	if compare(low, high) > 0 {
		low, high = high, low
	}

	return compare(field, low) >= 0 && compare(field, high) <= 0, nil
}

func opContains(_ *Evaluator, field any, c models.Condition) (bool, error) {
	if items, ok := toList(field); ok {
		for _, item := range items {
			if equal(item, c.Value) {
				return true, nil
			}
		}

		return false, nil
	}

	return strings.Contains(fold(field), fold(c.Value)), nil
}

func stringOp(match func(s, affix string) bool) operatorFunc {
	return func(_ *Evaluator, field any, c models.Condition) (bool, error) {
		return match(fold(field), fold(c.Value)), nil
	}
}

func opMatches(e *Evaluator, field any, c models.Condition) (bool, error) {
	pattern, ok := c.Value.(string)
	if !ok {
		return false, fmt.Errorf("matches requires a string pattern, got %T", c.Value)
	}

	re, err := e.patterns.Compile(pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(toString(field)), nil
}

func opIn(_ *Evaluator, field any, c models.Condition) (bool, error) {
	candidates, ok := toList(c.Value)
	if !ok {
		s, isString := c.Value.(string)
		if !isString {
			return false, fmt.Errorf("in requires a list value, got %T", c.Value)
		}

		for _, part := range strings.Split(s, ",") {
			candidates = append(candidates, strings.TrimSpace(part))
		}
	}

	for _, candidate := range candidates {
		if equal(field, candidate) {
			return true, nil
		}
	}

	return false, nil
}

func truthiness(want bool) operatorFunc {
	return func(_ *Evaluator, field any, _ models.Condition) (bool, error) {
		b, ok := toBool(field)

		return ok && b == want, nil
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
