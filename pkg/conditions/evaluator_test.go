package conditions

import (
	"testing"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()

	evaluator, err := NewEvaluator()
	require.NoError(t, err)
	t.Cleanup(evaluator.Close)

	return evaluator
}

func leaf(field string, op models.Operator, value any) models.ConditionNode {
	return models.Leaf(models.Condition{Field: field, Operator: op, Value: value})
}

func TestEvaluate_EmptyGroups(t *testing.T) {
	evaluator := newTestEvaluator(t)

	matched, err := evaluator.Evaluate(models.All(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, matched, "empty AND group is true")

	matched, err = evaluator.Evaluate(models.Any(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, matched, "empty OR group is false")
}

func TestEvaluate_Groups(t *testing.T) {
	evaluator := newTestEvaluator(t)
	entity := map[string]any{"amount": 150, "status": "pending", "payee": map[string]any{"name": "Coffee Shop"}}

	tests := []struct {
		name  string
		group models.ConditionGroup
		want  bool
	}{
		{
			name:  "and all true",
			group: models.All(leaf("amount", models.OpGreaterThan, 100), leaf("status", models.OpEquals, "pending")),
			want:  true,
		},
		{
			name:  "and one false",
			group: models.All(leaf("amount", models.OpGreaterThan, 100), leaf("status", models.OpEquals, "cleared")),
			want:  false,
		},
		{
			name:  "or one true",
			group: models.Any(leaf("amount", models.OpLessThan, 10), leaf("status", models.OpEquals, "pending")),
			want:  true,
		},
		{
			name: "nested group",
			group: models.All(
				leaf("payee.name", models.OpContains, "coffee"),
				models.Group(models.Any(leaf("amount", models.OpEquals, 1), leaf("amount", models.OpEquals, 150))),
			),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := evaluator.Evaluate(tt.group, entity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matched)
		})
	}
}

func TestEvaluateCondition_Operators(t *testing.T) {
	evaluator := newTestEvaluator(t)
	entity := map[string]any{
		"amount":   150.0,
		"text":     "150",
		"status":   "Pending",
		"memo":     "Monthly GYM membership",
		"tags":     []any{"food", "weekly"},
		"empty":    "",
		"none":     []any{},
		"cleared":  true,
		"reviewed": "false",
	}

	tests := []struct {
		name      string
		condition models.Condition
		want      bool
	}{
		{"equals number", models.Condition{Field: "amount", Operator: models.OpEquals, Value: 150}, true},
		{"equals numeric string", models.Condition{Field: "text", Operator: models.OpEquals, Value: 150}, true},
		{"equals case-insensitive", models.Condition{Field: "status", Operator: models.OpEquals, Value: "pending"}, true},
		{"notEquals", models.Condition{Field: "status", Operator: models.OpNotEquals, Value: "cleared"}, true},
		{"greaterThan", models.Condition{Field: "amount", Operator: models.OpGreaterThan, Value: 149.99}, true},
		{"greaterThanOrEqual", models.Condition{Field: "amount", Operator: models.OpGreaterThanOrEqual, Value: "150"}, true},
		{"lessThan", models.Condition{Field: "amount", Operator: models.OpLessThan, Value: 150}, false},
		{"lessThanOrEqual", models.Condition{Field: "amount", Operator: models.OpLessThanOrEqual, Value: 150}, true},
		{"ordering without value", models.Condition{Field: "amount", Operator: models.OpGreaterThan}, false},
		{"between inclusive", models.Condition{Field: "amount", Operator: models.OpBetween, Value: 100, Value2: 150}, true},
		{"between reversed bounds", models.Condition{Field: "amount", Operator: models.OpBetween, Value: 200, Value2: 100}, true},
		{"notBetween", models.Condition{Field: "amount", Operator: models.OpNotBetween, Value: 1, Value2: 10}, true},
		{"contains substring", models.Condition{Field: "memo", Operator: models.OpContains, Value: "gym"}, true},
		{"contains list element", models.Condition{Field: "tags", Operator: models.OpContains, Value: "FOOD"}, true},
		{"notContains", models.Condition{Field: "memo", Operator: models.OpNotContains, Value: "rent"}, true},
		{"startsWith", models.Condition{Field: "memo", Operator: models.OpStartsWith, Value: "monthly"}, true},
		{"endsWith", models.Condition{Field: "memo", Operator: models.OpEndsWith, Value: "SHIP"}, true},
		{"matches", models.Condition{Field: "memo", Operator: models.OpMatches, Value: `(?i)^monthly\s+gym`}, true},
		{"matches fails", models.Condition{Field: "memo", Operator: models.OpMatches, Value: `^gym`}, false},
		{"in list", models.Condition{Field: "status", Operator: models.OpIn, Value: []any{"cleared", "pending"}}, true},
		{"in comma string", models.Condition{Field: "status", Operator: models.OpIn, Value: "cleared, pending"}, true},
		{"notIn", models.Condition{Field: "status", Operator: models.OpNotIn, Value: []string{"cleared"}}, true},
		{"isEmpty empty string", models.Condition{Field: "empty", Operator: models.OpIsEmpty}, true},
		{"isEmpty empty list", models.Condition{Field: "none", Operator: models.OpIsEmpty}, true},
		{"isNotEmpty", models.Condition{Field: "memo", Operator: models.OpIsNotEmpty}, true},
		{"isTrue", models.Condition{Field: "cleared", Operator: models.OpIsTrue}, true},
		{"isFalse string", models.Condition{Field: "reviewed", Operator: models.OpIsFalse}, true},
		{"isTrue on text", models.Condition{Field: "memo", Operator: models.OpIsTrue}, false},
		{"negate", models.Condition{Field: "status", Operator: models.OpEquals, Value: "pending", Negate: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := evaluator.EvaluateCondition(tt.condition, entity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matched)
		})
	}
}

func TestEvaluateCondition_MissingField(t *testing.T) {
	evaluator := newTestEvaluator(t)
	entity := map[string]any{"category_id": nil}

	for _, op := range SupportedOperators() {
		t.Run(string(op), func(t *testing.T) {
			condition := models.Condition{Field: "category_id", Operator: op, Value: "x", Value2: "y"}

			matched, err := evaluator.EvaluateCondition(condition, entity)
			require.NoError(t, err)
			assert.Equal(t, op == models.OpIsEmpty, matched)

			condition.Field = "absent"
			matched, err = evaluator.EvaluateCondition(condition, entity)
			require.NoError(t, err)
			assert.Equal(t, op == models.OpIsEmpty, matched)
		})
	}

	negated := models.Condition{Field: "absent", Operator: models.OpEquals, Value: 1, Negate: true}
	matched, err := evaluator.EvaluateCondition(negated, entity)
	require.NoError(t, err)
	assert.True(t, matched, "negate matches absence")
}

func TestEvaluateCondition_Errors(t *testing.T) {
	evaluator := newTestEvaluator(t)
	entity := map[string]any{"amount": 10, "memo": "abc"}

	tests := []struct {
		name      string
		condition models.Condition
	}{
		{"unknown operator", models.Condition{Field: "amount", Operator: "approximately", Value: 10}},
		{"between without value2", models.Condition{Field: "amount", Operator: models.OpBetween, Value: 1}},
		{"invalid regex", models.Condition{Field: "memo", Operator: models.OpMatches, Value: "("}},
		{"non-string regex", models.Condition{Field: "memo", Operator: models.OpMatches, Value: 5}},
		{"in with scalar", models.Condition{Field: "amount", Operator: models.OpIn, Value: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluator.EvaluateCondition(tt.condition, entity)
			require.Error(t, err)

			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, tt.condition.Field, evalErr.Field)
		})
	}
}

func TestEvaluate_ReferentiallyTransparent(t *testing.T) {
	evaluator := newTestEvaluator(t)
	group := models.All(leaf("memo", models.OpMatches, "^a"), leaf("amount", models.OpBetween, 1))
	group.Conditions[1].Condition.Value2 = 20
	entity := map[string]any{"memo": "abc", "amount": 10}

	for range 3 {
		matched, err := evaluator.Evaluate(group, entity)
		require.NoError(t, err)
		assert.True(t, matched)
	}
}

func TestLookup(t *testing.T) {
	entity := map[string]any{
		"payee":      map[string]any{"name": "Grocer", "meta": map[string]any{"tier": 2}},
		"payee.name": "flat key wins",
		"nothing":    nil,
	}

	v, ok := Lookup(entity, "payee.meta.tier")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = Lookup(entity, "payee.name")
	assert.True(t, ok)
	assert.Equal(t, "flat key wins", v)

	_, ok = Lookup(entity, "nothing")
	assert.False(t, ok)

	_, ok = Lookup(entity, "payee.missing")
	assert.False(t, ok)

	_, ok = Lookup(nil, "payee")
	assert.False(t, ok)
}
