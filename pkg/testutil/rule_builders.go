// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/budgetflow/automations/pkg/models"
	"github.com/google/uuid"
)

// CreateTestRuleInput creates a rule input with default values that can be overridden:
// transaction.created, amount > 100 AND status = pending, setCategory(5).
func CreateTestRuleInput(overrides ...func(*models.RuleInput)) models.RuleInput {
	input := models.RuleInput{
		Name:        "Large pending transaction",
		Description: "Categorizes large pending transactions",
		Trigger:     models.Trigger{EntityType: models.EntityTransaction, Event: "created"},
		Conditions: models.All(
			models.Leaf(models.Condition{ID: uuid.NewString(), Field: "amount", Operator: models.OpGreaterThan, Value: 100.0}),
			models.Leaf(models.Condition{ID: uuid.NewString(), Field: "status", Operator: models.OpEquals, Value: "pending"}),
		),
		Actions: []models.Action{
			{ID: uuid.NewString(), Type: "setCategory", Params: map[string]any{"categoryId": 5.0}},
		},
	}

	for _, override := range overrides {
		override(&input)
	}

	return input
}

// WithName sets the rule name.
func WithName(name string) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Name = name
	}
}

// WithPriority sets the rule priority.
func WithPriority(priority int) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Priority = priority
	}
}

// WithTrigger sets the trigger pair.
func WithTrigger(entityType models.EntityType, event string) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Trigger.EntityType = entityType
		in.Trigger.Event = event
	}
}

// WithDebounce sets the trigger debounce window.
func WithDebounce(ms int) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Trigger.DebounceMs = ms
	}
}

// WithConditions replaces the condition tree.
func WithConditions(group models.ConditionGroup) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Conditions = group
	}
}

// WithActions replaces the action list.
func WithActions(actions ...models.Action) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.Actions = actions
	}
}

// WithEnabled sets the enabled flag.
func WithEnabled(enabled bool) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.IsEnabled = &enabled
	}
}

// WithStopOnMatch sets the stop-on-match flag.
func WithStopOnMatch(stop bool) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.StopOnMatch = &stop
	}
}

// WithRunOnce sets the run-once flag.
func WithRunOnce(once bool) func(*models.RuleInput) {
	return func(in *models.RuleInput) {
		in.RunOnce = &once
	}
}

// MatchAll makes the rule match every entity.
func MatchAll() func(*models.RuleInput) {
	return WithConditions(models.All())
}

// Action builds an action with a generated id.
func Action(actionType string, params map[string]any) models.Action {
	return models.Action{ID: uuid.NewString(), Type: actionType, Params: params}
}
