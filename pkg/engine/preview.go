package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/models"
)

// ActionPreview reports whether one configured action would run.
type ActionPreview struct {
	ActionID     string `json:"action_id,omitempty"`
	Type         string `json:"type"`
	WouldExecute bool   `json:"would_execute"`
}

// TestResult is the outcome of evaluating an unsaved or stored rule against a sample entity.
type TestResult struct {
	Matched bool                  `json:"matched"`
	Actions []ActionPreview       `json:"actions"`
	Results []models.ActionResult `json:"results,omitempty"`
}

// TestRule evaluates rule against entity without touching the repository or any service.
func (e *Engine) TestRule(_ context.Context, rule *models.Rule, entity map[string]any, entityType models.EntityType) (*TestResult, error) {
	if entityType == "" {
		entityType = rule.Trigger.EntityType
	}

	if !entityType.Valid() {
		return nil, fmt.Errorf("invalid entity type: %s", entityType)
	}

	matched, err := e.evaluator.Evaluate(rule.Conditions, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate conditions: %w", err)
	}

	previews := make([]ActionPreview, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		previews = append(previews, ActionPreview{
			ActionID:     action.ID,
			Type:         action.Type,
			WouldExecute: matched,
		})
	}

	return &TestResult{Matched: matched, Actions: previews}, nil
}

// DryRun is TestRule plus a dry-run execution of the actions of a matching rule,
// reporting the changes they would make. No service is called.
func (e *Engine) DryRun(ctx context.Context, rule *models.Rule, entity map[string]any, entityType models.EntityType, entityID string) (*TestResult, error) {
	result, err := e.TestRule(ctx, rule, entity, entityType)
	if err != nil || !result.Matched {
		return result, err
	}

	if entityType == "" {
		entityType = rule.Trigger.EntityType
	}

	result.Results = e.executor.Execute(ctx, rule.Actions, maps.Clone(entity), entityType, entityID, &actions.ExecutionContext{
		WorkspaceID: e.workspaceID,
		RuleID:      rule.ID,
		DryRun:      true,
		Store:       e.store,
	})

	return result, nil
}
