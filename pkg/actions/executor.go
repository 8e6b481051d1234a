package actions

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/budgetflow/automations/pkg/models"
)

// Executor runs a rule's actions in order against the injected services.
type Executor struct {
	catalog  *Catalog
	services *Services
	logger   *slog.Logger
}

func NewExecutor(catalog *Catalog, services *Services, logger *slog.Logger) *Executor {
	if services == nil {
		services = &Services{}
	}

	return &Executor{
		catalog:  catalog,
		services: services,
		logger:   logger.With("module", "action_executor"),
	}
}

// Catalog returns the catalog the executor dispatches through.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Execute runs actions in order and returns one result per attempted action. A failed
// action stops the batch unless it sets ContinueOnError, so the result slice can be
// shorter than actions. Later actions see the changes earlier ones produced.
func (e *Executor) Execute(
	ctx context.Context,
	actions []models.Action,
	entity map[string]any,
	entityType models.EntityType,
	entityID string,
	execCtx *ExecutionContext,
) []models.ActionResult {
	if execCtx == nil {
		execCtx = &ExecutionContext{}
	}

	working := maps.Clone(entity)
	if working == nil {
		working = map[string]any{}
	}

	results := make([]models.ActionResult, 0, len(actions))

	for _, action := range actions {
		result := e.executeOne(ctx, action, working, entityType, entityID, execCtx)
		results = append(results, result)

		if !result.Success {
			e.logger.WarnContext(ctx, "Action failed",
				"workspace_id", execCtx.WorkspaceID,
				"rule_id", execCtx.RuleID,
				"action_id", action.ID,
				"action_type", action.Type,
				"error", result.Error)

			if !action.ContinueOnError {
				break
			}

			continue
		}

		for field, change := range result.Changes {
			if field != models.DryRunMarker {
				working[field] = change.To
			}
		}
	}

	return results
}

func (e *Executor) executeOne(
	ctx context.Context,
	action models.Action,
	entity map[string]any,
	entityType models.EntityType,
	entityID string,
	execCtx *ExecutionContext,
) (result models.ActionResult) {
	result = models.ActionResult{ActionID: action.ID, ActionType: action.Type}

	handler, ok := e.catalog.Lookup(entityType, action.Type)
	if !ok {
		result.Error = "Unknown action type: " + action.Type

		return result
	}

	if handler.NeedsEntity && entityID == "" {
		result.Error = "No entity ID"

		return result
	}

	err := e.catalog.ValidateParams(action.Type, action.Params)
	if err != nil {
		result.Error = err.Error()

		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Changes = nil
			result.Error = fmt.Sprintf("action panicked: %v", r)
		}
	}()

	params := action.Params
	if params == nil {
		params = map[string]any{}
	}

	changes, err := handler.Run(ctx, &Invocation{
		Action:     action,
		Params:     params,
		Entity:     entity,
		EntityType: entityType,
		EntityID:   entityID,
		Exec:       execCtx,
		Services:   e.services,
	})
	if err != nil {
		result.Error = err.Error()

		return result
	}

	result.Success = true
	result.Changes = changes

	return result
}
