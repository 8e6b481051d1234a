package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

type updater interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
}

// setterSpec describes an action that writes one entity field through a service Update.
type setterSpec struct {
	actionType  string
	entityType  models.EntityType
	name        string
	description string
	field       string
	schema      map[string]any
	value       func(inv *Invocation) (any, error)
	serviceName string
	service     func(s *Services) updater
}

func setter(spec setterSpec) Handler {
	return Handler{
		Type:        spec.actionType,
		EntityType:  spec.entityType,
		Name:        spec.name,
		Description: spec.description,
		NeedsEntity: true,
		Schema:      spec.schema,
		Run: func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
			value, err := spec.value(inv)
			if err != nil {
				return nil, err
			}

			changes := inv.Set(spec.field, value)

			return inv.Commit(changes, func() error {
				svc := spec.service(inv.Services)
				if svc == nil {
					return notConfigured(spec.serviceName)
				}

				return svc.Update(ctx, inv.EntityID, patchFrom(changes), inv.Exec)
			})
		},
	}
}

func idValue(key string) func(inv *Invocation) (any, error) {
	return func(inv *Invocation) (any, error) {
		return idParam(inv.Params, key)
	}
}

func textValue(key string) func(inv *Invocation) (any, error) {
	return func(inv *Invocation) (any, error) {
		s, err := stringParam(inv.Params, key)
		if err != nil {
			return nil, err
		}

		return Interpolate(s, inv.Entity), nil
	}
}

func flagValue(key string) func(inv *Invocation) (any, error) {
	return func(inv *Invocation) (any, error) {
		return boolParam(inv.Params, key, true)
	}
}

func amountValue(key string) func(inv *Invocation) (any, error) {
	return func(inv *Invocation) (any, error) {
		return numberParam(inv.Params, key)
	}
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func idProperty(description string) map[string]any {
	return map[string]any{
		"type":        []string{"string", "integer"},
		"description": description,
	}
}

func stringProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"minLength":   1,
		"description": description,
	}
}

func boolProperty(description string) map[string]any {
	return map[string]any{
		"type":        "boolean",
		"default":     true,
		"description": description,
	}
}

func numberProperty(description string) map[string]any {
	return map[string]any{
		"type":        "number",
		"description": description,
	}
}
