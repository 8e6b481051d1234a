package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

func categories(s *Services) updater {
	if s.Categories == nil {
		return nil
	}

	return s.Categories
}

func categoryHandlers() []Handler {
	return []Handler{
		setter(setterSpec{
			actionType:  "renameCategory",
			entityType:  models.EntityCategory,
			name:        "Rename category",
			description: "Renames the category. Supports {{field}} placeholders.",
			field:       "name",
			schema:      objectSchema([]string{"name"}, map[string]any{"name": stringProperty("New category name")}),
			value:       textValue("name"),
			serviceName: "categories",
			service:     categories,
		}),
		{
			Type:        "moveToGroup",
			EntityType:  models.EntityCategory,
			Name:        "Move to group",
			Description: "Moves the category into another category group.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"groupId"}, map[string]any{"groupId": idProperty("Target category group")}),
			Run: func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
				groupID, err := idParam(inv.Params, "groupId")
				if err != nil {
					return nil, err
				}

				changes := inv.Set("groupId", groupID)

				return inv.Commit(changes, func() error {
					if inv.Services.Categories == nil {
						return notConfigured("categories")
					}

					return inv.Services.Categories.MoveToGroup(ctx, inv.EntityID, idString(groupID), inv.Exec)
				})
			},
		},
		setter(setterSpec{
			actionType:  "setHidden",
			entityType:  models.EntityCategory,
			name:        "Set hidden",
			description: "Hides or shows the category.",
			field:       "hidden",
			schema:      objectSchema(nil, map[string]any{"hidden": boolProperty("Hidden state")}),
			value:       flagValue("hidden"),
			serviceName: "categories",
			service:     categories,
		}),
	}
}
