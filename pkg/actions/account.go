package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

func accounts(s *Services) updater {
	if s.Accounts == nil {
		return nil
	}

	return s.Accounts
}

func accountHandlers() []Handler {
	return []Handler{
		setter(setterSpec{
			actionType:  "renameAccount",
			entityType:  models.EntityAccount,
			name:        "Rename account",
			description: "Renames the account. Supports {{field}} placeholders.",
			field:       "name",
			schema:      objectSchema([]string{"name"}, map[string]any{"name": stringProperty("New account name")}),
			value:       textValue("name"),
			serviceName: "accounts",
			service:     accounts,
		}),
		setter(setterSpec{
			actionType:  "setAccountNotes",
			entityType:  models.EntityAccount,
			name:        "Set account notes",
			description: "Replaces the account notes. Supports {{field}} placeholders.",
			field:       "notes",
			schema: objectSchema([]string{"notes"}, map[string]any{
				"notes": map[string]any{"type": "string", "description": "New notes"},
			}),
			value:       textValue("notes"),
			serviceName: "accounts",
			service:     accounts,
		}),
		{
			Type:        "closeAccount",
			EntityType:  models.EntityAccount,
			Name:        "Close account",
			Description: "Closes the account. Already closed accounts are left untouched.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run: func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
				if closed, _ := inv.Field("closed").(bool); closed {
					return nil, nil
				}

				changes := map[string]models.Change{"closed": {From: false, To: true}}

				return inv.Commit(changes, func() error {
					if inv.Services.Accounts == nil {
						return notConfigured("accounts")
					}

					return inv.Services.Accounts.Close(ctx, inv.EntityID, inv.Exec)
				})
			},
		},
		setter(setterSpec{
			actionType:  "setOffBudget",
			entityType:  models.EntityAccount,
			name:        "Set off-budget",
			description: "Moves the account on or off budget.",
			field:       "offBudget",
			schema:      objectSchema(nil, map[string]any{"offBudget": boolProperty("Off-budget state")}),
			value:       flagValue("offBudget"),
			serviceName: "accounts",
			service:     accounts,
		}),
	}
}
