package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

func budgets(s *Services) updater {
	if s.Budgets == nil {
		return nil
	}

	return s.Budgets
}

func budgetHandlers() []Handler {
	return []Handler{
		setter(setterSpec{
			actionType:  "setBudgetAmount",
			entityType:  models.EntityBudget,
			name:        "Set budget amount",
			description: "Changes the budgeted amount.",
			field:       "amount",
			schema:      objectSchema([]string{"amount"}, map[string]any{"amount": numberProperty("New budgeted amount")}),
			value:       amountValue("amount"),
			serviceName: "budgets",
			service:     budgets,
		}),
		{
			Type:        "rolloverBudget",
			EntityType:  models.EntityBudget,
			Name:        "Roll over budget",
			Description: "Carries the remaining balance into the next period once.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run: func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
				if rolled, _ := inv.Field("rolledOver").(bool); rolled {
					return nil, nil
				}

				changes := map[string]models.Change{"rolledOver": {From: false, To: true}}

				return inv.Commit(changes, func() error {
					if inv.Services.Budgets == nil {
						return notConfigured("budgets")
					}

					return inv.Services.Budgets.Rollover(ctx, inv.EntityID, inv.Exec)
				})
			},
		},
	}
}
