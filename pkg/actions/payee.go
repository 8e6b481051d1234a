package actions

import (
	"context"
	"errors"

	"github.com/budgetflow/automations/pkg/models"
)

func payees(s *Services) updater {
	if s.Payees == nil {
		return nil
	}

	return s.Payees
}

func payeeHandlers() []Handler {
	return []Handler{
		setter(setterSpec{
			actionType:  "renamePayee",
			entityType:  models.EntityPayee,
			name:        "Rename payee",
			description: "Renames the payee. Supports {{field}} placeholders.",
			field:       "name",
			schema:      objectSchema([]string{"name"}, map[string]any{"name": stringProperty("New payee name")}),
			value:       textValue("name"),
			serviceName: "payees",
			service:     payees,
		}),
		{
			Type:        "mergePayee",
			EntityType:  models.EntityPayee,
			Name:        "Merge payee",
			Description: "Merges the payee into another payee.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"targetPayeeId"}, map[string]any{"targetPayeeId": idProperty("Payee to merge into")}),
			Run:         runMergePayee,
		},
		{
			Type:        "createPayeeAlias",
			EntityType:  models.EntityPayee,
			Name:        "Create payee alias",
			Description: "Adds an alias to the payee unless it already exists.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"alias"}, map[string]any{"alias": stringProperty("Alias text")}),
			Run:         runCreatePayeeAlias,
		},
		setter(setterSpec{
			actionType:  "setDefaultCategory",
			entityType:  models.EntityPayee,
			name:        "Set default category",
			description: "Sets the category new transactions for this payee default to.",
			field:       "defaultCategoryId",
			schema:      objectSchema([]string{"categoryId"}, map[string]any{"categoryId": idProperty("Default category")}),
			value:       idValue("categoryId"),
			serviceName: "payees",
			service:     payees,
		}),
	}
}

func runMergePayee(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	target, err := idParam(inv.Params, "targetPayeeId")
	if err != nil {
		return nil, err
	}

	targetID := idString(target)
	if targetID == inv.EntityID {
		return nil, errors.New("cannot merge a payee into itself")
	}

	changes := inv.Set("mergedInto", target)

	return inv.Commit(changes, func() error {
		if inv.Services.Payees == nil {
			return notConfigured("payees")
		}

		return inv.Services.Payees.Merge(ctx, inv.EntityID, targetID, inv.Exec)
	})
}

func runCreatePayeeAlias(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	alias, err := stringParam(inv.Params, "alias")
	if err != nil {
		return nil, err
	}

	alias = Interpolate(alias, inv.Entity)

	aliases := toStrings(inv.Field("aliases"))
	if containsFold(aliases, alias) {
		return nil, nil
	}

	before := aliases
	if before == nil {
		before = []string{}
	}

	changes := map[string]models.Change{"aliases": {From: before, To: append(append([]string{}, aliases...), alias)}}

	return inv.Commit(changes, func() error {
		if inv.Services.Payees == nil {
			return notConfigured("payees")
		}

		return inv.Services.Payees.CreateAlias(ctx, inv.EntityID, alias, inv.Exec)
	})
}
