package actions

import (
	"context"
	"strings"

	"github.com/budgetflow/automations/pkg/models"
)

// ReviewedMarker is appended to transaction notes by markReviewed.
const ReviewedMarker = "[REVIEWED]"

func transactions(s *Services) updater {
	if s.Transactions == nil {
		return nil
	}

	return s.Transactions
}

func transactionHandlers() []Handler {
	return []Handler{
		setter(setterSpec{
			actionType:  "setCategory",
			entityType:  models.EntityTransaction,
			name:        "Set category",
			description: "Assigns the transaction to a category.",
			field:       "categoryId",
			schema:      objectSchema([]string{"categoryId"}, map[string]any{"categoryId": idProperty("Target category")}),
			value:       idValue("categoryId"),
			serviceName: "transactions",
			service:     transactions,
		}),
		setter(setterSpec{
			actionType:  "setPayee",
			entityType:  models.EntityTransaction,
			name:        "Set payee",
			description: "Assigns the transaction to a payee.",
			field:       "payeeId",
			schema:      objectSchema([]string{"payeeId"}, map[string]any{"payeeId": idProperty("Target payee")}),
			value:       idValue("payeeId"),
			serviceName: "transactions",
			service:     transactions,
		}),
		setter(setterSpec{
			actionType:  "setNotes",
			entityType:  models.EntityTransaction,
			name:        "Set notes",
			description: "Replaces the transaction notes. Supports {{field}} placeholders.",
			field:       "notes",
			schema: objectSchema([]string{"notes"}, map[string]any{
				"notes": map[string]any{"type": "string", "description": "New notes"},
			}),
			value:       textValue("notes"),
			serviceName: "transactions",
			service:     transactions,
		}),
		{
			Type:        "appendNotes",
			EntityType:  models.EntityTransaction,
			Name:        "Append notes",
			Description: "Appends a line to the transaction notes. Supports {{field}} placeholders.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"text"}, map[string]any{"text": stringProperty("Text to append")}),
			Run:         runAppendNotes,
		},
		{
			Type:        "markReviewed",
			EntityType:  models.EntityTransaction,
			Name:        "Mark reviewed",
			Description: "Adds the " + ReviewedMarker + " marker to the transaction notes once.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run:         runMarkReviewed,
		},
		setter(setterSpec{
			actionType:  "setCleared",
			entityType:  models.EntityTransaction,
			name:        "Set cleared",
			description: "Marks the transaction as cleared or uncleared.",
			field:       "cleared",
			schema:      objectSchema(nil, map[string]any{"cleared": boolProperty("Cleared state")}),
			value:       flagValue("cleared"),
			serviceName: "transactions",
			service:     transactions,
		}),
		setter(setterSpec{
			actionType:  "setFlag",
			entityType:  models.EntityTransaction,
			name:        "Set flag",
			description: "Sets the transaction flag color. An empty flag clears it.",
			field:       "flag",
			schema: objectSchema([]string{"flag"}, map[string]any{
				"flag": map[string]any{"type": "string", "description": "Flag color"},
			}),
			value: func(inv *Invocation) (any, error) {
				flag, err := stringParam(inv.Params, "flag")
				if err != nil {
					return nil, err
				}

				if flag == "" {
					return nil, nil
				}

				return flag, nil
			},
			serviceName: "transactions",
			service:     transactions,
		}),
		{
			Type:        "addTag",
			EntityType:  models.EntityTransaction,
			Name:        "Add tag",
			Description: "Adds a tag to the transaction unless it is already present.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"tag"}, map[string]any{"tag": stringProperty("Tag to add")}),
			Run:         runAddTag,
		},
		{
			Type:        "assignToBudget",
			EntityType:  models.EntityTransaction,
			Name:        "Assign to budget",
			Description: "Assigns the transaction to a budget.",
			NeedsEntity: true,
			Schema:      objectSchema([]string{"budgetId"}, map[string]any{"budgetId": idProperty("Target budget")}),
			Run:         runAssignToBudget,
		},
	}
}

func currentNotes(inv *Invocation) string {
	notes, _ := inv.Field("notes").(string)

	return notes
}

func updateNotes(ctx context.Context, inv *Invocation, changes map[string]models.Change) (map[string]models.Change, error) {
	return inv.Commit(changes, func() error {
		if inv.Services.Transactions == nil {
			return notConfigured("transactions")
		}

		return inv.Services.Transactions.Update(ctx, inv.EntityID, patchFrom(changes), inv.Exec)
	})
}

func runAppendNotes(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	text, err := stringParam(inv.Params, "text")
	if err != nil {
		return nil, err
	}

	text = Interpolate(text, inv.Entity)
	if text == "" {
		return nil, nil
	}

	notes := currentNotes(inv)

	updated := text
	if notes != "" {
		updated = notes + "\n" + text
	}

	return updateNotes(ctx, inv, map[string]models.Change{"notes": {From: notes, To: updated}})
}

func runMarkReviewed(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	notes := currentNotes(inv)
	if strings.Contains(notes, ReviewedMarker) {
		return nil, nil
	}

	updated := ReviewedMarker
	if notes != "" {
		updated = notes + " " + ReviewedMarker
	}

	return updateNotes(ctx, inv, map[string]models.Change{"notes": {From: notes, To: updated}})
}

func runAddTag(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	tag, err := stringParam(inv.Params, "tag")
	if err != nil {
		return nil, err
	}

	tags := toStrings(inv.Field("tags"))
	if containsFold(tags, tag) {
		return nil, nil
	}

	before := tags
	if before == nil {
		before = []string{}
	}

	changes := map[string]models.Change{"tags": {From: before, To: append(append([]string{}, tags...), tag)}}

	return inv.Commit(changes, func() error {
		if inv.Services.Transactions == nil {
			return notConfigured("transactions")
		}

		return inv.Services.Transactions.Update(ctx, inv.EntityID, patchFrom(changes), inv.Exec)
	})
}

func runAssignToBudget(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	budgetID, err := idParam(inv.Params, "budgetId")
	if err != nil {
		return nil, err
	}

	changes := inv.Set("budgetId", budgetID)

	return inv.Commit(changes, func() error {
		if inv.Services.Budgets == nil {
			return notConfigured("budgets")
		}

		return inv.Services.Budgets.AssignTransaction(ctx, idString(budgetID), inv.EntityID, inv.Exec)
	})
}
