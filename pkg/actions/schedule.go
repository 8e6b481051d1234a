package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

func schedules(s *Services) updater {
	if s.Schedules == nil {
		return nil
	}

	return s.Schedules
}

func scheduleHandlers() []Handler {
	return []Handler{
		{
			Type:        "skipSchedule",
			EntityType:  models.EntitySchedule,
			Name:        "Skip schedule",
			Description: "Skips the next occurrence of the schedule.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run: func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
				changes := map[string]models.Change{"skipped": {From: false, To: true}}

				return inv.Commit(changes, func() error {
					if inv.Services.Schedules == nil {
						return notConfigured("schedules")
					}

					return inv.Services.Schedules.Skip(ctx, inv.EntityID, inv.Exec)
				})
			},
		},
		{
			Type:        "pauseSchedule",
			EntityType:  models.EntitySchedule,
			Name:        "Pause schedule",
			Description: "Pauses the schedule. Paused schedules are left untouched.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run:         runSetPaused(true),
		},
		{
			Type:        "resumeSchedule",
			EntityType:  models.EntitySchedule,
			Name:        "Resume schedule",
			Description: "Resumes a paused schedule. Active schedules are left untouched.",
			NeedsEntity: true,
			Schema:      objectSchema(nil, map[string]any{}),
			Run:         runSetPaused(false),
		},
		setter(setterSpec{
			actionType:  "setScheduleAmount",
			entityType:  models.EntitySchedule,
			name:        "Set schedule amount",
			description: "Changes the amount of future occurrences.",
			field:       "amount",
			schema:      objectSchema([]string{"amount"}, map[string]any{"amount": numberProperty("New amount")}),
			value:       amountValue("amount"),
			serviceName: "schedules",
			service:     schedules,
		}),
	}
}

func runSetPaused(paused bool) RunFunc {
	return func(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
		current, _ := inv.Field("paused").(bool)
		if current == paused {
			return nil, nil
		}

		changes := map[string]models.Change{"paused": {From: current, To: paused}}

		return inv.Commit(changes, func() error {
			if inv.Services.Schedules == nil {
				return notConfigured("schedules")
			}

			if paused {
				return inv.Services.Schedules.Pause(ctx, inv.EntityID, inv.Exec)
			}

			return inv.Services.Schedules.Resume(ctx, inv.EntityID, inv.Exec)
		})
	}
}
