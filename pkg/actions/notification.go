package actions

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

func notificationHandlers() []Handler {
	return []Handler{
		{
			Type:        "sendNotification",
			Name:        "Send notification",
			Description: "Sends a notification. Title and message support {{field}} placeholders.",
			Schema: objectSchema([]string{"message"}, map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Notification title",
				},
				"message": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Notification body",
					"examples": []string{
						"Large purchase at {{payee.name}}: {{amount}}",
						"Budget {{name}} is overspent",
					},
				},
				"channel": map[string]any{
					"type":        "string",
					"description": "Delivery channel",
					"default":     "in_app",
				},
			}),
			Run: runSendNotification,
		},
	}
}

func runSendNotification(ctx context.Context, inv *Invocation) (map[string]models.Change, error) {
	message, err := stringParam(inv.Params, "message")
	if err != nil {
		return nil, err
	}

	notification := Notification{
		EntityType: inv.EntityType,
		EntityID:   inv.EntityID,
		Title:      Interpolate(optionalString(inv.Params, "title"), inv.Entity),
		Message:    Interpolate(message, inv.Entity),
		Channel:    optionalString(inv.Params, "channel"),
	}

	if notification.Channel == "" {
		notification.Channel = "in_app"
	}

	if inv.Exec != nil {
		notification.WorkspaceID = inv.Exec.WorkspaceID
		notification.RuleID = inv.Exec.RuleID
	}

	changes := map[string]models.Change{"notification": {From: nil, To: notification.Message}}

	return inv.Commit(changes, func() error {
		if inv.Services.Notifications == nil {
			return notConfigured("notifications")
		}

		return inv.Services.Notifications.Send(ctx, notification, inv.Exec)
	})
}
