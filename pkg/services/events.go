package services

import (
	"context"
	"log/slog"

	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
)

// Events publishes entity events on behalf of the host application.
type Events struct {
	publisher eventbus.Publisher
	registry  *engine.Registry
	logger    *slog.Logger
}

// NewEvents creates an event service. When registry is set, the workspace's engine is
// started before its first event is published.
func NewEvents(publisher eventbus.Publisher, registry *engine.Registry, logger *slog.Logger) *Events {
	return &Events{
		publisher: publisher,
		registry:  registry,
		logger:    logger.With("module", "event_service"),
	}
}

// Emit validates and publishes an entity event. It does not wait for rules to run.
func (s *Events) Emit(
	ctx context.Context,
	workspaceID string,
	entityType models.EntityType,
	event string,
	entityID string,
	entity map[string]any,
) (*events.EntityEvent, error) {
	entityEvent := events.NewEntityEvent(workspaceID, entityType, event, entityID, entity)

	err := entityEvent.Validate()
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		_, err := s.registry.Get(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
	}

	err = s.publisher.Emit(ctx, entityEvent)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Event emitted",
		"workspace_id", workspaceID, "entity_type", entityType, "event", event, "entity_id", entityID)

	return entityEvent, nil
}
