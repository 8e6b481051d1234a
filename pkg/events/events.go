// Package events defines the domain event payload published when financial entities change.
package events

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/google/uuid"
)

// TopicPrefix namespaces every entity event topic.
const TopicPrefix = "automation"

const (
	WorkspaceMetadataKey  = "workspace_id"
	EntityTypeMetadataKey = "entity_type"
	EventMetadataKey      = "event"
)

var (
	ErrWorkspaceRequired  = errors.New("workspace_id is required")
	ErrInvalidEntityType  = errors.New("invalid entity type")
	ErrEventNameRequired  = errors.New("event name is required")
	ErrEventNameMalformed = errors.New("event name must not contain dots or whitespace")
)

// EntityEvent is published when an entity of a workspace is created, changed or otherwise acted on.
type EntityEvent struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	EntityType  models.EntityType `json:"entity_type"`
	Event       string            `json:"event"`
	EntityID    string            `json:"entity_id,omitempty"`
	Entity      map[string]any    `json:"entity"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewEntityEvent(workspaceID string, entityType models.EntityType, event, entityID string, entity map[string]any) *EntityEvent {
	if entity == nil {
		entity = map[string]any{}
	}

	return &EntityEvent{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		EntityType:  entityType,
		Event:       event,
		EntityID:    entityID,
		Entity:      entity,
		Timestamp:   time.Now().UTC(),
	}
}

func (e *EntityEvent) Validate() error {
	if e.WorkspaceID == "" {
		return ErrWorkspaceRequired
	}

	if !e.EntityType.Valid() {
		return ErrInvalidEntityType
	}

	return ValidateEventName(e.Event)
}

// Topic returns the topic the event is published on.
func (e *EntityEvent) Topic() string {
	return Topic(e.EntityType, e.Event)
}

// Topic names the topic for an (entity type, event) pair, e.g. automation.transaction.created.
func Topic(entityType models.EntityType, event string) string {
	return TopicPrefix + "." + string(entityType) + "." + event
}

// ValidateEventName rejects names that would break topic naming.
func ValidateEventName(event string) error {
	if event == "" {
		return ErrEventNameRequired
	}

	if strings.ContainsAny(event, ". \t\n") {
		return ErrEventNameMalformed
	}

	return nil
}

// Key identifies a subscription: one event of one entity type.
type Key struct {
	EntityType models.EntityType
	Event      string
}

func (k Key) Topic() string {
	return Topic(k.EntityType, k.Event)
}

var catalog = map[models.EntityType][]string{
	models.EntityTransaction: {"created", "updated", "deleted", "imported"},
	models.EntityAccount:     {"created", "updated", "closed", "balanceChanged"},
	models.EntityPayee:       {"created", "updated", "merged"},
	models.EntityCategory:    {"created", "updated", "deleted"},
	models.EntitySchedule:    {"created", "due", "executed", "skipped"},
	models.EntityBudget:      {"created", "updated", "overspent", "rolledOver"},
}

// KnownEvents returns the events the host application publishes for entityType.
func KnownEvents(entityType models.EntityType) []string {
	return slices.Clone(catalog[entityType])
}

// IsKnownEvent reports whether event is in the catalog for entityType.
func IsKnownEvent(entityType models.EntityType, event string) bool {
	return slices.Contains(catalog[entityType], event)
}

// CatalogKeys returns every catalogued (entity type, event) pair in entity type order.
func CatalogKeys() []Key {
	keys := make([]Key, 0)

	for _, entityType := range models.EntityTypes {
		for _, event := range catalog[entityType] {
			keys = append(keys, Key{EntityType: entityType, Event: event})
		}
	}

	return keys
}
