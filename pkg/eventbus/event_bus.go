// Package eventbus provides the process-wide publish/subscribe emitter for entity events.
package eventbus

import (
	"context"
	"errors"

	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
)

var ErrEmitterClosed = errors.New("event emitter is closed")

// Handler processes one delivered event. Returned errors are logged; the event is not redelivered.
type Handler func(ctx context.Context, event *events.EntityEvent) error

// Unsubscribe removes a handler. Calling it more than once is a no-op.
type Unsubscribe func()

type Publisher interface {
	// Emit schedules delivery of event and returns without waiting for handlers.
	Emit(ctx context.Context, event *events.EntityEvent) error
}

type Subscriber interface {
	// On registers handler for (entityType, event). Handlers of the same key run in subscription order.
	On(entityType models.EntityType, event string, handler Handler) (Unsubscribe, error)
}

type Emitter interface {
	Publisher
	Subscriber
	Close() error
}
