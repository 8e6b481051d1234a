package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
)

// WatermillEmitter implements Emitter over a watermill publisher and subscriber.
// Each topic has a single watermill subscription whose consumer invokes the
// topic's handlers one after another, in subscription order.
type WatermillEmitter struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu     sync.Mutex
	topics map[string]*topicSubscription
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

type topicSubscription struct {
	topic    string
	cancel   context.CancelFunc
	handlers []registeredHandler
}

type registeredHandler struct {
	id      uint64
	handler Handler
}

func NewWatermillEmitter(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEmitter {
	return &WatermillEmitter{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "event_emitter"),
		topics:     make(map[string]*topicSubscription),
	}
}

func (e *WatermillEmitter) Emit(ctx context.Context, event *events.EntityEvent) error {
	err := event.Validate()
	if err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return ErrEmitterClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(events.WorkspaceMetadataKey, event.WorkspaceID)
	msg.Metadata.Set(events.EntityTypeMetadataKey, string(event.EntityType))
	msg.Metadata.Set(events.EventMetadataKey, event.Event)

	e.logger.DebugContext(ctx, "emitting event",
		"topic", event.Topic(),
		"workspace_id", event.WorkspaceID,
		"entity_id", event.EntityID)

	err = e.publisher.Publish(event.Topic(), msg)
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", event.Topic(), err)
	}

	return nil
}

func (e *WatermillEmitter) On(entityType models.EntityType, event string, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: %s", events.ErrInvalidEntityType, entityType)
	}

	err := events.ValidateEventName(event)
	if err != nil {
		return nil, err
	}

	topic := events.Topic(entityType, event)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEmitterClosed
	}

	sub, ok := e.topics[topic]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())

		messages, err := e.subscriber.Subscribe(ctx, topic)
		if err != nil {
			cancel()

			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		sub = &topicSubscription{topic: topic, cancel: cancel}
		e.topics[topic] = sub

		e.wg.Add(1)

		go e.consume(ctx, sub, messages)
	}

	e.nextID++
	id := e.nextID
	sub.handlers = append(sub.handlers, registeredHandler{id: id, handler: handler})

	var once sync.Once

	return func() {
		once.Do(func() { e.remove(sub, id) })
	}, nil
}

// Subscriptions returns the number of handlers registered for (entityType, event).
func (e *WatermillEmitter) Subscriptions(entityType models.EntityType, event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub, ok := e.topics[events.Topic(entityType, event)]
	if !ok {
		return 0
	}

	return len(sub.handlers)
}

// Close stops every subscription, waits for in-flight handlers and closes the pub/sub.
func (e *WatermillEmitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()

		return nil
	}

	e.closed = true
	for _, sub := range e.topics {
		sub.cancel()
	}

	e.topics = make(map[string]*topicSubscription)
	e.mu.Unlock()

	e.wg.Wait()

	return errors.Join(e.publisher.Close(), e.subscriber.Close())
}

func (e *WatermillEmitter) remove(sub *topicSubscription, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, registered := range sub.handlers {
		if registered.id == id {
			sub.handlers = append(sub.handlers[:i:i], sub.handlers[i+1:]...)

			break
		}
	}

	if len(sub.handlers) == 0 && e.topics[sub.topic] == sub {
		sub.cancel()
		delete(e.topics, sub.topic)
	}
}

func (e *WatermillEmitter) handlers(sub *topicSubscription) []registeredHandler {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]registeredHandler(nil), sub.handlers...)
}

func (e *WatermillEmitter) consume(ctx context.Context, sub *topicSubscription, messages <-chan *message.Message) {
	defer e.wg.Done()

	handlerCtx := context.WithoutCancel(ctx)

	for msg := range messages {
		var event events.EntityEvent

		err := json.Unmarshal(msg.Payload, &event)
		if err != nil {
			e.logger.Error("dropping malformed event", "topic", sub.topic, "message_id", msg.UUID, "error", err)
			msg.Ack()

			continue
		}

		for _, registered := range e.handlers(sub) {
			e.invoke(handlerCtx, sub.topic, registered.handler, &event)
		}

		msg.Ack()
	}
}

func (e *WatermillEmitter) invoke(ctx context.Context, topic string, handler Handler, event *events.EntityEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "event handler panicked", "topic", topic, "event_id", event.ID, "panic", r)
		}
	}()

	err := handler(ctx, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "event handler failed", "topic", topic, "event_id", event.ID, "error", err)
	}
}

var _ Emitter = (*WatermillEmitter)(nil)
