// Package engine matches entity events against a workspace's rules and runs the actions of matching rules.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/conditions"
	"github.com/budgetflow/automations/pkg/debounce"
	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/otelhelper"
	"github.com/budgetflow/automations/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrEngineDestroyed = errors.New("rule engine has been destroyed")

// State is the lifecycle state of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	Gate    debounce.Gate
	Metrics *Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
	// Store is forwarded to action services through the execution context.
	Store any
}

// Engine processes the events of exactly one workspace.
type Engine struct {
	workspaceID string
	repo        persistence.RuleRepository
	evaluator   *conditions.Evaluator
	executor    *actions.Executor
	subscriber  eventbus.Subscriber

	gate    debounce.Gate
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	store   any

	mu           sync.Mutex
	state        State
	subscribed   map[events.Key]struct{}
	unsubscribes []eventbus.Unsubscribe
}

func New(
	repo persistence.RuleRepository,
	evaluator *conditions.Evaluator,
	executor *actions.Executor,
	subscriber eventbus.Subscriber,
	opts Options,
) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	gate := opts.Gate
	if gate == nil {
		gate = debounce.NewMemoryGate()
	}

	return &Engine{
		workspaceID: repo.WorkspaceID(),
		repo:        repo,
		evaluator:   evaluator,
		executor:    executor,
		subscriber:  subscriber,
		gate:        gate,
		metrics:     opts.Metrics,
		tracer:      tracer,
		logger:      logger.With("module", "rule_engine", "workspace_id", repo.WorkspaceID()),
		store:       opts.Store,
		subscribed:  make(map[events.Key]struct{}),
	}
}

func (e *Engine) WorkspaceID() string {
	return e.workspaceID
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Initialize subscribes the engine to every catalogued event and to any other event
// named by a stored rule of the workspace. Calling it again is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateInitialized:
		return nil
	case StateDestroyed:
		return ErrEngineDestroyed
	}

	rules, err := e.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	for _, key := range events.CatalogKeys() {
		err := e.subscribe(key)
		if err != nil {
			e.unsubscribeAll()

			return err
		}
	}

	// A stored rule with an unusable trigger must not keep the workspace's other rules
	// from running.
	for _, rule := range rules {
		err := e.subscribe(events.Key{EntityType: rule.Trigger.EntityType, Event: rule.Trigger.Event})
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping rule trigger that cannot be subscribed",
				"rule_id", rule.ID,
				"entity_type", rule.Trigger.EntityType,
				"event", rule.Trigger.Event,
				"error", err)
		}
	}

	e.state = StateInitialized
	e.logger.InfoContext(ctx, "Rule engine initialized", "subscriptions", len(e.subscribed))

	return nil
}

// Watch subscribes an initialized engine to an event it is not yet listening to.
func (e *Engine) Watch(entityType models.EntityType, event string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInitialized {
		return nil
	}

	return e.subscribe(events.Key{EntityType: entityType, Event: event})
}

// Destroy unsubscribes the engine. Events delivered afterwards are ignored.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return
	}

	e.unsubscribeAll()
	e.state = StateDestroyed
	e.logger.Info("Rule engine destroyed")
}

func (e *Engine) subscribe(key events.Key) error {
	if _, ok := e.subscribed[key]; ok {
		return nil
	}

	unsubscribe, err := e.subscriber.On(key.EntityType, key.Event, e.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", key.Topic(), err)
	}

	e.subscribed[key] = struct{}{}
	e.unsubscribes = append(e.unsubscribes, unsubscribe)

	return nil
}

func (e *Engine) unsubscribeAll() {
	for _, unsubscribe := range e.unsubscribes {
		unsubscribe()
	}

	e.unsubscribes = nil
	e.subscribed = make(map[events.Key]struct{})
}

func (e *Engine) handle(ctx context.Context, event *events.EntityEvent) error {
	_, err := e.ProcessEvent(ctx, event)

	return err
}

// ProcessEvent evaluates the workspace's enabled rules for the event in priority order
// and returns the logs written. Events of other workspaces are ignored.
func (e *Engine) ProcessEvent(ctx context.Context, event *events.EntityEvent) ([]*models.Log, error) {
	if e.State() == StateDestroyed {
		return nil, nil
	}

	if event.WorkspaceID != e.workspaceID {
		return nil, nil
	}

	e.metrics.recordEvent(event.EntityType, event.Event)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_event",
		attribute.String(otelhelper.WorkspaceIDKey, e.workspaceID),
		attribute.String(otelhelper.EntityTypeKey, string(event.EntityType)),
		attribute.String(otelhelper.EventKey, event.Event),
		attribute.String(otelhelper.EntityIDKey, event.EntityID),
	)
	defer span.End()

	logger := e.logger.With("entity_type", event.EntityType, "event", event.Event, "entity_id", event.EntityID)

	rules, err := e.repo.FindByTrigger(ctx, event.EntityType, event.Event)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to load rules for event", "error", err)

		return nil, fmt.Errorf("failed to load rules for %s: %w", event.Topic(), err)
	}

	logs := make([]*models.Log, 0, len(rules))

	for _, rule := range rules {
		log, matched := e.processRule(ctx, logger, rule, event)
		if log != nil {
			logs = append(logs, log)
		}

		if matched && rule.StopOnMatch {
			logger.DebugContext(ctx, "Stopping after matching rule", "rule_id", rule.ID)

			break
		}
	}

	return logs, nil
}

func (e *Engine) processRule(ctx context.Context, logger *slog.Logger, rule *models.Rule, event *events.EntityEvent) (log *models.Log, matched bool) {
	start := time.Now()
	logger = logger.With("rule_id", rule.ID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_rule",
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.RuleNameKey, rule.Name),
	)
	defer span.End()

	entity := maps.Clone(event.Entity)
	if entity == nil {
		entity = map[string]any{}
	}

	base := models.Log{
		RuleID:         rule.ID,
		TriggerEvent:   event.Event,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		EntitySnapshot: event.Entity,
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("rule processing panicked: %v", r)
			otelhelper.SetError(span, err)
			logger.ErrorContext(ctx, "Rule processing panicked", "panic", r)

			failed := base
			failed.Status = models.LogStatusFailed
			failed.ErrorMessage = err.Error()
			log = e.writeLog(ctx, logger, &failed, start)
			matched = false

			e.metrics.recordEvaluation(resultFailed, time.Since(start))
		}
	}()

	matched, err := e.evaluator.Evaluate(rule.Conditions, entity)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Condition evaluation failed", "error", err)

		failed := base
		failed.Status = models.LogStatusFailed
		failed.ErrorMessage = err.Error()

		e.metrics.recordEvaluation(resultFailed, time.Since(start))

		return e.writeLog(ctx, logger, &failed, start), false
	}

	span.SetAttributes(attribute.Bool(otelhelper.MatchedKey, matched))

	if !matched {
		skipped := base
		skipped.Status = models.LogStatusSkipped

		e.metrics.recordEvaluation(resultSkipped, time.Since(start))

		return e.writeLog(ctx, logger, &skipped, start), false
	}

	// Only matches open a debounce window, so a non-matching event never hides a later
	// matching one. A suppressed match still counts as a match for stopOnMatch.
	if rule.Trigger.DebounceMs > 0 && event.EntityID != "" {
		window := time.Duration(rule.Trigger.DebounceMs) * time.Millisecond

		allowed, err := e.gate.Allow(ctx, debounce.Key(e.workspaceID, rule.ID, event.EntityID), window)
		if err != nil {
			logger.WarnContext(ctx, "Debounce gate unavailable, executing anyway", "error", err)
		} else if !allowed {
			logger.DebugContext(ctx, "Execution debounced")
			e.metrics.recordEvaluation(resultDebounced, time.Since(start))

			return nil, true
		}
	}

	results := e.executor.Execute(ctx, rule.Actions, entity, event.EntityType, event.EntityID, &actions.ExecutionContext{
		WorkspaceID: e.workspaceID,
		RuleID:      rule.ID,
		Store:       e.store,
	})
	e.metrics.recordActionResults(results)

	succeeded := base
	succeeded.Status = models.LogStatusSuccess
	succeeded.ConditionsMatched = true
	succeeded.ActionsExecuted = results

	log = e.writeLog(ctx, logger, &succeeded, start)

	err = e.repo.UpdateStats(ctx, rule.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update rule stats", "error", err)
	}

	if rule.RunOnce {
		_, err := e.repo.Disable(ctx, rule.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to disable run-once rule", "error", err)
		} else {
			logger.InfoContext(ctx, "Disabled run-once rule after match")
		}
	}

	e.metrics.recordEvaluation(resultMatched, time.Since(start))

	return log, true
}

func (e *Engine) writeLog(ctx context.Context, logger *slog.Logger, log *models.Log, start time.Time) *models.Log {
	log.ExecutionTimeMs = time.Since(start).Milliseconds()

	created, err := e.repo.CreateLog(ctx, log)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to write rule log", "status", log.Status, "error", err)

		return log
	}

	return created
}
