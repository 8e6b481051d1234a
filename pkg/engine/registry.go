package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/conditions"
	"github.com/budgetflow/automations/pkg/debounce"
	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies are shared by every engine a Registry creates.
type Dependencies struct {
	Persistence persistence.Persistence
	Subscriber  eventbus.Subscriber
	Evaluator   *conditions.Evaluator
	Executor    *actions.Executor
	Gate        debounce.Gate
	Metrics     *Metrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Registry holds at most one initialized engine per workspace.
type Registry struct {
	deps Dependencies

	mu      sync.Mutex
	engines map[string]*Engine
}

func NewRegistry(deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Gate == nil {
		deps.Gate = debounce.NewMemoryGate()
	}

	return &Registry{
		deps:    deps,
		engines: make(map[string]*Engine),
	}
}

// Get returns the workspace's engine, creating and initializing it on first use.
func (r *Registry) Get(ctx context.Context, workspaceID string) (*Engine, error) {
	if workspaceID == "" {
		return nil, persistence.ErrWorkspaceRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[workspaceID]; ok {
		return engine, nil
	}

	engine := New(r.deps.Persistence.Rules(workspaceID), r.deps.Evaluator, r.deps.Executor, r.deps.Subscriber, Options{
		Gate:    r.deps.Gate,
		Metrics: r.deps.Metrics,
		Tracer:  r.deps.Tracer,
		Logger:  r.deps.Logger,
		Store:   r.deps.Persistence,
	})

	err := engine.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	r.engines[workspaceID] = engine
	r.deps.Metrics.setActiveEngines(len(r.engines))

	return engine, nil
}

// Lookup returns the workspace's engine without creating one.
func (r *Registry) Lookup(workspaceID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[workspaceID]

	return engine, ok
}

// Watch subscribes the workspace's engine, if any, to (entityType, event).
func (r *Registry) Watch(workspaceID string, entityType models.EntityType, event string) error {
	engine, ok := r.Lookup(workspaceID)
	if !ok {
		return nil
	}

	return engine.Watch(entityType, event)
}

// Destroy tears down and evicts the workspace's engine. It reports whether one existed.
func (r *Registry) Destroy(workspaceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[workspaceID]
	if !ok {
		return false
	}

	engine.Destroy()
	delete(r.engines, workspaceID)
	r.deps.Metrics.setActiveEngines(len(r.engines))

	return true
}

func (r *Registry) DestroyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for workspaceID, engine := range r.engines {
		engine.Destroy()
		delete(r.engines, workspaceID)
	}

	r.deps.Metrics.setActiveEngines(0)
}

// Workspaces lists the workspaces with a live engine, sorted.
func (r *Registry) Workspaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Sorted(maps.Keys(r.engines))
}

// Initialize starts an engine for every workspace that owns rules.
func (r *Registry) Initialize(ctx context.Context) error {
	workspaces, err := r.deps.Persistence.Workspaces(ctx)
	if err != nil {
		return err
	}

	var errs []error

	for _, workspaceID := range workspaces {
		_, err := r.Get(ctx, workspaceID)
		if err != nil {
			r.deps.Logger.ErrorContext(ctx, "Failed to start rule engine", "workspace_id", workspaceID, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
