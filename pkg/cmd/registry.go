// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/conditions"
	"github.com/budgetflow/automations/pkg/debounce"
	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// Runtime is the set of collaborators shared by every command that evaluates rules.
type Runtime struct {
	Catalog   *actions.Catalog
	Evaluator *conditions.Evaluator
	Registry  *engine.Registry
}

// Close releases the evaluator's caches and destroys every engine.
func (r *Runtime) Close() {
	r.Registry.DestroyAll()
	r.Evaluator.Close()
}

// NewGate returns a redis debounce gate when redisURL is set and an in-memory one otherwise.
func NewGate(ctx context.Context, redisURL string) (debounce.Gate, func() error, error) {
	if redisURL == "" {
		return debounce.NewMemoryGate(), func() error { return nil }, nil
	}

	gate, err := debounce.NewRedisGateFromURL(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return gate, gate.Close, nil
}

// NewRuntime wires the action catalog, the condition evaluator and an engine registry.
// services may be nil; actions then fail with "service not configured".
func NewRuntime(
	store persistence.Persistence,
	subscriber eventbus.Subscriber,
	services *actions.Services,
	gate debounce.Gate,
	metrics *engine.Metrics,
	tracer trace.Tracer,
	logger *slog.Logger,
) (*Runtime, error) {
	catalog, err := actions.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build action catalog: %w", err)
	}

	evaluator, err := conditions.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition evaluator: %w", err)
	}

	registry := engine.NewRegistry(engine.Dependencies{
		Persistence: store,
		Subscriber:  subscriber,
		Evaluator:   evaluator,
		Executor:    actions.NewExecutor(catalog, services, logger),
		Gate:        gate,
		Metrics:     metrics,
		Tracer:      tracer,
		Logger:      logger,
	})

	return &Runtime{
		Catalog:   catalog,
		Evaluator: evaluator,
		Registry:  registry,
	}, nil
}
