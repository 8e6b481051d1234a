package engine_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/mocks"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/budgetflow/automations/pkg/testutil"
	"github.com/prometheus/client_golang/prometheus"
	prometheustestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) registry(metrics *engine.Metrics) *engine.Registry {
	return engine.NewRegistry(engine.Dependencies{
		Persistence: f.persistence,
		Subscriber:  f.emitter,
		Evaluator:   f.evaluator,
		Executor:    f.executor,
		Metrics:     metrics,
		Logger:      f.logger,
	})
}

func TestRegistry_Get(t *testing.T) {
	f := setup(t)
	registry := f.registry(nil)

	first, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)
	assert.Equal(t, engine.StateInitialized, first.State())
	assert.Equal(t, "ws-a", first.WorkspaceID())

	second, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.emitter.Subscriptions(models.EntityTransaction, "created"))

	other, err := registry.Get(t.Context(), "ws-b")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, f.emitter.Subscriptions(models.EntityTransaction, "created"))

	_, err = registry.Get(t.Context(), "")
	require.ErrorIs(t, err, persistence.ErrWorkspaceRequired)

	assert.Equal(t, []string{"ws-a", "ws-b"}, registry.Workspaces())
}

func TestRegistry_GetFailsWhenRulesCannotBeLoaded(t *testing.T) {
	f := setup(t)

	store := mocks.NewMockPersistence()
	store.Repository("ws-a").On("FindAll", mock.Anything).Return(nil, errors.New("connection refused"))

	registry := engine.NewRegistry(engine.Dependencies{
		Persistence: store,
		Subscriber:  f.emitter,
		Evaluator:   f.evaluator,
		Executor:    f.executor,
		Logger:      f.logger,
	})

	_, err := registry.Get(t.Context(), "ws-a")
	require.ErrorContains(t, err, "connection refused")

	_, ok := registry.Lookup("ws-a")
	assert.False(t, ok, "failed engines are not cached")
	assert.Equal(t, 0, f.emitter.Subscriptions(models.EntityTransaction, "created"))
}

func TestRegistry_GetSkipsUnusableStoredTriggers(t *testing.T) {
	f := setup(t)
	registry := f.registry(nil)

	f.createRule(t, "ws-a", testutil.WithTrigger(models.EntityAccount, "bank.sync"))

	e, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)
	assert.Equal(t, engine.StateInitialized, e.State())

	cached, ok := registry.Lookup("ws-a")
	require.True(t, ok)
	assert.Same(t, e, cached)
	assert.Equal(t, 1, f.emitter.Subscriptions(models.EntityTransaction, "created"))
}

func TestRegistry_Destroy(t *testing.T) {
	f := setup(t)
	registry := f.registry(nil)

	first, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)

	assert.True(t, registry.Destroy("ws-a"))
	assert.False(t, registry.Destroy("ws-a"))
	assert.Equal(t, engine.StateDestroyed, first.State())
	assert.Equal(t, 0, f.emitter.Subscriptions(models.EntityTransaction, "created"))

	_, ok := registry.Lookup("ws-a")
	assert.False(t, ok)

	recreated, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)
	assert.NotSame(t, first, recreated)
	assert.Equal(t, engine.StateInitialized, recreated.State())
}

func TestRegistry_DestroyAll(t *testing.T) {
	f := setup(t)
	registry := f.registry(nil)

	var engines []*engine.Engine

	for _, workspaceID := range []string{"ws-a", "ws-b", "ws-c"} {
		e, err := registry.Get(t.Context(), workspaceID)
		require.NoError(t, err)

		engines = append(engines, e)
	}

	registry.DestroyAll()

	assert.Empty(t, registry.Workspaces())

	for _, e := range engines {
		assert.Equal(t, engine.StateDestroyed, e.State())
	}

	assert.Equal(t, 0, f.emitter.Subscriptions(models.EntityTransaction, "created"))
}

func TestRegistry_Watch(t *testing.T) {
	f := setup(t)
	registry := f.registry(nil)

	require.NoError(t, registry.Watch("ws-a", models.EntityPayee, "renamed"))
	assert.Equal(t, 0, f.emitter.Subscriptions(models.EntityPayee, "renamed"), "no engine, nothing to watch")

	_, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)

	require.NoError(t, registry.Watch("ws-a", models.EntityPayee, "renamed"))
	assert.Equal(t, 1, f.emitter.Subscriptions(models.EntityPayee, "renamed"))
}

func TestRegistry_Initialize(t *testing.T) {
	f := setup(t)
	f.createRule(t, "ws-a")
	f.createRule(t, "ws-b")

	registry := f.registry(nil)
	require.NoError(t, registry.Initialize(t.Context()))

	assert.Equal(t, []string{"ws-a", "ws-b"}, registry.Workspaces())
}

func TestRegistry_Metrics(t *testing.T) {
	f := setup(t)
	f.createRule(t, "ws-a", testutil.MatchAll(), testutil.WithActions(
		testutil.Action("setCategory", map[string]any{"categoryId": 5.0}),
	))

	f.services.Transactions.On("Update", mock.Anything, "tx-1", mock.Anything, mock.Anything).Return(errors.New("ledger locked")).Once()

	reg := prometheus.NewRegistry()
	registry := f.registry(engine.NewMetrics(reg))

	e, err := registry.Get(t.Context(), "ws-a")
	require.NoError(t, err)

	_, err = registry.Get(t.Context(), "ws-b")
	require.NoError(t, err)

	_, err = e.ProcessEvent(t.Context(), transactionCreated("ws-a", "tx-1", map[string]any{}))
	require.NoError(t, err)

	expected := `
# HELP automations_engine_active_engines Workspaces with an initialized rule engine
# TYPE automations_engine_active_engines gauge
automations_engine_active_engines 2
# HELP automations_engine_action_failures_total Actions that returned an error
# TYPE automations_engine_action_failures_total counter
automations_engine_action_failures_total{action_type="setCategory"} 1
# HELP automations_engine_evaluations_total Rule evaluations by result
# TYPE automations_engine_evaluations_total counter
automations_engine_evaluations_total{result="matched"} 1
# HELP automations_engine_events_total Entity events processed by rule engines
# TYPE automations_engine_events_total counter
automations_engine_events_total{entity_type="transaction",event="created"} 1
`

	err = prometheustestutil.GatherAndCompare(reg, strings.NewReader(expected),
		"automations_engine_active_engines",
		"automations_engine_action_failures_total",
		"automations_engine_evaluations_total",
		"automations_engine_events_total",
	)
	require.NoError(t, err)

	registry.DestroyAll()

	err = prometheustestutil.GatherAndCompare(reg, strings.NewReader(`
# HELP automations_engine_active_engines Workspaces with an initialized rule engine
# TYPE automations_engine_active_engines gauge
automations_engine_active_engines 0
`), "automations_engine_active_engines")
	require.NoError(t, err)
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	assert.Nil(t, engine.NewMetrics(nil))
}
