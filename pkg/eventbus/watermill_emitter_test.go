package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/budgetflow/automations/pkg/channels/gochannel"
	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmitter(t *testing.T) *eventbus.WatermillEmitter {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	emitter := eventbus.NewWatermillEmitter(pub, sub, logger)

	t.Cleanup(func() {
		require.NoError(t, emitter.Close())
	})

	return emitter
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string) eventbus.Handler {
	return func(_ context.Context, event *events.EntityEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.calls = append(r.calls, name+":"+event.EntityID)

		return nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func TestWatermillEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	emitter := newEmitter(t)
	rec := &recorder{}

	for _, name := range []string{"first", "second", "third"} {
		_, err := emitter.On(models.EntityTransaction, "created", rec.handler(name))
		require.NoError(t, err)
	}

	for _, id := range []string{"tx-1", "tx-2"} {
		err := emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", id, nil))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 6 }, 2*time.Second, 10*time.Millisecond)

	calls := rec.snapshot()
	for _, id := range []string{"tx-1", "tx-2"} {
		assert.Equal(t, []string{"first:" + id, "second:" + id, "third:" + id}, forEntity(calls, id))
	}
}

func forEntity(calls []string, entityID string) []string {
	filtered := make([]string, 0)

	for _, call := range calls {
		if strings.HasSuffix(call, ":"+entityID) {
			filtered = append(filtered, call)
		}
	}

	return filtered
}

func TestWatermillEmitter_RoutesByKey(t *testing.T) {
	emitter := newEmitter(t)
	rec := &recorder{}

	_, err := emitter.On(models.EntityTransaction, "created", rec.handler("created"))
	require.NoError(t, err)

	_, err = emitter.On(models.EntityTransaction, "updated", rec.handler("updated"))
	require.NoError(t, err)

	_, err = emitter.On(models.EntityPayee, "created", rec.handler("payee"))
	require.NoError(t, err)

	require.NoError(t, emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "updated", "tx-1", nil)))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"updated:tx-1"}, rec.snapshot())
}

func TestWatermillEmitter_DeliversPayload(t *testing.T) {
	emitter := newEmitter(t)
	received := make(chan *events.EntityEvent, 1)

	_, err := emitter.On(models.EntityTransaction, "created", func(_ context.Context, event *events.EntityEvent) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	sent := events.NewEntityEvent("ws-a", models.EntityTransaction, "created", "tx-1", map[string]any{"amount": 150.0, "status": "pending"})
	require.NoError(t, emitter.Emit(t.Context(), sent))

	select {
	case event := <-received:
		assert.Equal(t, sent.ID, event.ID)
		assert.Equal(t, "ws-a", event.WorkspaceID)
		assert.Equal(t, "tx-1", event.EntityID)
		assert.Equal(t, sent.Entity, event.Entity)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEmitter_EmitDoesNotWaitForHandlers(t *testing.T) {
	emitter := newEmitter(t)
	release := make(chan struct{})
	done := make(chan struct{})

	_, err := emitter.On(models.EntityTransaction, "created", func(_ context.Context, _ *events.EntityEvent) error {
		<-release
		close(done)

		return nil
	})
	require.NoError(t, err)

	returned := make(chan error, 1)

	go func() {
		returned <- emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", "tx-1", nil))
	}()

	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a running handler")
	}

	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never completed")
	}
}

func TestWatermillEmitter_Unsubscribe(t *testing.T) {
	emitter := newEmitter(t)
	rec := &recorder{}

	unsubscribeFirst, err := emitter.On(models.EntityTransaction, "created", rec.handler("first"))
	require.NoError(t, err)

	_, err = emitter.On(models.EntityTransaction, "created", rec.handler("second"))
	require.NoError(t, err)

	assert.Equal(t, 2, emitter.Subscriptions(models.EntityTransaction, "created"))

	unsubscribeFirst()
	unsubscribeFirst()

	assert.Equal(t, 1, emitter.Subscriptions(models.EntityTransaction, "created"))

	require.NoError(t, emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", "tx-1", nil)))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"second:tx-1"}, rec.snapshot())
}

func TestWatermillEmitter_ResubscribeAfterLastHandlerLeaves(t *testing.T) {
	emitter := newEmitter(t)
	rec := &recorder{}

	unsubscribe, err := emitter.On(models.EntityTransaction, "created", rec.handler("old"))
	require.NoError(t, err)

	unsubscribe()
	assert.Equal(t, 0, emitter.Subscriptions(models.EntityTransaction, "created"))

	_, err = emitter.On(models.EntityTransaction, "created", rec.handler("new"))
	require.NoError(t, err)

	require.NoError(t, emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", "tx-1", nil)))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"new:tx-1"}, rec.snapshot())
}

func TestWatermillEmitter_FailingHandlersDoNotStopDelivery(t *testing.T) {
	emitter := newEmitter(t)
	rec := &recorder{}

	_, err := emitter.On(models.EntityTransaction, "created", func(context.Context, *events.EntityEvent) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	_, err = emitter.On(models.EntityTransaction, "created", func(context.Context, *events.EntityEvent) error {
		panic("handler bug")
	})
	require.NoError(t, err)

	_, err = emitter.On(models.EntityTransaction, "created", rec.handler("healthy"))
	require.NoError(t, err)

	for _, id := range []string{"tx-1", "tx-2"} {
		require.NoError(t, emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", id, nil)))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"healthy:tx-1", "healthy:tx-2"}, rec.snapshot())
}

func TestWatermillEmitter_Validation(t *testing.T) {
	emitter := newEmitter(t)
	noop := func(context.Context, *events.EntityEvent) error { return nil }

	_, err := emitter.On("invoice", "created", noop)
	require.ErrorIs(t, err, events.ErrInvalidEntityType)

	_, err = emitter.On(models.EntityTransaction, "", noop)
	require.ErrorIs(t, err, events.ErrEventNameRequired)

	_, err = emitter.On(models.EntityTransaction, "created", nil)
	require.Error(t, err)

	err = emitter.Emit(t.Context(), events.NewEntityEvent("", models.EntityTransaction, "created", "tx-1", nil))
	require.ErrorIs(t, err, events.ErrWorkspaceRequired)
}

func TestWatermillEmitter_Closed(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	emitter := eventbus.NewWatermillEmitter(pub, sub, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))

	_, err = emitter.On(models.EntityTransaction, "created", func(context.Context, *events.EntityEvent) error { return nil })
	require.NoError(t, err)

	require.NoError(t, emitter.Close())
	require.NoError(t, emitter.Close())

	err = emitter.Emit(t.Context(), events.NewEntityEvent("ws-a", models.EntityTransaction, "created", "tx-1", nil))
	require.ErrorIs(t, err, eventbus.ErrEmitterClosed)

	_, err = emitter.On(models.EntityTransaction, "created", func(context.Context, *events.EntityEvent) error { return nil })
	require.ErrorIs(t, err, eventbus.ErrEmitterClosed)
}
