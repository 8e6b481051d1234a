package mocks

import (
	"context"

	"github.com/budgetflow/automations/pkg/eventbus"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockEmitter is a mock implementation of eventbus.Emitter interface.
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, event *events.EntityEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockEmitter) On(entityType models.EntityType, event string, handler eventbus.Handler) (eventbus.Unsubscribe, error) {
	args := m.Called(entityType, event, handler)

	if unsubscribe, ok := args.Get(0).(eventbus.Unsubscribe); ok {
		return unsubscribe, args.Error(1)
	}

	return func() {}, args.Error(1)
}

func (m *MockEmitter) Close() error {
	args := m.Called()

	return args.Error(0)
}

var _ eventbus.Emitter = (*MockEmitter)(nil)
