package mocks

import (
	"context"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/stretchr/testify/mock"
)

// MockTransactionService is a mock implementation of actions.TransactionService interface.
type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

// MockAccountService is a mock implementation of actions.AccountService interface.
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

func (m *MockAccountService) Close(ctx context.Context, id string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, execCtx)

	return args.Error(0)
}

// MockPayeeService is a mock implementation of actions.PayeeService interface.
type MockPayeeService struct {
	mock.Mock
}

func (m *MockPayeeService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

func (m *MockPayeeService) Merge(ctx context.Context, id, targetID string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, targetID, execCtx)

	return args.Error(0)
}

func (m *MockPayeeService) CreateAlias(ctx context.Context, id, alias string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, alias, execCtx)

	return args.Error(0)
}

// MockCategoryService is a mock implementation of actions.CategoryService interface.
type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

func (m *MockCategoryService) MoveToGroup(ctx context.Context, id, groupID string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, groupID, execCtx)

	return args.Error(0)
}

// MockScheduleService is a mock implementation of actions.ScheduleService interface.
type MockScheduleService struct {
	mock.Mock
}

func (m *MockScheduleService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

func (m *MockScheduleService) Skip(ctx context.Context, id string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, execCtx)

	return args.Error(0)
}

func (m *MockScheduleService) Pause(ctx context.Context, id string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, execCtx)

	return args.Error(0)
}

func (m *MockScheduleService) Resume(ctx context.Context, id string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, execCtx)

	return args.Error(0)
}

// MockBudgetService is a mock implementation of actions.BudgetService interface.
type MockBudgetService struct {
	mock.Mock
}

func (m *MockBudgetService) Update(ctx context.Context, id string, patch actions.Patch, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, patch, execCtx)

	return args.Error(0)
}

func (m *MockBudgetService) AssignTransaction(ctx context.Context, budgetID, transactionID string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, budgetID, transactionID, execCtx)

	return args.Error(0)
}

func (m *MockBudgetService) Rollover(ctx context.Context, id string, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, id, execCtx)

	return args.Error(0)
}

// MockNotificationService is a mock implementation of actions.NotificationService interface.
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Send(ctx context.Context, notification actions.Notification, execCtx *actions.ExecutionContext) error {
	args := m.Called(ctx, notification, execCtx)

	return args.Error(0)
}

// Services bundles one mock per domain service.
type Services struct {
	Transactions  *MockTransactionService
	Accounts      *MockAccountService
	Payees        *MockPayeeService
	Categories    *MockCategoryService
	Schedules     *MockScheduleService
	Budgets       *MockBudgetService
	Notifications *MockNotificationService
}

// NewServices returns fresh mocks for every service.
func NewServices() *Services {
	return &Services{
		Transactions:  &MockTransactionService{},
		Accounts:      &MockAccountService{},
		Payees:        &MockPayeeService{},
		Categories:    &MockCategoryService{},
		Schedules:     &MockScheduleService{},
		Budgets:       &MockBudgetService{},
		Notifications: &MockNotificationService{},
	}
}

// Bundle exposes the mocks as actions.Services.
func (s *Services) Bundle() *actions.Services {
	return &actions.Services{
		Transactions:  s.Transactions,
		Accounts:      s.Accounts,
		Payees:        s.Payees,
		Categories:    s.Categories,
		Schedules:     s.Schedules,
		Budgets:       s.Budgets,
		Notifications: s.Notifications,
	}
}

// AssertExpectations asserts every mock's expectations.
func (s *Services) AssertExpectations(t mock.TestingT) {
	s.Transactions.AssertExpectations(t)
	s.Accounts.AssertExpectations(t)
	s.Payees.AssertExpectations(t)
	s.Categories.AssertExpectations(t)
	s.Schedules.AssertExpectations(t)
	s.Budgets.AssertExpectations(t)
	s.Notifications.AssertExpectations(t)
}

// AssertNoCalls fails when any service was called.
func (s *Services) AssertNoCalls(t mock.TestingT) {
	for _, m := range []*mock.Mock{
		&s.Transactions.Mock,
		&s.Accounts.Mock,
		&s.Payees.Mock,
		&s.Categories.Mock,
		&s.Schedules.Mock,
		&s.Budgets.Mock,
		&s.Notifications.Mock,
	} {
		m.AssertExpectations(t)

		if len(m.Calls) > 0 {
			t.Errorf("expected no service calls, got %d", len(m.Calls))
		}
	}
}
