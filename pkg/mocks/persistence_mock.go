package mocks

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockRuleRepository is a mock implementation of persistence.RuleRepository interface.
type MockRuleRepository struct {
	mock.Mock

	Workspace string
}

func (m *MockRuleRepository) WorkspaceID() string {
	return m.Workspace
}

func (m *MockRuleRepository) Create(ctx context.Context, input models.RuleInput) (*models.Rule, error) {
	args := m.Called(ctx, input)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) FindByID(ctx context.Context, id string) (*models.Rule, error) {
	args := m.Called(ctx, id)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) FindAll(ctx context.Context) ([]*models.Rule, error) {
	args := m.Called(ctx)

	return rulesOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) FindByTrigger(ctx context.Context, entityType models.EntityType, event string) ([]*models.Rule, error) {
	args := m.Called(ctx, entityType, event)

	return rulesOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) FindByEntityType(ctx context.Context, entityType models.EntityType) ([]*models.Rule, error) {
	args := m.Called(ctx, entityType)

	return rulesOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) Update(ctx context.Context, id string, patch models.RulePatch) (*models.Rule, error) {
	args := m.Called(ctx, id, patch)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

func (m *MockRuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Rule, error) {
	args := m.Called(ctx, id, enabled)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) Disable(ctx context.Context, id string) (*models.Rule, error) {
	args := m.Called(ctx, id)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) UpdateStats(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockRuleRepository) Duplicate(ctx context.Context, id string, newName string) (*models.Rule, error) {
	args := m.Called(ctx, id, newName)

	return ruleOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) CreateLog(ctx context.Context, log *models.Log) (*models.Log, error) {
	args := m.Called(ctx, log)

	if created, ok := args.Get(0).(*models.Log); ok {
		return created, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockRuleRepository) FindLogs(ctx context.Context, ruleID string, query models.LogQuery) ([]*models.Log, error) {
	args := m.Called(ctx, ruleID, query)

	return logsOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) FindRecentLogs(ctx context.Context, query models.LogQuery) ([]*models.Log, error) {
	args := m.Called(ctx, query)

	return logsOrNil(args, 0), args.Error(1)
}

func (m *MockRuleRepository) GetLogStats(ctx context.Context, ruleID string) (models.LogStats, error) {
	args := m.Called(ctx, ruleID)

	return args.Get(0).(models.LogStats), args.Error(1)
}

func (m *MockRuleRepository) CleanupOldLogs(ctx context.Context, olderThanDays int) (int, error) {
	args := m.Called(ctx, olderThanDays)

	return args.Int(0), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
// Rules returns the repository registered for the workspace in Repositories.
type MockPersistence struct {
	mock.Mock

	Repositories map[string]*MockRuleRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{Repositories: make(map[string]*MockRuleRepository)}
}

// Repository returns the workspace's mock repository, creating it on first use.
func (m *MockPersistence) Repository(workspaceID string) *MockRuleRepository {
	repo, ok := m.Repositories[workspaceID]
	if !ok {
		repo = &MockRuleRepository{Workspace: workspaceID}
		m.Repositories[workspaceID] = repo
	}

	return repo
}

func (m *MockPersistence) Rules(workspaceID string) persistence.RuleRepository {
	return m.Repository(workspaceID)
}

func (m *MockPersistence) Workspaces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	if workspaces, ok := args.Get(0).([]string); ok {
		return workspaces, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func ruleOrNil(args mock.Arguments, index int) *models.Rule {
	if rule, ok := args.Get(index).(*models.Rule); ok {
		return rule
	}

	return nil
}

func rulesOrNil(args mock.Arguments, index int) []*models.Rule {
	if rules, ok := args.Get(index).([]*models.Rule); ok {
		return rules
	}

	return nil
}

func logsOrNil(args mock.Arguments, index int) []*models.Log {
	if logs, ok := args.Get(index).([]*models.Log); ok {
		return logs
	}

	return nil
}

var (
	_ persistence.RuleRepository = (*MockRuleRepository)(nil)
	_ persistence.Persistence    = (*MockPersistence)(nil)
)
