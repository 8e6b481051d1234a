package actions

import (
	"context"
	"errors"

	"github.com/budgetflow/automations/pkg/models"
)

// ExecutionContext travels with every action dispatch and is forwarded to services.
type ExecutionContext struct {
	WorkspaceID string
	RuleID      string
	DryRun      bool
	Store       any // opaque persistence handle, never queried by the executor
}

// Patch is the set of entity fields an update writes.
type Patch map[string]any

// Notification is the message produced by sendNotification.
type Notification struct {
	WorkspaceID string
	RuleID      string
	EntityType  models.EntityType
	EntityID    string
	Title       string
	Message     string
	Channel     string
}

type TransactionService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
}

type AccountService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
	Close(ctx context.Context, id string, execCtx *ExecutionContext) error
}

type PayeeService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
	Merge(ctx context.Context, id, targetID string, execCtx *ExecutionContext) error
	CreateAlias(ctx context.Context, id, alias string, execCtx *ExecutionContext) error
}

type CategoryService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
	MoveToGroup(ctx context.Context, id, groupID string, execCtx *ExecutionContext) error
}

type ScheduleService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
	Skip(ctx context.Context, id string, execCtx *ExecutionContext) error
	Pause(ctx context.Context, id string, execCtx *ExecutionContext) error
	Resume(ctx context.Context, id string, execCtx *ExecutionContext) error
}

type BudgetService interface {
	Update(ctx context.Context, id string, patch Patch, execCtx *ExecutionContext) error
	AssignTransaction(ctx context.Context, budgetID, transactionID string, execCtx *ExecutionContext) error
	Rollover(ctx context.Context, id string, execCtx *ExecutionContext) error
}

type NotificationService interface {
	Send(ctx context.Context, notification Notification, execCtx *ExecutionContext) error
}

// Services bundles the domain services actions mutate entities through.
// A nil service makes the actions that need it fail outside dry runs.
type Services struct {
	Transactions  TransactionService
	Accounts      AccountService
	Payees        PayeeService
	Categories    CategoryService
	Schedules     ScheduleService
	Budgets       BudgetService
	Notifications NotificationService
}

var (
	ErrUnknownActionType    = errors.New("unknown action type")
	ErrInvalidActionParams  = errors.New("invalid action params")
	ErrServiceNotConfigured = errors.New("service not configured")
)
