// Package persistence provides the storage abstraction for automation rules and their execution logs.
package persistence

import (
	"context"

	"github.com/budgetflow/automations/pkg/models"
)

// Persistence is the process-wide storage handle. Every rule and log access goes through
// a RuleRepository bound to one workspace.
type Persistence interface {
	// Rules returns the repository for workspaceID. The workspace cannot be changed
	// afterwards, so a repository never sees another workspace's rows.
	Rules(workspaceID string) RuleRepository
	// Workspaces lists the workspaces that own at least one rule.
	Workspaces(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// RuleRepository is workspace-scoped CRUD over rules and their logs.
// Lookups of missing or foreign ids return nil without an error.
type RuleRepository interface {
	WorkspaceID() string

	Create(ctx context.Context, input models.RuleInput) (*models.Rule, error)
	FindByID(ctx context.Context, id string) (*models.Rule, error)
	// FindAll orders by priority descending, then name ascending.
	FindAll(ctx context.Context) ([]*models.Rule, error)
	// FindByTrigger returns enabled rules for the pair in FindAll order.
	FindByTrigger(ctx context.Context, entityType models.EntityType, event string) ([]*models.Rule, error)
	// FindByEntityType returns enabled rules for any event of entityType.
	FindByEntityType(ctx context.Context, entityType models.EntityType) ([]*models.Rule, error)
	Update(ctx context.Context, id string, patch models.RulePatch) (*models.Rule, error)
	Delete(ctx context.Context, id string) (bool, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*models.Rule, error)
	Disable(ctx context.Context, id string) (*models.Rule, error)
	// UpdateStats increments the trigger count and stamps the last trigger time atomically.
	UpdateStats(ctx context.Context, id string) error
	// Duplicate copies a rule under a new id with reset stats. An empty newName yields
	// "<name> (copy)".
	Duplicate(ctx context.Context, id string, newName string) (*models.Rule, error)

	CreateLog(ctx context.Context, log *models.Log) (*models.Log, error)
	// FindLogs returns a rule's logs, most recent first.
	FindLogs(ctx context.Context, ruleID string, query models.LogQuery) ([]*models.Log, error)
	// FindRecentLogs returns the workspace's logs, most recent first.
	FindRecentLogs(ctx context.Context, query models.LogQuery) ([]*models.Log, error)
	GetLogStats(ctx context.Context, ruleID string) (models.LogStats, error)
	// CleanupOldLogs deletes logs older than the given number of days and reports how many.
	CleanupOldLogs(ctx context.Context, olderThanDays int) (int, error)
}
