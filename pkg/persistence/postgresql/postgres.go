// Package postgresql provides the PostgreSQL persistence implementation for automation rules and logs.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/budgetflow/automations/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:     database,
		logger: logger,
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Rules returns the rule repository bound to workspaceID.
func (p *Persistence) Rules(workspaceID string) persistence.RuleRepository {
	return NewRuleRepository(p.db, p.logger, workspaceID)
}

// Workspaces lists the workspaces that own at least one rule.
func (p *Persistence) Workspaces(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT workspace_id FROM automation_rules ORDER BY workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workspaces := make([]string, 0)

	for rows.Next() {
		var workspaceID string

		err := rows.Scan(&workspaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}

		workspaces = append(workspaces, workspaceID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workspaces: %w", err)
	}

	return workspaces, nil
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
