package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/budgetflow/automations/pkg/persistence/postgresql"
	"github.com/budgetflow/automations/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"automation_rule_logs", "automation_rules", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("automations_test"),
			postgres.WithUsername("automations"),
			postgres.WithPassword("automations"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"automation_rules", "automation_rule_logs", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	_, err := postgresql.NewPersistence(ctx, logger, "postgres://nobody@127.0.0.1:1/none?sslmode=disable")
	require.Error(t, err)
}

func TestRuleRepository_Contract(t *testing.T) {
	testutil.RunRuleRepositorySuite(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		p, _, _ := setupTestDB(t)

		return p
	})
}

func TestRuleRepository_DeleteCascadesLogs(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	repo := p.Rules("ws-a")

	rule, err := repo.Create(ctx, testutil.CreateTestRuleInput())
	require.NoError(t, err)

	_, err = repo.CreateLog(ctx, &models.Log{
		RuleID:       rule.ID,
		TriggerEvent: "created",
		EntityType:   models.EntityTransaction,
		Status:       models.LogStatusSkipped,
	})
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var count int

	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM automation_rule_logs WHERE rule_id = $1", rule.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRuleRepository_FlowStateRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.Rules("ws-a")

	input := testutil.CreateTestRuleInput()
	input.FlowState = []byte(`{"nodes":[{"id":"n1","x":10}]}`)

	rule, err := repo.Create(ctx, input)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.JSONEq(t, string(input.FlowState), string(found.FlowState))
}
