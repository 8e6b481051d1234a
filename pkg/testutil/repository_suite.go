package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PersistenceFactory returns an empty persistence for one subtest.
type PersistenceFactory func(t *testing.T) persistence.Persistence

// RunRuleRepositorySuite exercises the RuleRepository contract against any implementation.
func RunRuleRepositorySuite(t *testing.T, newPersistence PersistenceFactory) {
	t.Helper()

	t.Run("create applies defaults", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		assert.NotEmpty(t, rule.ID)
		assert.Equal(t, "ws-a", rule.WorkspaceID)
		assert.True(t, rule.IsEnabled)
		assert.True(t, rule.StopOnMatch)
		assert.False(t, rule.RunOnce)
		assert.Equal(t, 0, rule.Priority)
		assert.Equal(t, 0, rule.TriggerCount)
		assert.Nil(t, rule.LastTriggeredAt)
		assert.False(t, rule.CreatedAt.IsZero())
		assert.False(t, rule.UpdatedAt.IsZero())

		found, err := repo.FindByID(ctx, rule.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, rule.Name, found.Name)
		assert.Equal(t, rule.Trigger, found.Trigger)
		assert.Equal(t, rule.Conditions, found.Conditions)
		assert.Equal(t, rule.Actions, found.Actions)
	})

	t.Run("create rejects invalid rules without persisting", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		_, err := repo.Create(ctx, CreateTestRuleInput(WithTrigger("invoice", "created")))
		require.Error(t, err)
		assert.True(t, models.IsValidationError(err))

		_, err = repo.Create(ctx, CreateTestRuleInput(WithActions()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one action is required")

		rules, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	t.Run("lookups miss without error", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		rule, err := p.Rules("ws-a").Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		found, err := p.Rules("ws-a").FindByID(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = p.Rules("ws-b").FindByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Nil(t, found, "rules of another workspace are invisible")

		updated, err := p.Rules("ws-b").Update(ctx, rule.ID, models.RulePatch{Name: ptr("stolen")})
		require.NoError(t, err)
		assert.Nil(t, updated)

		duplicated, err := p.Rules("ws-b").Duplicate(ctx, rule.ID, "")
		require.NoError(t, err)
		assert.Nil(t, duplicated)

		deleted, err := p.Rules("ws-b").Delete(ctx, rule.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		others, err := p.Rules("ws-b").FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, others)

		original, err := p.Rules("ws-a").FindByID(ctx, rule.ID)
		require.NoError(t, err)
		require.NotNil(t, original)
		assert.Equal(t, rule.Name, original.Name)
	})

	t.Run("find all orders by priority then name", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		for _, in := range []models.RuleInput{
			CreateTestRuleInput(WithName("b-low"), WithPriority(1)),
			CreateTestRuleInput(WithName("high"), WithPriority(100)),
			CreateTestRuleInput(WithName("a-low"), WithPriority(1)),
			CreateTestRuleInput(WithName("zero")),
			CreateTestRuleInput(WithName("alpha"), WithPriority(7)),
			CreateTestRuleInput(WithName("Zeta"), WithPriority(7)),
			CreateTestRuleInput(WithName("Beta"), WithPriority(7)),
		} {
			_, err := repo.Create(ctx, in)
			require.NoError(t, err)
		}

		rules, err := repo.FindAll(ctx)
		require.NoError(t, err)
		// Ties on priority sort by byte order: upper case before lower case.
		assert.Equal(t, []string{"high", "Beta", "Zeta", "alpha", "a-low", "b-low", "zero"}, ruleNames(rules))
	})

	t.Run("find by trigger and entity type return enabled rules", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		for _, in := range []models.RuleInput{
			CreateTestRuleInput(WithName("created-1"), WithPriority(5)),
			CreateTestRuleInput(WithName("created-2"), WithPriority(10)),
			CreateTestRuleInput(WithName("created-disabled"), WithEnabled(false)),
			CreateTestRuleInput(WithName("updated"), WithTrigger(models.EntityTransaction, "updated")),
			CreateTestRuleInput(WithName("account"), WithTrigger(models.EntityAccount, "created"),
				WithActions(Action("closeAccount", nil))),
		} {
			_, err := repo.Create(ctx, in)
			require.NoError(t, err)
		}

		rules, err := repo.FindByTrigger(ctx, models.EntityTransaction, "created")
		require.NoError(t, err)
		assert.Equal(t, []string{"created-2", "created-1"}, ruleNames(rules))

		rules, err = repo.FindByEntityType(ctx, models.EntityTransaction)
		require.NoError(t, err)
		assert.Equal(t, []string{"created-2", "created-1", "updated"}, ruleNames(rules))

		rules, err = repo.FindByTrigger(ctx, models.EntityPayee, "created")
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	t.Run("update applies partial patches", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		updated, err := repo.Update(ctx, rule.ID, models.RulePatch{Name: ptr("Renamed"), Priority: ptr(7)})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, 7, updated.Priority)
		assert.Equal(t, rule.Description, updated.Description)
		assert.True(t, updated.UpdatedAt.After(rule.UpdatedAt))

		missing, err := repo.Update(ctx, "does-not-exist", models.RulePatch{Name: ptr("x")})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update rejects invalid results without persisting", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		_, err = repo.Update(ctx, rule.ID, models.RulePatch{
			Name:    ptr("Renamed"),
			Trigger: &models.Trigger{EntityType: models.EntityTransaction},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trigger event is required")

		found, err := repo.FindByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.Name, found.Name)
		assert.Equal(t, "created", found.Trigger.Event)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, rule.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, rule.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		found, err := repo.FindByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("enable and disable", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		disabled, err := repo.Disable(ctx, rule.ID)
		require.NoError(t, err)
		assert.False(t, disabled.IsEnabled)

		enabled, err := repo.SetEnabled(ctx, rule.ID, true)
		require.NoError(t, err)
		assert.True(t, enabled.IsEnabled)

		missing, err := repo.Disable(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update stats", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		before := time.Now().Add(-time.Second)

		require.NoError(t, repo.UpdateStats(ctx, rule.ID))
		require.NoError(t, repo.UpdateStats(ctx, rule.ID))

		found, err := repo.FindByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.TriggerCount)
		require.NotNil(t, found.LastTriggeredAt)
		assert.True(t, found.LastTriggeredAt.After(before))

		err = repo.UpdateStats(ctx, "does-not-exist")
		assert.True(t, persistence.IsRuleNotFound(err))
	})

	t.Run("duplicate resets identity and stats", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput(WithPriority(3)))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStats(ctx, rule.ID))

		duplicate, err := repo.Duplicate(ctx, rule.ID, "")
		require.NoError(t, err)
		require.NotNil(t, duplicate)

		assert.NotEqual(t, rule.ID, duplicate.ID)
		assert.Equal(t, rule.Name+" (copy)", duplicate.Name)
		assert.Equal(t, rule.Description, duplicate.Description)
		assert.Equal(t, rule.Trigger, duplicate.Trigger)
		assert.Equal(t, rule.Conditions, duplicate.Conditions)
		assert.Equal(t, rule.Actions, duplicate.Actions)
		assert.Equal(t, rule.Priority, duplicate.Priority)
		assert.Equal(t, 0, duplicate.TriggerCount)
		assert.Nil(t, duplicate.LastTriggeredAt)

		named, err := repo.Duplicate(ctx, rule.ID, "Custom")
		require.NoError(t, err)
		assert.Equal(t, "Custom", named.Name)

		stored, err := repo.FindByID(ctx, duplicate.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 0, stored.TriggerCount)
	})

	t.Run("logs", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		other, err := repo.Create(ctx, CreateTestRuleInput(WithName("other")))
		require.NoError(t, err)

		base := time.Now().UTC().Add(-time.Hour)
		statuses := []models.LogStatus{models.LogStatusSuccess, models.LogStatusSkipped, models.LogStatusSkipped, models.LogStatusFailed}

		for i, status := range statuses {
			_, err := repo.CreateLog(ctx, testLog(rule.ID, status, base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}

		_, err = repo.CreateLog(ctx, testLog(other.ID, models.LogStatusSuccess, base.Add(10*time.Minute)))
		require.NoError(t, err)

		logs, err := repo.FindLogs(ctx, rule.ID, models.LogQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, logs, 4)
		assert.Equal(t, models.LogStatusFailed, logs[0].Status, "most recent first")
		assert.Equal(t, models.LogStatusSuccess, logs[3].Status)
		assert.Equal(t, "ws-a", logs[0].WorkspaceID)
		assert.NotEmpty(t, logs[0].ID)

		page, err := repo.FindLogs(ctx, rule.ID, models.LogQuery{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, logs[1].ID, page[0].ID)
		assert.Equal(t, logs[2].ID, page[1].ID)

		recent, err := repo.FindRecentLogs(ctx, models.LogQuery{Limit: 2})
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, other.ID, recent[0].RuleID)

		stats, err := repo.GetLogStats(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LogStats{Success: 1, Failed: 1, Skipped: 2}, stats)

		foreign, err := p.Rules("ws-b").FindRecentLogs(ctx, models.LogQuery{})
		require.NoError(t, err)
		assert.Empty(t, foreign)

		foreignStats, err := p.Rules("ws-b").GetLogStats(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LogStats{}, foreignStats)
	})

	t.Run("log keeps execution details", func(t *testing.T) {
		repo := newPersistence(t).Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		log := testLog(rule.ID, models.LogStatusSuccess, time.Time{})
		log.ConditionsMatched = true
		log.ExecutionTimeMs = 12
		log.EntitySnapshot = map[string]any{"amount": 150.0}
		log.ActionsExecuted = []models.ActionResult{{
			ActionID:   "a1",
			ActionType: "setCategory",
			Success:    true,
			Changes:    map[string]models.Change{"categoryId": {From: nil, To: 5.0}},
		}}

		created, err := repo.CreateLog(ctx, log)
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		logs, err := repo.FindLogs(ctx, rule.ID, models.LogQuery{})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.True(t, logs[0].ConditionsMatched)
		assert.Equal(t, int64(12), logs[0].ExecutionTimeMs)
		assert.Equal(t, log.EntitySnapshot, logs[0].EntitySnapshot)
		assert.Equal(t, log.ActionsExecuted, logs[0].ActionsExecuted)
		assert.Equal(t, "tx-1", logs[0].EntityID)
	})

	t.Run("create log requires a rule in the workspace", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		foreignRule, err := p.Rules("ws-b").Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		repo := p.Rules("ws-a")

		_, err = repo.CreateLog(ctx, testLog(foreignRule.ID, models.LogStatusSkipped, time.Time{}))
		assert.True(t, persistence.IsRuleNotFound(err))

		_, err = repo.CreateLog(ctx, testLog("does-not-exist", models.LogStatusSkipped, time.Time{}))
		assert.True(t, persistence.IsRuleNotFound(err))

		logs, err := p.Rules("ws-b").FindLogs(ctx, foreignRule.ID, models.LogQuery{})
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("cleanup old logs", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.Rules("ws-a")
		ctx := t.Context()

		rule, err := repo.Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		now := time.Now().UTC()
		for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, 2 * 24 * time.Hour, time.Hour} {
			_, err := repo.CreateLog(ctx, testLog(rule.ID, models.LogStatusSkipped, now.Add(-age)))
			require.NoError(t, err)
		}

		foreignRule, err := p.Rules("ws-b").Create(ctx, CreateTestRuleInput())
		require.NoError(t, err)

		_, err = p.Rules("ws-b").CreateLog(ctx, testLog(foreignRule.ID, models.LogStatusSkipped, now.Add(-90*24*time.Hour)))
		require.NoError(t, err)

		deleted, err := repo.CleanupOldLogs(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		remaining, err := repo.FindLogs(ctx, rule.ID, models.LogQuery{})
		require.NoError(t, err)
		assert.Len(t, remaining, 2)

		foreign, err := p.Rules("ws-b").FindRecentLogs(ctx, models.LogQuery{})
		require.NoError(t, err)
		assert.Len(t, foreign, 1, "cleanup is scoped to the workspace")
	})

	t.Run("workspaces", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		for _, ws := range []string{"ws-a", "ws-b"} {
			_, err := p.Rules(ws).Create(ctx, CreateTestRuleInput())
			require.NoError(t, err)
		}

		workspaces, err := p.Workspaces(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ws-a", "ws-b"}, workspaces)
	})

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(context.Background()))
	})
}

func testLog(ruleID string, status models.LogStatus, createdAt time.Time) *models.Log {
	return &models.Log{
		RuleID:            ruleID,
		TriggerEvent:      "created",
		EntityType:        models.EntityTransaction,
		EntityID:          "tx-1",
		Status:            status,
		ConditionsMatched: status == models.LogStatusSuccess,
		CreatedAt:         createdAt,
	}
}

func ruleNames(rules []*models.Rule) []string {
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.Name)
	}

	return names
}

func ptr[T any](v T) *T {
	return &v
}
