package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/google/uuid"
)

const ruleColumns = `
			id
		  , workspace_id
		  , name
		  , description
		  , entity_type
		  , event
		  , debounce_ms
		  , conditions
		  , actions
		  , priority
		  , is_enabled
		  , stop_on_match
		  , run_once
		  , trigger_count
		  , last_triggered_at
		  , flow_state
		  , created_at
		  , updated_at`

// RuleRepository handles rule and log database operations for one workspace.
// Every statement filters by the bound workspace id.
type RuleRepository struct {
	db          *sql.DB
	logger      *slog.Logger
	workspaceID string
}

// NewRuleRepository creates a new rule repository bound to workspaceID.
func NewRuleRepository(db *sql.DB, logger *slog.Logger, workspaceID string) *RuleRepository {
	return &RuleRepository{db: db, logger: logger, workspaceID: workspaceID}
}

func (r *RuleRepository) WorkspaceID() string {
	return r.workspaceID
}

func (r *RuleRepository) checkWorkspace(op string) error {
	if r.workspaceID == "" {
		return persistence.NewRuleError(op, r.workspaceID, "", persistence.ErrWorkspaceRequired)
	}

	return nil
}

// Create validates and inserts a new rule.
func (r *RuleRepository) Create(ctx context.Context, input models.RuleInput) (*models.Rule, error) {
	err := r.checkWorkspace("Create")
	if err != nil {
		return nil, err
	}

	rule := models.NewRule(r.workspaceID, input)

	err = models.ValidateRule(rule)
	if err != nil {
		return nil, persistence.NewRuleError("Create", r.workspaceID, "", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rule id: %w", err)
	}

	now := time.Now().UTC()
	rule.ID = id.String()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	err = r.insertRule(ctx, r.db, rule)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// FindByID retrieves a rule of this workspace by its ID.
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*models.Rule, error) {
	err := r.checkWorkspace("FindByID")
	if err != nil {
		return nil, err
	}

	return r.findByID(ctx, r.db, id, false)
}

func (r *RuleRepository) FindAll(ctx context.Context) ([]*models.Rule, error) {
	return r.queryRules(ctx, "FindAll", `WHERE workspace_id = $1`, r.workspaceID)
}

func (r *RuleRepository) FindByTrigger(ctx context.Context, entityType models.EntityType, event string) ([]*models.Rule, error) {
	return r.queryRules(ctx, "FindByTrigger",
		`WHERE workspace_id = $1 AND entity_type = $2 AND event = $3 AND is_enabled`,
		r.workspaceID, string(entityType), event)
}

func (r *RuleRepository) FindByEntityType(ctx context.Context, entityType models.EntityType) ([]*models.Rule, error) {
	return r.queryRules(ctx, "FindByEntityType",
		`WHERE workspace_id = $1 AND entity_type = $2 AND is_enabled`,
		r.workspaceID, string(entityType))
}

// Update applies a partial update inside a transaction holding the row lock.
func (r *RuleRepository) Update(ctx context.Context, id string, patch models.RulePatch) (*models.Rule, error) {
	err := r.checkWorkspace("Update")
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	rule, err := r.findByID(ctx, tx, id, true)
	if err != nil || rule == nil {
		return nil, err
	}

	patch.Apply(rule)

	err = models.ValidateRule(rule)
	if err != nil {
		return nil, persistence.NewRuleError("Update", r.workspaceID, id, err)
	}

	rule.UpdatedAt = time.Now().UTC()

	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE automation_rules SET
			name = $3
		  , description = $4
		  , entity_type = $5
		  , event = $6
		  , debounce_ms = $7
		  , conditions = $8
		  , actions = $9
		  , priority = $10
		  , is_enabled = $11
		  , stop_on_match = $12
		  , run_once = $13
		  , flow_state = $14
		  , updated_at = $15
		WHERE id = $1 AND workspace_id = $2`,
		rule.ID, r.workspaceID, rule.Name, rule.Description,
		string(rule.Trigger.EntityType), rule.Trigger.Event, rule.Trigger.DebounceMs,
		conditions, actions, rule.Priority, rule.IsEnabled, rule.StopOnMatch, rule.RunOnce,
		nullableJSON(rule.FlowState), rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule %s: %w", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit rule update: %w", err)
	}

	return rule, nil
}

// Delete removes a rule. Its logs are removed by the foreign key cascade.
func (r *RuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	err := r.checkWorkspace("Delete")
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1 AND workspace_id = $2`, id, r.workspaceID)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Rule, error) {
	return r.Update(ctx, id, models.RulePatch{IsEnabled: &enabled})
}

func (r *RuleRepository) Disable(ctx context.Context, id string) (*models.Rule, error) {
	return r.SetEnabled(ctx, id, false)
}

// UpdateStats increments the trigger count in a single statement.
func (r *RuleRepository) UpdateStats(ctx context.Context, id string) error {
	err := r.checkWorkspace("UpdateStats")
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET trigger_count = trigger_count + 1, last_triggered_at = $3
		WHERE id = $1 AND workspace_id = $2`,
		id, r.workspaceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update stats for rule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewRuleError("UpdateStats", r.workspaceID, id, persistence.ErrRuleNotFound)
	}

	return nil
}

// Duplicate copies a rule under a new id with reset statistics.
func (r *RuleRepository) Duplicate(ctx context.Context, id string, newName string) (*models.Rule, error) {
	err := r.checkWorkspace("Duplicate")
	if err != nil {
		return nil, err
	}

	original, err := r.findByID(ctx, r.db, id, false)
	if err != nil || original == nil {
		return nil, err
	}

	newID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rule id: %w", err)
	}

	if newName == "" {
		newName = persistence.DuplicateName(original.Name)
	}

	now := time.Now().UTC()
	duplicate := original.Clone()
	duplicate.ID = newID.String()
	duplicate.Name = newName
	duplicate.TriggerCount = 0
	duplicate.LastTriggeredAt = nil
	duplicate.CreatedAt = now
	duplicate.UpdatedAt = now

	err = r.insertRule(ctx, r.db, duplicate)
	if err != nil {
		return nil, err
	}

	return duplicate, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *RuleRepository) findByID(ctx context.Context, q queryer, id string, forUpdate bool) (*models.Rule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE id = $1 AND workspace_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rule, err := scanRule(q.QueryRowContext(ctx, query, id, r.workspaceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	return rule, nil
}

func (r *RuleRepository) queryRules(ctx context.Context, op, where string, args ...any) ([]*models.Rule, error) {
	err := r.checkWorkspace(op)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + `
		FROM automation_rules
		` + where + `
		ORDER BY priority DESC, name COLLATE "C" ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.Rule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func (r *RuleRepository) insertRule(ctx context.Context, q queryer, rule *models.Rule) error {
	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO automation_rules (`+ruleColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rule.ID, rule.WorkspaceID, rule.Name, rule.Description,
		string(rule.Trigger.EntityType), rule.Trigger.Event, rule.Trigger.DebounceMs,
		conditions, actions, rule.Priority, rule.IsEnabled, rule.StopOnMatch, rule.RunOnce,
		rule.TriggerCount, rule.LastTriggeredAt, nullableJSON(rule.FlowState),
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
	}

	return nil
}

func encodeRule(rule *models.Rule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}

	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal actions: %w", err)
	}

	return conditions, actions, nil
}

func scanRule(row scanner) (*models.Rule, error) {
	var (
		rule            models.Rule
		entityType      string
		conditionsJSON  []byte
		actionsJSON     []byte
		flowState       []byte
		lastTriggeredAt sql.NullTime
	)

	err := row.Scan(
		&rule.ID,
		&rule.WorkspaceID,
		&rule.Name,
		&rule.Description,
		&entityType,
		&rule.Trigger.Event,
		&rule.Trigger.DebounceMs,
		&conditionsJSON,
		&actionsJSON,
		&rule.Priority,
		&rule.IsEnabled,
		&rule.StopOnMatch,
		&rule.RunOnce,
		&rule.TriggerCount,
		&lastTriggeredAt,
		&flowState,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Trigger.EntityType = models.EntityType(entityType)

	err = json.Unmarshal(conditionsJSON, &rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}

	err = json.Unmarshal(actionsJSON, &rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	if lastTriggeredAt.Valid {
		t := lastTriggeredAt.Time.UTC()
		rule.LastTriggeredAt = &t
	}

	if len(flowState) > 0 {
		rule.FlowState = json.RawMessage(flowState)
	}

	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()

	return &rule, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}

var _ persistence.RuleRepository = (*RuleRepository)(nil)
