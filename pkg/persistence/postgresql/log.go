package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/google/uuid"
)

const logColumns = `
			id
		  , workspace_id
		  , rule_id
		  , trigger_event
		  , entity_type
		  , entity_id
		  , status
		  , conditions_matched
		  , actions_executed
		  , error_message
		  , execution_time_ms
		  , entity_snapshot
		  , created_at`

// CreateLog appends an execution log. The rule must exist in this workspace.
func (r *RuleRepository) CreateLog(ctx context.Context, log *models.Log) (*models.Log, error) {
	err := r.checkWorkspace("CreateLog")
	if err != nil {
		return nil, err
	}

	stored := *log
	stored.WorkspaceID = r.workspaceID

	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate log id: %w", err)
		}

		stored.ID = id.String()
	}

	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	actions, err := marshalOptional(stored.ActionsExecuted, len(stored.ActionsExecuted) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal executed actions: %w", err)
	}

	snapshot, err := marshalOptional(stored.EntitySnapshot, stored.EntitySnapshot != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity snapshot: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_rule_logs (`+logColumns+`
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		WHERE EXISTS (SELECT 1 FROM automation_rules WHERE id = $3 AND workspace_id = $2)`,
		stored.ID, stored.WorkspaceID, stored.RuleID, stored.TriggerEvent,
		string(stored.EntityType), nullString(stored.EntityID), string(stored.Status),
		stored.ConditionsMatched, actions, nullString(stored.ErrorMessage),
		stored.ExecutionTimeMs, snapshot, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return nil, persistence.NewRuleError("CreateLog", r.workspaceID, stored.RuleID, persistence.ErrRuleNotFound)
	}

	return &stored, nil
}

func (r *RuleRepository) FindLogs(ctx context.Context, ruleID string, query models.LogQuery) ([]*models.Log, error) {
	query = query.Normalize()

	return r.queryLogs(ctx, "FindLogs",
		`WHERE workspace_id = $1 AND rule_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		r.workspaceID, ruleID, query.Limit, query.Offset)
}

func (r *RuleRepository) FindRecentLogs(ctx context.Context, query models.LogQuery) ([]*models.Log, error) {
	query = query.Normalize()

	return r.queryLogs(ctx, "FindRecentLogs",
		`WHERE workspace_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		r.workspaceID, query.Limit, query.Offset)
}

// GetLogStats counts the logs of a rule grouped by status.
func (r *RuleRepository) GetLogStats(ctx context.Context, ruleID string) (models.LogStats, error) {
	var stats models.LogStats

	err := r.checkWorkspace("GetLogStats")
	if err != nil {
		return stats, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM automation_rule_logs
		WHERE workspace_id = $1 AND rule_id = $2
		GROUP BY status`, r.workspaceID, ruleID)
	if err != nil {
		return stats, fmt.Errorf("failed to query log stats: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			status string
			count  int
		)

		err := rows.Scan(&status, &count)
		if err != nil {
			return stats, fmt.Errorf("failed to scan log stats: %w", err)
		}

		switch models.LogStatus(status) {
		case models.LogStatusSuccess:
			stats.Success = count
		case models.LogStatusFailed:
			stats.Failed = count
		case models.LogStatusSkipped:
			stats.Skipped = count
		}
	}

	err = rows.Err()
	if err != nil {
		return stats, fmt.Errorf("error iterating log stats: %w", err)
	}

	return stats, nil
}

// CleanupOldLogs deletes this workspace's logs older than the given number of days.
func (r *RuleRepository) CleanupOldLogs(ctx context.Context, olderThanDays int) (int, error) {
	err := r.checkWorkspace("CleanupOldLogs")
	if err != nil {
		return 0, err
	}

	if olderThanDays < 0 {
		return 0, fmt.Errorf("retention days must not be negative, got %d", olderThanDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM automation_rule_logs
		WHERE workspace_id = $1 AND created_at < $2`, r.workspaceID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup logs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *RuleRepository) queryLogs(ctx context.Context, op, tail string, args ...any) ([]*models.Log, error) {
	err := r.checkWorkspace(op)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+logColumns+` FROM automation_rule_logs `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.Log, 0)

	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return logs, nil
}

func scanLog(row scanner) (*models.Log, error) {
	var (
		log          models.Log
		entityType   string
		status       string
		entityID     sql.NullString
		errorMessage sql.NullString
		actionsJSON  []byte
		snapshotJSON []byte
	)

	err := row.Scan(
		&log.ID,
		&log.WorkspaceID,
		&log.RuleID,
		&log.TriggerEvent,
		&entityType,
		&entityID,
		&status,
		&log.ConditionsMatched,
		&actionsJSON,
		&errorMessage,
		&log.ExecutionTimeMs,
		&snapshotJSON,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	log.EntityType = models.EntityType(entityType)
	log.Status = models.LogStatus(status)
	log.EntityID = entityID.String
	log.ErrorMessage = errorMessage.String
	log.CreatedAt = log.CreatedAt.UTC()

	if len(actionsJSON) > 0 {
		err = json.Unmarshal(actionsJSON, &log.ActionsExecuted)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal executed actions: %w", err)
		}
	}

	if len(snapshotJSON) > 0 {
		err = json.Unmarshal(snapshotJSON, &log.EntitySnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity snapshot: %w", err)
		}
	}

	return &log, nil
}

func marshalOptional(value any, present bool) (any, error) {
	if !present {
		return nil, nil
	}

	return json.Marshal(value)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
