package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/google/uuid"
)

// RuleRepository handles rule and log file operations for one workspace.
type RuleRepository struct {
	persistence *Persistence
	workspaceID string
}

func (r *RuleRepository) WorkspaceID() string {
	return r.workspaceID
}

func (r *RuleRepository) dir(kind string) string {
	return filepath.Join(r.persistence.root, "workspaces", r.workspaceID, kind)
}

func (r *RuleRepository) checkWorkspace(op string) error {
	if r.workspaceID == "" {
		return persistence.NewRuleError(op, r.workspaceID, "", persistence.ErrWorkspaceRequired)
	}

	if !validID(r.workspaceID) {
		return persistence.NewRuleError(op, r.workspaceID, "", persistence.ErrInvalidID)
	}

	return nil
}

// Create validates and stores a new rule.
func (r *RuleRepository) Create(_ context.Context, input models.RuleInput) (*models.Rule, error) {
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

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	err = r.writeRule(rule)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// FindByID retrieves a rule of this workspace by its ID.
func (r *RuleRepository) FindByID(_ context.Context, id string) (*models.Rule, error) {
	err := r.checkWorkspace("FindByID")
	if err != nil {
		return nil, err
	}

	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.readRule(id)
}

// FindAll returns every rule of the workspace by priority descending, then name.
func (r *RuleRepository) FindAll(_ context.Context) ([]*models.Rule, error) {
	return r.findRules("FindAll", func(*models.Rule) bool { return true })
}

// FindByTrigger returns the enabled rules bound to the (entityType, event) pair.
func (r *RuleRepository) FindByTrigger(_ context.Context, entityType models.EntityType, event string) ([]*models.Rule, error) {
	return r.findRules("FindByTrigger", func(rule *models.Rule) bool {
		return rule.IsEnabled && rule.Trigger.EntityType == entityType && rule.Trigger.Event == event
	})
}

// FindByEntityType returns the enabled rules bound to any event of entityType.
func (r *RuleRepository) FindByEntityType(_ context.Context, entityType models.EntityType) ([]*models.Rule, error) {
	return r.findRules("FindByEntityType", func(rule *models.Rule) bool {
		return rule.IsEnabled && rule.Trigger.EntityType == entityType
	})
}

// Update applies a partial update. The result is validated before anything is written.
func (r *RuleRepository) Update(_ context.Context, id string, patch models.RulePatch) (*models.Rule, error) {
	err := r.checkWorkspace("Update")
	if err != nil {
		return nil, err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	rule, err := r.readRule(id)
	if err != nil || rule == nil {
		return nil, err
	}

	patch.Apply(rule)

	err = models.ValidateRule(rule)
	if err != nil {
		return nil, persistence.NewRuleError("Update", r.workspaceID, id, err)
	}

	rule.UpdatedAt = time.Now().UTC()

	err = r.writeRule(rule)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// Delete removes a rule and its logs. It reports false when the rule does not exist.
func (r *RuleRepository) Delete(_ context.Context, id string) (bool, error) {
	err := r.checkWorkspace("Delete")
	if err != nil {
		return false, err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	rule, err := r.readRule(id)
	if err != nil || rule == nil {
		return false, err
	}

	err = os.Remove(r.rulePath(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	logs, err := r.loadLogs()
	if err != nil {
		return true, err
	}

	for _, log := range logs {
		if log.RuleID == id {
			_ = os.Remove(r.logPath(log.ID))
		}
	}

	return true, nil
}

func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Rule, error) {
	return r.Update(ctx, id, models.RulePatch{IsEnabled: &enabled})
}

func (r *RuleRepository) Disable(ctx context.Context, id string) (*models.Rule, error) {
	return r.SetEnabled(ctx, id, false)
}

// UpdateStats increments the trigger count under the write lock.
func (r *RuleRepository) UpdateStats(_ context.Context, id string) error {
	err := r.checkWorkspace("UpdateStats")
	if err != nil {
		return err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	rule, err := r.readRule(id)
	if err != nil {
		return err
	}

	if rule == nil {
		return persistence.NewRuleError("UpdateStats", r.workspaceID, id, persistence.ErrRuleNotFound)
	}

	now := time.Now().UTC()
	rule.TriggerCount++
	rule.LastTriggeredAt = &now

	return r.writeRule(rule)
}

// Duplicate copies a rule under a new id with reset statistics.
func (r *RuleRepository) Duplicate(_ context.Context, id string, newName string) (*models.Rule, error) {
	err := r.checkWorkspace("Duplicate")
	if err != nil {
		return nil, err
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	original, err := r.readRule(id)
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

	err = r.writeRule(duplicate)
	if err != nil {
		return nil, err
	}

	return duplicate, nil
}

// CreateLog stores an immutable log entry, assigning its id and timestamp.
func (r *RuleRepository) CreateLog(_ context.Context, log *models.Log) (*models.Log, error) {
	err := r.checkWorkspace("CreateLog")
	if err != nil {
		return nil, err
	}

	if !validID(log.RuleID) {
		return nil, persistence.NewRuleError("CreateLog", r.workspaceID, log.RuleID, persistence.ErrInvalidID)
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

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	rule, err := r.readRule(log.RuleID)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.NewRuleError("CreateLog", r.workspaceID, log.RuleID, persistence.ErrRuleNotFound)
	}

	err = writeJSON(r.dir("logs"), r.logPath(stored.ID), &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to save log %s: %w", stored.ID, err)
	}

	return &stored, nil
}

// FindLogs returns a page of one rule's logs, most recent first.
func (r *RuleRepository) FindLogs(_ context.Context, ruleID string, query models.LogQuery) ([]*models.Log, error) {
	return r.findLogs("FindLogs", query, func(log *models.Log) bool { return log.RuleID == ruleID })
}

// FindRecentLogs returns a page of the workspace's logs, most recent first.
func (r *RuleRepository) FindRecentLogs(_ context.Context, query models.LogQuery) ([]*models.Log, error) {
	return r.findLogs("FindRecentLogs", query, func(*models.Log) bool { return true })
}

// GetLogStats counts a rule's logs by status.
func (r *RuleRepository) GetLogStats(_ context.Context, ruleID string) (models.LogStats, error) {
	var stats models.LogStats

	err := r.checkWorkspace("GetLogStats")
	if err != nil {
		return stats, err
	}

	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	logs, err := r.loadLogs()
	if err != nil {
		return stats, err
	}

	for _, log := range logs {
		if log.RuleID == ruleID {
			stats.Add(log.Status)
		}
	}

	return stats, nil
}

// CleanupOldLogs deletes logs created more than olderThanDays days ago.
func (r *RuleRepository) CleanupOldLogs(_ context.Context, olderThanDays int) (int, error) {
	err := r.checkWorkspace("CleanupOldLogs")
	if err != nil {
		return 0, err
	}

	if olderThanDays < 0 {
		return 0, fmt.Errorf("retention days must not be negative: %d", olderThanDays)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	logs, err := r.loadLogs()
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, log := range logs {
		if !log.CreatedAt.Before(cutoff) {
			continue
		}

		err := os.Remove(r.logPath(log.ID))
		if err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("failed to delete log %s: %w", log.ID, err)
		}

		deleted++
	}

	return deleted, nil
}

func (r *RuleRepository) rulePath(id string) string {
	return filepath.Join(r.dir("rules"), id+".json")
}

func (r *RuleRepository) logPath(id string) string {
	return filepath.Join(r.dir("logs"), id+".json")
}

// readRule returns nil for unknown, malformed or foreign ids. Callers hold the lock.
func (r *RuleRepository) readRule(id string) (*models.Rule, error) {
	if !validID(id) {
		return nil, nil
	}

	body, err := os.ReadFile(r.rulePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	var rule models.Rule

	err = json.Unmarshal(body, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", id, err)
	}

	if rule.WorkspaceID != r.workspaceID {
		return nil, nil
	}

	return &rule, nil
}

func (r *RuleRepository) writeRule(rule *models.Rule) error {
	err := writeJSON(r.dir("rules"), r.rulePath(rule.ID), rule)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) findRules(op string, keep func(*models.Rule) bool) ([]*models.Rule, error) {
	err := r.checkWorkspace(op)
	if err != nil {
		return nil, err
	}

	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	files, err := filepath.Glob(filepath.Join(r.dir("rules"), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.Rule, 0, len(files))

	for _, file := range files {
		id := filepath.Base(file)
		id = id[:len(id)-len(".json")]

		rule, err := r.readRule(id)
		if err != nil {
			return nil, err
		}

		if rule != nil && keep(rule) {
			rules = append(rules, rule)
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}

		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}

		return rules[i].ID < rules[j].ID
	})

	return rules, nil
}

// loadLogs reads every log of the workspace, most recent first. Callers hold the lock.
func (r *RuleRepository) loadLogs() ([]*models.Log, error) {
	files, err := filepath.Glob(filepath.Join(r.dir("logs"), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	logs := make([]*models.Log, 0, len(files))

	for _, file := range files {
		body, err := os.ReadFile(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, fmt.Errorf("failed to fetch log %s: %w", file, err)
		}

		var log models.Log

		err = json.Unmarshal(body, &log)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log %s: %w", file, err)
		}

		if log.WorkspaceID == r.workspaceID {
			logs = append(logs, &log)
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}

		return logs[i].ID > logs[j].ID
	})

	return logs, nil
}

func (r *RuleRepository) findLogs(op string, query models.LogQuery, keep func(*models.Log) bool) ([]*models.Log, error) {
	err := r.checkWorkspace(op)
	if err != nil {
		return nil, err
	}

	query = query.Normalize()

	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	logs, err := r.loadLogs()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Log, 0, len(logs))

	for _, log := range logs {
		if keep(log) {
			filtered = append(filtered, log)
		}
	}

	if query.Offset >= len(filtered) {
		return []*models.Log{}, nil
	}

	end := min(query.Offset+query.Limit, len(filtered))

	return filtered[query.Offset:end], nil
}

func writeJSON(dir, path string, value any) error {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
