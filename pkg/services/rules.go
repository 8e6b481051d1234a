package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/conditions"
	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
)

// Rules manages the rules of all workspaces. Rules saved through it are checked against
// the action catalog and the supported operators, and the workspace's engine is told
// about new trigger events.
type Rules struct {
	persistence persistence.Persistence
	registry    *engine.Registry
	catalog     *actions.Catalog
	logger      *slog.Logger
}

// NewRules creates a rule service. registry may be nil when no engine runs in-process.
func NewRules(persistence persistence.Persistence, registry *engine.Registry, catalog *actions.Catalog, logger *slog.Logger) *Rules {
	return &Rules{
		persistence: persistence,
		registry:    registry,
		catalog:     catalog,
		logger:      logger.With("module", "rule_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Rules) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (s *Rules) repository(workspaceID string) (persistence.RuleRepository, error) {
	if workspaceID == "" {
		return nil, ErrWorkspaceRequired
	}

	return s.persistence.Rules(workspaceID), nil
}

// List returns the workspace's rules in evaluation order. A non-empty entityType keeps
// only enabled rules of that type.
func (s *Rules) List(ctx context.Context, workspaceID string, entityType models.EntityType) ([]*models.Rule, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	if entityType != "" {
		if !entityType.Valid() {
			return nil, fmt.Errorf("%w: invalid entity type %q", ErrInvalidRequest, entityType)
		}

		return repo.FindByEntityType(ctx, entityType)
	}

	return repo.FindAll(ctx)
}

// Get returns a rule or ErrRuleNotFound.
func (s *Rules) Get(ctx context.Context, workspaceID, id string) (*models.Rule, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	rule, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	if rule == nil {
		return nil, persistence.NewRuleError("Get", workspaceID, id, ErrRuleNotFound)
	}

	return rule, nil
}

// Create validates and stores a new rule.
func (s *Rules) Create(ctx context.Context, workspaceID string, input models.RuleInput) (*models.Rule, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	err = s.Validate(models.NewRule(workspaceID, input))
	if err != nil {
		return nil, err
	}

	rule, err := repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Rule created", "workspace_id", workspaceID, "rule_id", rule.ID, "name", rule.Name)
	s.watch(ctx, rule)

	return rule, nil
}

// Update applies patch after validating the patched rule.
func (s *Rules) Update(ctx context.Context, workspaceID, id string, patch models.RulePatch) (*models.Rule, error) {
	current, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	patched := current.Clone()
	patch.Apply(patched)

	err = s.Validate(patched)
	if err != nil {
		return nil, err
	}

	rule, err := s.persistence.Rules(workspaceID).Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.NewRuleError("Update", workspaceID, id, ErrRuleNotFound)
	}

	s.logger.InfoContext(ctx, "Rule updated", "workspace_id", workspaceID, "rule_id", id)
	s.watch(ctx, rule)

	return rule, nil
}

// Delete removes a rule and its logs.
func (s *Rules) Delete(ctx context.Context, workspaceID, id string) error {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return err
	}

	deleted, err := repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	if !deleted {
		return persistence.NewRuleError("Delete", workspaceID, id, ErrRuleNotFound)
	}

	s.logger.InfoContext(ctx, "Rule deleted", "workspace_id", workspaceID, "rule_id", id)

	return nil
}

// Duplicate copies a rule. An empty name yields "<name> (copy)".
func (s *Rules) Duplicate(ctx context.Context, workspaceID, id, name string) (*models.Rule, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	rule, err := repo.Duplicate(ctx, id, name)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.NewRuleError("Duplicate", workspaceID, id, ErrRuleNotFound)
	}

	return rule, nil
}

// SetEnabled turns a rule on or off.
func (s *Rules) SetEnabled(ctx context.Context, workspaceID, id string, enabled bool) (*models.Rule, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	rule, err := repo.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.NewRuleError("SetEnabled", workspaceID, id, ErrRuleNotFound)
	}

	s.logger.InfoContext(ctx, "Rule toggled", "workspace_id", workspaceID, "rule_id", id, "enabled", enabled)

	return rule, nil
}

// Logs returns a rule's execution logs, most recent first.
func (s *Rules) Logs(ctx context.Context, workspaceID, id string, query models.LogQuery) ([]*models.Log, error) {
	_, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	return s.persistence.Rules(workspaceID).FindLogs(ctx, id, query)
}

// RecentLogs returns the workspace's execution logs, most recent first.
func (s *Rules) RecentLogs(ctx context.Context, workspaceID string, query models.LogQuery) ([]*models.Log, error) {
	repo, err := s.repository(workspaceID)
	if err != nil {
		return nil, err
	}

	return repo.FindRecentLogs(ctx, query)
}

// Stats counts a rule's logs by status.
func (s *Rules) Stats(ctx context.Context, workspaceID, id string) (models.LogStats, error) {
	_, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return models.LogStats{}, err
	}

	return s.persistence.Rules(workspaceID).GetLogStats(ctx, id)
}

// TestRequest evaluates either a stored rule (RuleID) or an unsaved one (Rule) against Entity.
type TestRequest struct {
	RuleID     string
	Rule       *models.RuleInput
	Entity     map[string]any
	EntityType models.EntityType
	EntityID   string
	// DryRun additionally reports the changes the actions would make.
	DryRun bool
}

// Test evaluates a rule against a sample entity without writing logs or calling services.
func (s *Rules) Test(ctx context.Context, workspaceID string, req TestRequest) (*engine.TestResult, error) {
	if s.registry == nil {
		return nil, ErrEngineUnavailable
	}

	if req.Entity == nil {
		return nil, ErrEntityRequired
	}

	var rule *models.Rule

	switch {
	case req.Rule != nil:
		rule = models.NewRule(workspaceID, *req.Rule)

		err := s.Validate(rule)
		if err != nil {
			return nil, err
		}
	case req.RuleID != "":
		stored, err := s.Get(ctx, workspaceID, req.RuleID)
		if err != nil {
			return nil, err
		}

		rule = stored
	default:
		return nil, fmt.Errorf("%w: rule or rule id is required", ErrInvalidRequest)
	}

	e, err := s.registry.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		return e.DryRun(ctx, rule, req.Entity, req.EntityType, req.EntityID)
	}

	return e.TestRule(ctx, rule, req.Entity, req.EntityType)
}

// Validate runs the structural checks of models.ValidateRule plus the checks that need
// the operator table and the action catalog.
func (s *Rules) Validate(rule *models.Rule) error {
	err := models.ValidateRule(rule)
	if err != nil {
		return err
	}

	err = events.ValidateEventName(rule.Trigger.Event)
	if err != nil {
		return NewValidationError("Validate", "invalid_event",
			fmt.Sprintf("trigger.event %q: %v", rule.Trigger.Event, err), err)
	}

	err = validateOperators(rule.Conditions)
	if err != nil {
		return err
	}

	for i, action := range rule.Actions {
		err := s.catalog.Validate(rule.Trigger.EntityType, action)
		if err != nil {
			return NewValidationError("Validate", "invalid_action", fmt.Sprintf("actions[%d]: %v", i, err), err)
		}
	}

	return nil
}

func validateOperators(group models.ConditionGroup) error {
	for _, node := range group.Conditions {
		if node.IsGroup() {
			err := validateOperators(*node.Group)
			if err != nil {
				return err
			}

			continue
		}

		if node.Condition != nil && !conditions.IsSupported(node.Condition.Operator) {
			return NewValidationError("Validate", "unsupported_operator",
				fmt.Sprintf("condition on %q: unsupported operator %q", node.Condition.Field, node.Condition.Operator),
				ErrUnsupportedOperator)
		}
	}

	return nil
}

func (s *Rules) watch(ctx context.Context, rule *models.Rule) {
	if s.registry == nil {
		return
	}

	err := s.registry.Watch(rule.WorkspaceID, rule.Trigger.EntityType, rule.Trigger.Event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to subscribe engine to rule trigger",
			"workspace_id", rule.WorkspaceID, "rule_id", rule.ID, "error", err)
	}
}
