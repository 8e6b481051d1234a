package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRuleNotFound indicates a rule was not found where one is required (stat updates).
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrWorkspaceRequired indicates a repository was used without a workspace.
	ErrWorkspaceRequired = errors.New("workspace id is required")
)

// RuleError wraps rule-related errors with additional context.
type RuleError struct {
	Op          string // Operation being performed (e.g., "FindByID", "Create", "UpdateStats")
	WorkspaceID string // Workspace the repository is bound to
	RuleID      string // Rule ID if applicable
	Err         error  // Underlying error
}

func (e *RuleError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("%s operation failed in workspace %s: %v", e.Op, e.WorkspaceID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for rule %s in workspace %s: %v", e.Op, e.RuleID, e.WorkspaceID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for rule errors.
func (e *RuleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRuleError creates a new rule error with context.
func NewRuleError(op, workspaceID, ruleID string, err error) *RuleError {
	return &RuleError{
		Op:          op,
		WorkspaceID: workspaceID,
		RuleID:      ruleID,
		Err:         err,
	}
}

// IsRuleNotFound checks if an error indicates a rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// DuplicateName is the default name of a duplicated rule.
func DuplicateName(name string) string {
	return name + " (copy)"
}
