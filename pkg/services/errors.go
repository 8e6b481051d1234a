// Package services implements rule management on top of persistence and the rule engines.
package services

import (
	"errors"
	"fmt"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/events"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
)

// Client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrWorkspaceRequired   = persistence.ErrWorkspaceRequired
	ErrUnknownActionType   = actions.ErrUnknownActionType
	ErrInvalidActionParams = actions.ErrInvalidActionParams
	ErrUnsupportedOperator = errors.New("unsupported condition operator")
	ErrEntityRequired      = errors.New("entity is required")

	// Not found (404).
	ErrRuleNotFound = persistence.ErrRuleNotFound
)

// ErrEngineUnavailable is returned by operations that need an in-process rule engine.
var ErrEngineUnavailable = errors.New("rule engine is not running")

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return models.IsValidationError(err) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkspaceRequired) ||
		errors.Is(err, ErrUnknownActionType) ||
		errors.Is(err, ErrInvalidActionParams) ||
		errors.Is(err, ErrUnsupportedOperator) ||
		errors.Is(err, ErrEntityRequired) ||
		errors.Is(err, persistence.ErrInvalidID) ||
		errors.Is(err, events.ErrWorkspaceRequired) ||
		errors.Is(err, events.ErrInvalidEntityType) ||
		errors.Is(err, events.ErrEventNameRequired) ||
		errors.Is(err, events.ErrEventNameMalformed)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
