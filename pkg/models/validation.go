package models

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRule is matched by every rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// ValidationError describes the first invariant a rule violates.
type ValidationError struct {
	Field   string // Path of the offending field (e.g. "conditions.conditions[1].field")
	Message string // User-facing description
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRule
}

// IsValidationError reports whether err came from rule validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRule)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRule checks the structural invariants of a rule: a recognized entity type,
// a non-empty event, AND/OR groups, leaves with field and operator, and at least one
// typed action.
func ValidateRule(rule *Rule) error {
	if rule == nil {
		return &ValidationError{Message: "rule cannot be nil"}
	}

	if !rule.Trigger.EntityType.Valid() {
		return &ValidationError{
			Field:   "trigger.entity_type",
			Message: fmt.Sprintf("invalid entity type: %q", rule.Trigger.EntityType),
		}
	}

	err := validate.Struct(rule.Trigger)
	if err != nil {
		return translate("trigger", err, map[string]string{
			"Event":      "trigger event is required",
			"DebounceMs": "trigger debounce must not be negative",
		})
	}

	err = validateGroup(rule.Conditions, "conditions")
	if err != nil {
		return err
	}

	if len(rule.Actions) == 0 {
		return &ValidationError{Field: "actions", Message: "at least one action is required"}
	}

	for i, action := range rule.Actions {
		err := validate.Struct(action)
		if err != nil {
			return translate("actions["+strconv.Itoa(i)+"]", err, map[string]string{
				"Type": "action type is required",
			})
		}
	}

	return nil
}

func validateGroup(group ConditionGroup, path string) error {
	err := validate.Struct(group)
	if err != nil {
		return &ValidationError{
			Field:   path + ".operator",
			Message: fmt.Sprintf("condition group operator must be AND or OR, got %q", group.Operator),
		}
	}

	for i, node := range group.Conditions {
		nodePath := path + ".conditions[" + strconv.Itoa(i) + "]"

		switch {
		case node.Group != nil:
			err := validateGroup(*node.Group, nodePath)
			if err != nil {
				return err
			}
		case node.Condition != nil:
			err := validate.Struct(node.Condition)
			if err != nil {
				return translate(nodePath, err, map[string]string{
					"Field":    "condition field is required",
					"Operator": "condition operator is required",
				})
			}
		default:
			return &ValidationError{Field: nodePath, Message: "condition node must be a condition or a group"}
		}
	}

	return nil
}

func translate(path string, err error, messages map[string]string) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return &ValidationError{Field: path, Message: err.Error()}
	}

	first := fieldErrors[0]

	message, ok := messages[first.StructField()]
	if !ok {
		message = fmt.Sprintf("%s failed on %s", first.Field(), first.Tag())
	}

	return &ValidationError{Field: path + "." + first.Field(), Message: message}
}
