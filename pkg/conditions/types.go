// Package conditions evaluates rule condition trees against entity snapshots.
package conditions

import (
	"fmt"

	"github.com/budgetflow/automations/pkg/models"
)

// EvaluationError reports a condition that could not be evaluated, as opposed to one
// that evaluated to false.
type EvaluationError struct {
	Field    string
	Operator models.Operator
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("condition on %q", e.Field)
	if e.Operator != "" {
		msg += fmt.Sprintf(" (%s)", e.Operator)
	}

	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// operatorFunc compares a present field value against the condition's value(s).
type operatorFunc func(e *Evaluator, field any, c models.Condition) (bool, error)

// SupportedOperators lists every leaf operator the evaluator understands.
func SupportedOperators() []models.Operator {
	ops := make([]models.Operator, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}

	return ops
}

// IsSupported reports whether op is a known leaf operator.
func IsSupported(op models.Operator) bool {
	_, ok := operators[op]

	return ok
}
