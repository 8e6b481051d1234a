package persistence_test

import (
	"errors"
	"testing"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		err := persistence.NewRuleError("UpdateStats", "ws-1", "rule-123", persistence.ErrRuleNotFound)

		assert.True(t, persistence.IsRuleNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrRuleNotFound))
		assert.False(t, errors.Is(err, persistence.ErrInvalidID))
	})

	t.Run("rule error contains context", func(t *testing.T) {
		err := persistence.NewRuleError("UpdateStats", "ws-1", "rule-123", persistence.ErrRuleNotFound)

		assert.Contains(t, err.Error(), "UpdateStats")
		assert.Contains(t, err.Error(), "rule-123")
		assert.Contains(t, err.Error(), "ws-1")
		assert.Contains(t, err.Error(), "rule not found")
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		err := persistence.NewRuleError("Create", "ws-1", "", &models.ValidationError{Message: "trigger event is required"})

		assert.True(t, models.IsValidationError(err))
		assert.NotContains(t, err.Error(), "rule  in")
	})
}

func TestDuplicateName(t *testing.T) {
	assert.Equal(t, "Groceries (copy)", persistence.DuplicateName("Groceries"))
}
