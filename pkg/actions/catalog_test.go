package actions

import (
	"context"
	"testing"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Handlers(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	expected := map[models.EntityType][]string{
		models.EntityTransaction: {"addTag", "appendNotes", "assignToBudget", "markReviewed", "sendNotification", "setCategory", "setCleared", "setFlag", "setNotes", "setPayee"},
		models.EntityAccount:     {"closeAccount", "renameAccount", "sendNotification", "setAccountNotes", "setOffBudget"},
		models.EntityPayee:       {"createPayeeAlias", "mergePayee", "renamePayee", "sendNotification", "setDefaultCategory"},
		models.EntityCategory:    {"moveToGroup", "renameCategory", "sendNotification", "setHidden"},
		models.EntitySchedule:    {"pauseSchedule", "resumeSchedule", "sendNotification", "setScheduleAmount", "skipSchedule"},
		models.EntityBudget:      {"rolloverBudget", "sendNotification", "setBudgetAmount"},
	}

	for entityType, types := range expected {
		t.Run(string(entityType), func(t *testing.T) {
			var got []string
			for _, h := range catalog.Handlers(entityType) {
				got = append(got, h.Type)
				assert.NotNil(t, h.Schema, h.Type)
			}

			assert.Equal(t, types, got)
		})
	}
}

func TestCatalog_Validate(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	tests := []struct {
		name       string
		entityType models.EntityType
		action     models.Action
		wantErr    error
	}{
		{
			name:       "valid",
			entityType: models.EntityTransaction,
			action:     models.Action{Type: "setCategory", Params: map[string]any{"categoryId": "c-1"}},
		},
		{
			name:       "unknown type",
			entityType: models.EntityTransaction,
			action:     models.Action{Type: "teleport"},
			wantErr:    ErrUnknownActionType,
		},
		{
			name:       "wrong entity type",
			entityType: models.EntityBudget,
			action:     models.Action{Type: "setCategory", Params: map[string]any{"categoryId": "c-1"}},
			wantErr:    ErrUnknownActionType,
		},
		{
			name:       "missing required param",
			entityType: models.EntityTransaction,
			action:     models.Action{Type: "appendNotes"},
			wantErr:    ErrInvalidActionParams,
		},
		{
			name:       "wrong param type",
			entityType: models.EntitySchedule,
			action:     models.Action{Type: "setScheduleAmount", Params: map[string]any{"amount": "lots"}},
			wantErr:    ErrInvalidActionParams,
		},
		{
			name:       "notification for any entity",
			entityType: models.EntityCategory,
			action:     models.Action{Type: "sendNotification", Params: map[string]any{"message": "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalog.Validate(tt.entityType, tt.action)
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCatalog_RegisterDuplicate(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	err = catalog.Register(Handler{
		Type: "markReviewed",
		Run: func(context.Context, *Invocation) (map[string]models.Change, error) {
			return nil, nil
		},
	})
	assert.Error(t, err)

	err = catalog.Register(Handler{Type: "noRun"})
	assert.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	entity := map[string]any{
		"amount": 12.75,
		"payee":  map[string]any{"name": "Cafe"},
		"count":  3,
		"none":   nil,
	}

	tests := []struct {
		template string
		want     string
	}{
		{"{{amount}} at {{payee.name}}", "12.75 at Cafe"},
		{"{{ count }} items", "3 items"},
		{"{{missing}} stays", "{{missing}} stays"},
		{"{{none}} stays", "{{none}} stays"},
		{"no placeholders", "no placeholders"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, entity))
		})
	}
}
