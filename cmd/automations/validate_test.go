package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `{
	"name": "Coffee",
	"trigger": {"entity_type": "transaction", "event": "created"},
	"conditions": {"operator": "AND", "conditions": [
		{"field": "description", "operator": "contains", "value": "coffee"}
	]},
	"actions": [{"type": "setCategory", "params": {"categoryId": 7}}]
}`

func TestValidateRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
		output  []string
	}{
		{
			name:   "single rule",
			input:  validRule,
			output: []string{"ok   Coffee"},
		},
		{
			name:   "array of rules",
			input:  "[" + validRule + "," + validRule + "]",
			output: []string{"ok   Coffee"},
		},
		{
			name: "unknown action",
			input: `[{
				"trigger": {"entity_type": "transaction", "event": "created"},
				"conditions": {"operator": "AND", "conditions": []},
				"actions": [{"type": "launchRocket"}]
			}]`,
			wantErr: ErrInvalidRules,
			output:  []string{"FAIL #1"},
		},
		{
			name: "missing event",
			input: `[` + validRule + `, {
				"name": "Broken",
				"trigger": {"entity_type": "transaction"},
				"conditions": {"operator": "AND", "conditions": []},
				"actions": [{"type": "setCategory", "params": {"categoryId": 1}}]
			}]`,
			wantErr: ErrInvalidRules,
			output:  []string{"ok   Coffee", "FAIL Broken"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			err := validateRules(strings.NewReader(tt.input), &out)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			for _, line := range tt.output {
				assert.Contains(t, out.String(), line)
			}
		})
	}
}

func TestValidateRules_MalformedJSON(t *testing.T) {
	t.Parallel()

	err := validateRules(strings.NewReader("{not json"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode rules")
}
