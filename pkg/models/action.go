package models

// Action is a named, parameterized mutation applied to an entity.
type Action struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"                        validate:"required"`
	Params          map[string]any `json:"params,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty"`
}

// Clone deep-copies the action parameters.
func (a Action) Clone() Action {
	clone := a
	if a.Params != nil {
		clone.Params = cloneValue(a.Params).(map[string]any)
	}

	return clone
}

// Change is the before/after value of a single entity field.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// DryRunMarker is the synthetic change key added to every dry-run result.
const DryRunMarker = "_dryRun"

// ActionResult is the outcome of one action within one rule execution.
type ActionResult struct {
	ActionID   string            `json:"action_id"`
	ActionType string            `json:"action_type"`
	Success    bool              `json:"success"`
	Changes    map[string]Change `json:"changes,omitempty"`
	Error      string            `json:"error,omitempty"`
}
