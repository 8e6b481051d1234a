package models

import "time"

// LogStatus is the outcome of one rule evaluation attempt.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
	LogStatusSkipped LogStatus = "skipped"
)

// Log records a single rule evaluation attempt. Logs are immutable once written.
type Log struct {
	ID                string         `json:"id"`
	WorkspaceID       string         `json:"workspace_id"`
	RuleID            string         `json:"rule_id"`
	TriggerEvent      string         `json:"trigger_event"`
	EntityType        EntityType     `json:"entity_type"`
	EntityID          string         `json:"entity_id,omitempty"`
	Status            LogStatus      `json:"status"`
	ConditionsMatched bool           `json:"conditions_matched"`
	ActionsExecuted   []ActionResult `json:"actions_executed,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	ExecutionTimeMs   int64          `json:"execution_time_ms,omitempty"`
	EntitySnapshot    map[string]any `json:"entity_snapshot,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// LogStats counts a rule's logs by status.
type LogStats struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add counts one log with the given status.
func (s *LogStats) Add(status LogStatus) {
	switch status {
	case LogStatusSuccess:
		s.Success++
	case LogStatusFailed:
		s.Failed++
	case LogStatusSkipped:
		s.Skipped++
	}
}

// LogQuery paginates log listings.
type LogQuery struct {
	Limit  int `json:"limit"  validate:"min=0,max=500"`
	Offset int `json:"offset" validate:"min=0"`
}

// DefaultLogLimit applies when a query does not set a limit.
const DefaultLogLimit = 50

// Normalize fills in the default limit and clamps negative offsets.
func (q LogQuery) Normalize() LogQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultLogLimit
	}

	if q.Offset < 0 {
		q.Offset = 0
	}

	return q
}
