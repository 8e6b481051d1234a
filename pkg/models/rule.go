// Package models defines the core domain models for workspace automation rules.
package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies the kind of financial entity a rule reacts to.
type EntityType string

const (
	EntityTransaction EntityType = "transaction"
	EntityAccount     EntityType = "account"
	EntityPayee       EntityType = "payee"
	EntityCategory    EntityType = "category"
	EntitySchedule    EntityType = "schedule"
	EntityBudget      EntityType = "budget"
)

// EntityTypes lists every entity type a rule may be bound to.
var EntityTypes = []EntityType{
	EntityTransaction,
	EntityAccount,
	EntityPayee,
	EntityCategory,
	EntitySchedule,
	EntityBudget,
}

// Valid reports whether e is one of the recognized entity types.
func (e EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if e == known {
			return true
		}
	}

	return false
}

// Trigger is the (entity type, event) pair that makes a rule a candidate for evaluation.
type Trigger struct {
	EntityType EntityType `json:"entity_type"`
	Event      string     `json:"event"                 validate:"required"`
	DebounceMs int        `json:"debounce_ms,omitempty" validate:"min=0"`
}

// Rule is a persisted automation definition.
type Rule struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspace_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Trigger         Trigger         `json:"trigger"`
	Conditions      ConditionGroup  `json:"conditions"`
	Actions         []Action        `json:"actions"`
	Priority        int             `json:"priority"`
	IsEnabled       bool            `json:"is_enabled"`
	StopOnMatch     bool            `json:"stop_on_match"`
	RunOnce         bool            `json:"run_once"`
	TriggerCount    int             `json:"trigger_count"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at"`
	FlowState       json.RawMessage `json:"flow_state,omitempty"` // visual editor metadata, opaque to the engine
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RuleInput carries the caller-supplied fields of a new rule. Nil flags take their defaults.
type RuleInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Trigger     Trigger         `json:"trigger"`
	Conditions  ConditionGroup  `json:"conditions"`
	Actions     []Action        `json:"actions"`
	Priority    int             `json:"priority"`
	IsEnabled   *bool           `json:"is_enabled,omitempty"`
	StopOnMatch *bool           `json:"stop_on_match,omitempty"`
	RunOnce     *bool           `json:"run_once,omitempty"`
	FlowState   json.RawMessage `json:"flow_state,omitempty"`
}

// NewRule builds an unsaved rule from input with defaults applied:
// enabled, priority 0, stop on match, not run once, zero trigger count.
func NewRule(workspaceID string, in RuleInput) *Rule {
	return &Rule{
		WorkspaceID: workspaceID,
		Name:        in.Name,
		Description: in.Description,
		Trigger:     in.Trigger,
		Conditions:  in.Conditions,
		Actions:     in.Actions,
		Priority:    in.Priority,
		IsEnabled:   boolOr(in.IsEnabled, true),
		StopOnMatch: boolOr(in.StopOnMatch, true),
		RunOnce:     boolOr(in.RunOnce, false),
		FlowState:   in.FlowState,
	}
}

// RulePatch is a partial update. Nil fields are left untouched.
type RulePatch struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Trigger     *Trigger        `json:"trigger,omitempty"`
	Conditions  *ConditionGroup `json:"conditions,omitempty"`
	Actions     []Action        `json:"actions,omitempty"`
	Priority    *int            `json:"priority,omitempty"`
	IsEnabled   *bool           `json:"is_enabled,omitempty"`
	StopOnMatch *bool           `json:"stop_on_match,omitempty"`
	RunOnce     *bool           `json:"run_once,omitempty"`
	FlowState   json.RawMessage `json:"flow_state,omitempty"`
}

// Apply copies the set fields of p onto rule.
func (p RulePatch) Apply(rule *Rule) {
	if p.Name != nil {
		rule.Name = *p.Name
	}

	if p.Description != nil {
		rule.Description = *p.Description
	}

	if p.Trigger != nil {
		rule.Trigger = *p.Trigger
	}

	if p.Conditions != nil {
		rule.Conditions = *p.Conditions
	}

	if p.Actions != nil {
		rule.Actions = p.Actions
	}

	if p.Priority != nil {
		rule.Priority = *p.Priority
	}

	if p.IsEnabled != nil {
		rule.IsEnabled = *p.IsEnabled
	}

	if p.StopOnMatch != nil {
		rule.StopOnMatch = *p.StopOnMatch
	}

	if p.RunOnce != nil {
		rule.RunOnce = *p.RunOnce
	}

	if p.FlowState != nil {
		rule.FlowState = p.FlowState
	}
}

// Clone returns a deep copy of the rule so callers can mutate it freely.
func (r *Rule) Clone() *Rule {
	clone := *r
	clone.Conditions = r.Conditions.Clone()

	clone.Actions = make([]Action, len(r.Actions))
	for i, action := range r.Actions {
		clone.Actions[i] = action.Clone()
	}

	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		clone.LastTriggeredAt = &t
	}

	if r.FlowState != nil {
		clone.FlowState = append(json.RawMessage(nil), r.FlowState...)
	}

	return &clone
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}

	return *v
}
