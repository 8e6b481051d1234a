// Package web provides HTTP request and response types for the automation API.
package web

import (
	"encoding/json"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/services"
)

// CreateRuleRequest represents the request body for creating a new rule.
type CreateRuleRequest struct {
	Name        string                `json:"name"                    validate:"required,min=1,max=200"`
	Description string                `json:"description"`
	Trigger     models.Trigger        `json:"trigger"`
	Conditions  models.ConditionGroup `json:"conditions"`
	Actions     []models.Action       `json:"actions"                 validate:"required,min=1"`
	Priority    int                   `json:"priority"`
	IsEnabled   *bool                 `json:"is_enabled,omitempty"`
	StopOnMatch *bool                 `json:"stop_on_match,omitempty"`
	RunOnce     *bool                 `json:"run_once,omitempty"`
	FlowState   json.RawMessage       `json:"flow_state,omitempty"`
}

// Input converts the request into a repository input.
func (r CreateRuleRequest) Input() models.RuleInput {
	return models.RuleInput{
		Name:        r.Name,
		Description: r.Description,
		Trigger:     r.Trigger,
		Conditions:  r.Conditions,
		Actions:     r.Actions,
		Priority:    r.Priority,
		IsEnabled:   r.IsEnabled,
		StopOnMatch: r.StopOnMatch,
		RunOnce:     r.RunOnce,
		FlowState:   r.FlowState,
	}
}

// UpdateRuleRequest represents the request body for updating an existing rule.
// All fields are optional to support partial updates.
type UpdateRuleRequest struct {
	Name        *string                `json:"name,omitempty"          validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description,omitempty"`
	Trigger     *models.Trigger        `json:"trigger,omitempty"`
	Conditions  *models.ConditionGroup `json:"conditions,omitempty"`
	Actions     []models.Action        `json:"actions,omitempty"       validate:"omitempty,min=1"`
	Priority    *int                   `json:"priority,omitempty"`
	IsEnabled   *bool                  `json:"is_enabled,omitempty"`
	StopOnMatch *bool                  `json:"stop_on_match,omitempty"`
	RunOnce     *bool                  `json:"run_once,omitempty"`
	FlowState   json.RawMessage        `json:"flow_state,omitempty"`
}

// Patch converts the request into a repository patch.
func (r UpdateRuleRequest) Patch() models.RulePatch {
	return models.RulePatch{
		Name:        r.Name,
		Description: r.Description,
		Trigger:     r.Trigger,
		Conditions:  r.Conditions,
		Actions:     r.Actions,
		Priority:    r.Priority,
		IsEnabled:   r.IsEnabled,
		StopOnMatch: r.StopOnMatch,
		RunOnce:     r.RunOnce,
		FlowState:   r.FlowState,
	}
}

// DuplicateRuleRequest names the copy. An empty name yields "<name> (copy)".
type DuplicateRuleRequest struct {
	Name string `json:"name" validate:"omitempty,max=200"`
}

// TestRuleRequest evaluates a stored rule (rule_id) or an unsaved one (rule) against entity.
type TestRuleRequest struct {
	RuleID     string             `json:"rule_id,omitempty"     validate:"required_without=Rule"`
	Rule       *CreateRuleRequest `json:"rule,omitempty"        validate:"required_without=RuleID"`
	Entity     map[string]any     `json:"entity"                validate:"required"`
	EntityType models.EntityType  `json:"entity_type,omitempty"`
	EntityID   string             `json:"entity_id,omitempty"`
	DryRun     bool               `json:"dry_run,omitempty"`
}

// Request converts the request into a service test request.
func (r TestRuleRequest) Request() services.TestRequest {
	req := services.TestRequest{
		RuleID:     r.RuleID,
		Entity:     r.Entity,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		DryRun:     r.DryRun,
	}

	if r.Rule != nil {
		input := r.Rule.Input()
		req.Rule = &input
	}

	return req
}

// EmitEventRequest represents the request body for publishing an entity event.
type EmitEventRequest struct {
	EntityID string         `json:"entity_id,omitempty" validate:"max=200"`
	Entity   map[string]any `json:"entity"`
}

// EmitEventResponse acknowledges a published event. Rules run asynchronously.
type EmitEventResponse struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Published bool   `json:"published"`
}
