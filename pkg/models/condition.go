package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// GroupOperator combines the children of a condition group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpBetween            Operator = "between"
	OpNotBetween         Operator = "notBetween"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "notContains"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpMatches            Operator = "matches"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "notIn"
	OpIsEmpty            Operator = "isEmpty"
	OpIsNotEmpty         Operator = "isNotEmpty"
	OpIsTrue             Operator = "isTrue"
	OpIsFalse            Operator = "isFalse"
)

// Condition is a leaf of the condition tree: entity[Field] <Operator> Value.
type Condition struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"            validate:"required"`
	Operator Operator `json:"operator"         validate:"required"`
	Value    any      `json:"value,omitempty"`
	Value2   any      `json:"value2,omitempty"`
	Negate   bool     `json:"negate,omitempty"`
}

// ConditionGroup is an inner node of the condition tree.
type ConditionGroup struct {
	ID         string          `json:"id"`
	Operator   GroupOperator   `json:"operator"   validate:"oneof=AND OR"`
	Conditions []ConditionNode `json:"conditions"`
}

// ConditionNode holds exactly one of Condition or Group.
type ConditionNode struct {
	Condition *Condition
	Group     *ConditionGroup
}

// Leaf wraps a condition into a node.
func Leaf(c Condition) ConditionNode {
	return ConditionNode{Condition: &c}
}

// Group wraps a condition group into a node.
func Group(g ConditionGroup) ConditionNode {
	return ConditionNode{Group: &g}
}

// All builds an AND group over nodes.
func All(nodes ...ConditionNode) ConditionGroup {
	return ConditionGroup{Operator: GroupAnd, Conditions: nodes}
}

// Any builds an OR group over nodes.
func Any(nodes ...ConditionNode) ConditionGroup {
	return ConditionGroup{Operator: GroupOr, Conditions: nodes}
}

// IsGroup reports whether the node is a nested group.
func (n ConditionNode) IsGroup() bool {
	return n.Group != nil
}

func (n ConditionNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Group != nil:
		return json.Marshal(n.Group)
	case n.Condition != nil:
		return json.Marshal(n.Condition)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a node as a group when it carries a "conditions" list,
// and as a leaf condition otherwise.
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("condition node cannot be null")
	}

	var probe map[string]json.RawMessage

	err := json.Unmarshal(data, &probe)
	if err != nil {
		return err
	}

	if _, isGroup := probe["conditions"]; isGroup {
		var group ConditionGroup

		err = json.Unmarshal(data, &group)
		if err != nil {
			return err
		}

		n.Group = &group
		n.Condition = nil

		return nil
	}

	var condition Condition

	err = json.Unmarshal(data, &condition)
	if err != nil {
		return err
	}

	n.Condition = &condition
	n.Group = nil

	return nil
}

// Clone deep-copies the group.
func (g ConditionGroup) Clone() ConditionGroup {
	clone := g
	if g.Conditions == nil {
		return clone
	}

	clone.Conditions = make([]ConditionNode, len(g.Conditions))
	for i, node := range g.Conditions {
		switch {
		case node.Group != nil:
			child := node.Group.Clone()
			clone.Conditions[i] = ConditionNode{Group: &child}
		case node.Condition != nil:
			leaf := *node.Condition
			leaf.Value = cloneValue(leaf.Value)
			leaf.Value2 = cloneValue(leaf.Value2)
			clone.Conditions[i] = ConditionNode{Condition: &leaf}
		}
	}

	return clone
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}

		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}
