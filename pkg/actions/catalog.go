// Package actions dispatches rule actions against injected domain services.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/budgetflow/automations/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// RunFunc computes the changes an action makes and commits them through inv.
type RunFunc func(ctx context.Context, inv *Invocation) (map[string]models.Change, error)

// Handler describes one action type.
type Handler struct {
	Type        string
	EntityType  models.EntityType // empty when the action applies to every entity type
	Name        string
	Description string
	NeedsEntity bool
	Schema      map[string]any
	Run         RunFunc
}

// AppliesTo reports whether the handler accepts entityType.
func (h *Handler) AppliesTo(entityType models.EntityType) bool {
	return h.EntityType == "" || h.EntityType == entityType
}

// Catalog is the registry of action handlers keyed by type.
type Catalog struct {
	handlers map[string]*Handler
	schemas  map[string]*gojsonschema.Schema
}

// NewCatalog returns a catalog with every built-in action registered.
func NewCatalog() (*Catalog, error) {
	catalog := &Catalog{
		handlers: make(map[string]*Handler),
		schemas:  make(map[string]*gojsonschema.Schema),
	}

	for _, handlers := range [][]Handler{
		notificationHandlers(),
		transactionHandlers(),
		accountHandlers(),
		payeeHandlers(),
		categoryHandlers(),
		scheduleHandlers(),
		budgetHandlers(),
	} {
		for _, h := range handlers {
			err := catalog.Register(h)
			if err != nil {
				return nil, err
			}
		}
	}

	return catalog, nil
}

// Register adds a handler, compiling its params schema.
func (c *Catalog) Register(h Handler) error {
	if h.Type == "" || h.Run == nil {
		return fmt.Errorf("action handler requires a type and a run function")
	}

	if _, exists := c.handlers[h.Type]; exists {
		return fmt.Errorf("action type '%s' already registered", h.Type)
	}

	if h.Schema != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(h.Schema))
		if err != nil {
			return fmt.Errorf("invalid schema for action '%s': %w", h.Type, err)
		}

		c.schemas[h.Type] = schema
	}

	c.handlers[h.Type] = &h

	return nil
}

// Lookup returns the handler for actionType if it applies to entityType.
func (c *Catalog) Lookup(entityType models.EntityType, actionType string) (*Handler, bool) {
	h, ok := c.handlers[actionType]
	if !ok || !h.AppliesTo(entityType) {
		return nil, false
	}

	return h, true
}

// Handlers lists the actions available for entityType, sorted by type. An empty
// entityType lists everything.
func (c *Catalog) Handlers(entityType models.EntityType) []*Handler {
	list := make([]*Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		if entityType == "" || h.AppliesTo(entityType) {
			list = append(list, h)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })

	return list
}

// ValidateParams validates params against the action's JSON schema.
func (c *Catalog) ValidateParams(actionType string, params map[string]any) error {
	schema, ok := c.schemas[actionType]
	if !ok {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidActionParams, actionType, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s: %s", ErrInvalidActionParams, actionType, strings.Join(problems, "; "))
	}

	return nil
}

// Validate checks an action definition against the catalog for entityType.
func (c *Catalog) Validate(entityType models.EntityType, action models.Action) error {
	if _, ok := c.Lookup(entityType, action.Type); !ok {
		return fmt.Errorf("%w: %s for %s", ErrUnknownActionType, action.Type, entityType)
	}

	return c.ValidateParams(action.Type, action.Params)
}

// Invocation is one action applied to one entity.
type Invocation struct {
	Action     models.Action
	Params     map[string]any
	Entity     map[string]any
	EntityType models.EntityType
	EntityID   string
	Exec       *ExecutionContext
	Services   *Services
}

// Commit finalizes the computed changes. No changes means a no-op and skips the service
// call; a dry run tags the changes and skips it too.
func (inv *Invocation) Commit(changes map[string]models.Change, call func() error) (map[string]models.Change, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	if inv.Exec != nil && inv.Exec.DryRun {
		changes[models.DryRunMarker] = models.Change{From: false, To: true}

		return changes, nil
	}

	err := call()
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// Field returns the current value of an entity field.
func (inv *Invocation) Field(name string) any {
	return inv.Entity[name]
}

// Set builds a single-field change when value differs from the entity's current value.
func (inv *Invocation) Set(field string, value any) map[string]models.Change {
	current := inv.Entity[field]
	if sameValue(current, value) {
		return nil
	}

	return map[string]models.Change{field: {From: current, To: value}}
}

func patchFrom(changes map[string]models.Change) Patch {
	patch := make(Patch, len(changes))
	for field, change := range changes {
		if field == models.DryRunMarker {
			continue
		}

		patch[field] = change.To
	}

	return patch
}

func notConfigured(name string) error {
	return fmt.Errorf("%s %w", name, ErrServiceNotConfigured)
}
