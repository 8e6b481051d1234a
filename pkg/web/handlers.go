package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	rules     *services.Rules
	events    *services.Events
	registry  *engine.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	rules *services.Rules,
	events *services.Events,
	registry *engine.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		rules:     rules,
		events:    events,
		registry:  registry,
		validator: validator,
	}
}

// Register mounts the workspace routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	ws := router.Group("/workspaces/:workspaceId")

	r := ws.Group("/rules")
	r.Get("/", h.ListRules)
	r.Post("/", h.CreateRule)
	r.Post("/test", h.TestRule)
	r.Get("/:id", h.GetRule)
	r.Patch("/:id", h.UpdateRule)
	r.Delete("/:id", h.DeleteRule)
	r.Post("/:id/duplicate", h.DuplicateRule)
	r.Post("/:id/enable", h.EnableRule)
	r.Post("/:id/disable", h.DisableRule)
	r.Get("/:id/logs", h.GetRuleLogs)
	r.Get("/:id/stats", h.GetRuleStats)

	ws.Get("/logs", h.GetRecentLogs)
	ws.Post("/events/:entityType/:event", h.EmitEvent)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.rules.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Automations API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Automations API is healthy"
		httpStatus = http.StatusOK
	}

	engines := 0
	if h.registry != nil {
		engines = len(h.registry.Workspaces())
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"engines":    engines,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListRules(c fiber.Ctx) error {
	rules, err := h.rules.List(c.Context(), c.Params("workspaceId"), models.EntityType(c.Query("entity_type")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rules)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.rules.Get(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.rules.Create(c.Context(), c.Params("workspaceId"), req.Input())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.rules.Update(c.Context(), c.Params("workspaceId"), c.Params("id"), req.Patch())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	err := h.rules.Delete(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateRule(c fiber.Ctx) error {
	var req DuplicateRuleRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	rule, err := h.rules.Duplicate(c.Context(), c.Params("workspaceId"), c.Params("id"), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) EnableRule(c fiber.Ctx) error {
	return h.setEnabled(c, true)
}

func (h *APIHandlers) DisableRule(c fiber.Ctx) error {
	return h.setEnabled(c, false)
}

func (h *APIHandlers) setEnabled(c fiber.Ctx, enabled bool) error {
	rule, err := h.rules.SetEnabled(c.Context(), c.Params("workspaceId"), c.Params("id"), enabled)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) GetRuleLogs(c fiber.Ctx) error {
	query, err := h.parseLogQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	logs, err := h.rules.Logs(c.Context(), c.Params("workspaceId"), c.Params("id"), query)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(logs)
}

func (h *APIHandlers) GetRecentLogs(c fiber.Ctx) error {
	query, err := h.parseLogQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	logs, err := h.rules.RecentLogs(c.Context(), c.Params("workspaceId"), query)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(logs)
}

func (h *APIHandlers) GetRuleStats(c fiber.Ctx) error {
	stats, err := h.rules.Stats(c.Context(), c.Params("workspaceId"), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

// parseLogQuery parses and validates the pagination parameters of log listings.
func (h *APIHandlers) parseLogQuery(c fiber.Ctx) (models.LogQuery, error) {
	var query models.LogQuery

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return query, err
		}

		query.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return query, err
		}

		query.Offset = offset
	}

	err := h.validator.Struct(query)
	if err != nil {
		return query, err
	}

	return query, nil
}

func (h *APIHandlers) TestRule(c fiber.Ctx) error {
	var req TestRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.rules.Test(c.Context(), c.Params("workspaceId"), req.Request())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) EmitEvent(c fiber.Ctx) error {
	var req EmitEventRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	event, err := h.events.Emit(
		c.Context(),
		c.Params("workspaceId"),
		models.EntityType(c.Params("entityType")),
		c.Params("event"),
		req.EntityID,
		req.Entity,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EmitEventResponse{
		ID:        event.ID,
		Topic:     event.Topic(),
		Published: true,
	})
}
