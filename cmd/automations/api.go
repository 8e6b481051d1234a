package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/services"
	"github.com/budgetflow/automations/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger   *slog.Logger
	rules    *services.Rules
	events   *services.Events
	registry *engine.Registry
	gatherer prometheus.Gatherer
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	rules *services.Rules,
	events *services.Events,
	registry *engine.Registry,
	gatherer prometheus.Gatherer,
) *API {
	return &API{
		logger:   logger,
		rules:    rules,
		events:   events,
		registry: registry,
		gatherer: gatherer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.rules, a.events, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Automations API")
	})

	if a.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		})))
	}

	handlers.Register(app)

	return app
}

// Serve listens on port until ctx is cancelled, then shuts the server down.
func (a *API) Serve(ctx context.Context, port int) error {
	app := a.App()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "Automations API listening", "port", port)

		return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}
