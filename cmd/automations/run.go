package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/budgetflow/automations/pkg/channels/gochannel"
	"github.com/budgetflow/automations/pkg/cmd"
	"github.com/budgetflow/automations/pkg/engine"
	"github.com/budgetflow/automations/pkg/log"
	"github.com/budgetflow/automations/pkg/otelhelper"
	"github.com/budgetflow/automations/pkg/retention"
	"github.com/budgetflow/automations/pkg/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the rule engines and the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			databaseURLFlag(),
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers, used with --event-bus kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "consumer-group",
				Usage:   "Kafka consumer group",
				Value:   "automations",
				Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
			},
			&cli.IntFlag{
				Name:    "event-buffer",
				Usage:   "Events each engine may lag behind on the in-process bus",
				Value:   gochannel.DefaultBuffer,
				Sources: cli.EnvVars("EVENT_BUS_BUFFER"),
			},
			&cli.BoolFlag{
				Name:    "sync-events",
				Usage:   "Return from event emission only after the rule engines processed it (in-process bus only)",
				Sources: cli.EnvVars("EVENT_BUS_SYNC"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for trigger debounce state shared across processes",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			retentionDaysFlag(),
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule of the log cleanup",
				Value:   retention.DefaultSchedule,
				Sources: cli.EnvVars("LOG_RETENTION_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			logLevelFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("automations")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing automations service")

			tracer, shutdownTracer, err := newTracer(ctx, command.Bool("otel"))
			if err != nil {
				return err
			}

			defer func() {
				err := shutdownTracer(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			emitter, err := cmd.NewEmitter(cmd.EmitterConfig{
				Provider:      command.String("event-bus"),
				Brokers:       command.String("kafka-brokers"),
				ConsumerGroup: command.String("consumer-group"),
				Buffer:        command.Int("event-buffer"),
				Sync:          command.Bool("sync-events"),
			}, logger)
			if err != nil {
				return err
			}

			defer func() {
				err := emitter.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			gate, closeGate, err := cmd.NewGate(ctx, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := closeGate()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close debounce gate", "error", err)
				}
			}()

			metricsRegistry := prometheus.NewRegistry()
			metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			runtime, err := cmd.NewRuntime(persistence, emitter, nil, gate, engine.NewMetrics(metricsRegistry), tracer, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			err = runtime.Registry.Initialize(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Some rule engines failed to start", "error", err)
			}

			scheduler, err := retention.NewScheduler(persistence, command.Int("log-retention-days"), command.String("retention-schedule"), logger)
			if err != nil {
				return err
			}

			err = scheduler.Start(ctx)
			if err != nil {
				return err
			}
			defer scheduler.Stop()

			api := NewAPI(
				logger,
				services.NewRules(persistence, runtime.Registry, runtime.Catalog, logger),
				services.NewEvents(emitter, runtime.Registry, logger),
				runtime.Registry,
				metricsRegistry,
			)

			err = api.Serve(ctx, command.Int("port"))
			if err != nil {
				return fmt.Errorf("api server failed: %w", err)
			}

			logger.InfoContext(ctx, "Automations service stopped")

			return nil
		},
	}
}

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func newTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, "automations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	slog.InfoContext(ctx, "OpenTelemetry tracing enabled")

	return tracer, shutdown, nil
}
