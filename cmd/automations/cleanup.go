package main

import (
	"context"
	"fmt"

	"github.com/budgetflow/automations/pkg/cmd"
	"github.com/budgetflow/automations/pkg/log"
	"github.com/budgetflow/automations/pkg/retention"
	cli "github.com/urfave/cli/v3"
)

func CleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete old rule logs once and exit",
		Flags: []cli.Flag{
			databaseURLFlag(),
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Only clean up this workspace (all workspaces when empty)",
			},
			retentionDaysFlag(),
			logLevelFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("cleanup")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			scheduler, err := retention.NewScheduler(persistence, command.Int("log-retention-days"), "", logger)
			if err != nil {
				return err
			}

			out := command.Root().Writer

			if workspaceID := command.String("workspace"); workspaceID != "" {
				deleted, err := scheduler.Cleanup(ctx, workspaceID)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s: %d logs deleted\n", workspaceID, deleted)

				return nil
			}

			deleted, err := scheduler.RunOnce(ctx)
			for workspaceID, n := range deleted {
				fmt.Fprintf(out, "%s: %d logs deleted\n", workspaceID, n)
			}

			return err
		},
	}
}
