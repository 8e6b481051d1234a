package main

import (
	"github.com/budgetflow/automations/pkg/retention"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Rule store URL (postgres://... or file://<dir>)",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}

func retentionDaysFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "log-retention-days",
		Usage:   "Delete rule logs older than this many days",
		Value:   retention.DefaultDays,
		Sources: cli.EnvVars("LOG_RETENTION_DAYS"),
	}
}
