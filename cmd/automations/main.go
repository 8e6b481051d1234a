// Package main provides the automations service: the rule engine, its HTTP API and maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:                  "automations",
		Usage:                 "Run workspace automation rules against entity events",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
			CleanupCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
