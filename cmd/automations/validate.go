package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/budgetflow/automations/pkg/actions"
	"github.com/budgetflow/automations/pkg/log"
	"github.com/budgetflow/automations/pkg/models"
	"github.com/budgetflow/automations/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidRules = errors.New("one or more rules are invalid")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate rule definitions from a JSON file without storing them",
		ArgsUsage: "<rules.json>",
		Flags: []cli.Flag{
			logLevelFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path := command.Args().First()
			if path == "" {
				return errors.New("a rules file is required")
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open rules file: %w", err)
			}
			defer file.Close()

			return validateRules(file, command.Root().Writer)
		},
	}
}

// validateRules decodes a JSON array of rule definitions, or a single definition, and
// reports each one's validity on out.
func validateRules(in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}

	var inputs []models.RuleInput

	err = json.Unmarshal(raw, &inputs)
	if err != nil {
		var single models.RuleInput

		if json.Unmarshal(raw, &single) != nil {
			return fmt.Errorf("failed to decode rules: %w", err)
		}

		inputs = []models.RuleInput{single}
	}

	catalog, err := actions.NewCatalog()
	if err != nil {
		return err
	}

	rules := services.NewRules(nil, nil, catalog, log.WithModule("validate"))
	invalid := 0

	for i, input := range inputs {
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		err := rules.Validate(models.NewRule("", input))
		if err != nil {
			invalid++

			fmt.Fprintf(out, "FAIL %s: %v\n", name, err)

			continue
		}

		fmt.Fprintf(out, "ok   %s\n", name)
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidRules, invalid, len(inputs))
	}

	return nil
}
