package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/budgetflow/automations/pkg/persistence/file"
	"github.com/budgetflow/automations/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by databaseURL: postgres:// or postgresql:// for
// PostgreSQL, file:// or a bare path for JSON files.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		db, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL persistence: %w", err)
		}

		return db, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
