// Package file provides file-based persistence for automation rules and logs.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/budgetflow/automations/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Layout: <root>/workspaces/<workspace>/rules/<id>.json and .../logs/<id>.json.
type Persistence struct {
	root string
	mu   sync.RWMutex // guards every read-modify-write across workspaces
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Rules returns the rule repository bound to workspaceID.
func (fp *Persistence) Rules(workspaceID string) persistence.RuleRepository {
	return &RuleRepository{persistence: fp, workspaceID: workspaceID}
}

// Workspaces lists workspace directories that hold at least one rule.
func (fp *Persistence) Workspaces(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fp.root, "workspaces"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}

		return nil, err
	}

	workspaces := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		rules, err := filepath.Glob(filepath.Join(fp.root, "workspaces", entry.Name(), "rules", "*.json"))
		if err != nil || len(rules) == 0 {
			continue
		}

		workspaces = append(workspaces, entry.Name())
	}

	return workspaces, nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// validID rejects identifiers that would escape their directory.
func validID(id string) bool {
	return id != "" &&
		id != "." &&
		id != ".." &&
		!strings.ContainsAny(id, `/\`) &&
		filepath.Base(id) == id
}
