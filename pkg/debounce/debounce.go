// Package debounce suppresses repeated rule evaluations for the same entity within a time window.
package debounce

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Gate decides whether an evaluation keyed by key may run now.
// Allow returns true at most once per window for the same key.
type Gate interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Key builds the debounce key of one rule for one entity.
func Key(workspaceID, ruleID, entityID string) string {
	return strings.Join([]string{workspaceID, ruleID, entityID}, ":")
}

// MemoryGate is a process-local Gate.
type MemoryGate struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
	calls   int
}

func NewMemoryGate() *MemoryGate {
	return &MemoryGate{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (g *MemoryGate) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	g.calls++
	if g.calls%1024 == 0 {
		g.prune(now)
	}

	if expiresAt, ok := g.expires[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	g.expires[key] = now.Add(window)

	return true, nil
}

// Len returns the number of tracked keys, expired or not.
func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.expires)
}

func (g *MemoryGate) prune(now time.Time) {
	for key, expiresAt := range g.expires {
		if !now.Before(expiresAt) {
			delete(g.expires, key)
		}
	}
}
