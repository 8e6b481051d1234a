// Package retention deletes old rule execution logs on a schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/budgetflow/automations/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const (
	DefaultDays     = 30
	DefaultSchedule = "@daily"
)

var ErrInvalidDays = errors.New("retention days must not be negative")

// Scheduler runs CleanupOldLogs for every workspace that owns rules.
type Scheduler struct {
	persistence persistence.Persistence
	days        int
	schedule    string
	logger      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewScheduler(persistence persistence.Persistence, days int, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if days < 0 {
		return nil, ErrInvalidDays
	}

	if schedule == "" {
		schedule = DefaultSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule '%s': %w", schedule, err)
	}

	return &Scheduler{
		persistence: persistence,
		days:        days,
		schedule:    schedule,
		logger:      logger.With("module", "log_retention"),
	}, nil
}

// Cleanup deletes the workspace's logs older than the retention window.
func (s *Scheduler) Cleanup(ctx context.Context, workspaceID string) (int, error) {
	if workspaceID == "" {
		return 0, persistence.ErrWorkspaceRequired
	}

	deleted, err := s.persistence.Rules(workspaceID).CleanupOldLogs(ctx, s.days)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up logs of workspace %s: %w", workspaceID, err)
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "Deleted old rule logs", "workspace_id", workspaceID, "deleted", deleted, "days", s.days)
	}

	return deleted, nil
}

// RunOnce cleans up every workspace and reports the deleted count per workspace.
// A failing workspace does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (map[string]int, error) {
	workspaces, err := s.persistence.Workspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	deleted := make(map[string]int, len(workspaces))

	var errs []error

	for _, workspaceID := range workspaces {
		n, err := s.Cleanup(ctx, workspaceID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Log cleanup failed", "workspace_id", workspaceID, "error", err)
			errs = append(errs, err)

			continue
		}

		deleted[workspaceID] = n
	}

	return deleted, errors.Join(errs...)
}

// Start schedules RunOnce. ctx bounds every scheduled run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		s.cron = nil

		return fmt.Errorf("failed to schedule log cleanup: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.logger.Info("Log retention scheduled", "schedule", s.schedule, "days", s.days)

	return nil
}

// Stop unschedules the cleanup and waits for a running cleanup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	s.logger.Info("Log retention stopped")
}

// Next reports when the cleanup runs next. It is zero when the scheduler is stopped.
func (s *Scheduler) Next() (next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return next
	}

	return s.cron.Entry(s.entryID).Next
}
