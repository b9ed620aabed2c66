package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/metrics"
)

const (
	// DailyReminderSpec fires the reminder job every day at 08:00.
	DailyReminderSpec = "0 8 * * *"
	// MonthlyCleanupSpec fires the retention cleanup at 00:00 on the 1st.
	MonthlyCleanupSpec = "0 0 1 * *"
	// RetentionMonths is how long ledger rows are kept.
	RetentionMonths = 6
)

// ReminderRunner runs one reminder pass.
type ReminderRunner interface {
	Run(ctx context.Context, trigger string) RunSummary
}

// RetentionStore deletes ledger rows created before cutoff.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SchedulerStatus describes both triggers.
type SchedulerStatus struct {
	Timezone        string     `json:"timezone"`
	ReminderSpec    string     `json:"reminderSchedule"`
	ReminderRunning bool       `json:"reminderRunning"`
	NextReminder    *time.Time `json:"nextReminder,omitempty"`
	CleanupSpec     string     `json:"cleanupSchedule"`
	CleanupRunning  bool       `json:"cleanupRunning"`
	NextCleanup     *time.Time `json:"nextCleanup,omitempty"`
}

// Scheduler owns the daily reminder trigger and the monthly retention cleanup.
// The two triggers start and stop independently.
type Scheduler struct {
	runner    ReminderRunner
	retention RetentionStore
	cache     Cache
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time

	reminder *cronTask
	cleanup  *cronTask
}

// NewScheduler creates a scheduler evaluating both triggers in loc. cache may be nil.
func NewScheduler(runner ReminderRunner, retention RetentionStore, cache Cache, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		runner:    runner,
		retention: retention,
		cache:     cache,
		loc:       loc,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
	s.reminder = &cronTask{name: "itp-reminder", spec: DailyReminderSpec, loc: loc, logger: s.logger, fn: s.runScheduledReminder}
	s.cleanup = &cronTask{name: "notification-cleanup", spec: MonthlyCleanupSpec, loc: loc, logger: s.logger, fn: s.runScheduledCleanup}
	return s
}

// Start starts both triggers.
func (s *Scheduler) Start() error {
	if err := s.StartReminder(); err != nil {
		return err
	}
	return s.StartCleanup()
}

// Stop stops both triggers and waits for in-flight jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	return errors.Join(s.StopReminder(ctx), s.StopCleanup(ctx))
}

func (s *Scheduler) StartReminder() error { return s.reminder.start() }

func (s *Scheduler) StopReminder(ctx context.Context) error { return s.reminder.stop(ctx) }

func (s *Scheduler) StartCleanup() error { return s.cleanup.start() }

func (s *Scheduler) StopCleanup(ctx context.Context) error { return s.cleanup.stop(ctx) }

// RunNow runs the reminder job immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) RunSummary {
	return s.runner.Run(ctx, TriggerManual)
}

// RetentionCutoff is the creation time before which ledger rows are removed.
func RetentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, -RetentionMonths, 0)
}

// RunCleanup deletes ledger rows older than the retention period.
func (s *Scheduler) RunCleanup(ctx context.Context) (int64, error) {
	cutoff := RetentionCutoff(s.now().In(s.loc))
	deleted, err := s.retention.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.AddCleanupDeleted(deleted)
	s.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("notification cleanup completed")

	if s.cache != nil && deleted > 0 {
		if err := s.cache.Delete(ctx, CacheKeyNotificationStats); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate notification stats")
		}
	}
	return deleted, nil
}

// Status reports whether each trigger is running and when it fires next.
func (s *Scheduler) Status() SchedulerStatus {
	now := s.now()
	st := SchedulerStatus{
		Timezone:        s.loc.String(),
		ReminderSpec:    DailyReminderSpec,
		ReminderRunning: s.reminder.running(),
		CleanupSpec:     MonthlyCleanupSpec,
		CleanupRunning:  s.cleanup.running(),
	}
	if next, ok := s.reminder.next(now); ok {
		st.NextReminder = &next
	}
	if next, ok := s.cleanup.next(now); ok {
		st.NextCleanup = &next
	}
	return st
}

func (s *Scheduler) runScheduledReminder() {
	s.runner.Run(context.Background(), TriggerScheduled)
}

func (s *Scheduler) runScheduledCleanup() {
	if _, err := s.RunCleanup(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("notification cleanup failed")
	}
}

// cronTask wraps one cron trigger so it can be started and stopped on its own.
type cronTask struct {
	name   string
	spec   string
	loc    *time.Location
	logger zerolog.Logger
	fn     func()

	mu        sync.Mutex
	c         *cron.Cron
	isRunning bool
}

func (t *cronTask) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}

	cl := cronLogger{t.logger.With().Str("task", t.name).Logger()}
	c := cron.New(
		cron.WithLocation(t.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	if _, err := c.AddFunc(t.spec, t.fn); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", t.name, t.spec, err)
	}
	c.Start()
	t.c = c
	t.isRunning = true

	t.logger.Info().Str("task", t.name).Str("spec", t.spec).Str("timezone", t.loc.String()).Msg("scheduled task started")
	return nil
}

func (t *cronTask) stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	c := t.c
	t.c = nil
	t.isRunning = false
	t.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		t.logger.Info().Str("task", t.name).Msg("scheduled task stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop %s: %w", t.name, ctx.Err())
	}
}

func (t *cronTask) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// next computes the next fire time after now, whether or not the task is running.
func (t *cronTask) next(now time.Time) (time.Time, bool) {
	sched, err := cron.ParseStandard(t.spec)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(now.In(t.loc)), true
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
