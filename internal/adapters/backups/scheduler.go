// Package backups runs scheduled archive exports.
package backups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"admissions/internal/core"
)

// Exporter is the archive surface the scheduler drives.
type Exporter interface {
	ExportSnapshot(ctx context.Context) (core.Export, error)
	ExportRoster(ctx context.Context) (core.Export, error)
	PruneBackups(ctx context.Context, keep int) (int, error)
}

// Config selects when backups run and how many are kept.
type Config struct {
	// Schedule is a standard five-field cron expression or a descriptor
	// such as @daily.
	Schedule string
	Keep     int
	Roster   bool
}

// Run summarises one scheduled pass.
type Run struct {
	StartedAt time.Time
	Backup    core.Export
	Roster    *core.Export
	Pruned    int
	Err       error
}

// Scheduler triggers exports on a cron schedule.
type Scheduler struct {
	exporter Exporter
	cfg      Config
	schedule cron.Schedule
	cron     *cron.Cron
	logger   zerolog.Logger
	timeout  time.Duration

	mu   sync.Mutex
	last *Run
}

// New validates cfg and builds a stopped scheduler.
func New(exporter Exporter, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if exporter == nil {
		return nil, errors.New("backup exporter not configured")
	}
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		return nil, errors.New("backup schedule is empty")
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse backup schedule %q: %w", expr, err)
	}
	cfg.Schedule = expr
	s := &Scheduler{
		exporter: exporter,
		cfg:      cfg,
		schedule: schedule,
		logger:   logger,
		timeout:  5 * time.Minute,
	}
	s.cron = cron.New(
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Next reports the first run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Last returns the most recent pass, if any.
func (s *Scheduler) Last() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Run{}, false
	}
	return *s.last, true
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.logger.Info().Str("schedule", s.cfg.Schedule).Time("next", s.Next(time.Now())).Msg("backup scheduler started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce writes a backup, optionally a roster, then prunes old backups.
func (s *Scheduler) RunOnce(ctx context.Context) (Run, error) {
	run := Run{StartedAt: time.Now().UTC()}
	defer func() {
		s.mu.Lock()
		s.last = &run
		s.mu.Unlock()
	}()

	backup, err := s.exporter.ExportSnapshot(ctx)
	if err != nil {
		run.Err = fmt.Errorf("scheduled backup: %w", err)
		s.logger.Error().Err(err).Msg("scheduled backup failed")
		return run, run.Err
	}
	run.Backup = backup

	if s.cfg.Roster {
		roster, err := s.exporter.ExportRoster(ctx)
		if err != nil {
			run.Err = fmt.Errorf("scheduled roster: %w", err)
			s.logger.Error().Err(err).Msg("scheduled roster failed")
			return run, run.Err
		}
		run.Roster = &roster
	}

	pruned, err := s.exporter.PruneBackups(ctx, s.cfg.Keep)
	run.Pruned = pruned
	if err != nil {
		run.Err = fmt.Errorf("prune backups: %w", err)
		s.logger.Warn().Err(err).Msg("backup pruning failed")
		return run, run.Err
	}
	s.logger.Info().
		Str("key", backup.Info.Key).
		Int("pruned", pruned).
		Dur("took", time.Since(run.StartedAt)).
		Msg("scheduled backup complete")
	return run, nil
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
