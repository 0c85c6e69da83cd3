// Package scheduler runs the periodic sync jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"call-analytics/internal/jobs"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. Run gets a context bounded by Timeout.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	base context.Context
}

// New builds a scheduler evaluating specs in loc. Overlapping ticks of the same job are
// skipped and panics are recovered.
func New(log *slog.Logger, loc *time.Location) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log.With(slog.String("component", "scheduler"))}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  cl.log,
		base: context.Background(),
	}
}

func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %q has no run func", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("scheduler: job %q: %w", job.Name, err)
	}
	s.log.Info("job scheduled", slog.String("job", job.Name), slog.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runJob(job Job) {
	ctx := s.base
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	err := job.Run(ctx)
	switch {
	case err == nil:
		s.log.Info("job finished", slog.String("job", job.Name), slog.Duration("took", time.Since(started)))
	case errors.Is(err, jobs.ErrAlreadyRunning):
		s.log.Info("job skipped; already running", slog.String("job", job.Name))
	default:
		s.log.Error("job failed", slog.String("job", job.Name), slog.Any("err", err))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
