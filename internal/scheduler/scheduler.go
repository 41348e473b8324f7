// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }
func (j funcJob) Name() string                  { return j.name }

// NewJob wraps fn as a named job.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Scheduler manages background jobs. A job still running when its next
// tick fires is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	l    *zap.Logger
}

// New creates a scheduler whose jobs run with ctx.
func New(ctx context.Context, l *zap.Logger) *Scheduler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  ctx,
		l:    l.With(zap.String("component", "scheduler")),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.l.Info("Scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.l.Debug("Running job", zap.String("job", job.Name()))

		if err := job.Run(s.ctx); err != nil {
			s.l.Error("Job failed", zap.String("job", job.Name()), zap.Error(err))
			return
		}
		s.l.Debug("Job completed", zap.String("job", job.Name()))
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q for job %s", schedule, job.Name())
	}

	s.l.Info("Job registered", zap.String("schedule", schedule), zap.String("job", job.Name()))
	return nil
}

// Every registers a job that runs at a fixed interval.
func (s *Scheduler) Every(interval time.Duration, job Job) error {
	if interval <= 0 {
		return errors.Errorf("interval of job %s must be positive, got %s", job.Name(), interval)
	}
	return s.AddJob(fmt.Sprintf("@every %s", interval), job)
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.l.Info("Running job immediately", zap.String("job", job.Name()))
	return job.Run(s.ctx)
}
