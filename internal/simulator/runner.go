package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner fires a job on a cron schedule until its context is cancelled.
type Runner struct {
	spec  string
	sched cron.Schedule
	job   func(ctx context.Context)
	log   *slog.Logger
}

// NewRunner parses schedule, a standard 5-field expression or a descriptor
// such as "@every 5s", and binds job to it.
func NewRunner(schedule string, job func(ctx context.Context), log *slog.Logger) (*Runner, error) {
	if job == nil {
		return nil, errors.New("simulator: job must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("simulator: parse schedule %q: %w", schedule, err)
	}
	return &Runner{spec: schedule, sched: sched, job: job, log: log}, nil
}

// Next reports when the job fires after t.
func (r *Runner) Next(t time.Time) time.Time {
	return r.sched.Next(t)
}

// Run blocks until ctx is done and waits for a running job to return.
// Overlapping firings are skipped.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(r.sched, cron.FuncJob(func() { r.job(ctx) }))
	c.Start()
	r.log.Info("simulator: scheduled traffic started", "schedule", r.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info("simulator: scheduled traffic stopped")
	return nil
}
