// Package scheduler starts profile jobs with bounded parallelism and polls
// each one until it reaches a terminal state.
//
// Every job gets its own goroutine. Admission goes through a weighted
// semaphore of size MaxParallel, so a serial run is the same code path with
// a limit of one. Finished jobs are sent to a single channel drained by Run,
// which is the only writer of the summary.
package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
)

// DefaultPollInterval is used when Options.PollInterval is not positive.
const DefaultPollInterval = 5 * time.Second

// JobRunner is the part of the compliance engine the scheduler drives.
// compliance.Remote satisfies it.
type JobRunner interface {
	StartProfileJob(ctx context.Context, jobID int) (*models.Execution, error)
	GetExecution(ctx context.Context, executionID int) (*models.Execution, error)
}

// Options bound one run.
type Options struct {
	MaxParallel  int
	PollInterval time.Duration
	// Deadline bounds the whole run. Zero means none.
	Deadline time.Duration
	// OnProgress is called from the collecting goroutine after each job finishes.
	OnProgress func(completed, total int)
}

// Scheduler runs profile jobs. Safe for concurrent use; each Run is independent.
type Scheduler struct {
	runner   JobRunner
	reporter audit.Reporter
	retry    *retry.Config
	logger   *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReporter sets the observer that receives one event per job transition.
func WithReporter(reporter audit.Reporter) Option {
	return func(s *Scheduler) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

// WithRetryConfig sets the backoff for status polls. Starts are never retried.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(s *Scheduler) {
		if cfg != nil {
			s.retry = cfg
		}
	}
}

// New creates a scheduler.
func New(runner JobRunner, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner:   runner,
		reporter: audit.Nop(),
		retry:    retry.DefaultConfig(),
		logger:   logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type finished struct {
	index  int
	result JobResult
}

// Run starts every job and waits until each one is terminal, failed locally,
// or interrupted by the deadline or ctx. Jobs are admitted in job ID order
// and the summary keeps that order.
func (s *Scheduler) Run(ctx context.Context, jobs []models.ProfileJob, opts Options) *RunSummary {
	started := time.Now()
	opts = normalize(opts)

	ordered := slices.Clone(jobs)
	slices.SortStableFunc(ordered, func(a, b models.ProfileJob) int { return a.ID - b.ID })

	summary := &RunSummary{RunID: audit.RunIDFromContext(ctx), Results: make([]JobResult, len(ordered))}
	if len(ordered) == 0 {
		summary.tally()
		return summary
	}

	runCtx := ctx
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	s.logger.Info("Running profile jobs",
		zap.Int("jobs", len(ordered)),
		zap.Int("max_parallel", opts.MaxParallel),
		zap.Duration("poll_interval", opts.PollInterval),
		zap.Duration("deadline", opts.Deadline))

	states := make([]*jobState, len(ordered))
	for i, job := range ordered {
		states[i] = newJobState(job)
		s.report(ctx, states[i], "")
	}

	sem := semaphore.NewWeighted(int64(opts.MaxParallel))
	results := make(chan finished, len(ordered))

	// Admission happens here, one job at a time in job ID order.
	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()
		for i, state := range states {
			// Acquire blocks while MaxParallel jobs are in flight.
			if err := sem.Acquire(runCtx, 1); err != nil {
				for j := i; j < len(states); j++ {
					s.interrupt(ctx, states[j])
					results <- finished{index: j, result: states[j].snapshot()}
				}
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				s.runJob(ctx, runCtx, state, opts.PollInterval)
				results <- finished{index: i, result: state.snapshot()}
			}()
		}
	}()

	completed := 0
	for f := range results {
		summary.Results[f.index] = f.result
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(ordered))
		}
	}

	summary.tally()
	summary.Duration = time.Since(started)
	s.logger.Info("Profile job run finished",
		zap.Int("jobs", len(ordered)),
		zap.Int("succeeded", summary.Counts[OutcomeSucceeded]),
		zap.Int("failed", len(summary.Failed())),
		zap.Duration("duration", summary.Duration))
	return summary
}

func normalize(opts Options) Options {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Deadline < 0 {
		opts.Deadline = 0
	}
	return opts
}

// runJob starts one job and polls it until it leaves RUNNING. parent is the
// caller's context, used to tell cancellation apart from the run deadline.
func (s *Scheduler) runJob(parent, ctx context.Context, state *jobState, interval time.Duration) {
	const op = "scheduler.runJob"
	job := state.job
	logger := s.logger.With(zap.Int("job_id", job.ID), zap.String("job", job.Name))

	if ctx.Err() != nil {
		s.interrupt(parent, state)
		return
	}

	// Remote calls run to completion once issued, bounded by the client
	// timeout; ctx is checked after each call returns.
	callCtx := context.WithoutCancel(ctx)

	// Starting is not idempotent, so it is attempted exactly once.
	exec, err := s.runner.StartProfileJob(callCtx, job.ID)
	if err != nil {
		startErr := &apperrors.Error{
			Kind:    apperrors.KindJobStartFailure,
			Op:      op,
			Message: "could not start profile job " + job.Name,
			Err:     err,
		}
		if appErr := apperrors.From(op, err); appErr.Status != 0 {
			startErr.Status = appErr.Status
		}
		logger.Error("Failed to start profile job", zap.Error(err))
		state.finish(OutcomeStartFailed, startErr, "")
		state.transition(models.JobStatusFailed)
		s.report(parent, state, OutcomeStartFailed)
		return
	}

	state.setExecution(exec)
	state.transition(models.JobStatusRunning)
	s.report(parent, state, "")
	logger.Info("Profile job started", zap.Int("execution_id", exec.ID))

	if exec.Status.IsTerminal() {
		s.complete(parent, state, exec)
		return
	}
	if ctx.Err() != nil {
		s.interrupt(parent, state)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.interrupt(parent, state)
			return
		case <-ticker.C:
		}

		polled, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() (*models.Execution, error) {
			return s.runner.GetExecution(callCtx, exec.ID)
		})
		if err != nil {
			if ctx.Err() != nil {
				s.interrupt(parent, state)
				return
			}
			logger.Error("Polling profile job failed", zap.Error(err))
			state.finish(OutcomePollFailed, apperrors.From(op, err), "status unknown after polling failed")
			state.transition(models.JobStatusUnknown)
			s.report(parent, state, OutcomePollFailed)
			return
		}

		state.setExecution(polled)
		logger.Debug("Polled profile job", zap.String("remote_status", polled.RemoteStatus))
		if polled.Status.IsTerminal() {
			s.complete(parent, state, polled)
			return
		}
	}
}

// complete records a terminal status reported by the engine.
func (s *Scheduler) complete(ctx context.Context, state *jobState, exec *models.Execution) {
	var outcome Outcome
	var err error
	switch exec.Status {
	case models.JobStatusSucceeded:
		outcome = OutcomeSucceeded
	case models.JobStatusCancelled:
		outcome = OutcomeCancelledRemote
		err = apperrors.New(apperrors.KindJobFailedRemote, "scheduler.complete",
			"profile job %s was cancelled on the engine", state.job.Name)
	default:
		outcome = OutcomeFailedRemote
		err = &apperrors.Error{
			Kind:    apperrors.KindJobFailedRemote,
			Op:      "scheduler.complete",
			Message: "profile job " + state.job.Name + " failed",
			Detail:  exec.RemoteStatus,
		}
	}
	state.finish(outcome, err, "")
	state.transition(exec.Status)
	s.report(ctx, state, outcome)

	fields := []zap.Field{
		zap.Int("job_id", state.job.ID),
		zap.String("status", string(exec.Status)),
		zap.Duration("duration", state.duration()),
	}
	if outcome == OutcomeSucceeded {
		s.logger.Info("Profile job finished", fields...)
	} else {
		s.logger.Warn("Profile job finished unsuccessfully", fields...)
	}
}

// interrupt stops tracking a job because the deadline passed or the caller
// cancelled. A job still waiting for admission will not run; a started job's
// remote state is unknown.
func (s *Scheduler) interrupt(parent context.Context, state *jobState) {
	const op = "scheduler.interrupt"
	outcome := OutcomeTimedOut
	var err error = apperrors.New(apperrors.KindJobTimedOut, op,
		"profile job %s did not finish before the deadline", state.job.Name)
	if parent.Err() != nil {
		outcome = OutcomeCancelledLocal
		err = apperrors.From(op, parent.Err())
	}

	status := models.JobStatusUnknown
	detail := "stopped waiting; remote status unknown"
	if state.getStatus() == models.JobStatusPending {
		status = models.JobStatusCancelled
		detail = "not started"
	}
	state.finish(outcome, err, detail)
	state.transition(status)
	s.report(parent, state, outcome)
	s.logger.Warn("Stopped tracking profile job",
		zap.Int("job_id", state.job.ID),
		zap.String("outcome", string(outcome)))
}

func (s *Scheduler) report(ctx context.Context, state *jobState, outcome Outcome) {
	severity := audit.SeverityInfo
	switch outcome {
	case "", OutcomeSucceeded:
	case OutcomeTimedOut, OutcomeCancelledLocal:
		severity = audit.SeverityWarning
	default:
		severity = audit.SeverityError
	}
	s.reporter.Report(context.WithoutCancel(ctx), audit.Event{
		Type:     audit.EventJobTransition,
		Resource: models.ResourceProfileJob,
		Name:     state.job.Name,
		ID:       state.job.ID,
		Status:   string(state.getStatus()),
		Duration: state.duration(),
		Detail:   string(outcome),
		Severity: severity,
	})
}
