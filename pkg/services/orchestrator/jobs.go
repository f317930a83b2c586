package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
	"github.com/delphix/dlpxdbprofiler/pkg/services/scheduler"
)

func (s *service) RunProfileJobs(ctx context.Context, cfg *config.Config, jobIDs []int) (*scheduler.RunSummary, error) {
	const op = "orchestrator.RunProfileJobs"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateJobs(); err != nil {
		return nil, fail(logger, op, err)
	}
	for _, id := range jobIDs {
		if id <= 0 {
			return nil, fail(logger, op, apperrors.Configuration(op, "invalid profile job id %d", id))
		}
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	// The environment is ensured rather than looked up, so a first run
	// against a fresh engine leaves the hierarchy in place.
	ensured, err := s.pipeline(cfg).EnsureEnvironment(ctx, plan(cfg))
	if err != nil {
		return nil, fail(logger, op, err)
	}
	env := ensured.Environment

	all, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() ([]models.ProfileJob, error) {
		return s.remote.ListProfileJobs(ctx, env.ID)
	})
	if err != nil {
		return nil, fail(logger, op, err)
	}

	jobs, err := selectJobs(op, all, jobIDs)
	if err != nil {
		return nil, fail(logger, op, err)
	}
	if len(jobs) == 0 {
		logger.Warn("No profile jobs to run", zap.String("environment", env.Name))
	}

	sched := scheduler.New(s.remote, s.logger,
		scheduler.WithReporter(s.reporter),
		scheduler.WithRetryConfig(s.retry))
	summary := sched.Run(ctx, jobs, scheduler.Options{
		MaxParallel:  cfg.Profile.MaxParallel,
		PollInterval: cfg.Profile.PollInterval,
		Deadline:     cfg.Profile.Deadline,
		OnProgress: func(completed, total int) {
			logger.Info("Profile job progress", zap.Int("completed", completed), zap.Int("total", total))
		},
	})

	logger.Info("Profile jobs finished",
		zap.String("environment", env.Name),
		zap.Int("jobs", len(summary.Results)),
		zap.Int("succeeded", summary.Counts[scheduler.OutcomeSucceeded]),
		zap.Int("unsuccessful", len(summary.Failed())))
	return summary, nil
}

// selectJobs returns the jobs named by ids, or all jobs when ids is empty.
func selectJobs(op string, all []models.ProfileJob, ids []int) ([]models.ProfileJob, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[int]models.ProfileJob, len(all))
	for _, j := range all {
		byID[j.ID] = j
	}

	var selected []models.ProfileJob
	var unknown []string
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		job, ok := byID[id]
		if !ok {
			unknown = append(unknown, fmt.Sprint(id))
			continue
		}
		selected = append(selected, job)
	}
	if len(unknown) > 0 {
		return nil, &apperrors.Error{
			Kind:    apperrors.KindConfiguration,
			Op:      op,
			Message: "profile jobs not found in environment: " + strings.Join(unknown, ", "),
			Hint:    "run without job ids to run every job in the environment",
		}
	}
	return selected, nil
}
