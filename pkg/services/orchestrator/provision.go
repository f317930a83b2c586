package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/services/pipeline"
)

func (s *service) EnsureApplication(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	const op = "orchestrator.EnsureApplication"
	ctx, logger := s.begin(ctx, op)
	if err := validateAll(cfg.ValidateCompliance, func() error { return cfg.ValidateNames(false) }); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	result, err := s.pipeline(cfg).EnsureApplication(ctx, plan(cfg))
	if err != nil {
		return result, fail(logger, op, err)
	}
	logger.Info("Application ready",
		zap.String("application", result.Application.Name),
		zap.Int("id", result.Application.ID))
	return result, nil
}

func (s *service) EnsureEnvironment(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	const op = "orchestrator.EnsureEnvironment"
	ctx, logger := s.begin(ctx, op)
	if err := validateAll(cfg.ValidateCompliance, func() error { return cfg.ValidateNames(true) }); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	result, err := s.pipeline(cfg).EnsureEnvironment(ctx, plan(cfg))
	if err != nil {
		return result, fail(logger, op, err)
	}
	logger.Info("Environment ready",
		zap.String("application", result.Application.Name),
		zap.String("environment", result.Environment.Name),
		zap.Int("id", result.Environment.ID))
	return result, nil
}

func (s *service) CreateConnectorsRulesetsJobs(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	return s.provision(ctx, cfg, "orchestrator.CreateConnectorsRulesetsJobs")
}

func (s *service) CreateAll(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	return s.provision(ctx, cfg, "orchestrator.CreateAll")
}

func (s *service) provision(ctx context.Context, cfg *config.Config, op string) (*pipeline.Result, error) {
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateProvisioning(); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	inspector, err := s.openInspector(ctx, op, cfg)
	if err != nil {
		return nil, fail(logger, op, err)
	}
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("Failed to close schema inspector", zap.Error(err))
		}
	}()

	result, err := s.pipeline(cfg).Run(ctx, plan(cfg), inspector)
	if err != nil {
		return result, fail(logger, op, err)
	}

	logger.Info("Provisioning complete",
		zap.Int("created", result.Created()),
		zap.Int("schemas", len(result.Chains)),
		zap.Int("failed", len(result.Failed())),
		zap.Int("tables_added", result.TablesAdded),
		zap.Int("conflicts_recovered", result.ConflictsRecovered))
	return result, nil
}

// validateAll runs checks in order and returns the first failure.
func validateAll(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
