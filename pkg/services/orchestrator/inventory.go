package orchestrator

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
)

func (s *service) ListApplications(ctx context.Context, cfg *config.Config) ([]models.Application, error) {
	const op = "orchestrator.ListApplications"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateCompliance(); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	apps, err := s.applications(ctx)
	if err != nil {
		return nil, fail(logger, op, err)
	}
	logger.Debug("Listed applications", zap.Int("count", len(apps)))
	return apps, nil
}

func (s *service) ListEnvironments(ctx context.Context, cfg *config.Config) ([]models.Environment, error) {
	const op = "orchestrator.ListEnvironments"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateCompliance(); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	envs, err := s.environments(ctx)
	if err != nil {
		return nil, fail(logger, op, err)
	}
	logger.Debug("Listed environments", zap.Int("count", len(envs)))
	return envs, nil
}

func (s *service) ListProfileSets(ctx context.Context, cfg *config.Config) ([]models.ProfileSet, error) {
	const op = "orchestrator.ListProfileSets"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateCompliance(); err != nil {
		return nil, fail(logger, op, err)
	}
	if err := s.requireRemote(op); err != nil {
		return nil, fail(logger, op, err)
	}

	sets, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() ([]models.ProfileSet, error) {
		return s.remote.ListProfileSets(ctx)
	})
	if err != nil {
		return nil, fail(logger, op, err)
	}
	slices.SortFunc(sets, func(a, b models.ProfileSet) int { return a.ID - b.ID })
	return sets, nil
}

func (s *service) ListSchemas(ctx context.Context, cfg *config.Config) ([]string, error) {
	const op = "orchestrator.ListSchemas"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.Database.Validate(); err != nil {
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

	schemas, err := inspector.ListSchemas(ctx)
	if err != nil {
		return nil, fail(logger, op, err)
	}
	logger.Info("Listed schemas",
		zap.String("engine", cfg.Database.Engine),
		zap.Int("count", len(schemas)))
	return schemas, nil
}

func (s *service) openInspector(ctx context.Context, op string, cfg *config.Config) (datasource.SchemaInspector, error) {
	if s.inspectors == nil {
		return nil, apperrors.DependencyMissing(op, "no schema inspector factory configured")
	}
	return s.inspectors.NewInspector(ctx, &cfg.Database)
}

// applications lists applications sorted by id.
func (s *service) applications(ctx context.Context) ([]models.Application, error) {
	apps, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() ([]models.Application, error) {
		return s.remote.ListApplications(ctx)
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(apps, func(a, b models.Application) int { return a.ID - b.ID })
	return apps, nil
}

// environments lists every environment with its application name, sorted by
// environment id then application id.
func (s *service) environments(ctx context.Context) ([]models.Environment, error) {
	apps, err := s.applications(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(apps))
	for _, a := range apps {
		names[a.ID] = a.Name
	}

	envs, err := retry.DoWithResultIfRetryable(ctx, s.retry, func() ([]models.Environment, error) {
		return s.remote.ListEnvironments(ctx, nil)
	})
	if err != nil {
		return nil, err
	}
	for i := range envs {
		if envs[i].ApplicationName == "" {
			envs[i].ApplicationName = names[envs[i].ApplicationID]
		}
	}
	slices.SortFunc(envs, func(a, b models.Environment) int {
		if a.ID != b.ID {
			return a.ID - b.ID
		}
		return a.ApplicationID - b.ApplicationID
	})
	return envs, nil
}
