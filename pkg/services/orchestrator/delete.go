package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func (s *service) DeleteApplication(ctx context.Context, cfg *config.Config, name string) error {
	const op = "orchestrator.DeleteApplication"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateCompliance(); err != nil {
		return fail(logger, op, err)
	}
	if strings.TrimSpace(name) == "" {
		return fail(logger, op, apperrors.Configuration(op, "application name is required"))
	}
	if err := s.requireRemote(op); err != nil {
		return fail(logger, op, err)
	}

	apps, err := s.applications(ctx)
	if err != nil {
		return fail(logger, op, err)
	}
	var app *models.Application
	for i := range apps {
		if apps[i].Name == name {
			app = &apps[i]
			break
		}
	}
	if app == nil {
		return fail(logger, op, apperrors.New(apperrors.KindNotFound, op, "application %s not found", name))
	}

	if err := s.remote.DeleteApplication(ctx, app.ID); err != nil {
		s.reportFailure(ctx, models.ResourceApplication, name, err)
		return fail(logger, op, err)
	}
	s.reporter.Report(ctx, audit.Event{Type: audit.EventResourceDeleted, Resource: models.ResourceApplication, Name: name, ID: app.ID})
	logger.Info("Application deleted", zap.String("application", name), zap.Int("id", app.ID))
	return nil
}

func (s *service) DeleteEnvironment(ctx context.Context, cfg *config.Config, name, application string) error {
	const op = "orchestrator.DeleteEnvironment"
	ctx, logger := s.begin(ctx, op)
	if err := cfg.ValidateCompliance(); err != nil {
		return fail(logger, op, err)
	}
	if strings.TrimSpace(name) == "" {
		return fail(logger, op, apperrors.Configuration(op, "environment name is required"))
	}
	if err := s.requireRemote(op); err != nil {
		return fail(logger, op, err)
	}

	envs, err := s.environments(ctx)
	if err != nil {
		return fail(logger, op, err)
	}
	var matches []models.Environment
	for _, env := range envs {
		if env.Name == name && (application == "" || env.ApplicationName == application) {
			matches = append(matches, env)
		}
	}

	switch len(matches) {
	case 0:
		msg := "environment " + name + " not found"
		if application != "" {
			msg += " in application " + application
		}
		return fail(logger, op, apperrors.New(apperrors.KindNotFound, op, "%s", msg))
	case 1:
	default:
		apps := make([]string, 0, len(matches))
		for _, m := range matches {
			apps = append(apps, m.ApplicationName)
		}
		return fail(logger, op, &apperrors.Error{
			Kind:    apperrors.KindConfiguration,
			Op:      op,
			Message: "environment " + name + " exists in several applications: " + strings.Join(apps, ", "),
			Hint:    "pass the application name to choose one",
		})
	}

	env := matches[0]
	if err := s.remote.DeleteEnvironment(ctx, env.ID); err != nil {
		s.reportFailure(ctx, models.ResourceEnvironment, name, err)
		return fail(logger, op, err)
	}
	s.reporter.Report(ctx, audit.Event{Type: audit.EventResourceDeleted, Resource: models.ResourceEnvironment, Name: name, ID: env.ID})
	logger.Info("Environment deleted",
		zap.String("environment", name),
		zap.String("application", env.ApplicationName),
		zap.Int("id", env.ID))
	return nil
}

func (s *service) reportFailure(ctx context.Context, kind models.ResourceKind, name string, err error) {
	s.reporter.Report(ctx, audit.Event{
		Type: audit.EventOperationFailed, Resource: kind, Name: name,
		Detail: err.Error(), Severity: audit.SeverityError,
	})
}
