// Package orchestrator is the entry point for every user-facing operation.
// Each operation validates its configuration before touching the network,
// tags the run with an id, and returns *apperrors.Error on failure.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
	"github.com/delphix/dlpxdbprofiler/pkg/services/pipeline"
	"github.com/delphix/dlpxdbprofiler/pkg/services/reconcile"
	"github.com/delphix/dlpxdbprofiler/pkg/services/scheduler"
)

// Service defines the profiler operations.
type Service interface {
	// EnsureApplication ensures the configured application exists.
	EnsureApplication(ctx context.Context, cfg *config.Config) (*pipeline.Result, error)

	// EnsureEnvironment ensures the configured application and environment exist.
	EnsureEnvironment(ctx context.Context, cfg *config.Config) (*pipeline.Result, error)

	// CreateConnectorsRulesetsJobs provisions connectors, rulesets and profile
	// jobs for the configured schemas, ensuring application and environment first.
	CreateConnectorsRulesetsJobs(ctx context.Context, cfg *config.Config) (*pipeline.Result, error)

	// CreateAll provisions the whole hierarchy.
	CreateAll(ctx context.Context, cfg *config.Config) (*pipeline.Result, error)

	// DeleteEnvironment deletes an environment by name. application may be
	// empty unless the name exists in more than one application.
	DeleteEnvironment(ctx context.Context, cfg *config.Config, name, application string) error

	// DeleteApplication deletes an application by name.
	DeleteApplication(ctx context.Context, cfg *config.Config, name string) error

	// ListApplications returns all applications sorted by id.
	ListApplications(ctx context.Context, cfg *config.Config) ([]models.Application, error)

	// ListEnvironments returns all environments with their application names,
	// sorted by environment id then application id.
	ListEnvironments(ctx context.Context, cfg *config.Config) ([]models.Environment, error)

	// ListSchemas returns the user schemas of the configured source database.
	ListSchemas(ctx context.Context, cfg *config.Config) ([]string, error)

	// ListProfileSets returns all profile sets sorted by id.
	ListProfileSets(ctx context.Context, cfg *config.Config) ([]models.ProfileSet, error)

	// RunProfileJobs starts and monitors the configured environment's profile
	// jobs. An empty jobIDs selects every job in the environment.
	RunProfileJobs(ctx context.Context, cfg *config.Config, jobIDs []int) (*scheduler.RunSummary, error)
}

type service struct {
	remote     compliance.Remote
	inspectors datasource.InspectorFactory
	reporter   audit.Reporter
	retry      *retry.Config
	logger     *zap.Logger
}

// Option configures the service.
type Option func(*service)

// WithReporter sets the observer for run events.
func WithReporter(reporter audit.Reporter) Option {
	return func(s *service) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

// WithRetryConfig sets the backoff for idempotent reads.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(s *service) {
		if cfg != nil {
			s.retry = cfg
		}
	}
}

// New creates the service. remote may be nil for operations that only touch
// the source database; inspectors may be nil for operations that never do.
func New(remote compliance.Remote, inspectors datasource.InspectorFactory, logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		remote:     remote,
		inspectors: inspectors,
		reporter:   audit.Nop(),
		retry:      retry.DefaultConfig(),
		logger:     logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin tags ctx with a run id unless the caller already did.
func (s *service) begin(ctx context.Context, op string) (context.Context, *zap.Logger) {
	runID := audit.RunIDFromContext(ctx)
	if runID == "" {
		runID = audit.NewRunID()
		ctx = audit.WithRunID(ctx, runID)
	}
	logger := s.logger.With(zap.String("run_id", runID), zap.String("operation", op))
	logger.Debug("Operation started")
	return ctx, logger
}

// requireRemote guards operations that need the compliance engine.
func (s *service) requireRemote(op string) error {
	if s.remote == nil {
		return apperrors.DependencyMissing(op, "no compliance engine client configured")
	}
	return nil
}

func (s *service) reconciler(cfg *config.Config) *reconcile.Reconciler {
	return reconcile.New(s.remote, s.logger,
		reconcile.WithReporter(s.reporter),
		reconcile.WithRetryConfig(s.retry),
		reconcile.WithDriftPolicy(reconcile.DriftPolicy(cfg.DriftPolicy)))
}

func (s *service) pipeline(cfg *config.Config) *pipeline.Pipeline {
	return pipeline.New(s.reconciler(cfg), s.logger)
}

func plan(cfg *config.Config) pipeline.Plan {
	return pipeline.Plan{
		ApplicationName: cfg.ApplicationName,
		EnvironmentName: cfg.EnvironmentName,
		Scope:           cfg.ConnectorScope(),
		SchemaName:      cfg.SchemaName,
		ProfileSetID:    cfg.Profile.SetID,
		Connector:       &cfg.Database,
		MaxParallel:     cfg.Profile.MaxParallel,
	}
}

// fail converts err to *apperrors.Error and logs it once.
func fail(logger *zap.Logger, op string, err error) error {
	appErr := apperrors.From(op, err)
	logger.Error("Operation failed",
		zap.String("kind", string(appErr.Kind)),
		zap.Error(appErr))
	return appErr
}

var _ Service = (*service)(nil)
