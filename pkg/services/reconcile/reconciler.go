// Package reconcile implements idempotent get-or-create for every object the
// profiler provisions in the compliance engine.
//
// Every Ensure call follows the same shape: find by key in the parent scope,
// return the existing object unchanged, otherwise create it. A create that
// loses a race (RemoteConflict) is resolved by querying again, so two runs
// provisioning the same key converge on one object without locking.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
)

// DriftPolicy decides what happens when a found object no longer matches the desired definition.
type DriftPolicy string

const (
	DriftWarn DriftPolicy = "warn"
	DriftFail DriftPolicy = "fail"
)

// Outcome describes how an Ensure call was satisfied.
type Outcome struct {
	Created bool `json:"created" yaml:"created"`
	// ConflictRecovered is set when a create lost a race and the winner's object was reused.
	ConflictRecovered bool     `json:"conflict_recovered,omitempty" yaml:"conflict_recovered,omitempty"`
	Drift             []string `json:"drift,omitempty" yaml:"drift,omitempty"`
}

// Reconciler ensures compliance engine objects exist. Safe for concurrent use.
type Reconciler struct {
	remote   compliance.Remote
	reporter audit.Reporter
	retry    *retry.Config
	drift    DriftPolicy
	logger   *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithReporter sets the run event observer.
func WithReporter(reporter audit.Reporter) Option {
	return func(r *Reconciler) {
		if reporter != nil {
			r.reporter = reporter
		}
	}
}

// WithRetryConfig sets the backoff used for finds and table reads.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(r *Reconciler) {
		if cfg != nil {
			r.retry = cfg
		}
	}
}

// WithDriftPolicy sets the drift policy. Unknown values keep the default (warn).
func WithDriftPolicy(policy DriftPolicy) Option {
	return func(r *Reconciler) {
		if policy == DriftWarn || policy == DriftFail {
			r.drift = policy
		}
	}
}

// New creates a reconciler over remote.
func New(remote compliance.Remote, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		remote:   remote,
		reporter: audit.Nop(),
		retry:    retry.DefaultConfig(),
		drift:    DriftWarn,
		logger:   logger.Named("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// target names the object being ensured, for logs and events.
type target struct {
	kind models.ResourceKind
	name string
	op   string
}

// ensure runs find → create → conflict re-query for one object.
func ensure[T any](
	ctx context.Context,
	r *Reconciler,
	t target,
	idOf func(*T) int,
	find func(ctx context.Context) (*T, error),
	create func(ctx context.Context) (*T, error),
) (*T, Outcome, error) {
	findWithRetry := func() (*T, error) {
		return retry.DoWithResultIfRetryable(ctx, r.retry, func() (*T, error) {
			return find(ctx)
		})
	}

	found, err := findWithRetry()
	if err != nil {
		return nil, Outcome{}, r.fail(ctx, t, err)
	}
	if found != nil {
		r.logger.Debug("Object exists",
			zap.String("resource", string(t.kind)),
			zap.String("name", t.name),
			zap.Int("id", idOf(found)))
		r.reporter.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: t.kind, Name: t.name, ID: idOf(found)})
		return found, Outcome{}, nil
	}

	created, err := create(ctx)
	if err == nil {
		r.logger.Info("Object created",
			zap.String("resource", string(t.kind)),
			zap.String("name", t.name),
			zap.Int("id", idOf(created)))
		r.reporter.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: t.kind, Name: t.name, ID: idOf(created), Created: true})
		return created, Outcome{Created: true}, nil
	}
	if !apperrors.IsKind(err, apperrors.KindRemoteConflict) {
		return nil, Outcome{}, r.fail(ctx, t, err)
	}

	r.logger.Warn("Create conflicted, re-querying",
		zap.String("resource", string(t.kind)),
		zap.String("name", t.name))

	winner, findErr := findWithRetry()
	if findErr != nil {
		return nil, Outcome{}, r.fail(ctx, t, findErr)
	}
	if winner == nil {
		unavailable := &apperrors.Error{
			Kind:    apperrors.KindRemoteUnavailable,
			Op:      t.op,
			Message: fmt.Sprintf("%s %s reported as existing but not found", t.kind, t.name),
			Detail:  err.Error(),
			Err:     err,
		}
		return nil, Outcome{}, r.fail(ctx, t, unavailable)
	}

	r.reporter.Report(ctx, audit.Event{
		Type: audit.EventConflictRecovered, Resource: t.kind, Name: t.name, ID: idOf(winner),
		Severity: audit.SeverityWarning,
	})
	r.reporter.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: t.kind, Name: t.name, ID: idOf(winner)})
	return winner, Outcome{ConflictRecovered: true}, nil
}

// fail reports err and returns it typed.
func (r *Reconciler) fail(ctx context.Context, t target, err error) error {
	appErr := apperrors.From(t.op, err)
	r.logger.Error("Ensure failed",
		zap.String("resource", string(t.kind)),
		zap.String("name", t.name),
		zap.Error(appErr))
	r.reporter.Report(ctx, audit.Event{
		Type: audit.EventOperationFailed, Resource: t.kind, Name: t.name,
		Detail: appErr.Error(), Severity: audit.SeverityError,
	})
	return appErr
}

// EnsureApplication returns the named application, creating it if absent.
func (r *Reconciler) EnsureApplication(ctx context.Context, name string) (*models.Application, Outcome, error) {
	t := target{kind: models.ResourceApplication, name: name, op: "reconcile.EnsureApplication"}
	return ensure(ctx, r, t,
		func(a *models.Application) int { return a.ID },
		func(ctx context.Context) (*models.Application, error) { return r.remote.FindApplication(ctx, name) },
		func(ctx context.Context) (*models.Application, error) { return r.remote.CreateApplication(ctx, name) },
	)
}

// EnsureEnvironment returns the named environment of app, creating it if absent.
func (r *Reconciler) EnsureEnvironment(ctx context.Context, app *models.Application, name string) (*models.Environment, Outcome, error) {
	const op = "reconcile.EnsureEnvironment"
	if app == nil {
		return nil, Outcome{}, apperrors.DependencyMissing(op, "environment %s requires an application", name)
	}
	t := target{kind: models.ResourceEnvironment, name: name, op: op}
	env, outcome, err := ensure(ctx, r, t,
		func(e *models.Environment) int { return e.ID },
		func(ctx context.Context) (*models.Environment, error) { return r.remote.FindEnvironment(ctx, app.ID, name) },
		func(ctx context.Context) (*models.Environment, error) { return r.remote.CreateEnvironment(ctx, app.ID, name) },
	)
	if env != nil && env.ApplicationName == "" {
		env.ApplicationName = app.Name
	}
	return env, outcome, err
}

// EnsureConnector returns the connector named spec.Name in env, creating it if
// absent. A found connector whose identity differs from spec is drift, handled
// according to the drift policy.
func (r *Reconciler) EnsureConnector(ctx context.Context, env *models.Environment, spec models.ConnectorSpec) (*models.Connector, Outcome, error) {
	const op = "reconcile.EnsureConnector"
	if env == nil {
		return nil, Outcome{}, apperrors.DependencyMissing(op, "connector %s requires an environment", spec.Name)
	}
	t := target{kind: models.ResourceConnector, name: spec.Name, op: op}
	conn, outcome, err := ensure(ctx, r, t,
		func(c *models.Connector) int { return c.ID },
		func(ctx context.Context) (*models.Connector, error) { return r.remote.FindConnector(ctx, env.ID, spec.Name) },
		func(ctx context.Context) (*models.Connector, error) { return r.remote.CreateConnector(ctx, env.ID, spec) },
	)
	if err != nil || outcome.Created {
		return conn, outcome, err
	}

	drift := spec.Key().Drift(conn.Spec.Key())
	if len(drift) == 0 {
		return conn, outcome, nil
	}
	outcome.Drift = drift
	detail := strings.Join(drift, "; ")

	if r.drift == DriftFail {
		driftErr := &apperrors.Error{
			Kind:    apperrors.KindConfiguration,
			Op:      op,
			Message: fmt.Sprintf("connector %s exists with a different definition", spec.Name),
			Detail:  detail,
			Hint:    "delete the connector or set DBP_DRIFT_POLICY=warn",
		}
		return nil, outcome, r.fail(ctx, t, driftErr)
	}

	r.logger.Warn("Connector drift detected, reusing existing connector",
		zap.String("name", spec.Name),
		zap.Int("id", conn.ID),
		zap.Strings("drift", drift))
	r.reporter.Report(ctx, audit.Event{
		Type: audit.EventDriftDetected, Resource: models.ResourceConnector, Name: spec.Name, ID: conn.ID,
		Detail: detail, Severity: audit.SeverityWarning,
	})
	return conn, outcome, nil
}

// EnsureRuleset returns the ruleset bound to conn, creating it if absent, and
// then syncs its tables so that it contains at least tables.
func (r *Reconciler) EnsureRuleset(ctx context.Context, env *models.Environment, conn *models.Connector, name string, tables []string) (*models.Ruleset, Outcome, SyncResult, error) {
	const op = "reconcile.EnsureRuleset"
	if env == nil {
		return nil, Outcome{}, SyncResult{}, apperrors.DependencyMissing(op, "ruleset %s requires an environment", name)
	}
	if conn == nil {
		return nil, Outcome{}, SyncResult{}, apperrors.DependencyMissing(op, "ruleset %s requires a connector", name)
	}
	t := target{kind: models.ResourceRuleset, name: name, op: op}
	rs, outcome, err := ensure(ctx, r, t,
		func(rs *models.Ruleset) int { return rs.ID },
		func(ctx context.Context) (*models.Ruleset, error) { return r.remote.FindRuleset(ctx, env.ID, conn.ID) },
		func(ctx context.Context) (*models.Ruleset, error) { return r.remote.CreateRuleset(ctx, conn.ID, name) },
	)
	if err != nil {
		return nil, outcome, SyncResult{}, err
	}

	synced, err := r.SyncTables(ctx, rs, tables)
	if err != nil {
		return rs, outcome, synced, err
	}
	rs.Tables = synced.Tables
	return rs, outcome, synced, nil
}

// EnsureProfileJob returns the job profiling rs with profileSetID, creating it if absent.
func (r *Reconciler) EnsureProfileJob(ctx context.Context, env *models.Environment, rs *models.Ruleset, profileSetID int, name, description string) (*models.ProfileJob, Outcome, error) {
	const op = "reconcile.EnsureProfileJob"
	if env == nil {
		return nil, Outcome{}, apperrors.DependencyMissing(op, "profile job %s requires an environment", name)
	}
	if rs == nil {
		return nil, Outcome{}, apperrors.DependencyMissing(op, "profile job %s requires a ruleset", name)
	}
	t := target{kind: models.ResourceProfileJob, name: name, op: op}
	job, outcome, err := ensure(ctx, r, t,
		func(j *models.ProfileJob) int { return j.ID },
		func(ctx context.Context) (*models.ProfileJob, error) {
			return r.remote.FindProfileJob(ctx, env.ID, rs.ID, profileSetID)
		},
		func(ctx context.Context) (*models.ProfileJob, error) {
			return r.remote.CreateProfileJob(ctx, rs.ID, profileSetID, name, description)
		},
	)
	if job != nil && job.EnvironmentID == 0 {
		job.EnvironmentID = env.ID
	}
	return job, outcome, err
}
