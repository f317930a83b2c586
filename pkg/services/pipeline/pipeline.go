// Package pipeline sequences reconciler calls into the provisioning hierarchy
// application → environment → (connector → ruleset → profile job) per schema.
package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/services/reconcile"
)

// ConnectorTemplate renders the desired connector for a schema.
// config.Database implements it.
type ConnectorTemplate interface {
	ConnectorSpec(schema string) models.ConnectorSpec
}

// Plan is one provisioning request.
type Plan struct {
	ApplicationName string
	EnvironmentName string
	Scope           models.Scope
	// SchemaName is the only schema provisioned when Scope is ScopeSchema.
	SchemaName   string
	ProfileSetID int
	Connector    ConnectorTemplate
	MaxParallel  int
}

// Pipeline runs plans against the compliance engine.
type Pipeline struct {
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
}

// New creates a pipeline.
func New(reconciler *reconcile.Reconciler, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{reconciler: reconciler, logger: logger.Named("pipeline")}
}

// EnsureApplication ensures only the plan's application.
func (p *Pipeline) EnsureApplication(ctx context.Context, plan Plan) (*Result, error) {
	result := newResult()
	app, outcome, err := p.reconciler.EnsureApplication(ctx, plan.ApplicationName)
	if err != nil {
		return result, err
	}
	result.Application = app
	result.record(models.ResourceApplication, outcome)
	return result, nil
}

// EnsureEnvironment ensures the plan's application and environment.
func (p *Pipeline) EnsureEnvironment(ctx context.Context, plan Plan) (*Result, error) {
	result, err := p.EnsureApplication(ctx, plan)
	if err != nil {
		return result, err
	}
	env, outcome, err := p.reconciler.EnsureEnvironment(ctx, result.Application, plan.EnvironmentName)
	if err != nil {
		return result, err
	}
	result.Environment = env
	result.record(models.ResourceEnvironment, outcome)
	return result, nil
}

// Run ensures the whole hierarchy for the plan. Schemas are resolved before
// any remote write; application and environment failures abort the run. Schema chains run concurrently up to MaxParallel
// and a failed chain does not stop its siblings; failures are recorded in
// the chain results, and the returned error is nil unless the run aborted.
func (p *Pipeline) Run(ctx context.Context, plan Plan, inspector datasource.SchemaInspector) (*Result, error) {
	const op = "pipeline.Run"
	if plan.Connector == nil {
		return newResult(), apperrors.Configuration(op, "no connector template configured")
	}
	if inspector == nil {
		return newResult(), apperrors.DependencyMissing(op, "no schema inspector available")
	}

	schemas, err := p.resolveSchemas(ctx, plan, inspector)
	if err != nil {
		return newResult(), err
	}

	result, err := p.EnsureEnvironment(ctx, plan)
	if err != nil {
		return result, err
	}
	p.logger.Info("Provisioning schemas",
		zap.String("environment", plan.EnvironmentName),
		zap.Int("schemas", len(schemas)),
		zap.Int("max_parallel", plan.MaxParallel))

	chains := make([]ChainResult, len(schemas))
	g, gctx := errgroup.WithContext(ctx)
	limit := plan.MaxParallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, schema := range schemas {
		g.Go(func() error {
			chains[i] = p.runChain(gctx, plan, result.Environment, schema, inspector)
			// Chain failures stay in the chain result so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	for _, chain := range chains {
		result.addChain(chain)
	}
	p.logger.Info("Provisioning finished",
		zap.Int("chains", len(chains)),
		zap.Int("failed", len(result.Failed())),
		zap.Int("tables_added", result.TablesAdded))
	return result, nil
}

// resolveSchemas returns the schemas to provision in inspector order.
func (p *Pipeline) resolveSchemas(ctx context.Context, plan Plan, inspector datasource.SchemaInspector) ([]string, error) {
	const op = "pipeline.resolveSchemas"
	available, err := inspector.ListSchemas(ctx)
	if err != nil {
		return nil, apperrors.From(op, err)
	}

	if plan.Scope != models.ScopeSchema {
		if len(available) == 0 {
			p.logger.Warn("No user schemas found")
		}
		return available, nil
	}

	want := plan.SchemaName
	for _, s := range available {
		if s == want {
			return []string{s}, nil
		}
	}
	// Oracle owners are upper case; accept a case-insensitive match only when unambiguous.
	var matches []string
	for _, s := range available {
		if strings.EqualFold(s, want) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 1 {
		return matches, nil
	}
	return nil, &apperrors.Error{
		Kind:    apperrors.KindConfiguration,
		Op:      op,
		Message: "schema " + want + " not found in source database",
		Hint:    "run list-schemas to see the available schemas",
	}
}

// runChain ensures connector, ruleset (with tables) and profile job for one schema.
func (p *Pipeline) runChain(ctx context.Context, plan Plan, env *models.Environment, schema string, inspector datasource.SchemaInspector) ChainResult {
	chain := ChainResult{Schema: schema, Outcomes: map[models.ResourceKind]reconcile.Outcome{}}
	logger := p.logger.With(zap.String("schema", schema))

	fail := func(err error) ChainResult {
		chain.Err = apperrors.From("pipeline.runChain", err)
		logger.Error("Schema chain failed", zap.Error(chain.Err))
		return chain
	}

	conn, outcome, err := p.reconciler.EnsureConnector(ctx, env, plan.Connector.ConnectorSpec(schema))
	if err != nil {
		return fail(err)
	}
	chain.Connector = conn
	chain.Outcomes[models.ResourceConnector] = outcome

	tables, err := inspector.ListTables(ctx, schema)
	if err != nil {
		return fail(err)
	}
	if len(tables) == 0 {
		logger.Warn("Schema has no tables")
	}

	rs, outcome, synced, err := p.reconciler.EnsureRuleset(ctx, env, conn, models.RulesetName(schema), tables)
	if rs != nil {
		chain.Ruleset = rs
		chain.Outcomes[models.ResourceRuleset] = outcome
	}
	if err != nil {
		return fail(err)
	}
	chain.TablesAdded = len(synced.Added)

	job, outcome, err := p.reconciler.EnsureProfileJob(ctx, env, rs, plan.ProfileSetID,
		models.ProfileJobName(schema), models.ProfileJobDescription(schema))
	if err != nil {
		return fail(err)
	}
	chain.Job = job
	chain.Outcomes[models.ResourceProfileJob] = outcome

	logger.Info("Schema provisioned",
		zap.Int("connector_id", conn.ID),
		zap.Int("ruleset_id", rs.ID),
		zap.Int("profile_job_id", job.ID),
		zap.Int("tables_added", chain.TablesAdded))
	return chain
}
