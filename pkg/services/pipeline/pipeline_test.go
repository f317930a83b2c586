package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance/compliancetest"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
	"github.com/delphix/dlpxdbprofiler/pkg/services/reconcile"
)

var _ ConnectorTemplate = (*config.Database)(nil)

// fakeInspector serves a fixed catalog and records peak ListTables concurrency.
type fakeInspector struct {
	schemas   []string
	tables    map[string][]string
	tableErrs map[string]error
	delay     time.Duration

	active atomic.Int32
	peak   atomic.Int32
	mu     sync.Mutex
	closed bool
}

func (f *fakeInspector) ListSchemas(context.Context) ([]string, error) {
	return f.schemas, nil
}

func (f *fakeInspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.tableErrs[schema]; err != nil {
		return nil, err
	}
	return f.tables[schema], nil
}

func (f *fakeInspector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func crmInspector() *fakeInspector {
	return &fakeInspector{
		schemas: []string{"HR", "SALES", "OPS"},
		tables: map[string][]string{
			"HR":    {"EMPLOYEES", "DEPARTMENTS"},
			"SALES": {"ORDERS", "CUSTOMERS", "INVOICES"},
			"OPS":   {"TICKETS"},
		},
	}
}

func oracleTemplate() *config.Database {
	return &config.Database{
		Engine: "oracle",
		Oracle: config.OracleConfig{
			Host:          "ora01",
			Port:          1521,
			SID:           "ORCL",
			User:          "PROFILER",
			Password:      "secret",
			ConnectorType: "native",
		},
	}
}

func crmPlan() Plan {
	return Plan{
		ApplicationName: "CRM",
		EnvironmentName: "CRM-MASK",
		Scope:           models.ScopeAll,
		ProfileSetID:    4,
		Connector:       oracleTemplate(),
		MaxParallel:     2,
	}
}

func newTestPipeline(t *testing.T, engine *compliancetest.Engine) (*Pipeline, *audit.Recorder) {
	t.Helper()
	rec := audit.NewRecorder()
	r := reconcile.New(engine, zaptest.NewLogger(t),
		reconcile.WithReporter(rec),
		reconcile.WithRetryConfig(&retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}))
	return New(r, zaptest.NewLogger(t)), rec
}

func TestRun_ProvisionsEveryDiscoveredSchema(t *testing.T) {
	engine := compliancetest.New()
	engine.SeedProfileSet(4, "Financial")
	p, _ := newTestPipeline(t, engine)

	result, err := p.Run(context.Background(), crmPlan(), crmInspector())
	require.NoError(t, err)

	require.NotNil(t, result.Application)
	assert.Equal(t, "CRM", result.Application.Name)
	require.NotNil(t, result.Environment)
	assert.Equal(t, "CRM-MASK", result.Environment.Name)

	require.Len(t, result.Chains, 3)
	for i, schema := range []string{"HR", "SALES", "OPS"} {
		chain := result.Chains[i]
		assert.Equal(t, schema, chain.Schema)
		require.NoError(t, chain.Err)
		assert.Equal(t, models.ConnectorName(schema), chain.Connector.Name)
		assert.Equal(t, models.RulesetName(schema), chain.Ruleset.Name)
		assert.Equal(t, models.ProfileJobName(schema), chain.Job.Name)
		assert.Equal(t, 4, chain.Job.ProfileSetID)
		assert.Equal(t, chain.Ruleset.ID, chain.Job.RulesetID)
	}

	assert.Equal(t, Tally{Created: 1}, result.Counts[models.ResourceApplication])
	assert.Equal(t, Tally{Created: 1}, result.Counts[models.ResourceEnvironment])
	assert.Equal(t, Tally{Created: 3}, result.Counts[models.ResourceConnector])
	assert.Equal(t, Tally{Created: 3}, result.Counts[models.ResourceRuleset])
	assert.Equal(t, Tally{Created: 3}, result.Counts[models.ResourceProfileJob])
	assert.Equal(t, 6, result.TablesAdded)
	assert.Equal(t, 11, result.Created())
	assert.Len(t, result.Jobs(), 3)
	assert.Empty(t, result.Failed())
}

func TestRun_RerunCreatesNothing(t *testing.T) {
	engine := compliancetest.New()
	engine.SeedProfileSet(4, "Financial")
	p, _ := newTestPipeline(t, engine)
	ctx := context.Background()

	first, err := p.Run(ctx, crmPlan(), crmInspector())
	require.NoError(t, err)
	createsAfterFirst := engine.CreateCalls()

	second, err := p.Run(ctx, crmPlan(), crmInspector())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Created())
	assert.Equal(t, 0, second.TablesAdded)
	assert.Equal(t, createsAfterFirst, engine.CreateCalls())
	assert.Equal(t, 3, engine.Calls("AddTables"), "tables are submitted once per ruleset")
	assert.Equal(t, first.Jobs(), second.Jobs())
}

func TestRun_NewTablesAreMergedOnRerun(t *testing.T) {
	engine := compliancetest.New()
	p, _ := newTestPipeline(t, engine)
	ctx := context.Background()

	inspector := crmInspector()
	_, err := p.Run(ctx, crmPlan(), inspector)
	require.NoError(t, err)

	inspector.tables["OPS"] = []string{"TICKETS", "INCIDENTS"}
	result, err := p.Run(ctx, crmPlan(), inspector)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TablesAdded)
	ops := result.Chains[2]
	assert.Equal(t, 1, ops.TablesAdded)

	tables, err := engine.GetRulesetTables(ctx, ops.Ruleset.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"TICKETS", "INCIDENTS"}, tables)
}

func TestRun_RespectsMaxParallel(t *testing.T) {
	for _, limit := range []int{1, 2} {
		engine := compliancetest.New()
		p, _ := newTestPipeline(t, engine)

		inspector := &fakeInspector{
			schemas: []string{"A", "B", "C", "D", "E"},
			tables:  map[string][]string{},
			delay:   20 * time.Millisecond,
		}
		plan := crmPlan()
		plan.MaxParallel = limit

		result, err := p.Run(context.Background(), plan, inspector)
		require.NoError(t, err)
		assert.Len(t, result.Chains, 5)
		assert.LessOrEqual(t, int(inspector.peak.Load()), limit)
		assert.GreaterOrEqual(t, int(inspector.peak.Load()), 1)
	}
}

func TestRun_ChainFailureDoesNotStopSiblings(t *testing.T) {
	engine := compliancetest.New()
	p, rec := newTestPipeline(t, engine)

	inspector := crmInspector()
	inspector.tableErrs = map[string]error{"SALES": errors.New("ORA-00942: table or view does not exist")}

	result, err := p.Run(context.Background(), crmPlan(), inspector)
	require.NoError(t, err)

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "SALES", failed[0].Schema)
	assert.NotNil(t, failed[0].Connector, "connector was ensured before the failure")
	assert.Nil(t, failed[0].Job)
	assert.Contains(t, failed[0].Error, "ORA-00942")

	assert.Len(t, result.Jobs(), 2)
	assert.Equal(t, "HR", result.Chains[0].Schema)
	assert.Equal(t, "OPS", result.Chains[2].Schema)
	assert.Empty(t, rec.OfType(audit.EventOperationFailed), "inspector failures are not remote operations")
}

func TestRun_RemoteChainFailureIsTyped(t *testing.T) {
	engine := compliancetest.New()
	engine.FailOn("CreateProfileJob", &apperrors.Error{Kind: apperrors.KindRemoteUnavailable, Op: "CreateProfileJob", Message: "bad gateway", Status: 502})
	p, _ := newTestPipeline(t, engine)

	result, err := p.Run(context.Background(), crmPlan(), crmInspector())
	require.NoError(t, err)

	require.Len(t, result.Failed(), 3)
	for _, chain := range result.Failed() {
		assert.True(t, apperrors.IsKind(chain.Err, apperrors.KindRemoteUnavailable))
		assert.NotNil(t, chain.Ruleset)
	}
	assert.Equal(t, 3, engine.Calls("CreateProfileJob"), "creates are not retried")
}

func TestRun_SingleSchemaScope(t *testing.T) {
	engine := compliancetest.New()
	p, _ := newTestPipeline(t, engine)

	plan := crmPlan()
	plan.Scope = models.ScopeSchema
	plan.SchemaName = "sales"

	result, err := p.Run(context.Background(), plan, crmInspector())
	require.NoError(t, err)
	require.Len(t, result.Chains, 1)
	assert.Equal(t, "SALES", result.Chains[0].Schema)
	assert.Len(t, engine.Connectors(), 1)
}

func TestRun_UnknownSchemaFailsBeforeRemoteCalls(t *testing.T) {
	engine := compliancetest.New()
	p, _ := newTestPipeline(t, engine)

	plan := crmPlan()
	plan.Scope = models.ScopeSchema
	plan.SchemaName = "BILLING"

	_, err := p.Run(context.Background(), plan, crmInspector())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	assert.Equal(t, 0, engine.TotalCalls())
}

func TestRun_MissingInspector(t *testing.T) {
	engine := compliancetest.New()
	p, _ := newTestPipeline(t, engine)

	_, err := p.Run(context.Background(), crmPlan(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDependencyMissing))
	assert.Equal(t, 0, engine.TotalCalls())
}

func TestRun_EnvironmentFailureAborts(t *testing.T) {
	engine := compliancetest.New()
	engine.FailOn("CreateEnvironment", &apperrors.Error{Kind: apperrors.KindRemoteUnavailable, Message: "down", Status: 503})
	p, _ := newTestPipeline(t, engine)

	result, err := p.Run(context.Background(), crmPlan(), crmInspector())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemoteUnavailable))
	assert.NotNil(t, result.Application)
	assert.Empty(t, result.Chains)
	assert.Equal(t, 0, engine.Calls("CreateConnector"))
}

func TestEnsureEnvironment_EnsuresApplicationFirst(t *testing.T) {
	engine := compliancetest.New()
	p, _ := newTestPipeline(t, engine)

	result, err := p.EnsureEnvironment(context.Background(), crmPlan())
	require.NoError(t, err)
	assert.Equal(t, result.Application.ID, result.Environment.ApplicationID)
	assert.Len(t, engine.Applications(), 1)
	assert.Equal(t, 0, engine.Calls("CreateConnector"))
}

func TestRun_ReportsConnectorDrift(t *testing.T) {
	engine := compliancetest.New()
	app := engine.SeedApplication("CRM")
	env := engine.SeedEnvironment(app.ID, "CRM-MASK")
	stale := oracleTemplate().ConnectorSpec("HR")
	stale.Host = "ora-old"
	engine.SeedConnector(env.ID, stale)
	p, _ := newTestPipeline(t, engine)

	result, err := p.Run(context.Background(), crmPlan(), crmInspector())
	require.NoError(t, err)
	require.Len(t, result.Drift, 1)
	assert.Contains(t, result.Drift[0], "host")
	assert.Equal(t, Tally{Created: 2, Found: 1}, result.Counts[models.ResourceConnector])
}
