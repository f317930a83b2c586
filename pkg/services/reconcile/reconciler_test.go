package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance/compliancetest"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestReconciler(t *testing.T, engine *compliancetest.Engine, opts ...Option) (*Reconciler, *audit.Recorder) {
	t.Helper()
	rec := audit.NewRecorder()
	opts = append([]Option{WithReporter(rec), WithRetryConfig(fastRetry())}, opts...)
	return New(engine, zaptest.NewLogger(t), opts...), rec
}

func oracleSpec(schema string) models.ConnectorSpec {
	return models.ConnectorSpec{
		Name:     models.ConnectorName(schema),
		Engine:   models.EngineOracle,
		Kind:     models.ConnectorNative,
		Host:     "ora01",
		Port:     1521,
		SID:      "ORCL",
		Schema:   schema,
		Username: "PROFILER",
		Password: "secret",
	}
}

func TestEnsureApplication_CreatesOnceThenFinds(t *testing.T) {
	engine := compliancetest.New()
	r, rec := newTestReconciler(t, engine)
	ctx := context.Background()

	app, outcome, err := r.EnsureApplication(ctx, "CRM")
	require.NoError(t, err)
	assert.True(t, outcome.Created)

	again, outcome, err := r.EnsureApplication(ctx, "CRM")
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, app.ID, again.ID)

	assert.Equal(t, 1, engine.Calls("CreateApplication"))
	assert.Len(t, engine.Applications(), 1)

	events := rec.OfType(audit.EventResourceEnsured)
	require.Len(t, events, 2)
	assert.True(t, events[0].Created)
	assert.False(t, events[1].Created)
}

func TestEnsureApplication_ConflictRequeries(t *testing.T) {
	engine := compliancetest.New()
	engine.ConflictOnNextCreate(models.ResourceApplication)
	r, rec := newTestReconciler(t, engine)

	app, outcome, err := r.EnsureApplication(context.Background(), "CRM")
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.False(t, outcome.Created)
	assert.True(t, outcome.ConflictRecovered)
	assert.Equal(t, 2, engine.Calls("FindApplication"))
	assert.Len(t, engine.Applications(), 1)
	assert.Len(t, rec.OfType(audit.EventConflictRecovered), 1)
}

func TestEnsureApplication_ConflictWithoutWinnerIsUnavailable(t *testing.T) {
	engine := compliancetest.New()
	engine.FailOn("CreateApplication", &apperrors.Error{Kind: apperrors.KindRemoteConflict, Message: "already exists", Status: 409})
	r, rec := newTestReconciler(t, engine)

	_, _, err := r.EnsureApplication(context.Background(), "CRM")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemoteUnavailable))
	assert.Contains(t, err.Error(), "reported as existing but not found")
	assert.Len(t, rec.OfType(audit.EventOperationFailed), 1)
}

func TestEnsureApplication_ConcurrentCallersCreateOnce(t *testing.T) {
	engine := compliancetest.New()
	r, _ := newTestReconciler(t, engine)

	const callers = 8
	ids := make([]int, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app, _, err := r.EnsureApplication(context.Background(), "CRM")
			errs[i] = err
			if app != nil {
				ids[i] = app.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, engine.Applications(), 1)
}

func TestEnsure_FindRetriesTransientFailures(t *testing.T) {
	engine := compliancetest.New()
	transient := &apperrors.Error{Kind: apperrors.KindRemoteUnavailable, Message: "service unavailable", Status: 503, Retryable: true}

	calls := 0
	engine.FailOn("FindApplication", transient)
	r, _ := newTestReconciler(t, engine, WithRetryConfig(&retry.Config{MaxRetries: 0}))
	_, _, err := r.EnsureApplication(context.Background(), "CRM")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemoteUnavailable))
	calls = engine.Calls("FindApplication")
	assert.Equal(t, 1, calls)

	r, _ = newTestReconciler(t, engine)
	_, _, err = r.EnsureApplication(context.Background(), "CRM")
	require.Error(t, err)
	assert.Equal(t, calls+4, engine.Calls("FindApplication"), "one attempt plus three retries")
	assert.Zero(t, engine.Calls("CreateApplication"))
}

func TestEnsure_CreateIsNotRetried(t *testing.T) {
	engine := compliancetest.New()
	engine.FailOn("CreateApplication", &apperrors.Error{Kind: apperrors.KindRemoteUnavailable, Message: "bad gateway", Status: 502, Retryable: true})
	r, _ := newTestReconciler(t, engine)

	_, _, err := r.EnsureApplication(context.Background(), "CRM")
	require.Error(t, err)
	assert.Equal(t, 1, engine.Calls("CreateApplication"))
}

func TestEnsureEnvironment_RequiresApplication(t *testing.T) {
	engine := compliancetest.New()
	r, _ := newTestReconciler(t, engine)

	_, _, err := r.EnsureEnvironment(context.Background(), nil, "CRM-MASK")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDependencyMissing))
	assert.Zero(t, engine.TotalCalls())
}

func TestEnsureEnvironment_ScopedToApplication(t *testing.T) {
	engine := compliancetest.New()
	r, _ := newTestReconciler(t, engine)
	ctx := context.Background()

	crm := engine.SeedApplication("CRM")
	hr := engine.SeedApplication("HR")
	engine.SeedEnvironment(hr.ID, "MASK")

	env, outcome, err := r.EnsureEnvironment(ctx, &crm, "MASK")
	require.NoError(t, err)
	assert.True(t, outcome.Created, "an environment of the same name in another application does not count")
	assert.Equal(t, crm.ID, env.ApplicationID)
	assert.Equal(t, "CRM", env.ApplicationName)
}

func TestEnsureConnector_DriftWarn(t *testing.T) {
	engine := compliancetest.New()
	r, rec := newTestReconciler(t, engine)
	ctx := context.Background()

	app := engine.SeedApplication("CRM")
	env := engine.SeedEnvironment(app.ID, "CRM-MASK")
	existing := oracleSpec("SALES")
	existing.Host = "ora02"
	seeded := engine.SeedConnector(env.ID, existing)

	conn, outcome, err := r.EnsureConnector(ctx, &env, oracleSpec("SALES"))
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, conn.ID)
	assert.False(t, outcome.Created)
	require.Len(t, outcome.Drift, 1)
	assert.Contains(t, outcome.Drift[0], "host")

	drift := rec.OfType(audit.EventDriftDetected)
	require.Len(t, drift, 1)
	assert.Equal(t, audit.SeverityWarning, drift[0].Severity)
	assert.Zero(t, engine.Calls("CreateConnector"))
}

func TestEnsureConnector_DriftFail(t *testing.T) {
	engine := compliancetest.New()
	r, _ := newTestReconciler(t, engine, WithDriftPolicy(DriftFail))

	app := engine.SeedApplication("CRM")
	env := engine.SeedEnvironment(app.ID, "CRM-MASK")
	existing := oracleSpec("SALES")
	existing.SID = "OTHER"
	engine.SeedConnector(env.ID, existing)

	conn, outcome, err := r.EnsureConnector(context.Background(), &env, oracleSpec("SALES"))
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	assert.NotEmpty(t, outcome.Drift)
}

func TestEnsureConnector_MatchingSpecHasNoDrift(t *testing.T) {
	engine := compliancetest.New()
	r, rec := newTestReconciler(t, engine)

	app := engine.SeedApplication("CRM")
	env := engine.SeedEnvironment(app.ID, "CRM-MASK")
	engine.SeedConnector(env.ID, oracleSpec("SALES"))

	_, outcome, err := r.EnsureConnector(context.Background(), &env, oracleSpec("SALES"))
	require.NoError(t, err)
	assert.Empty(t, outcome.Drift)
	assert.Empty(t, rec.OfType(audit.EventDriftDetected))
}

func TestEnsureRuleset_RequiresConnector(t *testing.T) {
	engine := compliancetest.New()
	r, _ := newTestReconciler(t, engine)
	env := models.Environment{ID: 1, Name: "CRM-MASK"}

	_, _, _, err := r.EnsureRuleset(context.Background(), &env, nil, "RULESET_SALES", []string{"T1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDependencyMissing))
	assert.Zero(t, engine.TotalCalls())
}

func TestEnsureProfileJob_IdentifiedByRulesetAndProfileSet(t *testing.T) {
	engine := compliancetest.New()
	engine.SeedProfileSet(4, "Financial")
	engine.SeedProfileSet(5, "Healthcare")
	r, _ := newTestReconciler(t, engine)
	ctx := context.Background()

	app := engine.SeedApplication("CRM")
	env := engine.SeedEnvironment(app.ID, "CRM-MASK")
	conn := engine.SeedConnector(env.ID, oracleSpec("SALES"))
	rs, _, _, err := r.EnsureRuleset(ctx, &env, &conn, models.RulesetName("SALES"), []string{"ORDERS"})
	require.NoError(t, err)

	job4, outcome, err := r.EnsureProfileJob(ctx, &env, rs, 4, models.ProfileJobName("SALES"), models.ProfileJobDescription("SALES"))
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.Equal(t, env.ID, job4.EnvironmentID)

	again, outcome, err := r.EnsureProfileJob(ctx, &env, rs, 4, models.ProfileJobName("SALES"), models.ProfileJobDescription("SALES"))
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, job4.ID, again.ID)

	job5, outcome, err := r.EnsureProfileJob(ctx, &env, rs, 5, models.ProfileJobName("SALES"), models.ProfileJobDescription("SALES"))
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.NotEqual(t, job4.ID, job5.ID)
}

func TestWithDriftPolicy_IgnoresUnknown(t *testing.T) {
	r := New(compliancetest.New(), nil, WithDriftPolicy("explode"))
	assert.Equal(t, DriftWarn, r.drift)
}
