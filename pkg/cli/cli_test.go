package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance/compliancetest"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/services/orchestrator"
	"github.com/delphix/dlpxdbprofiler/pkg/services/pipeline"
	"github.com/delphix/dlpxdbprofiler/pkg/services/scheduler"
)

type fixedInspector struct{}

func (fixedInspector) ListSchemas(context.Context) ([]string, error) {
	return []string{"HR", "SALES"}, nil
}

func (fixedInspector) ListTables(_ context.Context, schema string) ([]string, error) {
	if schema == "HR" {
		return []string{"EMPLOYEES", "JOBS"}, nil
	}
	return []string{"ORDERS"}, nil
}

func (fixedInspector) Close() error { return nil }

type fixedFactory struct{}

func (fixedFactory) NewInspector(context.Context, *config.Database) (datasource.SchemaInspector, error) {
	return fixedInspector{}, nil
}

func (fixedFactory) ListEngines() []datasource.InspectorInfo { return nil }

const testConfigYAML = `compliance:
  base_url: https://ce.example.com
  username: admin
  api_version: v5.1.46
  timeout: 1m
application_name: %s
environment_name: CRM-MASK
connector_scope: all
database:
  engine: oracle
  oracle:
    host: ora01
    sid: ORCL
    user: profiler
profile:
  set_id: 4
  max_parallel: 2
  poll_interval: 2ms
log:
  level: error
  file: %s
`

// writeConfig writes a config file for application app and returns its path.
func writeConfig(t *testing.T, app string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DBP_CE_PASSWORD", "secret")
	t.Setenv("DBP_ORACLE_PASSWORD", "secret")
	path := filepath.Join(dir, "dbprofiler.yaml")
	body := fmt.Sprintf(testConfigYAML, app, filepath.Join(dir, "test.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func engineFactory(engine *compliancetest.Engine) ServiceFactory {
	return func(_ *config.Config, logger *zap.Logger, reporter audit.Reporter) (orchestrator.Service, error) {
		return orchestrator.New(engine, fixedFactory{}, logger, orchestrator.WithReporter(reporter)), nil
	}
}

func runCLI(t *testing.T, engine *compliancetest.Engine, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run("1.2.3", args, &stdout, &stderr, engineFactory(engine))
	return code, stdout.String(), stderr.String()
}

func newEngine() *compliancetest.Engine {
	engine := compliancetest.New()
	engine.SeedProfileSet(4, "Financial")
	return engine
}

func TestCreateAll_TableOutput(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, "CRM")

	code, out, stderr := runCLI(t, engine, "create-all", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)

	assert.Contains(t, out, "Application CRM")
	assert.Contains(t, out, "Environment CRM-MASK")
	assert.Contains(t, out, "SCHEMA")
	assert.Contains(t, out, "HR")
	assert.Contains(t, out, "SALES")
	assert.Contains(t, out, "Provisioned all")
	assert.Contains(t, out, "connectors:")
	assert.Contains(t, out, "2 created, 0 existing")
	assert.Len(t, engine.ProfileJobs(), 2)
}

func TestCreateAll_JSONOutputIsIdempotent(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, "CRM")

	code, _, stderr := runCLI(t, engine, "create-all", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)

	code, out, stderr := runCLI(t, engine, "create-all", "--config", cfg, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Created())
	assert.Equal(t, pipeline.Tally{Found: 2}, result.Counts[models.ResourceConnector])
	assert.Len(t, result.Chains, 2)
	assert.Len(t, engine.Connectors(), 2)
}

func TestRunProfileJobs_YAMLSummary(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, "CRM")

	code, _, stderr := runCLI(t, engine, "create-all", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)

	code, out, stderr := runCLI(t, engine, "run-profile-jobs", "--config", cfg, "-o", "yaml")
	require.Equal(t, ExitOK, code, stderr)

	var summary struct {
		Results []struct {
			Status  string `yaml:"status"`
			Outcome string `yaml:"outcome"`
		} `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.Equal(t, string(models.JobStatusSucceeded), r.Status)
		assert.Equal(t, string(scheduler.OutcomeSucceeded), r.Outcome)
	}
}

func TestRunProfileJobs_FailedJobIsPartial(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, "CRM")

	code, _, stderr := runCLI(t, engine, "create-all", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)

	engine.Poll = func(int, int) (string, error) { return "FAILED", nil }
	code, out, _ := runCLI(t, engine, "run-profile-jobs", "--config", cfg, "--max-parallel", "1")

	assert.Equal(t, ExitPartial, code)
	assert.Contains(t, out, "Ran 2 profile jobs")
	assert.Contains(t, out, string(scheduler.OutcomeFailedRemote))
}

func TestRunProfileJobs_UnknownJobIDIsConfigurationError(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, "CRM")

	code, _, stderr := runCLI(t, engine, "create-all", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)

	code, _, stderr = runCLI(t, engine, "run-profile-jobs", "--config", cfg, "--job-id", "999999")
	assert.Equal(t, ExitConfiguration, code)
	assert.Contains(t, stderr, "999999")
	assert.Zero(t, engine.Calls("StartProfileJob"))
}

func TestInvalidConfigExitsWithConfigurationCode(t *testing.T) {
	engine := newEngine()
	cfg := writeConfig(t, `""`)

	code, _, stderr := runCLI(t, engine, "create-all", "--config", cfg)

	assert.Equal(t, ExitConfiguration, code)
	assert.Contains(t, stderr, "DBP_APPLICATION_NAME")
	assert.Zero(t, engine.TotalCalls())
}

func TestMissingConfigFileIsConfigurationError(t *testing.T) {
	code, _, stderr := runCLI(t, newEngine(), "list-applications", "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, ExitConfiguration, code)
	assert.Contains(t, stderr, "missing.yaml")
}

func TestUnknownOutputFormat(t *testing.T) {
	cfg := writeConfig(t, "CRM")

	code, _, stderr := runCLI(t, newEngine(), "list-applications", "--config", cfg, "-o", "xml")

	assert.Equal(t, ExitConfiguration, code)
	assert.Contains(t, stderr, "xml")
}

func TestListCommands(t *testing.T) {
	engine := newEngine()
	app := engine.SeedApplication("CRM")
	engine.SeedEnvironment(app.ID, "CRM-MASK")
	engine.SeedApplication("BILLING")
	cfg := writeConfig(t, "CRM")

	code, out, stderr := runCLI(t, engine, "list-applications", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "BILLING")
	assert.Contains(t, out, "2 applications")

	code, out, stderr = runCLI(t, engine, "list-environments", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "CRM-MASK")
	assert.Contains(t, out, "1 environment\n")

	code, out, stderr = runCLI(t, engine, "list-profile-sets", "--config", cfg)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "Financial")

	code, out, stderr = runCLI(t, engine, "list-schemas", "--config", cfg, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	var schemas []string
	require.NoError(t, json.Unmarshal([]byte(out), &schemas))
	assert.Equal(t, []string{"HR", "SALES"}, schemas)
}

func TestDeleteApplication_RequiresConfirmationOrYes(t *testing.T) {
	engine := newEngine()
	engine.SeedApplication("BILLING")
	cfg := writeConfig(t, "CRM")

	code, out, stderr := runCLI(t, engine, "delete-application", "BILLING", "--config", cfg, "--yes")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "Deleted application 'BILLING'")
	assert.Empty(t, engine.Applications())

	code, _, _ = runCLI(t, engine, "delete-application", "BILLING", "--config", cfg, "--yes")
	assert.Equal(t, ExitFailure, code)
}

func TestVersionNeedsNoConfig(t *testing.T) {
	code, out, _ := runCLI(t, newEngine(), "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "dlpxdbprofiler version 1.2.3")
}

func TestEngines_JSON(t *testing.T) {
	code, out, _ := runCLI(t, newEngine(), "engines", "-o", "json")

	assert.Equal(t, ExitOK, code)
	var engines []datasource.InspectorInfo
	assert.NoError(t, json.Unmarshal([]byte(out), &engines))
}

func TestUnknownCommandIsFailure(t *testing.T) {
	code, _, stderr := runCLI(t, newEngine(), "explode")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"partial", fmt.Errorf("run: %w", errPartial), ExitPartial},
		{"configuration", apperrors.Configuration("op", "bad"), ExitConfiguration},
		{"wrapped configuration", fmt.Errorf("x: %w", apperrors.Configuration("op", "bad")), ExitConfiguration},
		{"remote", &apperrors.Error{Kind: apperrors.KindRemoteUnavailable, Op: "op", Message: "down"}, ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestCountOf(t *testing.T) {
	assert.Equal(t, "1 schema", countOf(1, "schema"))
	assert.Equal(t, "0 schemas", countOf(0, "schema"))
	assert.Equal(t, "3 profile jobs", countOf(3, "profile job"))
	assert.Equal(t, "2 failed schemas", countOf(2, "failed schema"))
}

func TestParseJobIDs(t *testing.T) {
	ids, err := parseJobIDs(" 3, 1 7,,")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 7}, ids)

	ids, err = parseJobIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseJobIDs("3,x")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestPrintError_IncludesHint(t *testing.T) {
	var buf bytes.Buffer
	err := apperrors.Configuration("op", "schema FOO not found")
	err.Hint = "run list-schemas"

	printError(&buf, err)

	assert.Contains(t, buf.String(), "schema FOO not found")
	assert.Contains(t, buf.String(), "hint: run list-schemas")
}
