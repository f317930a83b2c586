package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func TestCollector_CountsEvents(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: models.ResourceConnector, Created: true})
	c.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: models.ResourceConnector, Created: true})
	c.Report(ctx, audit.Event{Type: audit.EventResourceEnsured, Resource: models.ResourceConnector})
	c.Report(ctx, audit.Event{Type: audit.EventConflictRecovered, Resource: models.ResourceRuleset})
	c.Report(ctx, audit.Event{Type: audit.EventDriftDetected, Resource: models.ResourceConnector})
	c.Report(ctx, audit.Event{Type: audit.EventTablesSynced, Resource: models.ResourceRuleset, Count: 7})
	c.Report(ctx, audit.Event{Type: audit.EventTablesSynced, Resource: models.ResourceRuleset, Count: 2})
	c.Report(ctx, audit.Event{Type: audit.EventJobTransition, Status: "RUNNING"})
	c.Report(ctx, audit.Event{Type: audit.EventJobTransition, Status: "SUCCEEDED", Duration: 42 * time.Second})
	c.Report(ctx, audit.Event{Type: audit.EventOperationFailed, Resource: models.ResourceProfileJob})
	c.Report(ctx, audit.Event{Type: audit.EventResourceDeleted, Resource: models.ResourceEnvironment})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.resourcesEnsured.WithLabelValues("connector", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resourcesEnsured.WithLabelValues("connector", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.conflictsRecovered.WithLabelValues("ruleset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.driftDetections.WithLabelValues("connector")))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.tablesAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobTransitions.WithLabelValues("RUNNING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobTransitions.WithLabelValues("SUCCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationFailures.WithLabelValues("profile_job")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resourcesDeleted.WithLabelValues("environment")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.jobDuration))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Report(context.Background(), audit.Event{Type: audit.EventResourceEnsured, Resource: models.ResourceApplication, Created: true})

	path := filepath.Join(t.TempDir(), "textfile", "dlpxdbprofiler.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dlpxdbprofiler_resources_ensured_total{outcome="created",resource="application"} 1`)

	matches, err := filepath.Glob(path + ".tmp.*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCollector_WriteTextfileNoPath(t *testing.T) {
	assert.NoError(t, NewCollector().WriteTextfile(""))
}
