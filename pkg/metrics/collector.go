// Package metrics exposes Prometheus counters for provisioning and job runs.
// Metrics are exported as a node-exporter textfile at the end of a run.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/delphix/dlpxdbprofiler/pkg/audit"
)

const namespace = "dlpxdbprofiler"

// Collector turns run events into Prometheus metrics. It implements audit.Reporter
// so it can be plugged next to the log reporter with audit.Multi.
type Collector struct {
	registry *prometheus.Registry

	resourcesEnsured   *prometheus.CounterVec
	conflictsRecovered *prometheus.CounterVec
	driftDetections    *prometheus.CounterVec
	tablesAdded        prometheus.Counter
	jobTransitions     *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	operationFailures  *prometheus.CounterVec
	resourcesDeleted   *prometheus.CounterVec
}

var _ audit.Reporter = (*Collector)(nil)

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		resourcesEnsured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_ensured_total",
				Help:      "Total number of ensure calls by resource kind and outcome",
			},
			[]string{"resource", "outcome"},
		),
		conflictsRecovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_recovered_total",
				Help:      "Total number of create conflicts resolved by re-query",
			},
			[]string{"resource"},
		),
		driftDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_detections_total",
				Help:      "Total number of existing resources found to differ from the desired definition",
			},
			[]string{"resource"},
		),
		tablesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ruleset_tables_added_total",
				Help:      "Total number of tables added to rulesets",
			},
		),
		jobTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_job_transitions_total",
				Help:      "Total number of profile job state transitions by target status",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "profile_job_duration_seconds",
				Help:      "Wall time of profile jobs from start to their final outcome",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"status"},
		),
		operationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_failures_total",
				Help:      "Total number of failed steps by resource kind",
			},
			[]string{"resource"},
		),
		resourcesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_deleted_total",
				Help:      "Total number of explicitly deleted resources",
			},
			[]string{"resource"},
		),
	}

	c.registry.MustRegister(
		c.resourcesEnsured,
		c.conflictsRecovered,
		c.driftDetections,
		c.tablesAdded,
		c.jobTransitions,
		c.jobDuration,
		c.operationFailures,
		c.resourcesDeleted,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Report implements audit.Reporter.
func (c *Collector) Report(_ context.Context, e audit.Event) {
	resource := string(e.Resource)
	switch e.Type {
	case audit.EventResourceEnsured:
		outcome := "found"
		if e.Created {
			outcome = "created"
		}
		c.resourcesEnsured.WithLabelValues(resource, outcome).Inc()
	case audit.EventConflictRecovered:
		c.conflictsRecovered.WithLabelValues(resource).Inc()
	case audit.EventDriftDetected:
		c.driftDetections.WithLabelValues(resource).Inc()
	case audit.EventTablesSynced:
		c.tablesAdded.Add(float64(e.Count))
	case audit.EventJobTransition:
		c.jobTransitions.WithLabelValues(e.Status).Inc()
		if e.Duration > 0 {
			c.jobDuration.WithLabelValues(e.Status).Observe(e.Duration.Seconds())
		}
	case audit.EventOperationFailed:
		c.operationFailures.WithLabelValues(resource).Inc()
	case audit.EventResourceDeleted:
		c.resourcesDeleted.WithLabelValues(resource).Inc()
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// The file is written to a temporary sibling first and renamed into place so
// a scraping collector never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	tmp := path + ".tmp." + strconv.Itoa(os.Getpid())
	if err := prometheus.WriteToTextfile(tmp, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename metrics textfile: %w", err)
	}
	return nil
}
