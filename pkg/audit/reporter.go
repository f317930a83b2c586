// Package audit records what a provisioning or job run did to the compliance engine.
// Events are logged in structured JSON so a run can be reconstructed from the log file,
// and can be fanned out to other observers such as the metrics collector.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// EventType categorizes run events for filtering.
type EventType string

const (
	// EventResourceEnsured is reported once per ensure call, created or found.
	EventResourceEnsured EventType = "resource_ensured"
	// EventConflictRecovered is reported when a create lost a race and the existing object was reused.
	EventConflictRecovered EventType = "conflict_recovered"
	// EventDriftDetected is reported when an existing object no longer matches the desired definition.
	EventDriftDetected EventType = "drift_detected"
	// EventTablesSynced is reported after a ruleset table sync.
	EventTablesSynced EventType = "tables_synced"
	// EventJobTransition is reported on every profile job state change.
	EventJobTransition EventType = "job_transition"
	// EventResourceDeleted is reported after an explicit delete.
	EventResourceDeleted EventType = "resource_deleted"
	// EventOperationFailed is reported when a step fails.
	EventOperationFailed EventType = "operation_failed"
)

// Severity levels map onto log levels.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one observable step of a run.
type Event struct {
	Timestamp time.Time           `json:"timestamp"`
	RunID     string              `json:"run_id,omitempty"`
	Type      EventType           `json:"event_type"`
	Resource  models.ResourceKind `json:"resource,omitempty"`
	Name      string              `json:"name,omitempty"`
	ID        int                 `json:"id,omitempty"`
	Created   bool                `json:"created,omitempty"`
	Status    string              `json:"status,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Duration  time.Duration       `json:"duration,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	Severity  Severity            `json:"severity"`
}

// Reporter receives run events. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

type runIDKey struct{}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID tags ctx with a run identifier that reporters attach to every event.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier, or "" if none was set.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// stamp fills in the fields every reporter expects.
func stamp(ctx context.Context, e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.RunID == "" {
		e.RunID = RunIDFromContext(ctx)
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	return e
}

// LogReporter writes events to a dedicated zap logger namespace.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter logging under the "run_audit" namespace.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger.Named("run_audit")}
}

func (r *LogReporter) Report(ctx context.Context, event Event) {
	event = stamp(ctx, event)

	// Marshaling known types never fails
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("run_id", event.RunID),
		zap.String("event_type", string(event.Type)),
		zap.String("resource", string(event.Resource)),
		zap.String("name", event.Name),
	}
	if event.ID != 0 {
		fields = append(fields, zap.Int("id", event.ID))
	}
	if event.Status != "" {
		fields = append(fields, zap.String("status", event.Status))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}

	msg := "Run event: " + string(event.Type)
	switch event.Severity {
	case SeverityError:
		r.logger.Error(msg, fields...)
	case SeverityWarning:
		r.logger.Warn(msg, fields...)
	default:
		r.logger.Info(msg, fields...)
	}
}

// Recorder keeps events in memory. Used by tests and by the CLI summary.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Report(ctx context.Context, event Event) {
	event = stamp(ctx, event)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of all recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of one type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans events out to several reporters. Nil entries are skipped.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, event Event) {
	event = stamp(ctx, event)
	for _, r := range m {
		if r != nil {
			r.Report(ctx, event)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) {}

// Nop returns a reporter that discards events.
func Nop() Reporter {
	return nopReporter{}
}
