package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/retry"
)

// SyncResult reports a ruleset table sync.
type SyncResult struct {
	// Added lists the tables that were missing, in desired order.
	Added []string `json:"added,omitempty" yaml:"added,omitempty"`
	// Tables is the ruleset's table list after the sync.
	Tables []string `json:"tables" yaml:"tables"`
	// Submitted is false when nothing was missing and no write was made.
	Submitted bool `json:"submitted" yaml:"submitted"`
}

// MergeTables returns the tables of desired missing from current, and the
// list to submit: current in its order followed by the missing ones. Blank
// and duplicate names are dropped.
func MergeTables(current, desired []string) (missing, merged []string) {
	current = models.NormalizeTables(current)
	have := make(map[string]struct{}, len(current))
	for _, t := range current {
		have[t] = struct{}{}
	}
	for _, t := range models.NormalizeTables(desired) {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	merged = make([]string, 0, len(current)+len(missing))
	merged = append(merged, current...)
	merged = append(merged, missing...)
	return missing, merged
}

// SyncTables makes rs contain every table of desired. The engine's bulk
// update replaces the whole list, so existing tables are always resubmitted.
func (r *Reconciler) SyncTables(ctx context.Context, rs *models.Ruleset, desired []string) (SyncResult, error) {
	const op = "reconcile.SyncTables"
	if rs == nil {
		return SyncResult{}, apperrors.DependencyMissing(op, "table sync requires a ruleset")
	}
	t := target{kind: models.ResourceRuleset, name: rs.Name, op: op}

	current, err := retry.DoWithResultIfRetryable(ctx, r.retry, func() ([]string, error) {
		return r.remote.GetRulesetTables(ctx, rs.ID)
	})
	if err != nil {
		return SyncResult{}, r.fail(ctx, t, err)
	}

	missing, merged := MergeTables(current, desired)
	if len(missing) == 0 {
		r.logger.Debug("Ruleset tables up to date",
			zap.String("ruleset", rs.Name),
			zap.Int("tables", len(merged)))
		return SyncResult{Tables: merged}, nil
	}

	if err := r.remote.AddTables(ctx, rs.ID, merged); err != nil {
		return SyncResult{Tables: current}, r.fail(ctx, t, err)
	}

	r.logger.Info("Ruleset tables added",
		zap.String("ruleset", rs.Name),
		zap.Int("ruleset_id", rs.ID),
		zap.Int("added", len(missing)),
		zap.Int("total", len(merged)))
	r.reporter.Report(ctx, audit.Event{
		Type: audit.EventTablesSynced, Resource: models.ResourceRuleset, Name: rs.Name, ID: rs.ID,
		Count: len(missing),
	})
	return SyncResult{Added: missing, Tables: merged, Submitted: true}, nil
}
