package pipeline

import (
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/services/reconcile"
)

// Tally counts how Ensure calls of one kind were satisfied.
type Tally struct {
	Created int `json:"created" yaml:"created"`
	Found   int `json:"found" yaml:"found"`
}

// ChainResult is the outcome of one schema chain.
type ChainResult struct {
	Schema      string                                    `json:"schema" yaml:"schema"`
	Connector   *models.Connector                         `json:"connector,omitempty" yaml:"connector,omitempty"`
	Ruleset     *models.Ruleset                           `json:"ruleset,omitempty" yaml:"ruleset,omitempty"`
	Job         *models.ProfileJob                        `json:"profile_job,omitempty" yaml:"profile_job,omitempty"`
	TablesAdded int                                       `json:"tables_added" yaml:"tables_added"`
	Outcomes    map[models.ResourceKind]reconcile.Outcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Err         error                                     `json:"-" yaml:"-"`
	Error       string                                    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result summarizes a provisioning run.
type Result struct {
	Application        *models.Application           `json:"application,omitempty" yaml:"application,omitempty"`
	Environment        *models.Environment           `json:"environment,omitempty" yaml:"environment,omitempty"`
	Chains             []ChainResult                 `json:"chains,omitempty" yaml:"chains,omitempty"`
	Counts             map[models.ResourceKind]Tally `json:"counts" yaml:"counts"`
	TablesAdded        int                           `json:"tables_added" yaml:"tables_added"`
	Drift              []string                      `json:"drift,omitempty" yaml:"drift,omitempty"`
	ConflictsRecovered int                           `json:"conflicts_recovered" yaml:"conflicts_recovered"`
}

func newResult() *Result {
	return &Result{Counts: map[models.ResourceKind]Tally{}}
}

func (r *Result) record(kind models.ResourceKind, outcome reconcile.Outcome) {
	tally := r.Counts[kind]
	if outcome.Created {
		tally.Created++
	} else {
		tally.Found++
	}
	r.Counts[kind] = tally
	if outcome.ConflictRecovered {
		r.ConflictsRecovered++
	}
	r.Drift = append(r.Drift, outcome.Drift...)
}

func (r *Result) addChain(chain ChainResult) {
	if chain.Err != nil {
		chain.Error = chain.Err.Error()
	}
	for _, kind := range []models.ResourceKind{models.ResourceConnector, models.ResourceRuleset, models.ResourceProfileJob} {
		if outcome, ok := chain.Outcomes[kind]; ok {
			r.record(kind, outcome)
		}
	}
	r.TablesAdded += chain.TablesAdded
	r.Chains = append(r.Chains, chain)
}

// Created returns the number of objects created across all kinds.
func (r *Result) Created() int {
	n := 0
	for _, t := range r.Counts {
		n += t.Created
	}
	return n
}

// Jobs returns the ensured profile jobs in schema order.
func (r *Result) Jobs() []models.ProfileJob {
	var jobs []models.ProfileJob
	for _, c := range r.Chains {
		if c.Job != nil {
			jobs = append(jobs, *c.Job)
		}
	}
	return jobs
}

// Failed returns the chains that did not complete.
func (r *Result) Failed() []ChainResult {
	var failed []ChainResult
	for _, c := range r.Chains {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}
