package scheduler

import (
	"time"

	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// JobResult is the final view of one job in a run.
type JobResult struct {
	Job          models.ProfileJob `json:"job" yaml:"job"`
	Status       models.JobStatus  `json:"status" yaml:"status"`
	Outcome      Outcome           `json:"outcome" yaml:"outcome"`
	ExecutionID  int               `json:"execution_id,omitempty" yaml:"execution_id,omitempty"`
	RemoteStatus string            `json:"remote_status,omitempty" yaml:"remote_status,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Duration     time.Duration     `json:"duration" yaml:"duration"`
	Detail       string            `json:"detail,omitempty" yaml:"detail,omitempty"`
	Err          error             `json:"-" yaml:"-"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary holds exactly one result per submitted job, in submission order.
type RunSummary struct {
	RunID    string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Results  []JobResult     `json:"results" yaml:"results"`
	Counts   map[Outcome]int `json:"counts" yaml:"counts"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
}

func (s *RunSummary) tally() {
	s.Counts = make(map[Outcome]int, len(s.Results))
	for _, r := range s.Results {
		s.Counts[r.Outcome]++
	}
}

// Succeeded reports whether every job completed successfully.
func (s *RunSummary) Succeeded() bool {
	return s.Counts[OutcomeSucceeded] == len(s.Results)
}

// Failed returns the results that did not succeed.
func (s *RunSummary) Failed() []JobResult {
	var out []JobResult
	for _, r := range s.Results {
		if r.Outcome != OutcomeSucceeded {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the result for a job id.
func (s *RunSummary) Result(jobID int) (JobResult, bool) {
	for _, r := range s.Results {
		if r.Job.ID == jobID {
			return r, true
		}
	}
	return JobResult{}, false
}
