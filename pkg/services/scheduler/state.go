package scheduler

import (
	"sync"
	"time"

	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// Outcome records why a job stopped being tracked.
type Outcome string

const (
	OutcomeSucceeded       Outcome = "succeeded"
	OutcomeFailedRemote    Outcome = "failed_remote"
	OutcomeCancelledRemote Outcome = "cancelled_remote"
	OutcomeStartFailed     Outcome = "start_failed"
	OutcomePollFailed      Outcome = "poll_failed"
	OutcomeTimedOut        Outcome = "timed_out"
	OutcomeCancelledLocal  Outcome = "cancelled_locally"
)

// jobState holds the runtime state of one scheduled job.
type jobState struct {
	job models.ProfileJob

	mu           sync.RWMutex
	status       models.JobStatus
	outcome      Outcome
	executionID  int
	remoteStatus string
	startedAt    *time.Time
	endedAt      *time.Time
	detail       string
	err          error
}

func newJobState(job models.ProfileJob) *jobState {
	return &jobState{job: job, status: models.JobStatusPending}
}

// transition moves the job to status. Terminal and unknown states are final,
// so a later transition is ignored and reported as false.
func (s *jobState) transition(status models.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalLocked() {
		return false
	}
	s.status = status
	now := time.Now()
	switch {
	case status == models.JobStatusRunning:
		s.startedAt = &now
	case status.IsTerminal(), status == models.JobStatusUnknown:
		s.endedAt = &now
	}
	return true
}

func (s *jobState) finalLocked() bool {
	return s.status.IsTerminal() || s.status == models.JobStatusUnknown
}

func (s *jobState) getStatus() models.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *jobState) setExecution(exec *models.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.ID != 0 {
		s.executionID = exec.ID
	}
	s.remoteStatus = exec.RemoteStatus
	if exec.Detail != "" {
		s.detail = exec.Detail
	}
}

func (s *jobState) finish(outcome Outcome, err error, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
	s.err = err
	if detail != "" {
		s.detail = detail
	}
}

// duration is the time spent RUNNING, or zero when the job never started.
func (s *jobState) duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt == nil || s.endedAt == nil {
		return 0
	}
	return s.endedAt.Sub(*s.startedAt)
}

// snapshot returns an immutable copy for the run summary.
func (s *jobState) snapshot() JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := JobResult{
		Job:          s.job,
		Status:       s.status,
		Outcome:      s.outcome,
		ExecutionID:  s.executionID,
		RemoteStatus: s.remoteStatus,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Detail:       s.detail,
		Err:          s.err,
	}
	if s.startedAt != nil && s.endedAt != nil {
		r.Duration = s.endedAt.Sub(*s.startedAt)
	}
	if s.err != nil {
		r.Error = s.err.Error()
	}
	return r
}
