package models

import (
	"strings"
	"time"
)

// JobStatus is the local view of a profile job execution.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
	// JobStatusUnknown is used when polling stopped before the remote side reached a terminal state.
	JobStatusUnknown JobStatus = "UNKNOWN"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// MapRemoteStatus maps a compliance engine execution status onto JobStatus.
// WARNING counts as success; unknown values are treated as still running.
func MapRemoteStatus(remote string) JobStatus {
	switch strings.ToUpper(strings.TrimSpace(remote)) {
	case "SUCCEEDED", "WARNING":
		return JobStatusSucceeded
	case "FAILED", "ERROR":
		return JobStatusFailed
	case "CANCELLED":
		return JobStatusCancelled
	}
	return JobStatusRunning
}

// Execution is one remote run of a profile job.
type Execution struct {
	ID           int        `json:"id" yaml:"id"`
	JobID        int        `json:"job_id" yaml:"job_id"`
	Status       JobStatus  `json:"status" yaml:"status"`
	RemoteStatus string     `json:"remote_status,omitempty" yaml:"remote_status,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Detail       string     `json:"detail,omitempty" yaml:"detail,omitempty"`
}
