package domain

import "fmt"

// JobStatus is the lifecycle state of a job. The set is closed: every status
// mutation in storage goes through a conditional update whose precondition is
// derived from this package, so CanTransitionTo is the single source of truth
// for legal edges.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// jobTransitions enumerates the legal edges of the job state machine.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusInProgress},
	JobStatusInProgress: {JobStatusCompleted, JobStatusFailed, JobStatusPending},
	JobStatusCompleted:  {},
	JobStatusFailed:     {},
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	_, ok := jobTransitions[s]
	return ok
}

// Terminal reports whether no further transitions exist from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, t := range jobTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseJobStatus converts a wire string into a JobStatus.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}
