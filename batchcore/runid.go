package batchcore

import "github.com/google/uuid"

// NewRunID generates a run-scoped correlation id surfaced only in log
// fields: it never becomes part of the StepStatus/JobStatus data
// contract. Callers attach it to every log line a job's run emits so
// operators can correlate the start/finish pair of an individual run.
func NewRunID() string {
	return uuid.NewString()
}
