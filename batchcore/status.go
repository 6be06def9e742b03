// Package batchcore holds the data model shared by the syncrun and
// asyncrun execution engines: step/job result records, the swappable
// clock, and the logging sink contract.
package batchcore

// Status is a tagged Ok/Err outcome carrying a human-readable message.
// It never crosses a package boundary as a Go error — it is always a
// plain value embedded in a StepStatus or JobStatus.
type Status struct {
	ok  bool
	msg string
}

// Ok builds a successful Status with the given message.
func Ok(msg string) Status { return Status{ok: true, msg: msg} }

// Err builds a failed Status with the given message.
func Err(msg string) Status { return Status{ok: false, msg: msg} }

// IsOk reports whether the status represents success.
func (s Status) IsOk() bool { return s.ok }

// Message returns the status's human-readable message.
func (s Status) Message() string { return s.msg }

// StepStatus is the result of running a single step.
type StepStatus struct {
	Name      string
	StartTime *int64 // milliseconds since epoch
	EndTime   *int64 // absent when the step aborted before recording completion
	Status    Status
}

// JobStatus is the aggregated result of running a job.
type JobStatus struct {
	Name        string
	StartTime   *int64
	EndTime     *int64
	Status      Status
	StepsStatus []StepStatus
}
