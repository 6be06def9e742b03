package batchcore

import "fmt"

// MissingCallback implements the fault-tolerant fallback for a step that
// reaches Run without its required callback — only reachable if a
// builder's validation was bypassed. A throw-tolerant step reports
// success with a fixed historical message; an intolerant step logs and
// reports failure.
func MissingCallback(name string, throwTolerant bool, start int64, log Logger) StepStatus {
	if throwTolerant {
		return StepStatus{
			Name:      name,
			StartTime: &start,
			Status:    Ok("callback is required, please provide a callback to the step"),
		}
	}
	msg := fmt.Sprintf("callback is required, please provide a callback to the step with name: %s", name)
	log.Error(msg)
	return StepStatus{
		Name:      name,
		StartTime: &start,
		Status:    Err(msg),
	}
}
