package batchcore

import "time"

// Clock returns a monotonically non-decreasing number of milliseconds
// since the epoch. Steps and jobs accept a Clock so tests can swap in a
// deterministic source instead of wall-clock time.
type Clock func() int64

// DefaultClock is the production clock: time.Now truncated to milliseconds.
func DefaultClock() int64 {
	return time.Now().UnixMilli()
}
