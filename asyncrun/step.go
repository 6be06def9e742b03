// Package asyncrun is the cooperative scheduling variant of the batch
// engine: steps take a context.Context and bounded concurrency is
// managed by golang.org/x/sync/errgroup instead of raw goroutines and
// channels. See package syncrun for the OS-thread sibling.
package asyncrun

import (
	"context"

	"github.com/getpipe-dev/batch/batchcore"
)

// Decider is consulted before a step runs. It must be pure and
// side-effect-free; the engine calls it at most once per step per job
// run. A nil decider means "always run."
type Decider func(ctx context.Context) bool

// Tasklet is a single unit of work with no streaming contract. It may
// perform I/O and signal failure either by returning a non-nil error,
// a context cancellation, or by panicking — all three are treated as
// the step aborting.
type Tasklet func(ctx context.Context) error

// Source pulls the next item from a lazy, finite, single-pass sequence.
// ok is false once the sequence is exhausted or ctx is done.
type Source[I any] func(ctx context.Context) (item I, ok bool)

// Reader produces a Source. The engine calls it exactly once per
// chunked-step run.
type Reader[I any] func(ctx context.Context) Source[I]

// Processor maps one input item to one output item. It must be safe to
// call concurrently from multiple workers when Workers > 1.
type Processor[I, O any] func(ctx context.Context, item I) (O, error)

// Writer consumes one chunk of outputs, of length in [1, chunk size]. It
// must tolerate concurrent invocation when Workers > 1; the engine does
// not serialize writer calls across workers.
type Writer[O any] func(ctx context.Context, batch []O) error

// Step is a single unit of batch work: a Tasklet or a Chunked pipeline.
// The two kinds are unexported structs behind this one interface rather
// than an open hierarchy, since ChunkedBuilder is generic over I/O types
// and a Go enum can't carry a type parameter for only one of its arms.
type Step interface {
	// Name returns the step's identifier.
	Name() string
	// ShouldRun evaluates the step's decider, if any.
	ShouldRun(ctx context.Context) bool
	// ThrowTolerant reports whether the step's errors should propagate
	// as a job-level failure rather than being logged and suppressed.
	ThrowTolerant() bool
	// Run executes the step exactly once and returns its status. A
	// second call on the same Step returns a failure status without
	// re-executing — steps are single-use, as built. Run returns
	// promptly once ctx is done, reporting the cancellation as a
	// failure status.
	Run(ctx context.Context) batchcore.StepStatus
}
