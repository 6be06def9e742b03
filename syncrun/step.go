// Package syncrun is the OS-thread scheduling variant of the batch
// engine: steps run on plain goroutines bounded by an in-flight count,
// with no context.Context in the call surface. See package asyncrun for
// the cooperative/context-aware sibling.
package syncrun

import "github.com/getpipe-dev/batch/batchcore"

// Decider is consulted before a step runs. It must be pure and
// side-effect-free; the engine calls it at most once per step per job
// run. A nil decider means "always run."
type Decider func() bool

// Tasklet is a single unit of work with no streaming contract. It may
// perform I/O and signal failure either by returning a non-nil error or
// by panicking — both are treated as the step aborting.
type Tasklet func() error

// Source pulls the next item from a lazy, finite, single-pass sequence.
// ok is false once the sequence is exhausted.
type Source[I any] func() (item I, ok bool)

// Reader produces a Source. The engine calls it exactly once per
// chunked-step run.
type Reader[I any] func() Source[I]

// Processor maps one input item to one output item. It must be safe to
// call concurrently from multiple workers when Workers > 1.
type Processor[I, O any] func(I) (O, error)

// Writer consumes one chunk of outputs, of length in [1, chunk size]. It
// must tolerate concurrent invocation when Workers > 1; the engine does
// not serialize writer calls across workers.
type Writer[O any] func([]O) error

// Step is a single unit of batch work: a Tasklet or a Chunked pipeline.
// The two kinds are unexported structs behind this one interface rather
// than an open hierarchy, since ChunkedBuilder is generic over I/O types
// and a Go enum can't carry a type parameter for only one of its arms.
type Step interface {
	// Name returns the step's identifier.
	Name() string
	// ShouldRun evaluates the step's decider, if any.
	ShouldRun() bool
	// ThrowTolerant reports whether the step's errors should propagate
	// as a job-level failure rather than being logged and suppressed.
	ThrowTolerant() bool
	// Run executes the step exactly once and returns its status. A
	// second call on the same Step returns a failure status without
	// re-executing — steps are single-use, as built.
	Run() batchcore.StepStatus
}
