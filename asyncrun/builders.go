package asyncrun

import (
	"fmt"

	"github.com/getpipe-dev/batch/batchcore"
)

// TaskletBuilder fluently constructs a Tasklet step. Each configuration
// call returns a new builder value; Build validates required fields and
// never panics at run time for a configuration mistake.
type TaskletBuilder struct {
	name          string
	tasklet       Tasklet
	decider       Decider
	throwTolerant bool
	clock         batchcore.Clock
	log           batchcore.Logger
}

// NewTaskletBuilder starts a tasklet step builder with the given name.
func NewTaskletBuilder(name string) TaskletBuilder {
	return TaskletBuilder{name: name, clock: batchcore.DefaultClock, log: batchcore.DefaultLogger()}
}

// Tasklet sets the step's work callback.
func (b TaskletBuilder) Tasklet(fn Tasklet) TaskletBuilder {
	b.tasklet = fn
	return b
}

// Decider sets the optional predicate consulted before the step runs.
func (b TaskletBuilder) Decider(fn Decider) TaskletBuilder {
	b.decider = fn
	return b
}

// ThrowTolerant marks the step's errors as ones that should escalate to
// a job-level failure rather than being logged and suppressed.
func (b TaskletBuilder) ThrowTolerant() TaskletBuilder {
	b.throwTolerant = true
	return b
}

// WithClock overrides the step's time source; intended for tests.
func (b TaskletBuilder) WithClock(c batchcore.Clock) TaskletBuilder {
	b.clock = c
	return b
}

// WithLogger overrides the step's logging sink.
func (b TaskletBuilder) WithLogger(l batchcore.Logger) TaskletBuilder {
	b.log = l
	return b
}

func (b TaskletBuilder) validate() error {
	if b.name == "" {
		return fmt.Errorf("tasklet step: name is required")
	}
	if b.tasklet == nil {
		return fmt.Errorf("tasklet step %q: tasklet callback is required", b.name)
	}
	return nil
}

// Build validates the builder and returns the opaque Step, or an error
// if a required field is missing. Validation failures are always
// reported here, never at Run time.
func (b TaskletBuilder) Build() (Step, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &taskletStep{
		name:          b.name,
		tasklet:       b.tasklet,
		decider:       b.decider,
		throwTolerant: b.throwTolerant,
		clock:         b.clock,
		log:           b.log,
	}, nil
}

// ChunkedBuilder fluently constructs a Chunked step reading items of
// type I and writing items of type O.
type ChunkedBuilder[I, O any] struct {
	name          string
	reader        Reader[I]
	processor     Processor[I, O]
	writer        Writer[O]
	chunkSize     int
	workers       int
	decider       Decider
	throwTolerant bool
	clock         batchcore.Clock
	log           batchcore.Logger
}

// NewChunkedBuilder starts a chunked step builder with the given name
// and the default chunk size (1000) and worker count (1).
func NewChunkedBuilder[I, O any](name string) ChunkedBuilder[I, O] {
	return ChunkedBuilder[I, O]{
		name:      name,
		chunkSize: batchcore.DefaultChunkSize,
		workers:   batchcore.DefaultWorkers,
		clock:     batchcore.DefaultClock,
		log:       batchcore.DefaultLogger(),
	}
}

// Reader sets the input factory, called once per step run.
func (b ChunkedBuilder[I, O]) Reader(r Reader[I]) ChunkedBuilder[I, O] {
	b.reader = r
	return b
}

// Processor sets the per-item mapping callback.
func (b ChunkedBuilder[I, O]) Processor(p Processor[I, O]) ChunkedBuilder[I, O] {
	b.processor = p
	return b
}

// Writer sets the chunk-consuming callback.
func (b ChunkedBuilder[I, O]) Writer(w Writer[O]) ChunkedBuilder[I, O] {
	b.writer = w
	return b
}

// ChunkSize overrides the default chunk size of 1000.
func (b ChunkedBuilder[I, O]) ChunkSize(n int) ChunkedBuilder[I, O] {
	b.chunkSize = n
	return b
}

// Workers overrides the default processor concurrency of 1.
func (b ChunkedBuilder[I, O]) Workers(n int) ChunkedBuilder[I, O] {
	b.workers = n
	return b
}

// Decider sets the optional predicate consulted before the step runs.
func (b ChunkedBuilder[I, O]) Decider(d Decider) ChunkedBuilder[I, O] {
	b.decider = d
	return b
}

// ThrowTolerant marks the step's errors as ones that should escalate to
// a job-level failure rather than being logged and suppressed.
func (b ChunkedBuilder[I, O]) ThrowTolerant() ChunkedBuilder[I, O] {
	b.throwTolerant = true
	return b
}

// WithClock overrides the step's time source; intended for tests.
func (b ChunkedBuilder[I, O]) WithClock(c batchcore.Clock) ChunkedBuilder[I, O] {
	b.clock = c
	return b
}

// WithLogger overrides the step's logging sink.
func (b ChunkedBuilder[I, O]) WithLogger(l batchcore.Logger) ChunkedBuilder[I, O] {
	b.log = l
	return b
}

func (b ChunkedBuilder[I, O]) validate() error {
	if b.name == "" {
		return fmt.Errorf("chunked step: name is required")
	}
	if b.reader == nil {
		return fmt.Errorf("chunked step %q: reader is required", b.name)
	}
	if b.processor == nil {
		return fmt.Errorf("chunked step %q: processor is required", b.name)
	}
	if b.writer == nil {
		return fmt.Errorf("chunked step %q: writer is required", b.name)
	}
	if b.chunkSize < 1 {
		return fmt.Errorf("chunked step %q: chunk size must be >= 1, got %d", b.name, b.chunkSize)
	}
	if b.workers < 1 {
		return fmt.Errorf("chunked step %q: workers must be >= 1, got %d", b.name, b.workers)
	}
	return nil
}

// Build validates the builder and returns the opaque Step, or an error
// if a required field is missing or a numeric field is out of range.
func (b ChunkedBuilder[I, O]) Build() (Step, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &chunkedStep[I, O]{
		name:          b.name,
		reader:        b.reader,
		processor:     b.processor,
		writer:        b.writer,
		chunkSize:     b.chunkSize,
		workers:       b.workers,
		decider:       b.decider,
		throwTolerant: b.throwTolerant,
		clock:         b.clock,
		log:           b.log,
	}, nil
}

// JobBuilder fluently constructs a Job out of one or more built Steps.
type JobBuilder struct {
	name        string
	steps       []Step
	parallelism *int
	clock       batchcore.Clock
	log         batchcore.Logger
}

// NewJobBuilder starts a job builder with the given name. With no
// parallelism set, the built Job runs its steps sequentially.
func NewJobBuilder(name string) JobBuilder {
	return JobBuilder{name: name, clock: batchcore.DefaultClock, log: batchcore.DefaultLogger()}
}

// Step appends a step to the job's ordered step list.
func (b JobBuilder) Step(s Step) JobBuilder {
	steps := make([]Step, len(b.steps), len(b.steps)+1)
	copy(steps, b.steps)
	b.steps = append(steps, s)
	return b
}

// Parallelism sets the maximum number of concurrently executing steps.
// Omitting this call runs the job sequentially.
func (b JobBuilder) Parallelism(n int) JobBuilder {
	b.parallelism = &n
	return b
}

// WithClock overrides the job's time source; intended for tests.
func (b JobBuilder) WithClock(c batchcore.Clock) JobBuilder {
	b.clock = c
	return b
}

// WithLogger overrides the job's logging sink.
func (b JobBuilder) WithLogger(l batchcore.Logger) JobBuilder {
	b.log = l
	return b
}

func (b JobBuilder) validate() error {
	if b.name == "" {
		return fmt.Errorf("job: name is required")
	}
	if len(b.steps) == 0 {
		return fmt.Errorf("job %q: at least one step is required", b.name)
	}
	if b.parallelism != nil && *b.parallelism < 1 {
		return fmt.Errorf("job %q: parallelism must be >= 1 when set, got %d", b.name, *b.parallelism)
	}
	return nil
}

// Build validates the builder and returns the opaque Job, or an error
// if no steps were added or parallelism is out of range.
func (b JobBuilder) Build() (*Job, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	parallelism := 0
	if b.parallelism != nil {
		parallelism = *b.parallelism
	}
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	return &Job{
		name:        b.name,
		steps:       steps,
		parallelism: parallelism,
		clock:       b.clock,
		log:         b.log,
	}, nil
}
