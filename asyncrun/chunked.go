package asyncrun

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/getpipe-dev/batch/batchcore"
)

// workerChannelCapacity bounds the dispatcher-to-worker channel in the
// parallel variant, throttling the reader so the processor queue can't
// grow unbounded. Mirrors the tokio::mpsc channel capacity the original
// source used for the same purpose.
const workerChannelCapacity = 16

type chunkedStep[I, O any] struct {
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
	used          atomic.Bool
}

func (s *chunkedStep[I, O]) Name() string { return s.name }

func (s *chunkedStep[I, O]) ThrowTolerant() bool { return s.throwTolerant }

func (s *chunkedStep[I, O]) ShouldRun(ctx context.Context) bool {
	if s.decider == nil {
		return true
	}
	return s.decider(ctx)
}

func (s *chunkedStep[I, O]) Run(ctx context.Context) batchcore.StepStatus {
	if s.used.Swap(true) {
		return batchcore.StepStatus{
			Name:   s.name,
			Status: batchcore.Err(fmt.Sprintf("Step %s has already been run", s.name)),
		}
	}

	s.log.Info(fmt.Sprintf("Step %s is running", s.name))
	start := s.clock()

	if s.reader == nil || s.processor == nil || s.writer == nil {
		return batchcore.MissingCallback(s.name, s.throwTolerant, start, s.log)
	}

	var err error
	if s.workers <= 1 {
		err = s.runSequential(ctx)
	} else {
		err = s.runParallel(ctx)
	}

	if err != nil {
		msg := fmt.Sprintf("Step %s failed to execute", s.name)
		s.log.Error(msg, "err", err)
		return batchcore.StepStatus{
			Name:      s.name,
			StartTime: &start,
			Status:    batchcore.Err(msg),
		}
	}

	end := s.clock()
	msg := fmt.Sprintf("Step %s executed successfully", s.name)
	s.log.Info(msg)
	return batchcore.StepStatus{
		Name:      s.name,
		StartTime: &start,
		EndTime:   &end,
		Status:    batchcore.Ok(msg),
	}
}

// runSequential pulls items from the reader one at a time, flushing the
// buffer to the writer every chunkSize items and once more at end of
// stream, or returning early once ctx is done.
//
// A tolerant processor/writer abort does not stop the run — the
// remaining items are still processed and written — but it is sticky:
// the first such abort is remembered and returned once the run is
// otherwise complete, so the step still reports failure at the step
// level (spec §8 scenario 6).
func (s *chunkedStep[I, O]) runSequential(ctx context.Context) error {
	src := s.reader(ctx)
	buf := make([]O, 0, s.chunkSize)
	var failed error

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok := src(ctx)
		if !ok {
			break
		}

		out, perr := s.safeProcess(ctx, item)
		if perr != nil {
			if s.throwTolerant {
				s.log.Error("processor failed, skipping item", "step", s.name, "err", perr)
				if failed == nil {
					failed = perr
				}
				continue
			}
			return perr
		}
		buf = append(buf, out)

		if len(buf) >= s.chunkSize {
			if werr := s.flush(ctx, buf, &failed); werr != nil {
				return werr
			}
			buf = make([]O, 0, s.chunkSize)
		}
	}

	if len(buf) > 0 {
		if werr := s.flush(ctx, buf, &failed); werr != nil {
			return werr
		}
	}
	return failed
}

// flush hands a chunk to the writer, applying the same
// tolerant/intolerant rule as the processor: a tolerant writer abort is
// logged and recorded into *failed (first one sticks) but does not stop
// the run; an intolerant writer abort returns immediately and aborts
// the step.
func (s *chunkedStep[I, O]) flush(ctx context.Context, buf []O, failed *error) error {
	if werr := s.safeWrite(ctx, buf); werr != nil {
		if s.throwTolerant {
			s.log.Error("writer failed", "step", s.name, "err", werr)
			if *failed == nil {
				*failed = werr
			}
			return nil
		}
		return werr
	}
	return nil
}

// stickyFailure records the first tolerant abort seen across every
// worker without being returned from a worker's errgroup goroutine —
// returning it there would cancel the group's shared context and abort
// every other worker too, which a merely-tolerant failure must not do.
type stickyFailure struct {
	mu  sync.Mutex
	err error
}

func (f *stickyFailure) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *stickyFailure) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// runParallel dispatches input round-robin across `workers` worker
// goroutines managed by an errgroup, each owning a private output
// buffer. An intolerant worker failure cancels the group's derived
// context, which the dispatcher and every other worker observe and
// unwind from promptly. A tolerant worker failure is recorded in a
// shared stickyFailure instead of being returned from the goroutine, so
// it does not cancel gctx and every other worker keeps processing its
// remaining items.
func (s *chunkedStep[I, O]) runParallel(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	failed := &stickyFailure{}

	channels := make([]chan I, s.workers)
	for i := range channels {
		channels[i] = make(chan I, workerChannelCapacity)
	}

	for i := 0; i < s.workers; i++ {
		in := channels[i]
		g.Go(func() error { return s.runWorker(gctx, in, failed) })

	}

	var dispatchOnce sync.Once
	g.Go(func() error {
		defer dispatchOnce.Do(func() {
			for _, ch := range channels {
				close(ch)
			}
		})

		src := s.reader(gctx)
		idx := 0
		for {
			item, ok := src(gctx)
			if !ok {
				return nil
			}
			select {
			case channels[idx] <- item:
				idx = (idx + 1) % s.workers
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return failed.get()
}

// runWorker drains its private input channel, processing and flushing
// its own buffer until the channel closes or ctx is done, then performs
// a final flush. A tolerant abort is recorded into failed and does not
// stop this worker from processing the rest of its items; an
// intolerant abort returns immediately, which errgroup turns into a
// cancellation of every other worker.
func (s *chunkedStep[I, O]) runWorker(ctx context.Context, in <-chan I, failed *stickyFailure) error {
	buf := make([]O, 0, s.chunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-in:
			if !ok {
				if len(buf) > 0 {
					return s.flushSticky(ctx, buf, failed)
				}
				return nil
			}
			out, perr := s.safeProcess(ctx, item)
			if perr != nil {
				if s.throwTolerant {
					s.log.Error("processor failed, skipping item", "step", s.name, "err", perr)
					failed.record(perr)
					continue
				}
				return perr
			}
			buf = append(buf, out)

			if len(buf) >= s.chunkSize {
				if werr := s.flushSticky(ctx, buf, failed); werr != nil {
					return werr
				}
				buf = make([]O, 0, s.chunkSize)
			}
		}
	}
}

// flushSticky is flush's parallel-worker counterpart: a tolerant writer
// abort is recorded into the shared failed rather than returned, so it
// cannot cancel the other workers' context.
func (s *chunkedStep[I, O]) flushSticky(ctx context.Context, buf []O, failed *stickyFailure) error {
	if werr := s.safeWrite(ctx, buf); werr != nil {
		if s.throwTolerant {
			s.log.Error("writer failed", "step", s.name, "err", werr)
			failed.record(werr)
			return nil
		}
		return werr
	}
	return nil
}

func (s *chunkedStep[I, O]) safeProcess(ctx context.Context, item I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return s.processor(ctx, item)
}

func (s *chunkedStep[I, O]) safeWrite(ctx context.Context, batch []O) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panicked: %v", r)
		}
	}()
	return s.writer(ctx, batch)
}
