package syncrun

import (
	"fmt"
	"sync"
	"sync/atomic"

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

func (s *chunkedStep[I, O]) ShouldRun() bool {
	if s.decider == nil {
		return true
	}
	return s.decider()
}

func (s *chunkedStep[I, O]) Run() batchcore.StepStatus {
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
		err = s.runSequential()
	} else {
		err = s.runParallel()
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
// stream. Writer invocations are strictly ordered and never overlap.
//
// A tolerant processor/writer abort does not stop the run — the
// remaining items are still processed and written — but it is sticky:
// the first such abort is remembered and returned once the run is
// otherwise complete, so the step still reports failure at the step
// level (spec §8 scenario 6).
func (s *chunkedStep[I, O]) runSequential() error {
	src := s.reader()
	buf := make([]O, 0, s.chunkSize)
	var failed error

	for {
		item, ok := src()
		if !ok {
			break
		}

		out, perr := s.safeProcess(item)
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
			if werr := s.flush(buf, &failed); werr != nil {
				return werr
			}
			buf = make([]O, 0, s.chunkSize)
		}
	}

	if len(buf) > 0 {
		if werr := s.flush(buf, &failed); werr != nil {
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
func (s *chunkedStep[I, O]) flush(buf []O, failed *error) error {
	if werr := s.safeWrite(buf); werr != nil {
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

// runParallel dispatches input round-robin across `workers` worker
// goroutines, each owning a private output buffer. The dispatcher runs
// in the calling goroutine; workers only ever consume their own bounded
// channel. On intolerant failure the dispatcher stops feeding workers
// and all channels are closed so the remaining workers drain and exit.
func (s *chunkedStep[I, O]) runParallel() error {
	channels := make([]chan I, s.workers)
	for i := range channels {
		channels[i] = make(chan I, workerChannelCapacity)
	}

	var wg sync.WaitGroup
	errs := make(chan error, s.workers)

	var stopOnce sync.Once
	stopCh := make(chan struct{})
	abort := func() { stopOnce.Do(func() { close(stopCh) }) }

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(in <-chan I) {
			defer wg.Done()
			if err := s.runWorker(in); err != nil {
				abort()
				errs <- err
			}
		}(channels[i])
	}

	src := s.reader()
	idx := 0
dispatch:
	for {
		item, ok := src()
		if !ok {
			break
		}
		select {
		case channels[idx] <- item:
			idx = (idx + 1) % s.workers
		case <-stopCh:
			break dispatch
		}
	}

	for _, ch := range channels {
		close(ch)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runWorker drains its private input channel, processing and flushing
// its own buffer until the channel closes, then performs a final flush.
// As in runSequential, a tolerant abort is sticky rather than fatal: it
// is remembered and returned once the channel drains, without stopping
// this worker from processing the rest of its items.
func (s *chunkedStep[I, O]) runWorker(in <-chan I) error {
	buf := make([]O, 0, s.chunkSize)
	var failed error
	for item := range in {
		out, perr := s.safeProcess(item)
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
			if werr := s.flush(buf, &failed); werr != nil {
				return werr
			}
			buf = make([]O, 0, s.chunkSize)
		}
	}
	if len(buf) > 0 {
		if werr := s.flush(buf, &failed); werr != nil {
			return werr
		}
	}
	return failed
}

func (s *chunkedStep[I, O]) safeProcess(item I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return s.processor(item)
}

func (s *chunkedStep[I, O]) safeWrite(batch []O) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panicked: %v", r)
		}
	}()
	return s.writer(batch)
}
