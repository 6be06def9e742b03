package syncrun

import (
	"errors"
	"sort"
	"sync"
	"testing"
)

func sliceSource(items []int) Reader[int] {
	return func() Source[int] {
		i := 0
		return func() (int, bool) {
			if i >= len(items) {
				return 0, false
			}
			v := items[i]
			i++
			return v, true
		}
	}
}

func doubler(v int) (int, error) { return v * 2, nil }

type collectingWriter struct {
	mu      sync.Mutex
	batches [][]int
}

func (c *collectingWriter) write(batch []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]int, len(batch))
	copy(cp, batch)
	c.batches = append(c.batches, cp)
	return nil
}

func (c *collectingWriter) flat() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for _, b := range c.batches {
		out = append(out, b...)
	}
	sort.Ints(out)
	return out
}

func TestChunkedStep_SequentialDoubling(t *testing.T) {
	w := &collectingWriter{}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource([]int{1, 2, 3, 4, 5})).
		Processor(doubler).
		Writer(w.write).
		ChunkSize(2).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run()
	if !status.Status.IsOk() {
		t.Fatalf("expected Ok status, got %q", status.Status.Message())
	}

	got := w.flat()
	want := []int{2, 4, 6, 8, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if len(w.batches) != 3 {
		t.Fatalf("expected 3 batches for chunkSize=2 over 5 items, got %d", len(w.batches))
	}
}

func TestChunkedStep_EmptyInput(t *testing.T) {
	w := &collectingWriter{}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource(nil)).
		Processor(doubler).
		Writer(w.write).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run()
	if !status.Status.IsOk() {
		t.Fatalf("expected Ok status for empty input, got %q", status.Status.Message())
	}
	if len(w.batches) != 0 {
		t.Fatalf("expected no writer calls for empty input, got %d", len(w.batches))
	}
}

func TestChunkedStep_ChunkSizeOne(t *testing.T) {
	w := &collectingWriter{}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource([]int{1, 2, 3})).
		Processor(doubler).
		Writer(w.write).
		ChunkSize(1).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	step.Run()
	if len(w.batches) != 3 {
		t.Fatalf("expected 3 batches for chunkSize=1 over 3 items, got %d", len(w.batches))
	}
}

func TestChunkedStep_Parallel_RoundRobinCoversAllItems(t *testing.T) {
	w := &collectingWriter{}
	items := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		items = append(items, i)
	}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource(items)).
		Processor(doubler).
		Writer(w.write).
		ChunkSize(7).
		Workers(4).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run()
	if !status.Status.IsOk() {
		t.Fatalf("expected Ok status, got %q", status.Status.Message())
	}

	got := w.flat()
	if len(got) != 100 {
		t.Fatalf("expected 100 output items, got %d", len(got))
	}
	for i, v := range got {
		if v != i*2 {
			t.Fatalf("expected sorted doubled sequence, mismatch at %d: got %d", i, v)
		}
	}
}

func TestChunkedStep_TolerantProcessorSkipsFailingItem(t *testing.T) {
	w := &collectingWriter{}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource([]int{1, 2, 3})).
		Processor(func(v int) (int, error) {
			if v == 2 {
				return 0, errors.New("bad item")
			}
			return v * 2, nil
		}).
		Writer(w.write).
		ThrowTolerant().
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run()
	if status.Status.IsOk() {
		t.Fatalf("expected tolerant step to still report failure at the step level")
	}
	got := w.flat()
	want := []int{2, 6}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestChunkedStep_IntolerantProcessorAborts(t *testing.T) {
	w := &collectingWriter{}
	step, err := NewChunkedBuilder[int, int]("double").
		Reader(sliceSource([]int{1, 2, 3})).
		Processor(func(v int) (int, error) {
			if v == 2 {
				return 0, errors.New("bad item")
			}
			return v * 2, nil
		}).
		Writer(w.write).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run()
	if status.Status.IsOk() {
		t.Fatalf("expected intolerant step to report Err on a bad item")
	}
}

func TestChunkedBuilder_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		b    ChunkedBuilder[int, int]
	}{
		{"missing name", NewChunkedBuilder[int, int]("").Reader(sliceSource(nil)).Processor(doubler).Writer(func([]int) error { return nil })},
		{"missing reader", NewChunkedBuilder[int, int]("s").Processor(doubler).Writer(func([]int) error { return nil })},
		{"missing processor", NewChunkedBuilder[int, int]("s").Reader(sliceSource(nil)).Writer(func([]int) error { return nil })},
		{"missing writer", NewChunkedBuilder[int, int]("s").Reader(sliceSource(nil)).Processor(doubler)},
		{"bad chunk size", NewChunkedBuilder[int, int]("s").Reader(sliceSource(nil)).Processor(doubler).Writer(func([]int) error { return nil }).ChunkSize(0)},
		{"bad workers", NewChunkedBuilder[int, int]("s").Reader(sliceSource(nil)).Processor(doubler).Writer(func([]int) error { return nil }).Workers(0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.b.Build(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
}
