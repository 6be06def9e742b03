package asyncrun

import (
	"context"
	"errors"
	"testing"
)

type nopLogger struct{}

func (nopLogger) Debug(msg any, keyvals ...any) {}
func (nopLogger) Info(msg any, keyvals ...any)  {}
func (nopLogger) Warn(msg any, keyvals ...any)  {}
func (nopLogger) Error(msg any, keyvals ...any) {}

func testClock() int64 { return 1000 }

func TestTaskletStep_Success(t *testing.T) {
	ran := false
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { ran = true; return nil }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run(context.Background())
	if !ran {
		t.Fatalf("expected tasklet to have run")
	}
	if !status.Status.IsOk() {
		t.Fatalf("expected Ok status, got %q", status.Status.Message())
	}
	if status.EndTime == nil {
		t.Fatalf("expected EndTime to be set on success")
	}
}

func TestTaskletStep_DeciderSkipsRun(t *testing.T) {
	ran := false
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { ran = true; return nil }).
		Decider(func(ctx context.Context) bool { return false }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	if step.ShouldRun(context.Background()) {
		t.Fatalf("expected ShouldRun to report false")
	}
	if ran {
		t.Fatalf("tasklet must not run when the caller honors ShouldRun")
	}
}

func TestTaskletStep_ErrorIsTolerantSafe(t *testing.T) {
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { return errors.New("boom") }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run(context.Background())
	if status.Status.IsOk() {
		t.Fatalf("expected Err status")
	}
	if status.EndTime != nil {
		t.Fatalf("expected no EndTime on failure")
	}
}

func TestTaskletStep_PanicRecovered(t *testing.T) {
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { panic("kaboom") }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	status := step.Run(context.Background())
	if status.Status.IsOk() {
		t.Fatalf("expected Err status after panic recovery")
	}
}

func TestTaskletStep_SingleUse(t *testing.T) {
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { return nil }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	first := step.Run(context.Background())
	if !first.Status.IsOk() {
		t.Fatalf("expected first run to succeed")
	}
	second := step.Run(context.Background())
	if second.Status.IsOk() {
		t.Fatalf("expected second run on the same step to fail")
	}
}

func TestTaskletStep_CanceledContext(t *testing.T) {
	step, err := NewTaskletBuilder("greet").
		Tasklet(func(ctx context.Context) error { return nil }).
		WithClock(testClock).
		WithLogger(nopLogger{}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := step.Run(ctx)
	if status.Status.IsOk() {
		t.Fatalf("expected Err status when ctx is already canceled")
	}
}

func TestTaskletBuilder_MissingTasklet(t *testing.T) {
	if _, err := NewTaskletBuilder("greet").WithLogger(nopLogger{}).Build(); err == nil {
		t.Fatalf("expected a build error for a missing tasklet")
	}
	// Run's missing-callback fallback is only reachable by bypassing the
	// builder's validation.
	step := &taskletStep{name: "greet", clock: testClock, log: nopLogger{}}
	status := step.Run(context.Background())
	if status.Status.IsOk() {
		t.Fatalf("expected Err status for missing tasklet on an intolerant step")
	}
}

func TestTaskletBuilder_RejectsEmptyName(t *testing.T) {
	if _, err := NewTaskletBuilder("").Tasklet(func(ctx context.Context) error { return nil }).Build(); err == nil {
		t.Fatalf("expected error for empty step name")
	}
}
