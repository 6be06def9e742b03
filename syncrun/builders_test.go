package syncrun

import "testing"

func TestTaskletBuilder_ValidationFailures(t *testing.T) {
	if _, err := NewTaskletBuilder("").Tasklet(func() error { return nil }).Build(); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := NewTaskletBuilder("s").Build(); err == nil {
		t.Fatalf("expected error for missing tasklet")
	}
}

func TestJobBuilder_RejectsEmptyJob(t *testing.T) {
	if _, err := NewJobBuilder("pipeline").Build(); err == nil {
		t.Fatalf("expected error for a job with no steps")
	}
}

func TestJobBuilder_RejectsEmptyName(t *testing.T) {
	if _, err := NewJobBuilder("").Step(okTasklet(t, "a")).Build(); err == nil {
		t.Fatalf("expected error for an empty job name")
	}
}

func TestJobBuilder_RejectsZeroParallelism(t *testing.T) {
	if _, err := NewJobBuilder("pipeline").Step(okTasklet(t, "a")).Parallelism(0).Build(); err == nil {
		t.Fatalf("expected error for explicit Parallelism(0)")
	}
}

func TestJobBuilder_DefaultsToSequential(t *testing.T) {
	job, err := NewJobBuilder("pipeline").Step(okTasklet(t, "a")).Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if job.parallelism != 0 {
		t.Fatalf("expected parallelism to default to 0 (sequential), got %d", job.parallelism)
	}
}

func TestJobBuilder_StepDoesNotAliasAcrossBranches(t *testing.T) {
	base := NewJobBuilder("pipeline").Step(okTasklet(t, "a"))
	left := base.Step(okTasklet(t, "b"))
	right := base.Step(okTasklet(t, "c"))

	leftJob, err := left.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	rightJob, err := right.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	if len(leftJob.steps) != 2 || len(rightJob.steps) != 2 {
		t.Fatalf("expected each branch to have exactly 2 steps, got %d and %d", len(leftJob.steps), len(rightJob.steps))
	}
	if leftJob.steps[1].Name() == rightJob.steps[1].Name() {
		t.Fatalf("expected the two branches to diverge on their second step")
	}
}
