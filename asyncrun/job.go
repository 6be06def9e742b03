package asyncrun

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/getpipe-dev/batch/batchcore"
)

// Job is an ordered list of Steps executed sequentially or with bounded
// concurrency. A built Job always has at least one step.
type Job struct {
	name        string
	steps       []Step
	parallelism int // 0 means sequential
	clock       batchcore.Clock
	log         batchcore.Logger
}

// Run executes every runnable step and returns the aggregated status.
// Once ctx is done, sequential mode starts no further steps and leaves
// them out of the statuses; in parallel mode each step started after
// that reports a failure status. Every log line the job itself emits
// carries a run-scoped correlation id (see batchcore.NewRunID); the
// steps' own log lines do not.
func (j *Job) Run(ctx context.Context) batchcore.JobStatus {
	start := j.clock()
	runID := batchcore.NewRunID()
	if j.parallelism > 0 {
		j.log.Info(fmt.Sprintf("Running job %s with multi-threaded mode", j.name), "run_id", runID)
		return j.runParallel(ctx, start, runID)
	}
	j.log.Info(fmt.Sprintf("Running job %s with single-threaded mode", j.name), "run_id", runID)
	return j.runSequential(ctx, start, runID)
}

// runSequential iterates steps in declaration order. An intolerant
// step's failure is logged and execution continues; a tolerant step's
// failure short-circuits the job. This asymmetry is deliberate — see
// DESIGN.md Open Questions.
func (j *Job) runSequential(ctx context.Context, start int64, runID string) batchcore.JobStatus {
	statuses := make([]batchcore.StepStatus, 0, len(j.steps))

	for _, step := range j.steps {
		if ctx.Err() != nil {
			break
		}
		if !step.ShouldRun(ctx) {
			j.log.Info(fmt.Sprintf("Step %s is skipped", step.Name()), "run_id", runID)
			continue
		}

		tolerant := step.ThrowTolerant()
		status := step.Run(ctx)
		statuses = append(statuses, status)

		if status.Status.IsOk() {
			continue
		}

		if tolerant {
			end := j.clock()
			msg := fmt.Sprintf("Job %s failed", j.name)
			j.log.Error(msg, "run_id", runID)
			return batchcore.JobStatus{
				Name:        j.name,
				StartTime:   &start,
				EndTime:     &end,
				Status:      batchcore.Err(msg),
				StepsStatus: statuses,
			}
		}
		j.log.Error(status.Status.Message(), "run_id", runID)
	}

	return j.succeed(start, runID, statuses)
}

// runParallel bounds concurrency with an errgroup.SetLimit. A step that
// panics, or reports a tolerant failure, returns an error from its goroutine,
// which cancels the group's derived context and aborts the job — this
// mirrors the source engine's behavior of escalating a tolerant
// failure into a task-set abort (see DESIGN.md). An intolerant step's
// failure is logged and included in the results without aborting the
// group.
func (j *Job) runParallel(ctx context.Context, start int64, runID string) batchcore.JobStatus {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallelism)

	var mu sync.Mutex
	statuses := make([]batchcore.StepStatus, 0, len(j.steps))

	for _, step := range j.steps {
		step := step
		if !step.ShouldRun(gctx) {
			j.log.Info(fmt.Sprintf("Step %s is skipped", step.Name()), "run_id", runID)
			continue
		}

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("step %s panicked: %v", step.Name(), r)
				}
			}()
			status := step.Run(gctx)

			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()

			if status.Status.IsOk() {
				j.log.Info(status.Status.Message(), "run_id", runID)
				return nil
			}
			if step.ThrowTolerant() {
				return fmt.Errorf("%s", status.Status.Message())
			}
			j.log.Error(status.Status.Message(), "run_id", runID)
			return nil
		})
	}

	err := g.Wait()

	if err != nil {
		end := j.clock()
		msg := fmt.Sprintf("Job %s failed", j.name)
		j.log.Error(msg, "run_id", runID)
		return batchcore.JobStatus{
			Name:        j.name,
			StartTime:   &start,
			EndTime:     &end,
			Status:      batchcore.Err(msg),
			StepsStatus: statuses,
		}
	}

	return j.succeed(start, runID, statuses)
}

func (j *Job) succeed(start int64, runID string, statuses []batchcore.StepStatus) batchcore.JobStatus {
	end := j.clock()
	msg := fmt.Sprintf("Job %s completed", j.name)
	j.log.Info(msg, "run_id", runID)
	return batchcore.JobStatus{
		Name:        j.name,
		StartTime:   &start,
		EndTime:     &end,
		Status:      batchcore.Ok(msg),
		StepsStatus: statuses,
	}
}
