package syncrun

import (
	"fmt"

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
// Every log line the job itself emits carries a run-scoped correlation
// id (see batchcore.NewRunID); the steps' own log lines do not.
func (j *Job) Run() batchcore.JobStatus {
	start := j.clock()
	runID := batchcore.NewRunID()
	if j.parallelism > 0 {
		j.log.Info(fmt.Sprintf("Running job %s with multi-threaded mode", j.name), "run_id", runID)
		return j.runParallel(start, runID)
	}
	j.log.Info(fmt.Sprintf("Running job %s with single-threaded mode", j.name), "run_id", runID)
	return j.runSequential(start, runID)
}

// runSequential iterates steps in declaration order. An intolerant
// step's failure is logged and execution continues; a tolerant step's
// failure short-circuits the job. This asymmetry is deliberate — see
// DESIGN.md Open Questions.
func (j *Job) runSequential(start int64, runID string) batchcore.JobStatus {
	statuses := make([]batchcore.StepStatus, 0, len(j.steps))

	for _, step := range j.steps {
		if !step.ShouldRun() {
			j.log.Info(fmt.Sprintf("Step %s is skipped", step.Name()), "run_id", runID)
			continue
		}

		tolerant := step.ThrowTolerant()
		status := step.Run()
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

type parallelResult struct {
	status   batchcore.StepStatus
	tolerant bool
	panicked bool
}

// runParallel maintains a bounded set of in-flight goroutines. The job
// aborts when a step panics, or when a tolerant step reports failure —
// matching the source engine's behavior of escalating a tolerant
// failure into a task-set abort (see DESIGN.md). An intolerant step's
// failure is logged and included in the results without aborting.
func (j *Job) runParallel(start int64, runID string) batchcore.JobStatus {
	statuses := make([]batchcore.StepStatus, 0, len(j.steps))
	results := make(chan parallelResult)
	inFlight := 0
	aborted := false

	spawn := func(step Step) {
		inFlight++
		tolerant := step.ThrowTolerant()
		go func() {
			defer func() {
				if r := recover(); r != nil {
					j.log.Error(fmt.Sprintf("Job %s failed", j.name), "run_id", runID, "panic", r)
					results <- parallelResult{panicked: true}
				}
			}()
			results <- parallelResult{status: step.Run(), tolerant: tolerant}
		}()
	}

	drainOne := func() {
		res := <-results
		inFlight--
		if res.panicked {
			aborted = true
			return
		}
		statuses = append(statuses, res.status)
		if !res.status.Status.IsOk() {
			if res.tolerant {
				aborted = true
				return
			}
			j.log.Error(res.status.Status.Message(), "run_id", runID)
			return
		}
		j.log.Info(res.status.Status.Message(), "run_id", runID)
	}

	for _, step := range j.steps {
		if !step.ShouldRun() {
			j.log.Info(fmt.Sprintf("Step %s is skipped", step.Name()), "run_id", runID)
			continue
		}
		if aborted {
			continue
		}
		if inFlight >= j.parallelism {
			drainOne()
		}
		if aborted {
			continue
		}
		spawn(step)
	}
	for inFlight > 0 {
		drainOne()
	}

	if aborted {
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
