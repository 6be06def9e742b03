package asyncrun

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/getpipe-dev/batch/batchcore"
)

type taskletStep struct {
	name          string
	tasklet       Tasklet
	decider       Decider
	throwTolerant bool
	clock         batchcore.Clock
	log           batchcore.Logger
	used          atomic.Bool
}

func (s *taskletStep) Name() string { return s.name }

func (s *taskletStep) ThrowTolerant() bool { return s.throwTolerant }

func (s *taskletStep) ShouldRun(ctx context.Context) bool {
	if s.decider == nil {
		return true
	}
	return s.decider(ctx)
}

func (s *taskletStep) Run(ctx context.Context) batchcore.StepStatus {
	if s.used.Swap(true) {
		return batchcore.StepStatus{
			Name:   s.name,
			Status: batchcore.Err(fmt.Sprintf("Step %s has already been run", s.name)),
		}
	}

	s.log.Info(fmt.Sprintf("Step %s is running", s.name))
	start := s.clock()

	if err := ctx.Err(); err != nil {
		msg := fmt.Sprintf("Step %s failed to execute", s.name)
		s.log.Error(msg, "err", err)
		return batchcore.StepStatus{Name: s.name, StartTime: &start, Status: batchcore.Err(msg)}
	}

	if s.tasklet == nil {
		return batchcore.MissingCallback(s.name, s.throwTolerant, start, s.log)
	}

	return s.invoke(ctx, start)
}

// invoke runs the tasklet callback, recovering a panic at the step
// boundary so a single failing step never takes the process down.
func (s *taskletStep) invoke(ctx context.Context, start int64) (status batchcore.StepStatus) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Step %s failed to execute", s.name)
			s.log.Error(msg, "panic", r)
			status = batchcore.StepStatus{
				Name:      s.name,
				StartTime: &start,
				Status:    batchcore.Err(msg),
			}
		}
	}()

	if err := s.tasklet(ctx); err != nil {
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
