// Package sched runs the pipeline stages as independent tasks connected by
// unbounded queues.
//
// Every stage owns its state and talks to the others only through a Queue,
// so no locks guard pipeline data. A task that fails stops alone: its
// siblings keep running and whatever sits downstream of it stalls.
// Failures are logged and reported on Failures() for a supervisor.
package sched

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// Task is a long running unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(context.Context) error
}

func (t *funcTask) Name() string                  { return t.name }
func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// NamedFunc wraps fn as a Task.
func NamedFunc(name string, fn func(context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

// Failure describes a task that stopped with an error.
type Failure struct {
	Task string
	Err  error
}

// Scheduler starts tasks and collects how they end.
type Scheduler struct {
	group    errgroup.Group
	failures chan Failure
}

// New creates a Scheduler. failureBuffer bounds how many unread failures
// are retained; extra ones are only logged.
func New(failureBuffer int) *Scheduler {
	return &Scheduler{failures: make(chan Failure, failureBuffer)}
}

// Go starts tasks. A task's error never cancels ctx for the others.
func (s *Scheduler) Go(ctx context.Context, tasks ...Task) *Scheduler {
	for _, task := range tasks {
		task := task
		glog.V(4).Infof("sched: start task %s", task.Name())
		s.group.Go(func() error {
			err := task.Run(ctx)
			switch {
			case err == nil:
				glog.Warningf("sched: task %s returned", task.Name())
			case errors.Is(err, context.Canceled):
				glog.V(4).Infof("sched: task %s canceled", task.Name())
				return nil
			default:
				glog.Errorf("sched: task %s stopped: %v", task.Name(), err)
				select {
				case s.failures <- Failure{Task: task.Name(), Err: err}:
				default:
				}
			}
			return err
		})
	}
	return s
}

// Failures delivers task failures as they happen.
func (s *Scheduler) Failures() <-chan Failure {
	return s.failures
}

// Wait blocks until every task has returned and reports the first error.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}
