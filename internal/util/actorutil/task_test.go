package actorutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskResult struct {
	value int
	err   error
}

type startTask struct {
	fn      func(context.Context) (taskResult, error)
	timeout time.Duration
}

// taskRunner starts a task per message and forwards what comes back.
type taskRunner struct {
	results chan taskResult
}

func (r *taskRunner) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case startTask:
		NewBackgroundTask(ctx, msg.fn).WithTimeout(msg.timeout).Recover(func(err error) taskResult {
			return taskResult{err: err}
		}).PipeToSelf().Start()
	case taskResult:
		r.results <- msg
	}
}

func runTask(t *testing.T, task startTask) taskResult {
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	runner := &taskRunner{results: make(chan taskResult, 1)}
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return runner }))
	system.Root.Send(pid, task)
	select {
	case res := <-runner.results:
		return res
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no task result")
		return taskResult{}
	}
}

func TestBackgroundTaskPipesResult(t *testing.T) {
	res := runTask(t, startTask{
		fn: func(context.Context) (taskResult, error) {
			return taskResult{value: 42}, nil
		},
		timeout: time.Second,
	})
	assert.NoError(t, res.err)
	assert.Equal(t, 42, res.value)
}

func TestBackgroundTaskRecoversError(t *testing.T) {
	boom := errors.New("boom")
	res := runTask(t, startTask{
		fn: func(context.Context) (taskResult, error) {
			return taskResult{}, boom
		},
		timeout: time.Second,
	})
	assert.ErrorIs(t, res.err, boom)
}

func TestBackgroundTaskTimesOut(t *testing.T) {
	res := runTask(t, startTask{
		fn: func(ctx context.Context) (taskResult, error) {
			<-ctx.Done()
			return taskResult{}, ctx.Err()
		},
		timeout: 100 * time.Millisecond,
	})
	assert.ErrorIs(t, res.err, context.DeadlineExceeded)
}

func TestBackgroundTaskOnError(t *testing.T) {
	system := actor.NewActorSystem()
	defer system.Shutdown()

	errs := make(chan error, 1)
	props := actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(*actor.Started); ok {
			NewBackgroundTask(ctx, func(context.Context) (int, error) {
				return 0, errors.New("no luck")
			}).OnError(func(err error) {
				errs <- err
			}).OnSuccess(func(int) {
				errs <- nil
			}).Run()
		}
	})
	system.Root.Spawn(props)

	select {
	case err := <-errs:
		assert.EqualError(t, err, "no luck")
	case <-time.After(time.Second):
		require.FailNow(t, "OnError not called")
	}
}
