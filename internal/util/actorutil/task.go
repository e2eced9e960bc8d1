package actorutil

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

// timeoutGrace is how long a task may overrun its context deadline before
// the task is abandoned.
const timeoutGrace = time.Second

// SafeBackgroundTask runs blocking work off the actor goroutine and hands the
// outcome back as a message. Only the actor system and the PIDs are captured,
// never the actor.Context.
type SafeBackgroundTask[T any] struct {
	system    *actor.ActorSystem
	self      *actor.PID
	fn        func(context.Context) (T, error)
	timeout   time.Duration
	onError   func(error)
	recover   func(error) T
	onSuccess func(T)
}

func NewBackgroundTask[T any](ctx actor.Context, fn func(context.Context) (T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		system: ctx.ActorSystem(),
		self:   ctx.Self(),
		fn:     fn,
	}
}

// WithTimeout bounds the task: fn gets a context with this deadline.
func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *SafeBackgroundTask[T]) OnError(fn func(error)) *SafeBackgroundTask[T] {
	t.onError = fn
	return t
}

// Recover turns a failure into a value delivered like a success.
func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

func (t *SafeBackgroundTask[T]) OnSuccess(fn func(T)) *SafeBackgroundTask[T] {
	t.onSuccess = fn
	return t
}

// PipeTo delivers the result to pid.
func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) *SafeBackgroundTask[T] {
	system := t.system
	t.onSuccess = func(value T) {
		system.Root.Send(pid, value)
	}
	return t
}

func (t *SafeBackgroundTask[T]) PipeToSelf() *SafeBackgroundTask[T] {
	return t.PipeTo(t.self)
}

// Start runs the task on its own goroutine.
func (t *SafeBackgroundTask[T]) Start() {
	go t.Run()
}

// Run evaluates the task on the calling goroutine.
func (t *SafeBackgroundTask[T]) Run() {
	taskCtx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, t.timeout)
		defer cancel()
	}
	bg := io.Eval(func() (T, error) {
		return t.fn(taskCtx)
	})
	if t.timeout > 0 {
		bg = io.WithTimeout[T](t.timeout + timeoutGrace)(bg)
	}
	result := io.RunSync(bg)
	value := result.Value
	if result.Error != nil {
		switch {
		case t.recover != nil:
			value = t.recover(result.Error)
		case t.onError != nil:
			t.onError(result.Error)
			return
		default:
			return
		}
	}

	if t.onSuccess != nil {
		t.onSuccess(value)
	}
}
