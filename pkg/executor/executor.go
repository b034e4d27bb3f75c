package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"

	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/storelog"
)

const defaultIdleExpiry = 60 * time.Second

// Executor runs background work on an unbounded goroutine pool. Workers
// are created on demand and reclaimed after idling. Shutdown is a hard
// stop: running tasks see their context cancelled and no new work is
// accepted.
type Executor struct {
	name string
	pool *ants.Pool

	ctx    context.Context
	cancel context.CancelFunc
	closed *atomic.Bool
}

func New(name string) (*Executor, error) {
	return NewWithExpiry(name, defaultIdleExpiry)
}

func NewWithExpiry(name string, idleExpiry time.Duration) (*Executor, error) {
	pool, err := ants.NewPool(-1,
		ants.WithExpiryDuration(idleExpiry),
		ants.WithLogger(storelog.Zero),
		ants.WithPanicHandler(func(v any) {
			storelog.Zero.Error().
				Str("executor", name).
				Interface("panic", v).
				Msg("executor: task panic")
		}))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		name:   name,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		closed: atomic.NewBool(false),
	}, nil
}

func (e *Executor) Name() string {
	return e.name
}

// Execute schedules fn without tracking its completion.
func (e *Executor) Execute(fn func(ctx context.Context)) error {
	if e.closed.Load() {
		return e.shutdownErr()
	}
	if err := e.pool.Submit(func() { fn(e.ctx) }); err != nil {
		return e.shutdownErr()
	}
	return nil
}

// Shutdown is idempotent.
func (e *Executor) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	logShutdown(e.name, e.pool.Running())
	e.cancel()
	e.pool.Release()
}

func (e *Executor) IsShutdown() bool {
	return e.closed.Load()
}

func (e *Executor) Running() int {
	return e.pool.Running()
}

func (e *Executor) shutdownErr() error {
	return storeerror.Newf(storeerror.STORE_SOURCE_CLOSED, "executor %s is shut down", e.name)
}

func logShutdown(name string, running int) {
	storelog.Zero.Debug().
		Str("executor", name).
		Int("running", running).
		Msg("executor: shutdown")
}

// Submit schedules fn and returns a handle to its result. The context passed
// to fn is cancelled by Task.Cancel or by executor shutdown.
func Submit[T any](e *Executor, fn func(ctx context.Context) (T, error)) (*Task[T], error) {
	if e.closed.Load() {
		return nil, e.shutdownErr()
	}

	ctx, cancel := context.WithCancel(e.ctx)
	t := &Task[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := e.pool.Submit(func() { t.run(ctx, fn) }); err != nil {
		cancel()
		return nil, e.shutdownErr()
	}
	return t, nil
}

type Task[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	result T
	err    error
}

func (t *Task[T]) run(ctx context.Context, fn func(ctx context.Context) (T, error)) {
	defer close(t.done)
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			t.err = storeerror.Newf(storeerror.STORE_INTERNAL, "task panic: %v", r)
		}
	}()

	t.result, t.err = fn(ctx)
	if t.err != nil {
		var zero T
		t.result = zero
	}
}

// Wait returns the task result, or ctx.Err() if ctx is done first.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

func (t *Task[T]) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel requests cooperative cancellation and does not wait.
func (t *Task[T]) Cancel() {
	t.cancel()
}

func (t *Task[T]) String() string {
	return fmt.Sprintf("task(done=%t)", t.IsDone())
}
