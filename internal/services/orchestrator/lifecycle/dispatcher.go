package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull indicates the execution queue has no free slot.
	ErrQueueFull = errors.New("execution queue is full")
	// ErrDispatcherStopped indicates the dispatcher no longer accepts work.
	ErrDispatcherStopped = errors.New("execution dispatcher stopped")
	// ErrDispatcherStarted indicates Run was called more than once.
	ErrDispatcherStarted = errors.New("execution dispatcher already started")
)

const (
	defaultQueueSize = 64
	defaultWorkers   = 4
)

// Executor runs one approved action.
type Executor interface {
	Execute(ctx context.Context, actionID string) (bool, error)
}

// Dispatcher executes scheduled actions on a bounded worker pool.
type Dispatcher struct {
	executor Executor
	queue    chan string
	workers  int
	logger   zerolog.Logger

	// done closes when shutdown begins and releases waiting schedulers.
	done chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the number of actions that may wait for a worker.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan string, size)
		}
	}
}

// WithWorkers sets the number of concurrent executions.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher builds a dispatcher feeding executor.
func NewDispatcher(executor Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		executor: executor,
		queue:    make(chan string, defaultQueueSize),
		done:     make(chan struct{}),
		workers:  defaultWorkers,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule queues actionID without blocking.
func (d *Dispatcher) Schedule(actionID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- actionID:
		return nil
	default:
		return ErrQueueFull
	}
}

// ScheduleWait queues actionID, waiting for a free slot until ctx ends or
// the dispatcher stops.
func (d *Dispatcher) ScheduleWait(ctx context.Context, actionID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- actionID:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued actions until ctx is done, then drains what was
// already queued and returns. Schedule fails once Run begins shutting down.
// Run may be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started || d.stopped {
		d.mu.Unlock()
		return ErrDispatcherStarted
	}
	d.started = true
	d.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	<-gctx.Done()

	close(d.done)
	d.mu.Lock()
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	return g.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case actionID, ok := <-d.queue:
			if !ok {
				return
			}
			d.execute(ctx, actionID)
		case <-ctx.Done():
			for actionID := range d.queue {
				d.execute(ctx, actionID)
			}
			return
		}
	}
}

// execute runs one action detached from the run context so shutdown does
// not abort a claimed action midway.
func (d *Dispatcher) execute(ctx context.Context, actionID string) {
	ok, err := d.executor.Execute(context.WithoutCancel(ctx), actionID)
	if err != nil {
		d.logger.Error().Err(err).Str("action_id", actionID).Msg("execute action")
		return
	}
	if !ok {
		d.logger.Debug().Str("action_id", actionID).Msg("action not executed")
	}
}
