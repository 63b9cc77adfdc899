package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
	"golang.org/x/sync/semaphore"
)

const (
	// MinWorkers is the smallest accepted worker count.
	MinWorkers = 1

	// MaxWorkers is the largest accepted worker count.
	MaxWorkers = 199

	// DefaultDrainTimeout bounds how long a stage waits for its workers after
	// reading the end-of-stream marker.
	DefaultDrainTimeout = 10 * time.Minute
)

// Queue is a bounded blocking FIFO connecting two stages.
// The capacity given to make is the queue bound.
type Queue = chan model.Item

// TaskFunc transforms one item. It is called concurrently from up to
// Workers() goroutines and must not retain the item beyond the call.
// Returning an error drops the item.
type TaskFunc func(ctx context.Context, item model.Item) (model.Item, error)

// Stats is a consistent snapshot of the stage counters.
// InFlight+Processed+Dropped always equals Dispatched.
type Stats struct {
	// InFlight is the number of items handed to workers and not yet completed.
	InFlight int64

	// Processed is the number of items transformed successfully.
	Processed int64

	// Dropped is the number of items whose task failed.
	Dropped int64

	// Dispatched is the number of items handed to workers since start.
	Dispatched int64
}

// Option configures a Stage.
type Option func(*Stage)

// WithLogger sets the logger used by the stage.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithDrainTimeout sets how long the stage waits for in-flight workers once
// the marker arrives. Non-positive values are ignored.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Stage) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// Stage is one coordinator goroutine plus a bounded pool of workers.
type Stage struct {
	name    string
	in      <-chan model.Item
	out     chan<- model.Item
	workers int
	task    TaskFunc

	logger       *slog.Logger
	drainTimeout time.Duration

	// permits bounds the number of live workers.
	permits *semaphore.Weighted
	wg      sync.WaitGroup

	// sendMu is held shared by workers while they forward a result and
	// exclusively by drain while it seals the output.
	sendMu sync.RWMutex
	sealed bool

	// mu guards stats, state and err.
	mu    sync.Mutex
	stats Stats
	state State
	err   error

	done chan struct{}
}

// New creates a stage that reads from in, applies task with at most workers
// concurrent goroutines and writes results to out.
//
// New fails with ErrInvalidWorkers, ErrNilQueue or ErrNilTask when the
// arguments are unusable. The stage does nothing until Start is called.
func New(name string, in <-chan model.Item, out chan<- model.Item, workers int, task TaskFunc, opts ...Option) (*Stage, error) {
	if workers < MinWorkers || workers > MaxWorkers {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}
	if in == nil || out == nil {
		return nil, ErrNilQueue
	}
	if task == nil {
		return nil, ErrNilTask
	}

	s := &Stage{
		name:         name,
		in:           in,
		out:          out,
		workers:      workers,
		task:         task,
		drainTimeout: DefaultDrainTimeout,
		permits:      semaphore.NewWeighted(int64(workers)),
		state:        StateIdle,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("stage", name)

	return s, nil
}

// Start launches the coordinator goroutine and returns immediately.
// Cancelling ctx interrupts the stage.
func (s *Stage) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Debug("stage started", "workers", s.workers)
	go s.coordinate(ctx)
	return nil
}

// coordinate is the coordinator loop. It owns every read from the input queue.
func (s *Stage) coordinate(ctx context.Context) {
	for {
		// Hold a permit before consuming so a saturated pool leaves items queued.
		if err := s.permits.Acquire(ctx, 1); err != nil {
			s.interrupt(err)
			return
		}

		var (
			item model.Item
			ok   bool
		)
		select {
		case item, ok = <-s.in:
		case <-ctx.Done():
			s.permits.Release(1)
			s.interrupt(ctx.Err())
			return
		}

		if !ok {
			s.logger.Warn("input queue closed without end-of-stream marker")
			item = model.EndOfStream()
		}

		if item.IsEndOfStream() {
			s.permits.Release(1)
			s.drain(ctx, item)
			return
		}

		s.dispatch(ctx, item)
	}
}

// dispatch hands item to a new worker. The caller holds a permit for it.
func (s *Stage) dispatch(ctx context.Context, item model.Item) {
	s.mu.Lock()
	s.stats.InFlight++
	s.stats.Dispatched++
	s.mu.Unlock()

	s.wg.Add(1)
	go s.work(ctx, item)
}

// work runs the task for one item and forwards the result.
func (s *Stage) work(ctx context.Context, item model.Item) {
	defer s.wg.Done()
	defer s.permits.Release(1)

	result, err := s.runTask(ctx, item)
	if err == nil && result.IsEndOfStream() {
		err = fmt.Errorf("%w: %s", ErrMarkerFromTask, item.Key())
	}
	if err != nil {
		s.complete(false)
		s.logger.Debug("task failed, dropping item", "key", item.Key(), "error", err)
		return
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	// The marker has already been forwarded after a drain timeout.
	if s.sealed {
		s.complete(false)
		s.logger.Warn("result completed after end of stream, dropping item", "key", item.Key())
		return
	}

	s.complete(true)

	select {
	case s.out <- result:
	case <-ctx.Done():
		s.logger.Warn("interrupted while forwarding result", "key", item.Key(), "reason", ctx.Err())
	}
}

// runTask calls the task, turning a panic into ErrTaskPanic.
func (s *Stage) runTask(ctx context.Context, item model.Item) (result model.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return s.task(ctx, item)
}

// complete moves one item out of flight in a single step, so that a Stats
// snapshot never observes the decrement without the matching increment.
func (s *Stage) complete(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.InFlight--
	if ok {
		s.stats.Processed++
	} else {
		s.stats.Dropped++
	}
}

// drain waits for dispatched workers and forwards the marker.
func (s *Stage) drain(ctx context.Context, marker model.Item) {
	s.setState(StateDraining)
	s.logger.Debug("end of stream received, draining", "in_flight", s.TaskCount())

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(s.drainTimeout)
	defer timer.Stop()

	var drainErr error
	select {
	case <-drained:
	case <-timer.C:
		drainErr = ErrDrainTimeout
		s.logger.Error("workers did not finish before drain timeout, forwarding end of stream",
			"timeout", s.drainTimeout,
			"in_flight", s.TaskCount(),
		)
	case <-ctx.Done():
		s.interrupt(ctx.Err())
		return
	}

	s.seal()

	select {
	case s.out <- marker:
	case <-ctx.Done():
		s.interrupt(ctx.Err())
		return
	}

	stats := s.Stats()
	s.logger.Debug("stage shut down",
		"processed", stats.Processed,
		"dropped", stats.Dropped,
	)
	s.finish(StateShutdown, drainErr)
}

// seal waits for workers currently forwarding a result and stops any later
// worker from writing to the output queue.
func (s *Stage) seal() {
	s.sendMu.Lock()
	s.sealed = true
	s.sendMu.Unlock()
}

// interrupt waits for workers to observe the cancellation and marks the
// stage as interrupted.
func (s *Stage) interrupt(cause error) {
	s.logger.Warn("stage interrupted", "reason", cause, "in_flight", s.TaskCount())
	s.wg.Wait()
	s.finish(StateInterrupted, fmt.Errorf("stage %s interrupted: %w", s.name, cause))
}

func (s *Stage) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Stage) finish(state State, err error) {
	s.mu.Lock()
	s.state = state
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.name
}

// Workers returns the maximum number of concurrent workers.
func (s *Stage) Workers() int {
	return s.workers
}

// State returns the current lifecycle state.
func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsShutdown reports whether the stage reached a terminal state. Once true,
// the coordinator has stopped and the stage writes nothing more to its output.
// After a drain timeout, workers may still be running; their results are
// counted as dropped.
func (s *Stage) IsShutdown() bool {
	return s.State().Terminal()
}

// TaskCount returns the number of items currently in flight.
func (s *Stage) TaskCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.InFlight
}

// ProcessedCount returns the number of items transformed successfully.
func (s *Stage) ProcessedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Processed
}

// DroppedCount returns the number of items dropped after a task failure.
func (s *Stage) DroppedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Dropped
}

// Stats returns a consistent snapshot of all counters.
func (s *Stage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Done returns a channel that is closed when the stage reaches a terminal state.
func (s *Stage) Done() <-chan struct{} {
	return s.done
}

// Err returns nil after a clean shutdown, ErrDrainTimeout if the drain timed
// out, or the interruption cause. It is only meaningful after Done is closed.
func (s *Stage) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the stage reaches a terminal state or ctx is done.
func (s *Stage) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
