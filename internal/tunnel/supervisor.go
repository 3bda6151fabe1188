package tunnel

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"podlab/pkg/logging"
)

const supervisorSubsystem = "supervisor"

// DefaultDrainDeadline is how long Serve waits for tasks to wind down after
// cancellation before abandoning them.
const DefaultDrainDeadline = 5 * time.Second

type taskResult struct {
	name    string
	outcome Outcome
}

// TaskHandle allows a single task to be stopped without shutting down the
// whole group. Stop is idempotent.
type TaskHandle struct {
	name   string
	cancel context.CancelFunc
}

// Stop cancels just this task's context.
func (h *TaskHandle) Stop() {
	h.cancel()
}

// Name returns the task's registry name.
func (h *TaskHandle) Name() string {
	return h.name
}

// Supervisor runs a group of named tasks under one shared cancellation
// signal. Any lifecycle task returning an error outcome, or a call to
// Shutdown, cancels the whole group (fail-fast); contained tasks (connection
// bridges) may fail without taking the group down. Serve blocks until the
// group converges and reports the first lifecycle error, if any.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	drain  time.Duration

	mu        sync.Mutex
	nextID    uint64
	active    map[uint64]string // id -> task name
	lifecycle []taskResult      // completed lifecycle outcomes, consumed by Serve
	contained []taskResult      // completed contained outcomes, consumed by the reaper

	notify chan struct{}
}

// NewSupervisor creates a supervisor whose shared cancellation signal derives
// from parent. A drain deadline <= 0 selects DefaultDrainDeadline.
func NewSupervisor(parent context.Context, drainDeadline time.Duration) *Supervisor {
	if drainDeadline <= 0 {
		drainDeadline = DefaultDrainDeadline
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		drain:  drainDeadline,
		active: make(map[uint64]string),
		notify: make(chan struct{}, 1),
	}
}

// Context exposes the group's cancellation signal. Subscribers must treat it
// as idempotent: it may already be canceled and may be observed many times.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Shutdown triggers the shared cancellation signal. Safe to call repeatedly
// and from any goroutine.
func (s *Supervisor) Shutdown() {
	s.cancel()
	s.wake()
}

// Spawn starts fn immediately as a lifecycle task tracked under name. An
// error outcome from a lifecycle task shuts down the whole group. Returns a
// handle that cancels just this task.
func (s *Supervisor) Spawn(name string, fn TaskFunc) *TaskHandle {
	return s.spawn(name, fn, false)
}

// SpawnContained starts fn as a contained task: its outcome is recorded and
// drained by the reaper (or the final join) but never fails the group. Used
// for per-connection bridges, whose failures must not cascade.
func (s *Supervisor) SpawnContained(name string, fn TaskFunc) *TaskHandle {
	return s.spawn(name, fn, true)
}

func (s *Supervisor) spawn(name string, fn TaskFunc, contained bool) *TaskHandle {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	handle := &TaskHandle{name: name, cancel: taskCancel}

	// Once the shared signal has fired no new task may start.
	if s.ctx.Err() != nil {
		logging.Debug(supervisorSubsystem, "Not starting task %q: shutdown already in progress", name)
		return handle
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.active[id] = name
	s.mu.Unlock()

	logging.Debug(supervisorSubsystem, "Task %q started", name)

	go func() {
		outcome := fn(taskCtx)
		taskCancel()
		s.finish(id, name, outcome, contained)
	}()

	return handle
}

func (s *Supervisor) finish(id uint64, name string, outcome Outcome, contained bool) {
	s.mu.Lock()
	delete(s.active, id)
	if contained {
		s.contained = append(s.contained, taskResult{name: name, outcome: outcome})
	} else {
		s.lifecycle = append(s.lifecycle, taskResult{name: name, outcome: outcome})
	}
	s.mu.Unlock()

	logging.Debug(supervisorSubsystem, "Task %q stopped", name)
	s.wake()
}

func (s *Supervisor) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// WatchInterrupts registers a lifecycle task that triggers group shutdown on
// SIGINT/SIGTERM. The watcher itself always succeeds.
func (s *Supervisor) WatchInterrupts() *TaskHandle {
	return s.Spawn("interrupt-watcher", func(ctx context.Context) Outcome {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logging.Info(supervisorSubsystem, "Received %s, shutting down", sig)
			s.Shutdown()
		}
		return Succeeded()
	})
}

// Serve blocks until every task has finished voluntarily, a lifecycle task
// fails, or Shutdown is triggered (e.g. by the interrupt watcher). On failure
// or shutdown it cancels the shared signal and waits up to the drain deadline
// for the remaining tasks; stragglers are abandoned and logged, not awaited
// forever. Returns the first lifecycle error, or nil on clean shutdown.
func (s *Supervisor) Serve() error {
	var firstErr error

	for {
		if err := s.consumeLifecycle(); err != nil && firstErr == nil {
			firstErr = err
		}
		if firstErr != nil {
			logging.Error(supervisorSubsystem, firstErr, "Task failed, shutting down group")
			s.Shutdown()
			break
		}
		if s.ctx.Err() != nil {
			break
		}

		s.mu.Lock()
		activeCount := len(s.active)
		s.mu.Unlock()
		if activeCount == 0 {
			s.DrainContained()
			logging.Info(supervisorSubsystem, "All tasks finished")
			return nil
		}

		select {
		case <-s.notify:
		case <-s.ctx.Done():
		}
	}

	s.awaitDrain()
	s.DrainContained()
	if firstErr == nil {
		logging.Info(supervisorSubsystem, "Graceful shutdown complete")
	}
	return firstErr
}

// awaitDrain waits for the remaining tasks to finish, bounded by the drain
// deadline.
func (s *Supervisor) awaitDrain() {
	deadline := time.NewTimer(s.drain)
	defer deadline.Stop()

	for {
		// Late lifecycle failures are only diagnostics at this point; the
		// group is already shutting down.
		if err := s.consumeLifecycle(); err != nil {
			logging.Warn(supervisorSubsystem, "Task failed during shutdown: %v", err)
		}

		s.mu.Lock()
		remaining := make([]string, 0, len(s.active))
		for _, name := range s.active {
			remaining = append(remaining, name)
		}
		s.mu.Unlock()
		if len(remaining) == 0 {
			return
		}

		select {
		case <-s.notify:
		case <-deadline.C:
			logging.Warn(supervisorSubsystem, "Abandoning %d task(s) after %s drain deadline: %s",
				len(remaining), s.drain, strings.Join(remaining, ", "))
			return
		}
	}
}

func (s *Supervisor) consumeLifecycle() error {
	s.mu.Lock()
	results := s.lifecycle
	s.lifecycle = nil
	s.mu.Unlock()

	var firstErr error
	for _, r := range results {
		if r.outcome.IsError() && firstErr == nil {
			firstErr = fmt.Errorf("task %q: %w", r.name, r.outcome.Err())
		}
	}
	return firstErr
}

// DrainContained consumes completed contained-task outcomes, logging failed
// ones at warning level. It never blocks on running tasks. The reaper calls
// this periodically so a long-lived listener does not accumulate completed
// bridge results without bound.
func (s *Supervisor) DrainContained() {
	s.mu.Lock()
	results := s.contained
	s.contained = nil
	s.mu.Unlock()

	for _, r := range results {
		if r.outcome.IsError() {
			logging.Warn(supervisorSubsystem, "Task %q failed: %v", r.name, r.outcome.Err())
		} else {
			logging.Debug(supervisorSubsystem, "Task %q completed", r.name)
		}
	}
}
