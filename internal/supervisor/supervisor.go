// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package supervisor spawns the node's long-running tasks (capture,
// writer, reader), tracks which are live, and coordinates shutdown:
// any task exiting early is treated as fatal and cancels the rest,
// while a deliberate shutdown waits (bounded) for every task to report
// itself inactive before returning.
package supervisor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"stagrdb.node/internal/logging"
	"stagrdb.node/internal/nodeerrors"
)

// ShutdownTimeout bounds how long Run waits, after ctx is cancelled,
// for every spawned task to report itself inactive.
const ShutdownTimeout = 5 * time.Second

// shutdownPollInterval is how often the quiesce wait re-checks task state.
const shutdownPollInterval = 100 * time.Millisecond

// MaxConcurrentTasks caps how many of the supervised tasks may run at
// once: one permit per pipeline stage (capture, writer, reader).
const MaxConcurrentTasks = 3

// Task is a long-running unit of work the supervisor manages. Run
// should block until ctx is cancelled or a fatal condition occurs; any
// return (nil or non-nil error) before ctx is done is treated as an
// unexpected early exit.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// state tracks which named tasks are currently active.
type state struct {
	mu     sync.Mutex
	active map[string]bool
}

func newState(names []string) *state {
	s := &state{active: make(map[string]bool, len(names))}
	for _, n := range names {
		s.active[n] = false
	}
	return s
}

func (s *state) set(name string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[name] = active
}

func (s *state) allInactive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.active {
		if v {
			return false
		}
	}
	return true
}

// Run spawns every task under a shared semaphore and errgroup-derived
// context. If any task returns — for any reason — before the parent
// context is cancelled, or panics at any time, that is treated as an
// unexpected early exit:
// Run cancels the remaining tasks and returns a fatal error. If the
// parent context is cancelled first (a deliberate shutdown), Run waits
// up to ShutdownTimeout for every task to report itself inactive
// before returning.
func Run(ctx context.Context, tasks []Task, logger *logging.Logger) error {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Name
	}
	st := newState(names)

	sem := semaphore.NewWeighted(MaxConcurrentTasks)
	g, gCtx := errgroup.WithContext(ctx)

	for _, t := range tasks {
		t := t
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = nodeerrors.Errorf(nodeerrors.KindTaskExit, "%s task panicked: %v", t.Name, r)
				}
			}()

			if err := sem.Acquire(gCtx, 1); err != nil {
				if ctx.Err() != nil {
					// Shutdown arrived before this task got a slot.
					return nil
				}
				return nodeerrors.Wrapf(err, nodeerrors.KindTaskExit, "%s: acquire run slot", t.Name)
			}
			defer sem.Release(1)

			st.set(t.Name, true)
			defer st.set(t.Name, false)

			if logger != nil {
				logger.Info("task starting", "task", t.Name)
			}
			err = t.Run(gCtx)

			select {
			case <-ctx.Done():
				// Parent was cancelled: a task returning is the
				// expected, graceful path.
				if logger != nil {
					logger.Info("task stopped", "task", t.Name)
				}
				return nil
			default:
			}

			if err == nil {
				err = nodeerrors.Errorf(nodeerrors.KindTaskExit, "%s task unexpectedly terminated", t.Name)
			} else {
				err = nodeerrors.Wrapf(err, nodeerrors.KindTaskExit, "%s task exited", t.Name)
			}
			if logger != nil {
				logger.Error("task exited unexpectedly", "task", t.Name, "error", err.Error())
			}
			return err
		})
	}

	runErr := g.Wait()

	if runErr != nil {
		return runErr
	}

	return waitForShutdown(st, ShutdownTimeout, logger)
}

// waitForShutdown polls st until every task reports inactive or
// timeout elapses.
func waitForShutdown(st *state, timeout time.Duration, logger *logging.Logger) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st.allInactive() {
			if logger != nil {
				logger.Info("all tasks shut down cleanly")
			}
			return nil
		}
		time.Sleep(shutdownPollInterval)
	}
	if logger != nil {
		logger.Error("shutdown quiesce timed out")
	}
	return nodeerrors.New(nodeerrors.KindShutdownTimeout, "tasks did not shut down within timeout")
}
