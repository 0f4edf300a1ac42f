// Package tasks is the structured-concurrency substrate of the pipeline: one
// Scope per build invocation, explicit typed Task handles instead of ambient
// futures. A failing child cancels every sibling in the same scope.
package tasks

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Scope owns a group of concurrent tasks sharing one cancellation domain.
type Scope struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewScope creates a scope rooted at ctx.
func NewScope(ctx context.Context) *Scope {
	group, groupCtx := errgroup.WithContext(ctx)
	return &Scope{group: group, ctx: groupCtx}
}

// Context returns the scope's cancellation context.
func (s *Scope) Context() context.Context { return s.ctx }

// Go runs fn as a child of the scope; its error fails the whole scope.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		if err := fn(s.ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Wait blocks until every child finished and returns the first failure.
func (s *Scope) Wait() error {
	return s.group.Wait()
}

// Task is the handle of one forked computation. A Task is handed as a typed
// dependency to downstream constructors; Wait memoizes the result.
type Task[T any] struct {
	name string
	done chan struct{}
	val  T
	err  error
}

// Fork schedules fn on the scope and returns its handle. The task's failure
// also fails the scope.
func Fork[T any](s *Scope, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{name: name, done: make(chan struct{})}
	s.group.Go(func() error {
		t.val, t.err = fn(s.ctx)
		close(t.done)
		if t.err != nil {
			return fmt.Errorf("%s: %w", name, t.err)
		}
		return nil
	})
	return t
}

// Done creates an already-completed task carrying val, for callers that need
// a dependency handle without scheduling work.
func Done[T any](name string, val T) *Task[T] {
	t := &Task[T]{name: name, done: make(chan struct{}), val: val}
	close(t.done)
	return t
}

// Wait suspends until the task completed or ctx is cancelled.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waiting for %s: %w", t.name, ctx.Err())
	}
}
