package recurring

import (
	"context"

	"github.com/opst/weft/pkg/loop"
)

// Task is one polling cycle of an agent, carrying a cursor value T
// between cycles.
//
// The bool result reports whether this cycle did any work, so the
// Policy can tell a hot backlog from a drained one. The error result
// stops the loop under UntilError.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied binds the task to a rescheduling policy, yielding a loop.Task
// runnable with loop.Start.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		cursor, updated, err := rt(ctx, t)
		return cursor, p.Next(updated, err)
	}
}
