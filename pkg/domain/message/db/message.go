package db

import (
	"context"
	"time"

	"github.com/opst/weft/pkg/domain"
)

// CommandQuery narrows command retrieval. Zero values match any.
type CommandQuery struct {
	Type        domain.CommandType
	Destination domain.AgentRole
	RequestId   string
}

type Interface interface {
	// insert a Command in New status. Returns its id.
	AddCommand(ctx context.Context, command domain.Command) (int64, error)

	// retrieve up to limit unconsumed commands matching the query,
	// oldest first.
	//
	// With locking, matched rows atomically flip New -> Locking tagged
	// with owner, guaranteeing at-most-one consumer per row under
	// concurrent polling; rows already Locking (and not stale) are
	// skipped. Without locking, rows are returned as they are.
	//
	// Locking rows older than stale are treated as abandoned and
	// re-delivered.
	RetrieveCommands(
		ctx context.Context, query CommandQuery, limit int,
		locking bool, owner string, stale time.Duration,
	) ([]domain.Command, error)

	// mark commands after processing. Processed rows are kept for the
	// retention window; Failed/New rows are eligible for re-delivery.
	MarkCommands(ctx context.Context, commandId []int64, status domain.MessageStatus) error

	// insert an Event in New status. Returns its id.
	AddEvent(ctx context.Context, event domain.Event) (int64, error)

	// retrieve one unconsumed event of the type and flip it to Locking
	// for owner: highest priority first, then oldest, skipping rows
	// locked by live consumers. Nil when no event is available.
	GetEventForProcessing(
		ctx context.Context, eventType domain.EventType,
		owner string, stale time.Duration,
	) (*domain.Event, error)

	// finish a Locking event: delete it when ok, or put it back to New
	// for retry by the next poll.
	FinishEvent(ctx context.Context, eventId int64, ok bool) error

	// drop Processed messages older than the retention window.
	// Returns the number of rows dropped.
	CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error)
}
