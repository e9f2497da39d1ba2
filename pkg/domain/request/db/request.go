package db

import (
	"context"
	"time"

	"github.com/opst/weft/pkg/domain"
)

// Expansion is everything the clerk derives from a request's workflow.
// All ids are pre-generated by the caller; the store writes it in one
// transaction together with the request's status change.
type Expansion struct {
	// transforms with Spec populated; Collections field is ignored
	// (collections are carried separately below).
	Transforms  []domain.Transform
	Collections []domain.Collection
	Conditions  []domain.Condition
}

type Interface interface {
	// create a new Request in New status.
	//
	// Args
	//
	// - context.Context
	//
	// - domain.Request: request to be stored. Id must be set by the caller.
	//
	// Returns
	//
	// - error: dberrors Duplicate when (scope, workload) is taken.
	New(ctx context.Context, req domain.Request) error

	// Retrieve Requests by id.
	//
	// Returns
	//
	// - map[string]domain.Request: mapping requestId -> Request.
	// Missing ids are silently absent from the map.
	//
	// - error
	Get(ctx context.Context, requestId []string) (map[string]domain.Request, error)

	// Retrieve one Request by its client-side identity.
	//
	// Returns dberrors Missing when not found.
	GetByWorkload(ctx context.Context, scope string, workload string) (domain.Request, error)

	// find requests matching the query. Empty dimensions match any.
	Find(ctx context.Context, query domain.RequestFindQuery) ([]string, error)

	// pick one New request, lock it, and let expand build its DAG.
	//
	// The picked request, the expansion and the status change to
	// Transforming are committed in one transaction. Locks older than
	// stale are treated as abandoned and re-acquirable.
	//
	// Args
	//
	// - owner: lock owner tag of the calling agent instance.
	//
	// - stale: age after which an existing lock is reclaimable.
	//
	// - expand: computes the DAG for the picked request.
	// Returning an error rolls everything back and releases the lock.
	//
	// Returns
	//
	// - string: id of the expanded request. Empty when nothing was picked.
	//
	// - bool: true when a request was picked and expanded.
	//
	// - error
	PickAndExpand(
		ctx context.Context, owner string, stale time.Duration,
		expand func(domain.Request) (Expansion, error),
	) (string, bool, error)

	// update request status.
	//
	// Returns dberrors Missing when the request is not found.
	SetStatus(ctx context.Context, requestId string, newStatus domain.Status) error

	// push the request's expiry out to the given instant.
	ExtendLifetime(ctx context.Context, requestId string, until time.Time) error

	// recompute the request's aggregate counters and effective status
	// from its transforms' statuses (the roll-up lattice).
	//
	// Returns the rolled-up status.
	RollUp(ctx context.Context, requestId string) (domain.Status, error)

	// list ids of requests whose lifetime elapsed before a terminal
	// status, candidates for expiration by the archiver.
	FindExpired(ctx context.Context, now time.Time) ([]string, error)

	// delete a terminal request and everything it owns.
	//
	// Returns dberrors Missing when the request is not found.
	Delete(ctx context.Context, requestId string) error
}
