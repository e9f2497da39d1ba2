package db

import (
	"context"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// conditions of a request in the given statuses, in creation order.
	// Empty statuses match any.
	ListByRequest(ctx context.Context, requestId string, status ...domain.ConditionStatus) ([]domain.Condition, error)

	// Fire marks the condition Triggered and activates its followers,
	// all in one transaction:
	//
	// - the condition flips WaitForTrigger -> Triggered, storing result.
	// Already-Triggered conditions make Fire a no-op (fired=false).
	//
	// - follower transforms of this generation are ungated.
	//
	// - for loop conditions, a clone of the condition with LoopIndex+1
	// (ClonedFrom = this id, status WaitForTrigger) and the given clone
	// transforms are inserted. Uniqueness of (request, internal id,
	// loop index) makes concurrent Fire calls collapse into one: the
	// losing caller observes fired=false.
	//
	// Args
	//
	// - result: statuses observed at trigger time, keyed by internal id.
	//
	// - clones: next-generation follower transforms, pre-built by the
	// caller with LoopInternalId naming and fresh ids. Ignored for
	// non-loop conditions.
	//
	// Returns
	//
	// - []string: ids of transforms ungated or created by this call.
	//
	// - bool: fired. False when another caller already fired it.
	//
	// - error
	Fire(
		ctx context.Context, conditionId int64,
		result map[string]domain.Status, clones []domain.Transform,
	) ([]string, bool, error)

	// flip all waiting conditions of a request to the given status.
	// Used by cancel and expire flows.
	BulkSetStatus(ctx context.Context, requestId string, newStatus domain.ConditionStatus) error
}
