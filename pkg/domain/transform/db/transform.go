package db

import (
	"context"
	"time"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// Retrieve Transforms by id, with their collections.
	//
	// Returns
	//
	// - map[string]domain.Transform: mapping transformId -> Transform.
	// Missing ids are silently absent from the map.
	//
	// - error
	Get(ctx context.Context, transformId []string) (map[string]domain.Transform, error)

	// find transforms matching the query. Empty dimensions match any.
	Find(ctx context.Context, query domain.TransformFindQuery) ([]string, error)

	// pick the next ungated transform after the cursor in one of the
	// cursor's statuses, lock it, and run task on it. The status task
	// returns is saved together with the lock release.
	//
	// Task runs outside the picking transaction, guarded by the
	// advisory lock columns only, so it may freely write other rows
	// (processings in particular). If task returns an error, the lock
	// is released without a status change and the cursor still
	// advances past the picked transform.
	//
	// Returns
	//
	// - domain.TransformCursor: cursor pointing at the picked transform.
	// As passed when nothing was picked.
	//
	// - bool: true only when a status change was saved.
	//
	// - error
	PickAndSetStatus(
		ctx context.Context, cursorFrom domain.TransformCursor,
		owner string, stale time.Duration,
		task func(domain.Transform) (domain.Status, error),
	) (domain.TransformCursor, bool, error)

	// update transform status.
	//
	// Returns dberrors Missing when the transform is not found.
	SetStatus(ctx context.Context, transformId string, newStatus domain.Status) error

	// record the one active processing of the transform.
	SetCurrentProcessing(ctx context.Context, transformId string, processingId string) error

	// bump the retry counter, returning the new count.
	CountRetry(ctx context.Context, transformId string) (int, error)

	// statuses of all transforms of a request, keyed by internal id.
	// Input for condition predicate evaluation.
	StatusesByInternalId(ctx context.Context, requestId string) (map[string]domain.Status, error)

	// flip live transforms of a request to the given status,
	// skipping terminal ones. Used by cancel and expire flows.
	// Returns ids of transforms actually changed.
	BulkSetStatus(ctx context.Context, requestId string, newStatus domain.Status) ([]string, error)
}
