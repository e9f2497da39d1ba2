package db

import (
	"context"
	"time"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// create a new Processing in Submitted status and record it as the
	// current processing of its transform, in one transaction.
	//
	// Args
	//
	// - domain.Processing: Id must be set by the caller.
	//
	// Returns
	//
	// - error: dberrors Missing when the transform does not exist.
	New(ctx context.Context, processing domain.Processing) error

	// Retrieve Processings by id.
	Get(ctx context.Context, processingId []string) (map[string]domain.Processing, error)

	// find processings matching the query. Empty dimensions match any.
	Find(ctx context.Context, query domain.ProcessingFindQuery) ([]string, error)

	// pick the next processing in one of the given statuses, lock it,
	// and run task on it. Task returns the next status and updated
	// executor metadata, both saved together with the lock release.
	//
	// Task runs outside the picking transaction, guarded by the
	// advisory lock columns only, so it may freely write transform
	// and catalog rows. If task returns an error, the lock is
	// released without a change.
	//
	// Returns
	//
	// - string: id of the picked processing. Empty when nothing picked.
	//
	// - bool: true only when a change was saved.
	//
	// - error
	PickAndSetStatus(
		ctx context.Context, statuses []domain.Status,
		owner string, stale time.Duration,
		task func(domain.Processing) (domain.Status, domain.ProcessingMetadata, error),
	) (string, bool, error)

	// update processing status.
	//
	// Returns dberrors Missing when the processing is not found.
	SetStatus(ctx context.Context, processingId string, newStatus domain.Status) error

	// overwrite the executor metadata blob.
	SetMetadata(ctx context.Context, processingId string, metadata domain.ProcessingMetadata) error
}
