// Package archiver retires what the other agents are done with:
// requests past their lifetime, stuck roll-ups, consumed messages and
// terminal requests past the retention window.
package archiver

import (
	"context"
	"log"
	"time"

	"github.com/opst/weft/pkg/domain"
	kdbcond "github.com/opst/weft/pkg/domain/condition/db"
	kdbmsg "github.com/opst/weft/pkg/domain/message/db"
	kdbreq "github.com/opst/weft/pkg/domain/request/db"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"
	"github.com/opst/weft/pkg/utils/pointer"

	"github.com/opst/weft/cmd/agent/recurring"
)

// initial value for tasks
func Seed() struct{} {
	return struct{}{}
}

// return:
//
// - task : expiring requests whose lifetime elapsed before a terminal
// status. Live transforms flip to Expired, waiting conditions are
// suspended, then the request itself expires.
func Expire(
	logger *log.Logger,
	dbRequest kdbreq.Interface,
	dbTransform kdbtrn.Interface,
	dbCondition kdbcond.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		requestIds, err := dbRequest.FindExpired(ctx, time.Now())
		if err != nil {
			return value, false, err
		}

		expired := false
		for _, requestId := range requestIds {
			if _, err := dbTransform.BulkSetStatus(ctx, requestId, domain.Expired); err != nil {
				return value, expired, err
			}
			if err := dbCondition.BulkSetStatus(ctx, requestId, domain.ConditionSuspended); err != nil {
				return value, expired, err
			}
			if err := dbRequest.SetStatus(ctx, requestId, domain.Expired); err != nil {
				return value, expired, err
			}
			logger.Printf("expired: request = %s", requestId)
			expired = true
		}
		return value, expired, nil
	}
}

// return:
//
// - task : re-rolling requests still counted as Transforming. Settles
// requests whose last transform finished between two carrier polls,
// or whose roll-up write was lost to a crash.
func Finalize(
	logger *log.Logger,
	dbRequest kdbreq.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		requestIds, err := dbRequest.Find(ctx, domain.RequestFindQuery{
			Status: []domain.Status{domain.Transforming},
		})
		if err != nil {
			return value, false, err
		}

		settled := false
		for _, requestId := range requestIds {
			status, err := dbRequest.RollUp(ctx, requestId)
			if err != nil {
				return value, settled, err
			}
			if status.Terminal() {
				logger.Printf("settled: request = %s, status = %s", requestId, status)
				settled = true
			}
		}
		return value, settled, nil
	}
}

// return:
//
// - task : dropping processed mailbox rows older than retention and
// deleting terminal requests untouched for the same window, children
// included.
func Cleanup(
	logger *log.Logger,
	retention time.Duration,
	dbRequest kdbreq.Interface,
	dbMessage kdbmsg.Interface,
) recurring.Task[struct{}] {
	terminal := []domain.Status{
		domain.Finished, domain.SubFinished, domain.Failed,
		domain.Cancelled, domain.Expired, domain.Broken,
	}

	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		dropped, err := dbMessage.CleanupProcessed(ctx, retention)
		if err != nil {
			return value, false, err
		}
		if dropped != 0 {
			logger.Printf("messages dropped: %d", dropped)
		}

		requestIds, err := dbRequest.Find(ctx, domain.RequestFindQuery{
			Status:       terminal,
			UpdatedUntil: pointer.Ref(time.Now().Add(-retention)),
		})
		if err != nil {
			return value, dropped != 0, err
		}

		deleted := false
		for _, requestId := range requestIds {
			if err := dbRequest.Delete(ctx, requestId); err != nil {
				return value, deleted || dropped != 0, err
			}
			logger.Printf("deleted: request = %s", requestId)
			deleted = true
		}
		return value, deleted || dropped != 0, nil
	}
}
