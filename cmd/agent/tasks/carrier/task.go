// Package carrier follows up submitted processings: it polls the
// executor behind each one and carries the outcome back into the store.
package carrier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/opst/weft/pkg/domain"
	kdbcat "github.com/opst/weft/pkg/domain/catalog/db"
	"github.com/opst/weft/pkg/domain/executor"
	kdbmsg "github.com/opst/weft/pkg/domain/message/db"
	kdbproc "github.com/opst/weft/pkg/domain/processing/db"
	kdbreq "github.com/opst/weft/pkg/domain/request/db"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"

	"github.com/opst/weft/cmd/agent/recurring"
)

// initial value for task
func Seed() struct{} {
	return struct{}{}
}

// return:
//
// - task : polling one live processing per cycle and writing the
// executor's verdict through: transform status, output contents,
// collection counters, request roll-up.
func Task(
	logger *log.Logger,
	owner string,
	staleLock time.Duration,
	registry *executor.Registry,
	dbProcessing kdbproc.Interface,
	dbTransform kdbtrn.Interface,
	dbRequest kdbreq.Interface,
	dbCatalog kdbcat.Interface,
	dbMessage kdbmsg.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		processingId, polled, err := dbProcessing.PickAndSetStatus(
			ctx,
			[]domain.Status{domain.Submitted, domain.Running},
			owner, staleLock,
			func(p domain.Processing) (domain.Status, domain.ProcessingMetadata, error) {
				exec, err := registry.Get(p.Executor)
				if err != nil {
					// the processing was submitted through a backend
					// this deployment no longer knows. Unresolvable.
					logger.Printf("processing %s is unpollable: %s", p.Id, err)
					return domain.Broken, p.Metadata, nil
				}

				report, err := exec.Poll(ctx, p)
				if err != nil {
					logger.Printf("poll failed: processing = %s: %s", p.Id, err)
					return p.Status, p.Metadata, err
				}

				metadata := p.Metadata
				if report.Raw != nil {
					metadata.LastReport = report.Raw
				}

				if report.Status == p.Status {
					return p.Status, metadata, nil
				}

				newStatus, err := settle(ctx, logger, settleStores{
					transform: dbTransform,
					request:   dbRequest,
					catalog:   dbCatalog,
					message:   dbMessage,
				}, p, report)
				if err != nil {
					return p.Status, metadata, err
				}
				return newStatus, metadata, nil
			},
		)
		if err != nil {
			logger.Printf("carry cycle failed: processing = %s: %s", processingId, err)
			return value, false, err
		}
		return value, polled, nil
	}
}

type settleStores struct {
	transform kdbtrn.Interface
	request   kdbreq.Interface
	catalog   kdbcat.Interface
	message   kdbmsg.Interface
}

// settle writes a status change reported by the executor through to
// the transform and the request, and returns the processing's next
// status.
//
// A transform already in a terminal status absorbs nothing: late
// executor completions against cancelled or expired work are no-ops
// beyond the processing row itself.
func settle(
	ctx context.Context,
	logger *log.Logger,
	stores settleStores,
	p domain.Processing,
	report executor.Report,
) (domain.Status, error) {
	transforms, err := stores.transform.Get(ctx, []string{p.TransformId})
	if err != nil {
		return p.Status, err
	}
	transform, ok := transforms[p.TransformId]
	if !ok {
		logger.Printf(
			"processing %s has no transform %s; marking broken", p.Id, p.TransformId,
		)
		return domain.Broken, nil
	}

	switch report.Status {
	case domain.Finished:
		if err := harvest(ctx, logger, stores, transform, report); err != nil {
			return p.Status, err
		}
		if !transform.Status.Terminal() {
			if err := stores.transform.SetStatus(ctx, transform.Id, domain.Finished); err != nil {
				return p.Status, err
			}
			if _, err := stores.request.RollUp(ctx, p.RequestId); err != nil {
				return p.Status, err
			}
		}
		logger.Printf(
			"finished: processing = %s, transform = %s", p.Id, transform.Id,
		)
		return domain.Finished, nil

	case domain.Failed, domain.Lost:
		return retryOrFail(ctx, logger, stores, transform, p, report)

	case domain.Running, domain.Submitted:
		return report.Status, nil

	default:
		logger.Printf(
			"unexpected executor report: processing = %s, status = %s",
			p.Id, report.Status,
		)
		return report.Status, nil
	}
}

// harvest registers reported output contents, refreshes the counters
// of the transform's produced collections, and announces the update.
func harvest(
	ctx context.Context,
	logger *log.Logger,
	stores settleStores,
	transform domain.Transform,
	report executor.Report,
) error {
	if len(report.Contents) > 0 {
		inserted, updated, err := stores.catalog.RegisterOutputContents(ctx, report.Contents)
		if err != nil {
			return err
		}
		logger.Printf(
			"contents registered: transform = %s, inserted = %d, updated = %d",
			transform.Id, inserted, updated,
		)
	}

	announced := false
	for _, coll := range transform.Collections {
		if coll.Relation != domain.OutputCollection && coll.Relation != domain.LogCollection {
			continue
		}
		if _, err := stores.catalog.RefreshCollectionCounters(ctx, coll.Id); err != nil {
			return err
		}
		announced = true
	}
	if !announced {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"request_id":   transform.RequestId,
		"transform_id": transform.Id,
	})
	if err != nil {
		return err
	}
	_, err = stores.message.AddEvent(ctx, domain.Event{
		Type:    domain.ContentUpdated,
		Payload: payload,
	})
	return err
}

// retryOrFail spends one unit of the transform's retry budget on a
// failed or lost attempt. Within budget the transform goes back to New
// for resubmission; out of budget it fails for good and the request
// rolls up.
func retryOrFail(
	ctx context.Context,
	logger *log.Logger,
	stores settleStores,
	transform domain.Transform,
	p domain.Processing,
	report executor.Report,
) (domain.Status, error) {
	logger.Printf(
		"attempt %s: processing = %s, transform = %s: %s",
		report.Status, p.Id, transform.Id, report.Message,
	)

	if transform.Status.Terminal() {
		return report.Status, nil
	}

	retries, err := stores.transform.CountRetry(ctx, transform.Id)
	if err != nil {
		return p.Status, err
	}
	if transform.MaxRetries == 0 || retries < transform.MaxRetries {
		if err := stores.transform.SetStatus(ctx, transform.Id, domain.New); err != nil {
			return p.Status, err
		}
		return report.Status, nil
	}

	if err := stores.transform.SetStatus(ctx, transform.Id, domain.Failed); err != nil {
		return p.Status, err
	}
	if _, err := stores.request.RollUp(ctx, p.RequestId); err != nil {
		return p.Status, err
	}
	logger.Printf(
		"retries exhausted: transform = %s, retries = %d", transform.Id, retries,
	)
	return report.Status, nil
}
