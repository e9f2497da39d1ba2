// Package conductor applies cross-agent commands, consumes events and
// keeps shared runtime state (throttle counters, leader role) fresh.
package conductor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/weft/pkg/domain"
	kdbcond "github.com/opst/weft/pkg/domain/condition/db"
	domerr "github.com/opst/weft/pkg/domain/errors"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	"github.com/opst/weft/pkg/domain/executor"
	kdbmsg "github.com/opst/weft/pkg/domain/message/db"
	kdbproc "github.com/opst/weft/pkg/domain/processing/db"
	kdbreq "github.com/opst/weft/pkg/domain/request/db"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"

	"github.com/opst/weft/cmd/agent/recurring"
)

// commands consumed per cycle. More is pointless: a cycle ends with a
// fresh poll anyway.
const commandBatch = 10

// initial value for tasks
func Seed() struct{} {
	return struct{}{}
}

type Stores struct {
	Request    kdbreq.Interface
	Transform  kdbtrn.Interface
	Processing kdbproc.Interface
	Condition  kdbcond.Interface
	Message    kdbmsg.Interface
}

// return:
//
// - task : consuming conductor-bound commands, oldest first, locking
// each so concurrent conductors never double-apply.
func Commands(
	logger *log.Logger,
	owner string,
	staleLock time.Duration,
	registry *executor.Registry,
	stores Stores,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		commands, err := stores.Message.RetrieveCommands(
			ctx,
			kdbmsg.CommandQuery{Destination: domain.Conductor},
			commandBatch, true, owner, staleLock,
		)
		if err != nil {
			return value, false, err
		}
		if len(commands) == 0 {
			return value, false, nil
		}

		processed := []int64{}
		failed := []int64{}
		for _, command := range commands {
			if err := apply(ctx, logger, registry, stores, command); err != nil {
				logger.Printf(
					"command failed: id = %d, type = %s: %s",
					command.Id, command.Type, err,
				)
				failed = append(failed, command.Id)
				continue
			}
			logger.Printf(
				"command applied: id = %d, type = %s, request = %s",
				command.Id, command.Type, command.RequestId,
			)
			processed = append(processed, command.Id)
		}

		if len(processed) != 0 {
			if err := stores.Message.MarkCommands(ctx, processed, domain.ProcessedMessage); err != nil {
				return value, false, err
			}
		}
		if len(failed) != 0 {
			if err := stores.Message.MarkCommands(ctx, failed, domain.FailedMessage); err != nil {
				return value, false, err
			}
		}
		return value, true, nil
	}
}

func apply(
	ctx context.Context,
	logger *log.Logger,
	registry *executor.Registry,
	stores Stores,
	command domain.Command,
) error {
	switch command.Type {
	case domain.AbortRequest:
		return abortRequest(ctx, logger, registry, stores, command.RequestId)

	case domain.AbortTransform:
		var payload struct {
			TransformId string `json:"transform_id"`
		}
		if err := json.Unmarshal(command.Payload, &payload); err != nil {
			return err
		}
		return abortTransform(ctx, logger, registry, stores, payload.TransformId)

	case domain.ExtendLifetime:
		var payload struct {
			Until time.Time `json:"until"`
		}
		if err := json.Unmarshal(command.Payload, &payload); err != nil {
			return err
		}
		return stores.Request.ExtendLifetime(ctx, command.RequestId, payload.Until)

	case domain.Reevaluate:
		body, err := json.Marshal(map[string]string{"request_id": command.RequestId})
		if err != nil {
			return err
		}
		_, err = stores.Message.AddEvent(ctx, domain.Event{
			Type: domain.AddWork, Priority: 1, Payload: body,
		})
		return err

	default:
		return fmt.Errorf("'%s' is not an applicable command type", command.Type)
	}
}

// abortRequest walks a request down: mark it and its live children
// Cancelling, withdraw running workloads from executors, then settle
// everything to its terminal status.
func abortRequest(
	ctx context.Context,
	logger *log.Logger,
	registry *executor.Registry,
	stores Stores,
	requestId string,
) error {
	if err := stores.Request.SetStatus(ctx, requestId, domain.Cancelling); err != nil {
		return err
	}
	if _, err := stores.Transform.BulkSetStatus(ctx, requestId, domain.Cancelling); err != nil {
		return err
	}
	if err := stores.Condition.BulkSetStatus(ctx, requestId, domain.ConditionSuspended); err != nil {
		return err
	}

	processingIds, err := stores.Processing.Find(ctx, domain.ProcessingFindQuery{
		RequestId: []string{requestId},
		Status:    []domain.Status{domain.Submitted, domain.Running},
	})
	if err != nil {
		return err
	}
	processings, err := stores.Processing.Get(ctx, processingIds)
	if err != nil {
		return err
	}
	for _, p := range processings {
		if err := withdraw(ctx, logger, registry, stores, p); err != nil {
			return err
		}
	}

	// live transforms are Cancelling now; flip them terminal and let
	// the roll-up settle the request.
	if _, err := stores.Transform.BulkSetStatus(ctx, requestId, domain.Cancelled); err != nil {
		return err
	}
	status, err := stores.Request.RollUp(ctx, requestId)
	if err != nil {
		return err
	}
	logger.Printf("aborted: request = %s, status = %s", requestId, status)
	return nil
}

func abortTransform(
	ctx context.Context,
	logger *log.Logger,
	registry *executor.Registry,
	stores Stores,
	transformId string,
) error {
	transforms, err := stores.Transform.Get(ctx, []string{transformId})
	if err != nil {
		return err
	}
	transform, ok := transforms[transformId]
	if !ok {
		return kpgerr.Missing{Table: "transform", Identity: transformId}
	}
	if transform.Status.Terminal() {
		return nil
	}

	if transform.CurrentProcessingId != "" {
		processings, err := stores.Processing.Get(
			ctx, []string{transform.CurrentProcessingId},
		)
		if err != nil {
			return err
		}
		if p, ok := processings[transform.CurrentProcessingId]; ok && !p.Status.Terminal() {
			if err := withdraw(ctx, logger, registry, stores, p); err != nil {
				return err
			}
		}
	}

	if err := stores.Transform.SetStatus(ctx, transformId, domain.Cancelled); err != nil {
		return err
	}
	_, err = stores.Request.RollUp(ctx, transform.RequestId)
	return err
}

// withdraw cancels one workload at its executor and marks the
// processing Cancelled. An executor this deployment no longer knows
// leaves the processing Broken instead.
func withdraw(
	ctx context.Context,
	logger *log.Logger,
	registry *executor.Registry,
	stores Stores,
	p domain.Processing,
) error {
	exec, err := registry.Get(p.Executor)
	if err != nil {
		logger.Printf("processing %s is uncancellable: %s", p.Id, err)
		return stores.Processing.SetStatus(ctx, p.Id, domain.Broken)
	}
	if err := exec.Cancel(ctx, p); err != nil {
		return err
	}
	return stores.Processing.SetStatus(ctx, p.Id, domain.Cancelled)
}

// event types in consumption order. Structural work first.
var eventOrder = []domain.EventType{
	domain.AddWork, domain.ContentUpdated, domain.PollProcessing,
}

type CatalogStore interface {
	ResolveDependencies(ctx context.Context, requestId string) (int, error)
	GetUpdatedTransformsByContentStatus(ctx context.Context, status domain.Status) ([]string, error)
}

// return:
//
// - task : consuming one event per cycle, preferring structural event
// types and, within a type, priority before age.
func Events(
	logger *log.Logger,
	owner string,
	staleLock time.Duration,
	stores Stores,
	dbCatalog CatalogStore,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		for _, eventType := range eventOrder {
			event, err := stores.Message.GetEventForProcessing(ctx, eventType, owner, staleLock)
			if err != nil {
				return value, false, err
			}
			if event == nil {
				continue
			}

			handleErr := handleEvent(ctx, logger, stores, dbCatalog, *event)
			if handleErr != nil {
				logger.Printf(
					"event failed: id = %d, type = %s: %s",
					event.Id, event.Type, handleErr,
				)
			}
			if err := stores.Message.FinishEvent(ctx, event.Id, handleErr == nil); err != nil {
				return value, false, err
			}
			return value, true, handleErr
		}
		return value, false, nil
	}
}

func handleEvent(
	ctx context.Context,
	logger *log.Logger,
	stores Stores,
	dbCatalog CatalogStore,
	event domain.Event,
) error {
	var payload struct {
		RequestId    string `json:"request_id"`
		ProcessingId string `json:"processing_id"`
	}
	if len(event.Payload) != 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
	}

	switch event.Type {
	case domain.AddWork:
		if payload.RequestId == "" {
			return nil
		}
		_, err := stores.Request.RollUp(ctx, payload.RequestId)
		if errors.Is(err, domerr.ErrMissing) {
			// the request is gone; stale work announcements are fine.
			return nil
		}
		return err

	case domain.ContentUpdated:
		if payload.RequestId == "" {
			return nil
		}
		resolved, err := dbCatalog.ResolveDependencies(ctx, payload.RequestId)
		if err != nil {
			return err
		}
		ready, err := dbCatalog.GetUpdatedTransformsByContentStatus(ctx, domain.Available)
		if err != nil {
			return err
		}
		logger.Printf(
			"contents settled: request = %s, resolved = %d, unblocked transforms = %d",
			payload.RequestId, resolved, len(ready),
		)
		_, err = stores.Request.RollUp(ctx, payload.RequestId)
		return err

	case domain.PollProcessing:
		if payload.ProcessingId == "" {
			return nil
		}
		// bump the row so the carrier re-picks it promptly.
		processings, err := stores.Processing.Get(ctx, []string{payload.ProcessingId})
		if err != nil {
			return err
		}
		p, ok := processings[payload.ProcessingId]
		if !ok || p.Status.Terminal() {
			return nil
		}
		return stores.Processing.SetStatus(ctx, p.Id, p.Status)

	default:
		return fmt.Errorf("'%s' is not a consumable event type", event.Type)
	}
}
