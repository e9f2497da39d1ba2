// Package transformer turns runnable transforms into submitted
// processings, and fires conditions whose predicates came true.
package transformer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/weft/cmd/agent/recurring"
	"github.com/opst/weft/pkg/domain"
	kdbcond "github.com/opst/weft/pkg/domain/condition/db"
	"github.com/opst/weft/pkg/domain/executor"
	kdbproc "github.com/opst/weft/pkg/domain/processing/db"
	kdbreq "github.com/opst/weft/pkg/domain/request/db"
	kdbthr "github.com/opst/weft/pkg/domain/throttle/db"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"
)

// initial value for the submission task
func Seed(debounce time.Duration) domain.TransformCursor {
	return domain.TransformCursor{
		Debounce: debounce,
		Status:   []domain.Status{domain.New},
	}
}

// return:
//
// - task : submitting one runnable transform per cycle through its
// executor, creating the processing which tracks the attempt.
//
// A transform whose site is at capacity stays New and is revisited
// after the debounce. Submit failures consume the retry budget; a
// transform out of retries goes Failed.
func Task(
	logger *log.Logger,
	owner string,
	staleLock time.Duration,
	defaultExecutor string,
	registry *executor.Registry,
	dbTransform kdbtrn.Interface,
	dbProcessing kdbproc.Interface,
	dbThrottle kdbthr.Interface,
) recurring.Task[domain.TransformCursor] {
	return func(ctx context.Context, cursor domain.TransformCursor) (domain.TransformCursor, bool, error) {
		cursor, submitted, err := dbTransform.PickAndSetStatus(
			ctx, cursor, owner, staleLock,
			func(t domain.Transform) (domain.Status, error) {
				throttle, err := dbThrottle.Get(ctx, t.Site)
				if err != nil {
					return t.Status, err
				}
				// submission consumes capacity of every kind at once:
				// the processing it creates, the transform going live,
				// the request it belongs to, and the content it will
				// queue. Any exhausted limit defers the submission.
				for _, kind := range []domain.ThrottleKind{
					domain.ThrottleRequests, domain.ThrottleTransforms,
					domain.ThrottleProcessings, domain.ThrottleContents,
				} {
					if !throttle.Admits(kind) {
						logger.Printf(
							"site at capacity: transform = %s, site = %s, limit = %s",
							t.Id, t.Site, kind,
						)
						return t.Status, nil
					}
				}

				name := t.Spec.Executor
				if name == "" {
					name = defaultExecutor
				}
				exec, err := registry.Get(name)
				if err != nil {
					// no amount of retrying finds an executor which
					// is not registered.
					logger.Printf("transform %s is not submittable: %s", t.Id, err)
					return domain.Failed, nil
				}

				processing := domain.Processing{
					Id:              uuid.NewString(),
					TransformId:     t.Id,
					RequestId:       t.RequestId,
					Status:          domain.Submitted,
					Granularity:     t.Spec.Granularity,
					GranularityType: t.Spec.GranularityType,
					Executor:        exec.Name(),
				}

				handle, err := exec.Submit(ctx, t, processing)
				if err != nil {
					return submitFailed(ctx, logger, dbTransform, dbProcessing, t, processing, err)
				}
				processing.Handle = handle

				if err := dbProcessing.New(ctx, processing); err != nil {
					logger.Printf(
						"orphaned submission: transform = %s, handle = %s: %s",
						t.Id, handle, err,
					)
					return t.Status, err
				}

				logger.Printf(
					"submitted: transform = %s, processing = %s, executor = %s",
					t.Id, processing.Id, exec.Name(),
				)
				return domain.Submitted, nil
			},
		)
		if err != nil {
			logger.Printf("submission cycle failed: %s", err)
			return cursor, false, err
		}
		return cursor, submitted, nil
	}
}

// submitFailed records the failed attempt and decides between another
// try and giving up.
//
// The failed attempt is stored as a Failed processing carrying the
// error, so operators can read why submissions are not landing.
func submitFailed(
	ctx context.Context,
	logger *log.Logger,
	dbTransform kdbtrn.Interface,
	dbProcessing kdbproc.Interface,
	t domain.Transform,
	processing domain.Processing,
	submitErr error,
) (domain.Status, error) {
	logger.Printf("submit failed: transform = %s: %s", t.Id, submitErr)

	processing.Status = domain.Failed
	processing.Metadata.SubmitErrors = append(
		processing.Metadata.SubmitErrors, submitErr.Error(),
	)
	if err := dbProcessing.New(ctx, processing); err != nil {
		return t.Status, err
	}

	retries, err := dbTransform.CountRetry(ctx, t.Id)
	if err != nil {
		return t.Status, err
	}
	if t.MaxRetries != 0 && t.MaxRetries <= retries {
		logger.Printf(
			"retries exhausted: transform = %s, retries = %d", t.Id, retries,
		)
		return domain.Failed, nil
	}
	return domain.New, nil
}

// return:
//
// - task : evaluating waiting conditions of transforming requests and
// firing those whose predicate holds. One cycle sweeps every request.
func Trigger(
	logger *log.Logger,
	dbRequest kdbreq.Interface,
	dbTransform kdbtrn.Interface,
	dbCondition kdbcond.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		requestIds, err := dbRequest.Find(ctx, domain.RequestFindQuery{
			Status: []domain.Status{domain.Transforming},
		})
		if err != nil {
			return value, false, err
		}

		anyFired := false
		for _, requestId := range requestIds {
			fired, err := evaluateRequest(ctx, logger, dbTransform, dbCondition, requestId)
			if err != nil {
				logger.Printf("condition sweep failed: request = %s: %s", requestId, err)
				return value, anyFired, err
			}
			anyFired = anyFired || fired
		}
		return value, anyFired, nil
	}
}

func evaluateRequest(
	ctx context.Context,
	logger *log.Logger,
	dbTransform kdbtrn.Interface,
	dbCondition kdbcond.Interface,
	requestId string,
) (bool, error) {
	conditions, err := dbCondition.ListByRequest(ctx, requestId, domain.WaitForTrigger)
	if err != nil {
		return false, err
	}
	if len(conditions) == 0 {
		return false, nil
	}

	statuses, err := dbTransform.StatusesByInternalId(ctx, requestId)
	if err != nil {
		return false, err
	}

	anyFired := false
	for _, c := range conditions {
		view := generationStatuses(c, statuses)
		ok, err := c.Predicate.Evaluate(view)
		if err != nil {
			// a broken predicate never comes true. Leave the condition
			// waiting for an operator.
			logger.Printf(
				"broken predicate: request = %s, condition = %d: %s",
				requestId, c.Id, err,
			)
			continue
		}
		if !ok {
			continue
		}

		result := map[string]domain.Status{}
		for name, s := range view {
			result[domain.LoopInternalId(name, generationOf(c, name, statuses))] = s
		}

		clones, complete, err := cloneGeneration(ctx, dbTransform, c, requestId)
		if err != nil {
			return anyFired, err
		}
		if !complete {
			// the current generation is not fully stored yet; firing
			// now would clone from nothing. Revisit next cycle.
			continue
		}

		touched, fired, err := dbCondition.Fire(ctx, c.Id, result, clones)
		if err != nil {
			return anyFired, err
		}
		if fired {
			logger.Printf(
				"condition fired: request = %s, condition = %d, transforms = %d",
				requestId, c.Id, len(touched),
			)
			anyFired = true
		}
	}
	return anyFired, nil
}

// generationStatuses projects live statuses onto the template internal
// ids the predicate names.
//
// A clone condition's predicate still reads generation-0 names; each
// name resolves against the condition's own loop generation first, so
// iteration N waits on iteration N's transforms. Names outside the
// loop body have no generation suffix and resolve as written.
func generationStatuses(c domain.Condition, statuses map[string]domain.Status) map[string]domain.Status {
	if c.LoopIndex == 0 {
		return statuses
	}
	view := map[string]domain.Status{}
	for _, name := range c.Predicate.Previous() {
		if s, ok := statuses[domain.LoopInternalId(name, c.LoopIndex)]; ok {
			view[name] = s
		} else if s, ok := statuses[name]; ok {
			view[name] = s
		}
	}
	return view
}

// generationOf resolves the loop index the predicate name was actually
// read at, for recording trigger-time statuses under their true ids.
func generationOf(c domain.Condition, name string, statuses map[string]domain.Status) int {
	if c.LoopIndex == 0 {
		return 0
	}
	if _, ok := statuses[domain.LoopInternalId(name, c.LoopIndex)]; ok {
		return c.LoopIndex
	}
	return 0
}

// cloneGeneration pre-builds the next generation of follower
// transforms of a loop condition. Ids are generated here so Fire can
// write everything in one transaction.
//
// Nil clones (still complete) for conditions which do not reincarnate.
// Not complete when a follower of the current generation is missing.
func cloneGeneration(
	ctx context.Context,
	dbTransform kdbtrn.Interface,
	c domain.Condition,
	requestId string,
) ([]domain.Transform, bool, error) {
	if !c.IsLoop || (c.MaxLoops != 0 && c.MaxLoops <= c.LoopIndex+1) {
		return nil, true, nil
	}

	transformIds, err := dbTransform.Find(ctx, domain.TransformFindQuery{
		RequestId: []string{requestId},
	})
	if err != nil {
		return nil, false, err
	}
	transforms, err := dbTransform.Get(ctx, transformIds)
	if err != nil {
		return nil, false, err
	}
	byInternalId := map[string]domain.Transform{}
	for _, t := range transforms {
		byInternalId[t.InternalId] = t
	}

	clones := make([]domain.Transform, 0, len(c.FollowingTransforms))
	for _, follower := range c.FollowingTransforms {
		src, ok := byInternalId[domain.LoopInternalId(follower, c.LoopIndex)]
		if !ok {
			return nil, false, nil
		}
		clones = append(clones, domain.Transform{
			TransformBody: domain.TransformBody{
				Id:               uuid.NewString(),
				RequestId:        requestId,
				InternalId:       domain.LoopInternalId(follower, c.LoopIndex+1),
				ParentInternalId: src.ParentInternalId,
				LoopIndex:        c.LoopIndex + 1,
				ClonedFrom:       src.Id,
				Site:             src.Site,
				Status:           domain.New,

				// the firing which stores this clone is also its
				// activation; it is runnable once the tx commits.
				Gated:      false,
				MaxRetries: src.MaxRetries,
			},
			Spec: src.Spec,
		})
	}
	return clones, true, nil
}
