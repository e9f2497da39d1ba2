package transformer_test

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/opst/weft/cmd/agent/tasks/transformer"
	"github.com/opst/weft/pkg/domain"
	kdbcondmock "github.com/opst/weft/pkg/domain/condition/db/mock"
	"github.com/opst/weft/pkg/domain/executor"
	execmock "github.com/opst/weft/pkg/domain/executor/mock"
	kdbprocmock "github.com/opst/weft/pkg/domain/processing/db/mock"
	kdbreqmock "github.com/opst/weft/pkg/domain/request/db/mock"
	kdbthrmock "github.com/opst/weft/pkg/domain/throttle/db/mock"
	kdbtrnmock "github.com/opst/weft/pkg/domain/transform/db/mock"
)

func logger() *log.Logger {
	return log.New(log.Writer(), "test: ", 0)
}

func TestTask_submission(t *testing.T) {
	picked := domain.Transform{
		TransformBody: domain.TransformBody{
			Id:         "trn-1",
			RequestId:  "req-1",
			InternalId: "extract",
			Site:       "cern",
			Status:     domain.New,
			MaxRetries: 3,
		},
		Spec: domain.TransformSpec{
			InternalId:      "extract",
			Site:            "cern",
			Executor:        "fake",
			Granularity:     100,
			GranularityType: "files",
		},
	}

	type mocks struct {
		transform  *kdbtrnmock.TransformInterface
		processing *kdbprocmock.ProcessingInterface
		throttle   *kdbthrmock.ThrottleInterface
		executor   *execmock.MockExecutor
	}

	// run the picked transform through the task and return what the
	// task decided for it.
	run := func(t *testing.T, m mocks) (domain.Status, error) {
		var gotStatus domain.Status
		var gotErr error
		m.transform.Impl.PickAndSetStatus = func(
			ctx context.Context, cursor domain.TransformCursor,
			owner string, stale time.Duration,
			task func(domain.Transform) (domain.Status, error),
		) (domain.TransformCursor, bool, error) {
			gotStatus, gotErr = task(picked)
			return cursor, gotErr == nil && gotStatus != picked.Status, gotErr
		}

		testee := transformer.Task(
			logger(), "worker@host:1", time.Minute, "noop",
			executor.NewRegistry(m.executor),
			m.transform, m.processing, m.throttle,
		)
		if _, _, err := testee(context.Background(), transformer.Seed(10*time.Second)); err != nil {
			gotErr = err
		}
		return gotStatus, gotErr
	}

	t.Run("a throttled site leaves the transform new", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "fake"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return &domain.Throttle{
				Site: site, Status: domain.ThrottleActive,
				MaxProcessings: 1, ActiveProcessings: 1,
			}, nil
		}

		status, err := run(t, m)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.New {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.New)
		}
		if m.processing.Calls.New.Times() != 0 {
			t.Error("no processing should be created for a throttled site")
		}
	})

	t.Run("every throttle kind can defer submission", func(t *testing.T) {
		for name, throttle := range map[string]domain.Throttle{
			"requests at limit": {
				Status:      domain.ThrottleActive,
				MaxRequests: 5, ActiveRequests: 5,
			},
			"transforms at limit": {
				Status:        domain.ThrottleActive,
				MaxTransforms: 2, ActiveTransforms: 2,
			},
			"contents backlog at limit": {
				Status:      domain.ThrottleActive,
				MaxContents: 1000, QueuedContents: 1200,
			},
		} {
			t.Run(name, func(t *testing.T) {
				m := mocks{
					transform:  kdbtrnmock.NewTransformInterface(),
					processing: kdbprocmock.NewProcessingInterface(),
					throttle:   kdbthrmock.NewThrottleInterface(),
					executor:   execmock.New(t, "fake"),
				}
				m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
					th := throttle
					th.Site = site
					return &th, nil
				}

				status, err := run(t, m)
				if err != nil {
					t.Fatal(err)
				}
				if status != domain.New {
					t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.New)
				}
				if m.processing.Calls.New.Times() != 0 {
					t.Error("no processing should be created for a throttled site")
				}
			})
		}
	})

	t.Run("an unregistered executor fails the transform", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "not-the-one-named-in-the-spec"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return nil, nil
		}

		status, err := run(t, m)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Failed {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Failed)
		}
	})

	t.Run("a successful submit creates the processing", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "fake"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return nil, nil
		}
		m.executor.Impl.Submit = func(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error) {
			return "fake/job-42", nil
		}

		var created domain.Processing
		m.processing.Impl.New = func(ctx context.Context, p domain.Processing) error {
			created = p
			return nil
		}

		status, err := run(t, m)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Submitted {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Submitted)
		}
		if created.Id == "" ||
			created.TransformId != "trn-1" ||
			created.RequestId != "req-1" ||
			created.Status != domain.Submitted ||
			created.Executor != "fake" ||
			created.Handle != "fake/job-42" ||
			created.Granularity != 100 ||
			created.GranularityType != "files" {
			t.Errorf("unexpected processing: %+v", created)
		}
	})

	t.Run("a failed submit within budget retries", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "fake"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return nil, nil
		}
		m.executor.Impl.Submit = func(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error) {
			return "", errors.New("fake submit error")
		}

		var created domain.Processing
		m.processing.Impl.New = func(ctx context.Context, p domain.Processing) error {
			created = p
			return nil
		}
		m.transform.Impl.CountRetry = func(ctx context.Context, transformId string) (int, error) {
			return 1, nil
		}

		status, err := run(t, m)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.New {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.New)
		}
		if created.Status != domain.Failed {
			t.Errorf("the failed attempt should be stored failed: %+v", created)
		}
		if len(created.Metadata.SubmitErrors) != 1 ||
			created.Metadata.SubmitErrors[0] != "fake submit error" {
			t.Errorf("unexpected submit errors: %+v", created.Metadata.SubmitErrors)
		}
	})

	t.Run("a failed submit out of budget fails the transform", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "fake"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return nil, nil
		}
		m.executor.Impl.Submit = func(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error) {
			return "", errors.New("fake submit error")
		}
		m.processing.Impl.New = func(ctx context.Context, p domain.Processing) error {
			return nil
		}
		m.transform.Impl.CountRetry = func(ctx context.Context, transformId string) (int, error) {
			return 3, nil // MaxRetries of the picked transform
		}

		status, err := run(t, m)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Failed {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Failed)
		}
	})

	t.Run("a store error after submit propagates", func(t *testing.T) {
		m := mocks{
			transform:  kdbtrnmock.NewTransformInterface(),
			processing: kdbprocmock.NewProcessingInterface(),
			throttle:   kdbthrmock.NewThrottleInterface(),
			executor:   execmock.New(t, "fake"),
		}
		m.throttle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return nil, nil
		}
		m.executor.Impl.Submit = func(ctx context.Context, tr domain.Transform, p domain.Processing) (string, error) {
			return "fake/job-42", nil
		}
		expectedErr := errors.New("fake db error")
		m.processing.Impl.New = func(ctx context.Context, p domain.Processing) error {
			return expectedErr
		}

		_, err := run(t, m)
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %+v", err)
		}
	})
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("it fires a satisfied condition", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id:                  7,
					RequestId:           "req-1",
					InternalId:          "extract_done",
					Status:              domain.WaitForTrigger,
					PreviousTransforms:  []string{"extract"},
					FollowingTransforms: []string{"load"},
					Predicate:           domain.TransformDone("extract"),
				},
			}, nil
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{
				"extract": domain.Finished,
				"load":    domain.New,
			}, nil
		}

		var firedResult map[string]domain.Status
		var firedClones []domain.Transform
		dbCondition.Impl.Fire = func(
			ctx context.Context, conditionId int64,
			result map[string]domain.Status, clones []domain.Transform,
		) ([]string, bool, error) {
			firedResult = result
			firedClones = clones
			return []string{"trn-load"}, true, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		_, updated, err := testee(ctx, struct{}{})
		if err != nil {
			t.Fatal(err)
		}
		if !updated {
			t.Error("a fired condition should report progress")
		}
		if dbCondition.Calls.Fire.Times() != 1 {
			t.Fatalf("Fire should be called once: %d", dbCondition.Calls.Fire.Times())
		}
		if len(firedClones) != 0 {
			t.Errorf("a one-shot condition clones nothing: %+v", firedClones)
		}
		if s, ok := firedResult["extract"]; !ok || s != domain.Finished {
			t.Errorf("unexpected evaluate result: %+v", firedResult)
		}
	})

	t.Run("an unsatisfied condition stays waiting", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id: 7, RequestId: "req-1", InternalId: "extract_done",
					Status:              domain.WaitForTrigger,
					PreviousTransforms:  []string{"extract"},
					FollowingTransforms: []string{"load"},
					Predicate:           domain.TransformDone("extract"),
				},
			}, nil
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{"extract": domain.Running}, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		_, updated, err := testee(ctx, struct{}{})
		if err != nil {
			t.Fatal(err)
		}
		if updated {
			t.Error("nothing fired; no progress to report")
		}
		if dbCondition.Calls.Fire.Times() != 0 {
			t.Error("Fire should not be called")
		}
	})

	t.Run("a satisfied loop condition clones the next generation", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id: 7, RequestId: "req-1", InternalId: "again",
					Status:              domain.WaitForTrigger,
					IsLoop:              true,
					LoopIndex:           1,
					MaxLoops:            0, // unbounded
					PreviousTransforms:  []string{"work"},
					FollowingTransforms: []string{"work"},
					Predicate:           domain.TransformDone("work"),
				},
			}, nil
		}

		work1 := domain.Transform{
			TransformBody: domain.TransformBody{
				Id: "trn-work-1", RequestId: "req-1",
				InternalId: "work#1", LoopIndex: 1,
				Site: "cern", Status: domain.Finished,
				MaxRetries: 2,
			},
			Spec: domain.TransformSpec{InternalId: "work", Site: "cern", Executor: "noop"},
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{
				"work":   domain.Finished,
				"work#1": domain.Finished,
			}, nil
		}
		dbTransform.Impl.Find = func(ctx context.Context, q domain.TransformFindQuery) ([]string, error) {
			return []string{"trn-work-0", "trn-work-1"}, nil
		}
		dbTransform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			work0 := work1
			work0.Id = "trn-work-0"
			work0.InternalId = "work"
			work0.LoopIndex = 0
			return map[string]domain.Transform{
				"trn-work-0": work0,
				"trn-work-1": work1,
			}, nil
		}

		var firedResult map[string]domain.Status
		var firedClones []domain.Transform
		dbCondition.Impl.Fire = func(
			ctx context.Context, conditionId int64,
			result map[string]domain.Status, clones []domain.Transform,
		) ([]string, bool, error) {
			firedResult = result
			firedClones = clones
			return []string{"trn-work-2"}, true, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		_, updated, err := testee(ctx, struct{}{})
		if err != nil {
			t.Fatal(err)
		}
		if !updated {
			t.Error("a fired condition should report progress")
		}

		// the generation-1 condition reads generation-1 statuses and
		// records the result under the true id.
		if s, ok := firedResult["work#1"]; !ok || s != domain.Finished {
			t.Errorf("unexpected evaluate result: %+v", firedResult)
		}

		if len(firedClones) != 1 {
			t.Fatalf("unexpected clones: %+v", firedClones)
		}
		clone := firedClones[0]
		if clone.InternalId != "work#2" ||
			clone.LoopIndex != 2 ||
			clone.ClonedFrom != "trn-work-1" ||
			clone.Status != domain.New ||
			clone.MaxRetries != 2 ||
			clone.Site != "cern" {
			t.Errorf("unexpected clone: %+v", clone.TransformBody)
		}
		if clone.Gated {
			t.Errorf("the fired generation must come out runnable: %+v", clone.TransformBody)
		}
		if !clone.Spec.Equal(&work1.Spec) {
			t.Errorf("the clone should carry the template spec: %+v", clone.Spec)
		}
	})

	t.Run("a self-loop advances from its first generation", func(t *testing.T) {
		// generation 0 of a loop follower is never gated, so the body
		// runs, the predicate comes true, and firing stores a runnable
		// generation 1. Nothing in the cycle waits on an ungate which
		// would never come.
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id: 7, RequestId: "req-1", InternalId: "again",
					Status:              domain.WaitForTrigger,
					IsLoop:              true,
					LoopIndex:           0,
					MaxLoops:            3,
					PreviousTransforms:  []string{"work"},
					FollowingTransforms: []string{"work"},
					Predicate:           domain.TransformDone("work"),
				},
			}, nil
		}

		work0 := domain.Transform{
			TransformBody: domain.TransformBody{
				Id: "trn-work-0", RequestId: "req-1",
				InternalId: "work", LoopIndex: 0,
				Site: "cern", Status: domain.Finished,
			},
			Spec: domain.TransformSpec{InternalId: "work", Site: "cern", Executor: "noop"},
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{"work": domain.Finished}, nil
		}
		dbTransform.Impl.Find = func(ctx context.Context, q domain.TransformFindQuery) ([]string, error) {
			return []string{"trn-work-0"}, nil
		}
		dbTransform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{"trn-work-0": work0}, nil
		}

		var firedClones []domain.Transform
		dbCondition.Impl.Fire = func(
			ctx context.Context, conditionId int64,
			result map[string]domain.Status, clones []domain.Transform,
		) ([]string, bool, error) {
			firedClones = clones
			return []string{"trn-work-1"}, true, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		_, updated, err := testee(ctx, struct{}{})
		if err != nil {
			t.Fatal(err)
		}
		if !updated {
			t.Error("the first generation should fire its loop condition")
		}
		if dbCondition.Calls.Fire.Times() != 1 {
			t.Fatalf("Fire should be called once: %d", dbCondition.Calls.Fire.Times())
		}
		if len(firedClones) != 1 {
			t.Fatalf("unexpected clones: %+v", firedClones)
		}
		clone := firedClones[0]
		if clone.InternalId != "work#1" || clone.LoopIndex != 1 ||
			clone.ClonedFrom != "trn-work-0" || clone.Gated {
			t.Errorf("unexpected clone: %+v", clone.TransformBody)
		}
	})

	t.Run("a loop at its bound clones nothing", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id: 7, RequestId: "req-1", InternalId: "again",
					Status:              domain.WaitForTrigger,
					IsLoop:              true,
					LoopIndex:           2,
					MaxLoops:            3,
					PreviousTransforms:  []string{"work"},
					FollowingTransforms: []string{"work"},
					Predicate:           domain.TransformDone("work"),
				},
			}, nil
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{
				"work":   domain.Finished,
				"work#2": domain.Finished,
			}, nil
		}
		var firedClones []domain.Transform
		dbCondition.Impl.Fire = func(
			ctx context.Context, conditionId int64,
			result map[string]domain.Status, clones []domain.Transform,
		) ([]string, bool, error) {
			firedClones = clones
			return nil, true, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		if _, _, err := testee(ctx, struct{}{}); err != nil {
			t.Fatal(err)
		}
		if dbCondition.Calls.Fire.Times() != 1 {
			t.Fatalf("Fire should be called once: %d", dbCondition.Calls.Fire.Times())
		}
		if len(firedClones) != 0 {
			t.Errorf("the last generation clones nothing: %+v", firedClones)
		}
	})

	t.Run("a broken predicate is skipped without error", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbCondition := kdbcondmock.NewConditionInterface()

		dbRequest.Impl.Find = func(ctx context.Context, q domain.RequestFindQuery) ([]string, error) {
			return []string{"req-1"}, nil
		}
		dbCondition.Impl.ListByRequest = func(
			ctx context.Context, requestId string, status ...domain.ConditionStatus,
		) ([]domain.Condition, error) {
			return []domain.Condition{
				{
					Id: 7, RequestId: "req-1", InternalId: "odd",
					Status:    domain.WaitForTrigger,
					Predicate: domain.Expression{Op: "???"},
				},
			}, nil
		}
		dbTransform.Impl.StatusesByInternalId = func(ctx context.Context, requestId string) (map[string]domain.Status, error) {
			return map[string]domain.Status{}, nil
		}

		testee := transformer.Trigger(logger(), dbRequest, dbTransform, dbCondition)
		_, updated, err := testee(ctx, struct{}{})
		if err != nil {
			t.Fatal(err)
		}
		if updated {
			t.Error("nothing fired; no progress to report")
		}
		if dbCondition.Calls.Fire.Times() != 0 {
			t.Error("Fire should not be called")
		}
	})
}
