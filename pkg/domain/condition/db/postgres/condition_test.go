package postgres_test

import (
	"context"
	"testing"

	testenv "github.com/opst/weft/pkg/conn/db/postgres/pool/testenv"
	"github.com/opst/weft/pkg/domain"
	kpgcondition "github.com/opst/weft/pkg/domain/condition/db/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	"github.com/opst/weft/pkg/utils/try"
)

func TestFire(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("firing ungates followers exactly once", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgcondition.New(pool)

		var conditionId int64
		{
			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			id, inserted, err := kpgintr.InsertCondition(ctx, conn, domain.Condition{
				RequestId:           "req-1",
				InternalId:          "extract_done",
				Status:              domain.WaitForTrigger,
				PreviousTransforms:  []string{"extract"},
				FollowingTransforms: []string{"load"},
				Predicate:           domain.TransformDone("extract"),
			})
			if err != nil || !inserted {
				conn.Release()
				t.Fatalf("fixture condition: (inserted, err) = (%v, %v)", inserted, err)
			}
			conditionId = id

			if _, err := kpgintr.InsertTransform(ctx, conn, domain.Transform{
				TransformBody: domain.TransformBody{
					Id: "trn-load", RequestId: "req-1", InternalId: "load",
					Site: "cern", Status: domain.New, Gated: true,
				},
				Spec: domain.TransformSpec{InternalId: "load", Site: "cern", Executor: "noop"},
			}); err != nil {
				conn.Release()
				t.Fatal(err)
			}
			conn.Release()
		}

		result := map[string]domain.Status{"extract": domain.Finished}

		touched, fired, err := testee.Fire(ctx, conditionId, result, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !fired {
			t.Error("the condition is not fired")
		}
		if len(touched) != 1 || touched[0] != "trn-load" {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", touched, []string{"trn-load"})
		}

		{
			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			transforms := try.To(
				kpgintr.GetTransforms(ctx, conn, []string{"trn-load"}),
			).OrFatal(t)
			conn.Release()
			if transforms["trn-load"].Gated {
				t.Error("the follower stays gated after firing")
			}
		}

		// a second evaluation of the same condition is a no-op.
		touched, fired, err = testee.Fire(ctx, conditionId, result, nil)
		if err != nil {
			t.Fatal(err)
		}
		if fired {
			t.Error("a triggered condition fired again")
		}
		if len(touched) != 0 {
			t.Errorf("unmatch: (actual, expected) = (%d, %d)", len(touched), 0)
		}
	})

	t.Run("a loop generation is spawned once per firing", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgcondition.New(pool)

		var conditionId int64
		{
			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			id, _, err := kpgintr.InsertCondition(ctx, conn, domain.Condition{
				RequestId:           "req-1",
				InternalId:          "work_again",
				Status:              domain.WaitForTrigger,
				IsLoop:              true,
				LoopIndex:           0,
				MaxLoops:            3,
				PreviousTransforms:  []string{"work"},
				FollowingTransforms: []string{"work"},
				Predicate:           domain.TransformDone("work"),
			})
			if err != nil {
				conn.Release()
				t.Fatal(err)
			}
			conditionId = id

			if _, err := kpgintr.InsertTransform(ctx, conn, domain.Transform{
				TransformBody: domain.TransformBody{
					Id: "trn-work-0", RequestId: "req-1", InternalId: "work",
					Site: "cern", Status: domain.Finished,
				},
				Spec: domain.TransformSpec{InternalId: "work", Site: "cern", Executor: "noop"},
			}); err != nil {
				conn.Release()
				t.Fatal(err)
			}
			conn.Release()
		}

		clone := domain.Transform{
			TransformBody: domain.TransformBody{
				Id: "trn-work-1", RequestId: "req-1", InternalId: "work#1",
				LoopIndex: 1, ClonedFrom: "trn-work-0",
				Site: "cern", Status: domain.New,
			},
			Spec: domain.TransformSpec{InternalId: "work", Site: "cern", Executor: "noop"},
		}

		touched, fired, err := testee.Fire(
			ctx, conditionId,
			map[string]domain.Status{"work": domain.Finished},
			[]domain.Transform{clone},
		)
		if err != nil {
			t.Fatal(err)
		}
		if !fired {
			t.Error("the condition is not fired")
		}
		if len(touched) != 1 || touched[0] != "trn-work-1" {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", touched, []string{"trn-work-1"})
		}

		conditions := try.To(testee.ListByRequest(ctx, "req-1")).OrFatal(t)
		if len(conditions) != 2 {
			t.Fatalf("unmatch: (actual, expected) = (%d, %d)", len(conditions), 2)
		}
		var next domain.Condition
		for _, c := range conditions {
			if c.LoopIndex == 1 {
				next = c
			}
		}
		if next.Id == 0 {
			t.Fatal("the next generation condition is missing")
		}
		if next.Status != domain.WaitForTrigger || !next.IsLoop || next.ClonedFrom != conditionId {
			t.Errorf(
				"unmatch: (status, isLoop, clonedFrom) = (%s, %v, %d), expected (%s, true, %d)",
				next.Status, next.IsLoop, next.ClonedFrom,
				domain.WaitForTrigger, conditionId,
			)
		}

		{
			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			transforms := try.To(
				kpgintr.GetTransforms(ctx, conn, []string{"trn-work-1"}),
			).OrFatal(t)
			conn.Release()
			got, ok := transforms["trn-work-1"]
			if !ok {
				t.Fatal("the clone transform is missing")
			}
			if got.Gated {
				t.Error("the new generation stays gated")
			}
			if got.LoopIndex != 1 || got.ClonedFrom != "trn-work-0" {
				t.Errorf(
					"unmatch: (loopIndex, clonedFrom) = (%d, %s), expected (1, trn-work-0)",
					got.LoopIndex, got.ClonedFrom,
				)
			}
		}

		// a second evaluation cannot spawn a second sibling generation.
		touched, fired, err = testee.Fire(
			ctx, conditionId,
			map[string]domain.Status{"work": domain.Finished},
			[]domain.Transform{clone},
		)
		if err != nil {
			t.Fatal(err)
		}
		if fired || len(touched) != 0 {
			t.Errorf("unmatch: (fired, touched) = (%v, %v), expected (false, [])", fired, touched)
		}
		conditions = try.To(testee.ListByRequest(ctx, "req-1")).OrFatal(t)
		if len(conditions) != 2 {
			t.Errorf("unmatch: (actual, expected) = (%d, %d)", len(conditions), 2)
		}
	})

	t.Run("a generation identity is inserted at most once", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)

		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()

		template := domain.Condition{
			RequestId:           "req-1",
			InternalId:          "work_again",
			Status:              domain.WaitForTrigger,
			IsLoop:              true,
			LoopIndex:           1,
			MaxLoops:            3,
			PreviousTransforms:  []string{"work#1"},
			FollowingTransforms: []string{"work"},
			Predicate:           domain.TransformDone("work#1"),
		}

		if _, inserted, err := kpgintr.InsertCondition(ctx, conn, template); err != nil || !inserted {
			t.Fatalf("first insert: (inserted, err) = (%v, %v)", inserted, err)
		}
		if _, inserted, err := kpgintr.InsertCondition(ctx, conn, template); err != nil {
			t.Fatal(err)
		} else if inserted {
			t.Error("the same generation is inserted twice")
		}

		clone := domain.Transform{
			TransformBody: domain.TransformBody{
				Id: "trn-work-1", RequestId: "req-1", InternalId: "work#1",
				LoopIndex: 1, Site: "cern", Status: domain.New,
			},
			Spec: domain.TransformSpec{InternalId: "work", Site: "cern", Executor: "noop"},
		}
		if inserted, err := kpgintr.InsertTransform(ctx, conn, clone); err != nil || !inserted {
			t.Fatalf("first insert: (inserted, err) = (%v, %v)", inserted, err)
		}
		if inserted, err := kpgintr.InsertTransform(ctx, conn, clone); err != nil {
			t.Fatal(err)
		} else if inserted {
			t.Error("the same transform node is inserted twice")
		}
	})
}
