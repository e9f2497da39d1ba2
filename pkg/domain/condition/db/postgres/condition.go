package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	kdb "github.com/opst/weft/pkg/domain/condition/db"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	"github.com/opst/weft/pkg/utils/slices"
)

type conditionPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *conditionPG {
	return &conditionPG{pool: pool}
}

var _ kdb.Interface = &conditionPG{}

func (m *conditionPG) ListByRequest(
	ctx context.Context, requestId string, status ...domain.ConditionStatus,
) ([]domain.Condition, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return kpgintr.GetConditionsByRequest(ctx, conn, requestId, status)
}

func (m *conditionPG) Fire(
	ctx context.Context, conditionId int64,
	result map[string]domain.Status, clones []domain.Transform,
) ([]string, bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	evaluateResult, err := json.Marshal(result)
	if err != nil {
		return nil, false, err
	}

	// the conditional update is the arbiter: of concurrent Fire calls
	// only one observes a row change.
	tag, err := tx.Exec(
		ctx,
		`
		update "condition"
		set "status" = $1, "evaluate_result" = $2, "updated_at" = now()
		where "condition_id" = $3 and "status" = $4
		`,
		domain.Triggered.String(), evaluateResult,
		conditionId, domain.WaitForTrigger.String(),
	)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 0 {
		// already fired, suspended, or gone. Tell them apart for the caller.
		var exists bool
		if err := tx.QueryRow(
			ctx,
			`select exists(select 1 from "condition" where "condition_id" = $1)`,
			conditionId,
		).Scan(&exists); err != nil {
			return nil, false, err
		}
		if !exists {
			return nil, false, kpgerr.Missing{
				Table: "condition", Identity: strconv.FormatInt(conditionId, 10),
			}
		}
		return nil, false, nil
	}

	var requestId, internalId string
	var isLoop bool
	var loopIndex, maxLoops int
	var followingBlob, predicateBlob []byte
	if err := tx.QueryRow(
		ctx,
		`
		select "request_id", "internal_id", "is_loop", "loop_index", "max_loops",
		       "following_transforms", "predicate"
		from "condition" where "condition_id" = $1
		`,
		conditionId,
	).Scan(
		&requestId, &internalId, &isLoop, &loopIndex, &maxLoops,
		&followingBlob, &predicateBlob,
	); err != nil {
		return nil, false, err
	}
	var following []string
	if err := json.Unmarshal(followingBlob, &following); err != nil {
		return nil, false, err
	}

	touched := []string{}

	// a plain condition activates its followers by ungating them.
	// Loop conditions activate by storing the next generation below,
	// so there is nothing to ungate: generation 0 was never gated and
	// clones are stored runnable.
	if !isLoop {
		rows, err := tx.Query(
			ctx,
			`
			update "transform"
			set "gated" = false, "updated_at" = now()
			where "request_id" = $1 and "internal_id" = any($2::varchar[]) and "gated"
			returning "transform_id"
			`,
			requestId, following,
		)
		if err != nil {
			return nil, false, err
		}
		for rows.Next() {
			var transformId string
			if err := rows.Scan(&transformId); err != nil {
				rows.Close()
				return nil, false, err
			}
			touched = append(touched, transformId)
		}
		rows.Close()
	}

	// loop conditions reincarnate until MaxLoops generations exist.
	// MaxLoops 0 means no bound.
	if isLoop && (maxLoops == 0 || loopIndex+1 < maxLoops) {
		clone := domain.Condition{
			RequestId:           requestId,
			InternalId:          internalId,
			Status:              domain.WaitForTrigger,
			IsLoop:              true,
			LoopIndex:           loopIndex + 1,
			MaxLoops:            maxLoops,
			ClonedFrom:          conditionId,
			PreviousTransforms:  slices.Map(clones, func(t domain.Transform) string { return t.InternalId }),
			FollowingTransforms: following,
		}
		if err := json.Unmarshal(predicateBlob, &clone.Predicate); err != nil {
			return nil, false, err
		}

		if _, _, err := kpgintr.InsertCondition(ctx, tx, clone); err != nil {
			return nil, false, err
		}

		for _, t := range clones {
			inserted, err := kpgintr.InsertTransform(ctx, tx, t)
			if err != nil {
				return nil, false, err
			}
			if inserted {
				touched = append(touched, t.Id)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return touched, true, nil
}

func (m *conditionPG) BulkSetStatus(
	ctx context.Context, requestId string, newStatus domain.ConditionStatus,
) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(
		ctx,
		`
		update "condition"
		set "status" = $1, "updated_at" = now()
		where "request_id" = $2 and "status" = $3
		`,
		newStatus.String(), requestId, domain.WaitForTrigger.String(),
	)
	return err
}
