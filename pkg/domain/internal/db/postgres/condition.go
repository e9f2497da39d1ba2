package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
)

// InsertCondition writes one condition row.
//
// (request_id, internal_id, loop_index) is unique; a conflicting insert
// is ignored and reported as inserted=false. This is what makes loop
// re-evaluation idempotent: a second Fire for the same generation
// cannot spawn a second sibling.
func InsertCondition(
	ctx context.Context, conn kpool.Queryer, c domain.Condition,
) (id int64, inserted bool, err error) {
	previous, err := json.Marshal(c.PreviousTransforms)
	if err != nil {
		return 0, false, err
	}
	following, err := json.Marshal(c.FollowingTransforms)
	if err != nil {
		return 0, false, err
	}
	predicate, err := json.Marshal(c.Predicate)
	if err != nil {
		return 0, false, err
	}

	row := conn.QueryRow(
		ctx,
		`
		insert into "condition" (
			"request_id", "internal_id", "status",
			"is_loop", "loop_index", "max_loops", "cloned_from",
			"previous_transforms", "following_transforms", "predicate",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		on conflict ("request_id", "internal_id", "loop_index") do nothing
		returning "condition_id"
		`,
		c.RequestId, c.InternalId, c.Status.String(),
		c.IsLoop, c.LoopIndex, c.MaxLoops, c.ClonedFrom,
		previous, following, predicate,
	)

	if err := row.Scan(&id); err != nil {
		// "on conflict do nothing" yields no row on conflict.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// GetConditionsByRequest loads conditions of a request in creation order,
// optionally narrowed by status.
func GetConditionsByRequest(
	ctx context.Context, conn kpool.Queryer, requestId string, status []domain.ConditionStatus,
) ([]domain.Condition, error) {
	statusNames := make([]string, 0, len(status))
	for _, s := range status {
		statusNames = append(statusNames, s.String())
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"condition_id", "request_id", "internal_id", "status",
			"is_loop", "loop_index", "max_loops", "cloned_from",
			"previous_transforms", "following_transforms", "predicate", "evaluate_result",
			"created_at", "updated_at"
		from "condition"
		where "request_id" = $1
		  and (cardinality($2::varchar[]) = 0 or "status" = any($2::varchar[]))
		order by "condition_id"
		`,
		requestId, statusNames,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Condition{}
	for rows.Next() {
		var c domain.Condition
		var status string
		var previous, following, predicate, evaluateResult []byte

		if err := rows.Scan(
			&c.Id, &c.RequestId, &c.InternalId, &status,
			&c.IsLoop, &c.LoopIndex, &c.MaxLoops, &c.ClonedFrom,
			&previous, &following, &predicate, &evaluateResult,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if c.Status, err = domain.AsConditionStatus(status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(previous, &c.PreviousTransforms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(following, &c.FollowingTransforms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(predicate, &c.Predicate); err != nil {
			return nil, err
		}
		if evaluateResult != nil {
			if err := json.Unmarshal(evaluateResult, &c.EvaluateResult); err != nil {
				return nil, err
			}
		}

		result = append(result, c)
	}
	return result, nil
}
