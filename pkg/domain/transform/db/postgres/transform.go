package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	kdb "github.com/opst/weft/pkg/domain/transform/db"
	"github.com/opst/weft/pkg/utils/slices"
)

type transformPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *transformPG {
	return &transformPG{pool: pool}
}

var _ kdb.Interface = &transformPG{}

func (m *transformPG) Get(ctx context.Context, transformIds []string) (map[string]domain.Transform, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	transforms, err := kpgintr.GetTransforms(ctx, conn, transformIds)
	if err != nil {
		return nil, err
	}

	colls, err := kpgintr.GetCollectionsByTransform(
		ctx, conn, slices.KeysOf(transforms),
	)
	if err != nil {
		return nil, err
	}
	for id, t := range transforms {
		t.Collections = colls[id]
		transforms[id] = t
	}
	return transforms, nil
}

func (m *transformPG) Find(ctx context.Context, query domain.TransformFindQuery) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "transform_id" from "transform"
		where (cardinality($1::varchar[]) = 0 or "request_id" = any($1::varchar[]))
		  and (cardinality($2::varchar[]) = 0 or "site" = any($2::varchar[]))
		  and (cardinality($3::smallint[]) = 0 or "status" = any($3::smallint[]))
		order by "created_at", "transform_id"
		`,
		query.RequestId, query.Site,
		slices.Map(query.Status, domain.Status.Code),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transformIds := []string{}
	for rows.Next() {
		var transformId string
		if err := rows.Scan(&transformId); err != nil {
			return nil, err
		}
		transformIds = append(transformIds, transformId)
	}
	return transformIds, nil
}

func (m *transformPG) PickAndSetStatus(
	ctx context.Context, cursorFrom domain.TransformCursor,
	owner string, stale time.Duration,
	task func(domain.Transform) (domain.Status, error),
) (domain.TransformCursor, bool, error) {
	cursor := cursorFrom

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return cursor, false, err
	}
	defer tx.Rollback(ctx)

	// Scan from just after the cursor head, wrapping around, so every
	// eligible transform gets its turn even under constant load.
	// Recently updated rows are debounced to let executors make progress
	// between polls.
	var transformId string
	if err := tx.QueryRow(
		ctx,
		`
		with "candidate" as (
			select "transform_id" from "transform"
			where "status" = any($1::smallint[])
			  and not "gated"
			  and "updated_at" + $2 < now()
			  and ("locked_by" is null or "locked_at" < now() - $3)
			order by "transform_id" <= $4, "transform_id"
			limit 1
			for update skip locked
		)
		update "transform"
		set "locked_by" = $5, "locked_at" = now()
		where "transform_id" in (table "candidate")
		returning "transform_id"
		`,
		slices.Map(cursor.Status, domain.Status.Code),
		cursor.Debounce, stale, cursor.Head, owner,
	).Scan(&transformId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cursor, false, nil
		}
		return cursor, false, err
	}
	cursor.Head = transformId

	transforms, err := kpgintr.GetTransforms(ctx, tx, []string{transformId})
	if err != nil {
		return cursor, false, err
	}
	transform, ok := transforms[transformId]
	if !ok {
		return cursor, false, kpgerr.Missing{Table: "transform", Identity: transformId}
	}
	colls, err := kpgintr.GetCollectionsByTransform(ctx, tx, []string{transformId})
	if err != nil {
		return cursor, false, err
	}
	transform.Collections = colls[transformId]

	// Commit the lock before running task. Task may write other rows
	// of this transform (processings, for one), so it must not run
	// under the row lock. locked_by keeps other agents away meanwhile.
	if err := tx.Commit(ctx); err != nil {
		return cursor, false, err
	}

	newStatus, taskErr := task(transform)

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return cursor, false, err
	}
	defer conn.Release()

	if taskErr != nil {
		if _, err := conn.Exec(
			ctx,
			`
			update "transform"
			set "locked_by" = null, "locked_at" = null
			where "transform_id" = $1 and "locked_by" = $2
			`,
			transformId, owner,
		); err != nil {
			return cursor, false, err
		}
		return cursor, false, taskErr
	}

	// Guarded by owner: if the lock went stale and another agent
	// reclaimed it, this save loses and the other agent's world wins.
	tag, err := conn.Exec(
		ctx,
		`
		update "transform"
		set "status" = $1, "locked_by" = null, "locked_at" = null, "updated_at" = now()
		where "transform_id" = $2 and "locked_by" = $3
		`,
		newStatus.Code(), transformId, owner,
	)
	if err != nil {
		return cursor, false, err
	}
	return cursor, tag.RowsAffected() == 1, nil
}

func (m *transformPG) SetStatus(ctx context.Context, transformId string, newStatus domain.Status) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`update "transform" set "status" = $1, "updated_at" = now() where "transform_id" = $2`,
		newStatus.Code(), transformId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "transform", Identity: transformId}
	}
	return nil
}

func (m *transformPG) SetCurrentProcessing(ctx context.Context, transformId string, processingId string) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`
		update "transform"
		set "current_processing_id" = $1, "updated_at" = now()
		where "transform_id" = $2
		`,
		processingId, transformId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "transform", Identity: transformId}
	}
	return nil
}

func (m *transformPG) CountRetry(ctx context.Context, transformId string) (int, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var retries int
	if err := conn.QueryRow(
		ctx,
		`
		update "transform" set "retries" = "retries" + 1, "updated_at" = now()
		where "transform_id" = $1
		returning "retries"
		`,
		transformId,
	).Scan(&retries); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, kpgerr.Missing{Table: "transform", Identity: transformId}
		}
		return 0, err
	}
	return retries, nil
}

func (m *transformPG) StatusesByInternalId(ctx context.Context, requestId string) (map[string]domain.Status, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return kpgintr.TransformStatusesByInternalId(ctx, conn, requestId)
}

func (m *transformPG) BulkSetStatus(ctx context.Context, requestId string, newStatus domain.Status) ([]string, error) {
	terminal := []int16{
		domain.Finished.Code(), domain.SubFinished.Code(),
		domain.Failed.Code(), domain.Cancelled.Code(),
		domain.Expired.Code(), domain.Broken.Code(),
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		update "transform"
		set "status" = $1, "updated_at" = now()
		where "request_id" = $2 and not ("status" = any($3::smallint[]))
		returning "transform_id"
		`,
		newStatus.Code(), requestId, terminal,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transformIds := []string{}
	for rows.Next() {
		var transformId string
		if err := rows.Scan(&transformId); err != nil {
			return nil, err
		}
		transformIds = append(transformIds, transformId)
	}
	return transformIds, nil
}
