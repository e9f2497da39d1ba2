package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	kdb "github.com/opst/weft/pkg/domain/processing/db"
	"github.com/opst/weft/pkg/utils/slices"
)

type processingPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *processingPG {
	return &processingPG{pool: pool}
}

var _ kdb.Interface = &processingPG{}

func (m *processingPG) New(ctx context.Context, p domain.Processing) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx,
		`
		insert into "processing" (
			"processing_id", "transform_id", "request_id", "status",
			"granularity", "granularity_type", "retries",
			"executor", "handle", "metadata",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		`,
		p.Id, p.TransformId, p.RequestId, p.Status.Code(),
		p.Granularity, p.GranularityType, p.Retries,
		p.Executor, p.Handle, metadata,
	); err != nil {
		return err
	}

	// the transform tracks its single live attempt.
	tag, err := tx.Exec(
		ctx,
		`
		update "transform"
		set "current_processing_id" = $1, "updated_at" = now()
		where "transform_id" = $2
		`,
		p.Id, p.TransformId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "transform", Identity: p.TransformId}
	}

	return tx.Commit(ctx)
}

func (m *processingPG) Get(ctx context.Context, processingIds []string) (map[string]domain.Processing, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return kpgintr.GetProcessings(ctx, conn, processingIds)
}

func (m *processingPG) Find(ctx context.Context, query domain.ProcessingFindQuery) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "processing_id" from "processing"
		where (cardinality($1::varchar[]) = 0 or "request_id" = any($1::varchar[]))
		  and (cardinality($2::varchar[]) = 0 or "transform_id" = any($2::varchar[]))
		  and (cardinality($3::smallint[]) = 0 or "status" = any($3::smallint[]))
		order by "created_at", "processing_id"
		`,
		query.RequestId, query.TransformId,
		slices.Map(query.Status, domain.Status.Code),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	processingIds := []string{}
	for rows.Next() {
		var processingId string
		if err := rows.Scan(&processingId); err != nil {
			return nil, err
		}
		processingIds = append(processingIds, processingId)
	}
	return processingIds, nil
}

func (m *processingPG) PickAndSetStatus(
	ctx context.Context, statuses []domain.Status,
	owner string, stale time.Duration,
	task func(domain.Processing) (domain.Status, domain.ProcessingMetadata, error),
) (string, bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	var processingId string
	if err := tx.QueryRow(
		ctx,
		`
		with "candidate" as (
			select "processing_id" from "processing"
			where "status" = any($1::smallint[])
			  and ("locked_by" is null or "locked_at" < now() - $2)
			order by "updated_at"
			limit 1
			for update skip locked
		)
		update "processing"
		set "locked_by" = $3, "locked_at" = now()
		where "processing_id" in (table "candidate")
		returning "processing_id"
		`,
		slices.Map(statuses, domain.Status.Code), stale, owner,
	).Scan(&processingId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	processings, err := kpgintr.GetProcessings(ctx, tx, []string{processingId})
	if err != nil {
		return processingId, false, err
	}
	processing, ok := processings[processingId]
	if !ok {
		return processingId, false, kpgerr.Missing{Table: "processing", Identity: processingId}
	}

	// Commit the lock before running task. Task talks to executors and
	// writes transform and catalog rows, so it must not run under the
	// row lock. locked_by keeps other agents away meanwhile.
	if err := tx.Commit(ctx); err != nil {
		return processingId, false, err
	}

	newStatus, newMetadata, taskErr := task(processing)

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return processingId, false, err
	}
	defer conn.Release()

	if taskErr != nil {
		if _, err := conn.Exec(
			ctx,
			`
			update "processing"
			set "locked_by" = null, "locked_at" = null
			where "processing_id" = $1 and "locked_by" = $2
			`,
			processingId, owner,
		); err != nil {
			return processingId, false, err
		}
		return processingId, false, taskErr
	}

	metadata, err := json.Marshal(newMetadata)
	if err != nil {
		return processingId, false, err
	}

	// Guarded by owner: a stale-reclaimed lock means another agent
	// took over, and its save wins over this one.
	tag, err := conn.Exec(
		ctx,
		`
		update "processing"
		set "status" = $1, "metadata" = $2,
		    "locked_by" = null, "locked_at" = null, "updated_at" = now()
		where "processing_id" = $3 and "locked_by" = $4
		`,
		newStatus.Code(), metadata, processingId, owner,
	)
	if err != nil {
		return processingId, false, err
	}
	return processingId, tag.RowsAffected() == 1, nil
}

func (m *processingPG) SetStatus(ctx context.Context, processingId string, newStatus domain.Status) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`update "processing" set "status" = $1, "updated_at" = now() where "processing_id" = $2`,
		newStatus.Code(), processingId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "processing", Identity: processingId}
	}
	return nil
}

func (m *processingPG) SetMetadata(ctx context.Context, processingId string, metadata domain.ProcessingMetadata) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	blob, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	tag, err := conn.Exec(
		ctx,
		`update "processing" set "metadata" = $1, "updated_at" = now() where "processing_id" = $2`,
		blob, processingId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "processing", Identity: processingId}
	}
	return nil
}
