package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/opst/weft/pkg/domain/throttle/db"
)

type throttlePG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *throttlePG {
	return &throttlePG{pool: pool}
}

var _ kdb.Interface = &throttlePG{}

const throttleColumns = `
	"site", "status",
	"max_requests", "max_transforms", "max_processings", "max_contents",
	"active_requests", "active_transforms", "active_processings", "queued_contents"
`

func scanThrottle(rows interface {
	Scan(dest ...interface{}) error
}) (domain.Throttle, error) {
	var t domain.Throttle
	var status string

	if err := rows.Scan(
		&t.Site, &status,
		&t.MaxRequests, &t.MaxTransforms, &t.MaxProcessings, &t.MaxContents,
		&t.ActiveRequests, &t.ActiveTransforms, &t.ActiveProcessings, &t.QueuedContents,
	); err != nil {
		return domain.Throttle{}, err
	}
	t.Status = domain.ThrottleStatus(status)
	return t, nil
}

func (m *throttlePG) Get(ctx context.Context, site string) (*domain.Throttle, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRow(
		ctx,
		`select `+throttleColumns+` from "throttler" where "site" = $1`,
		site,
	)
	t, err := scanThrottle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // unthrottled site
		}
		return nil, err
	}
	return &t, nil
}

func (m *throttlePG) List(ctx context.Context) ([]domain.Throttle, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select `+throttleColumns+` from "throttler" order by "site"`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	throttles := []domain.Throttle{}
	for rows.Next() {
		t, err := scanThrottle(rows)
		if err != nil {
			return nil, err
		}
		throttles = append(throttles, t)
	}
	return throttles, nil
}

func (m *throttlePG) Upsert(ctx context.Context, throttle domain.Throttle) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(
		ctx,
		`
		insert into "throttler" (
			"site", "status",
			"max_requests", "max_transforms", "max_processings", "max_contents",
			"active_requests", "active_transforms", "active_processings", "queued_contents",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, now(), now())
		on conflict ("site") do update set
			"status" = excluded."status",
			"max_requests" = excluded."max_requests",
			"max_transforms" = excluded."max_transforms",
			"max_processings" = excluded."max_processings",
			"max_contents" = excluded."max_contents",
			"updated_at" = now()
		`,
		throttle.Site, throttle.Status.String(),
		throttle.MaxRequests, throttle.MaxTransforms,
		throttle.MaxProcessings, throttle.MaxContents,
	)
	return err
}

func (m *throttlePG) RefreshCounters(ctx context.Context, site string) (domain.Throttle, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return domain.Throttle{}, err
	}
	defer conn.Release()

	live := []int16{
		domain.New.Code(), domain.Transforming.Code(),
		domain.Submitted.Code(), domain.Running.Code(),
	}

	// one statement; transient over-admission within a poll interval
	// is accepted.
	row := conn.QueryRow(
		ctx,
		`
		update "throttler" t
		set "active_requests" = "agg"."reqs",
		    "active_transforms" = "agg"."tfs",
		    "active_processings" = "agg"."procs",
		    "queued_contents" = "agg"."conts",
		    "updated_at" = now()
		from (
			select
				(select count(distinct tf."request_id") from "transform" tf
				 where tf."site" = $1 and tf."status" = any($2::smallint[])) as "reqs",
				(select count(*) from "transform" tf
				 where tf."site" = $1 and tf."status" = any($2::smallint[])) as "tfs",
				(select count(*) from "processing" p
				 join "transform" tf on tf."transform_id" = p."transform_id"
				 where tf."site" = $1 and p."status" = any($2::smallint[])) as "procs",
				(select count(*) from "content" c
				 join "transform" tf on tf."transform_id" = c."transform_id"
				 where tf."site" = $1 and c."status" = $3) as "conts"
		) as "agg"
		where t."site" = $1
		returning `+throttleColumns,
		site, live, domain.New.Code(),
	)

	t, err := scanThrottle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Throttle{}, kpgerr.Missing{Table: "throttler", Identity: site}
		}
		return domain.Throttle{}, err
	}
	return t, nil
}
