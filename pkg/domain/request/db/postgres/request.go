package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgerrcode "github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	kdb "github.com/opst/weft/pkg/domain/request/db"
	"github.com/opst/weft/pkg/utils/slices"
)

// a struct for DB operations related to Request
type requestPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *requestPG {
	return &requestPG{pool: pool}
}

var _ kdb.Interface = &requestPG{}

func (m *requestPG) New(ctx context.Context, req domain.Request) error {
	workflow, err := json.Marshal(req.Workflow)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "request" (
			"request_id", "scope", "workload", "requester", "req_type",
			"status", "priority", "expired_at",
			"total_transforms", "finished_transforms", "failed_transforms",
			"workflow", "metadata",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, $9, $10, now(), now())
		`,
		req.Id, req.Scope, req.Workload, req.Requester, string(req.Type),
		req.Status.Code(), req.Priority, req.ExpiredAt,
		workflow, metadata,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return kpgerr.Duplicate{
				Table:    "request",
				Identity: req.Scope + "/" + req.Workload,
			}
		}
		return err
	}
	return nil
}

func (m *requestPG) Get(ctx context.Context, requestIds []string) (map[string]domain.Request, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return kpgintr.GetRequests(ctx, conn, requestIds)
}

func (m *requestPG) GetByWorkload(ctx context.Context, scope string, workload string) (domain.Request, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	defer conn.Release()

	var requestId string
	if err := conn.QueryRow(
		ctx,
		`select "request_id" from "request" where "scope" = $1 and "workload" = $2`,
		scope, workload,
	).Scan(&requestId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, kpgerr.Missing{
				Table:    "request",
				Identity: scope + "/" + workload,
			}
		}
		return domain.Request{}, err
	}

	reqs, err := kpgintr.GetRequests(ctx, conn, []string{requestId})
	if err != nil {
		return domain.Request{}, err
	}
	req, ok := reqs[requestId]
	if !ok {
		return domain.Request{}, kpgerr.Missing{Table: "request", Identity: requestId}
	}
	return req, nil
}

func (m *requestPG) Find(ctx context.Context, query domain.RequestFindQuery) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select "request_id" from "request"
		where ($1 = '' or "scope" = $1)
		  and ($2 = '' or "workload" = $2)
		  and (cardinality($3::smallint[]) = 0 or "status" = any($3::smallint[]))
		  and ($4::timestamptz is null or $4 <= "updated_at")
		  and ($5::timestamptz is null or "updated_at" < $5)
		order by "created_at", "request_id"
		`,
		query.Scope, query.Workload,
		slices.Map(query.Status, domain.Status.Code),
		query.UpdatedSince, query.UpdatedUntil,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requestIds := []string{}
	for rows.Next() {
		var requestId string
		if err := rows.Scan(&requestId); err != nil {
			return nil, err
		}
		requestIds = append(requestIds, requestId)
	}
	return requestIds, nil
}

func (m *requestPG) PickAndExpand(
	ctx context.Context, owner string, stale time.Duration,
	expand func(domain.Request) (kdb.Expansion, error),
) (string, bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	// pick one New request, preferring higher priority then age.
	// Locks older than stale are abandoned by crashed agents and
	// re-acquirable here.
	var requestId string
	if err := tx.QueryRow(
		ctx,
		`
		with "picked" as (
			select "request_id" from "request"
			where "status" = $1
			  and ("locked_by" is null or "locked_at" < now() - $2)
			order by "priority" desc, "created_at"
			limit 1
			for update skip locked
		)
		update "request"
		set "locked_by" = $3, "locked_at" = now()
		where "request_id" in (table "picked")
		returning "request_id"
		`,
		domain.New.Code(), stale, owner,
	).Scan(&requestId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil // nothing to do
		}
		return "", false, err
	}

	reqs, err := kpgintr.GetRequests(ctx, tx, []string{requestId})
	if err != nil {
		return "", false, err
	}
	req, ok := reqs[requestId]
	if !ok {
		return "", false, kpgerr.Missing{Table: "request", Identity: requestId}
	}

	expansion, err := expand(req)
	if err != nil {
		return requestId, false, err
	}

	for _, t := range expansion.Transforms {
		if _, err := kpgintr.InsertTransform(ctx, tx, t); err != nil {
			return requestId, false, err
		}
	}
	for _, c := range expansion.Collections {
		if _, err := kpgintr.InsertCollection(ctx, tx, c); err != nil {
			return requestId, false, err
		}
	}
	for _, c := range expansion.Conditions {
		if _, _, err := kpgintr.InsertCondition(ctx, tx, c); err != nil {
			return requestId, false, err
		}
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "request"
		set "status" = $1, "total_transforms" = $2,
		    "locked_by" = null, "locked_at" = null, "updated_at" = now()
		where "request_id" = $3
		`,
		domain.Transforming.Code(), len(expansion.Transforms), requestId,
	); err != nil {
		return requestId, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return requestId, false, err
	}
	return requestId, true, nil
}

func (m *requestPG) SetStatus(ctx context.Context, requestId string, newStatus domain.Status) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`update "request" set "status" = $1, "updated_at" = now() where "request_id" = $2`,
		newStatus.Code(), requestId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "request", Identity: requestId}
	}
	return nil
}

func (m *requestPG) ExtendLifetime(ctx context.Context, requestId string, until time.Time) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`
		update "request" set "expired_at" = $1, "updated_at" = now()
		where "request_id" = $2 and "expired_at" < $1
		`,
		until, requestId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// distinguish missing from already-longer lifetime.
		var exists bool
		if err := conn.QueryRow(
			ctx,
			`select exists(select 1 from "request" where "request_id" = $1)`,
			requestId,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return kpgerr.Missing{Table: "request", Identity: requestId}
		}
	}
	return nil
}

func (m *requestPG) RollUp(ctx context.Context, requestId string) (domain.Status, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(
		ctx,
		`select "status", count(*) from "transform" where "request_id" = $1 group by "status"`,
		requestId,
	)
	if err != nil {
		return "", err
	}

	children := []domain.Status{}
	var finished, failed int
	for rows.Next() {
		var code int16
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			rows.Close()
			return "", err
		}
		s, err := domain.StatusByCode(code)
		if err != nil {
			rows.Close()
			return "", err
		}
		for i := 0; i < count; i++ {
			children = append(children, s)
		}
		switch s {
		case domain.Finished, domain.SubFinished:
			finished += count
		case domain.Failed:
			failed += count
		}
	}
	rows.Close()

	// terminal requests keep their status; cancel/expire flows own them.
	var current int16
	if err := tx.QueryRow(
		ctx, `select "status" from "request" where "request_id" = $1 for update`, requestId,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kpgerr.Missing{Table: "request", Identity: requestId}
		}
		return "", err
	}
	currentStatus, err := domain.StatusByCode(current)
	if err != nil {
		return "", err
	}

	effective := domain.RollUp(children)
	next := effective
	if currentStatus.Terminal() {
		next = currentStatus
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "request"
		set "status" = $1, "finished_transforms" = $2, "failed_transforms" = $3,
		    "updated_at" = now()
		where "request_id" = $4
		`,
		next.Code(), finished, failed, requestId,
	); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return next, nil
}

func (m *requestPG) FindExpired(ctx context.Context, now time.Time) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	nonTerminal := []int16{
		domain.New.Code(), domain.Transforming.Code(),
		domain.Submitted.Code(), domain.Running.Code(),
		domain.Cancelling.Code(), domain.Suspended.Code(),
	}

	rows, err := conn.Query(
		ctx,
		`
		select "request_id" from "request"
		where "expired_at" <= $1 and "status" = any($2::smallint[])
		order by "expired_at"
		`,
		now, nonTerminal,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requestIds := []string{}
	for rows.Next() {
		var requestId string
		if err := rows.Scan(&requestId); err != nil {
			return nil, err
		}
		requestIds = append(requestIds, requestId)
	}
	return requestIds, nil
}

func (m *requestPG) Delete(ctx context.Context, requestId string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// children first; partial progress is being discarded deliberately.
	for _, sql := range []string{
		`delete from "content" where "request_id" = $1`,
		`delete from "collection" where "request_id" = $1`,
		`delete from "processing" where "request_id" = $1`,
		`delete from "condition" where "request_id" = $1`,
		`delete from "transform" where "request_id" = $1`,
		`delete from "command" where "request_id" = $1`,
	} {
		if _, err := tx.Exec(ctx, sql, requestId); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `delete from "request" where "request_id" = $1`, requestId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "request", Identity: requestId}
	}

	return tx.Commit(ctx)
}
