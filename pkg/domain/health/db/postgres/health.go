package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/opst/weft/pkg/domain/health/db"
)

type healthPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *healthPG {
	return &healthPG{pool: pool}
}

var _ kdb.Interface = &healthPG{}

func (m *healthPG) AddHealthItem(ctx context.Context, item domain.HealthItem) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(
		ctx,
		`
		insert into "health" (
			"agent", "hostname", "pid", "thread_id",
			"status", "payload", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, now())
		on conflict ("agent", "hostname", "pid", "thread_id") do update set
			"payload" = excluded."payload",
			"updated_at" = now()
		`,
		item.Agent, item.Hostname, item.Pid, item.ThreadId,
		domain.HealthDefault.String(), item.Payload,
	)
	return err
}

const healthColumns = `
	"agent", "hostname", "pid", "thread_id", "status", "payload", "updated_at"
`

func scanHealthItem(rows interface {
	Scan(dest ...interface{}) error
}) (domain.HealthItem, error) {
	var h domain.HealthItem
	var status string

	if err := rows.Scan(
		&h.Agent, &h.Hostname, &h.Pid, &h.ThreadId,
		&status, &h.Payload, &h.UpdatedAt,
	); err != nil {
		return domain.HealthItem{}, err
	}
	h.Status = domain.HealthStatus(status)
	return h, nil
}

func (m *healthPG) SelectAgent(
	ctx context.Context, agent string, newerThan time.Duration,
) (domain.HealthItem, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.HealthItem{}, err
	}
	defer tx.Rollback(ctx)

	// dead instances never win an election.
	if _, err := tx.Exec(
		ctx,
		`delete from "health" where "agent" = $1 and "updated_at" < now() - $2`,
		agent, newerThan,
	); err != nil {
		return domain.HealthItem{}, err
	}

	// keep an incumbent while it lives; else promote the youngest
	// heartbeat. Advisory: a brief double-Active window under races is
	// tolerated downstream.
	row := tx.QueryRow(
		ctx,
		`select `+healthColumns+`
		from "health"
		where "agent" = $1
		order by "status" = $2 desc, "updated_at" desc
		limit 1`,
		agent, domain.HealthActive.String(),
	)
	winner, err := scanHealthItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.HealthItem{}, kpgerr.Missing{Table: "health", Identity: agent}
		}
		return domain.HealthItem{}, err
	}

	if winner.Status != domain.HealthActive {
		if _, err := tx.Exec(
			ctx,
			`
			update "health" set "status" = $1
			where "agent" = $2
			  and "hostname" = $3 and "pid" = $4 and "thread_id" = $5
			`,
			domain.HealthActive.String(),
			winner.Agent, winner.Hostname, winner.Pid, winner.ThreadId,
		); err != nil {
			return domain.HealthItem{}, err
		}
		winner.Status = domain.HealthActive
	}

	// a single Active row per agent, even after crashed incumbents
	// came back under a new pid.
	if _, err := tx.Exec(
		ctx,
		`
		update "health" set "status" = $1
		where "agent" = $2 and "status" = $3
		  and not ("hostname" = $4 and "pid" = $5 and "thread_id" = $6)
		`,
		domain.HealthDefault.String(), agent, domain.HealthActive.String(),
		winner.Hostname, winner.Pid, winner.ThreadId,
	); err != nil {
		return domain.HealthItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.HealthItem{}, err
	}
	return winner, nil
}

func (m *healthPG) Find(ctx context.Context, agent string) ([]domain.HealthItem, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select `+healthColumns+`
		from "health" where "agent" = $1
		order by "updated_at" desc`,
		agent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.HealthItem{}
	for rows.Next() {
		h, err := scanHealthItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, nil
}
