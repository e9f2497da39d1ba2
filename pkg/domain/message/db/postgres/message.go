package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/opst/weft/pkg/domain/message/db"
)

type messagePG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *messagePG {
	return &messagePG{pool: pool}
}

var _ kdb.Interface = &messagePG{}

func (m *messagePG) AddCommand(ctx context.Context, command domain.Command) (int64, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var commandId int64
	if err := conn.QueryRow(
		ctx,
		`
		insert into "command" (
			"request_id", "cmd_type", "source", "destination",
			"status", "payload", "created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, now(), now())
		returning "command_id"
		`,
		command.RequestId, string(command.Type),
		command.Source.String(), command.Destination.String(),
		domain.NewMessage.String(), command.Payload,
	).Scan(&commandId); err != nil {
		return 0, err
	}
	return commandId, nil
}

const commandColumns = `
	"command_id", "request_id", "cmd_type", "source", "destination",
	"status", "locked_by", "locked_at", "payload",
	"created_at", "updated_at"
`

func scanCommand(rows interface {
	Scan(dest ...interface{}) error
}) (domain.Command, error) {
	var c domain.Command
	var cmdType, source, destination, status string
	var lockedBy *string

	if err := rows.Scan(
		&c.Id, &c.RequestId, &cmdType, &source, &destination,
		&status, &lockedBy, &c.LockedAt, &c.Payload,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Command{}, err
	}

	var err error
	if c.Type, err = domain.AsCommandType(cmdType); err != nil {
		return domain.Command{}, err
	}
	if c.Source, err = domain.AsAgentRole(source); err != nil {
		return domain.Command{}, err
	}
	if c.Destination, err = domain.AsAgentRole(destination); err != nil {
		return domain.Command{}, err
	}
	c.Status = domain.MessageStatus(status)
	if lockedBy != nil {
		c.LockedBy = *lockedBy
	}
	return c, nil
}

func (m *messagePG) RetrieveCommands(
	ctx context.Context, query kdb.CommandQuery, limit int,
	locking bool, owner string, stale time.Duration,
) ([]domain.Command, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var rows pgx.Rows
	if locking {
		// flip New -> Locking; "for update skip locked" inside the CTE
		// keeps concurrent consumers off the same rows.
		rows, err = conn.Query(
			ctx,
			`
			with "picked" as (
				select "command_id" from "command"
				where ($1 = '' or "cmd_type" = $1)
				  and ($2 = '' or "destination" = $2)
				  and ($3 = '' or "request_id" = $3)
				  and (
					"status" = $4
					or ("status" = $5 and "locked_at" < now() - $6)
				  )
				order by "created_at", "command_id"
				limit $7
				for update skip locked
			)
			update "command"
			set "status" = $5, "locked_by" = $8, "locked_at" = now(), "updated_at" = now()
			where "command_id" in (table "picked")
			returning `+commandColumns,
			string(query.Type), query.Destination.String(), query.RequestId,
			domain.NewMessage.String(), domain.LockingMessage.String(),
			stale, limit, owner,
		)
	} else {
		rows, err = conn.Query(
			ctx,
			`
			select `+commandColumns+`
			from "command"
			where ($1 = '' or "cmd_type" = $1)
			  and ($2 = '' or "destination" = $2)
			  and ($3 = '' or "request_id" = $3)
			  and "status" = $4
			order by "created_at", "command_id"
			limit $5
			`,
			string(query.Type), query.Destination.String(), query.RequestId,
			domain.NewMessage.String(), limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commands := []domain.Command{}
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}
	return commands, nil
}

func (m *messagePG) MarkCommands(
	ctx context.Context, commandIds []int64, status domain.MessageStatus,
) error {
	if len(commandIds) == 0 {
		return nil
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(
		ctx,
		`
		update "command"
		set "status" = $1, "locked_by" = null, "locked_at" = null, "updated_at" = now()
		where "command_id" = any($2::bigint[])
		`,
		status.String(), commandIds,
	)
	return err
}

func (m *messagePG) AddEvent(ctx context.Context, event domain.Event) (int64, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var eventId int64
	if err := conn.QueryRow(
		ctx,
		`
		insert into "event" (
			"event_type", "priority", "status", "payload",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, now(), now())
		returning "event_id"
		`,
		string(event.Type), event.Priority,
		domain.NewMessage.String(), event.Payload,
	).Scan(&eventId); err != nil {
		return 0, err
	}
	return eventId, nil
}

func (m *messagePG) GetEventForProcessing(
	ctx context.Context, eventType domain.EventType,
	owner string, stale time.Duration,
) (*domain.Event, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var e domain.Event
	var typeName, status string
	if err := conn.QueryRow(
		ctx,
		`
		with "picked" as (
			select "event_id" from "event"
			where "event_type" = $1
			  and (
				"status" = $2
				or ("status" = $3 and "updated_at" < now() - $4)
			  )
			order by "priority" desc, "created_at", "event_id"
			limit 1
			for update skip locked
		)
		update "event"
		set "status" = $3, "locked_by" = $5, "updated_at" = now()
		where "event_id" in (table "picked")
		returning "event_id", "event_type", "priority", "status", "payload",
		          "created_at", "updated_at"
		`,
		string(eventType),
		domain.NewMessage.String(), domain.LockingMessage.String(),
		stale, owner,
	).Scan(
		&e.Id, &typeName, &e.Priority, &status, &e.Payload,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if e.Type, err = domain.AsEventType(typeName); err != nil {
		return nil, err
	}
	e.Status = domain.MessageStatus(status)
	return &e, nil
}

func (m *messagePG) FinishEvent(ctx context.Context, eventId int64, ok bool) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var tag pgconn.CommandTag
	if ok {
		tag, err = conn.Exec(
			ctx, `delete from "event" where "event_id" = $1`, eventId,
		)
	} else {
		tag, err = conn.Exec(
			ctx,
			`
			update "event"
			set "status" = $1, "locked_by" = null, "updated_at" = now()
			where "event_id" = $2
			`,
			domain.NewMessage.String(), eventId,
		)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "event", Identity: strconv.FormatInt(eventId, 10)}
	}
	return nil
}

func (m *messagePG) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(
		ctx,
		`
		delete from "command"
		where "status" = $1 and "updated_at" < now() - $2
		`,
		domain.ProcessedMessage.String(), retention,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
