package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v4"
	kdb "github.com/opst/weft/pkg/domain/catalog/db"
	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/opst/weft/pkg/domain/internal/db/postgres"
	"github.com/opst/weft/pkg/utils/slices"
)

type catalogPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *catalogPG {
	return &catalogPG{pool: pool}
}

var _ kdb.Interface = &catalogPG{}

const contentColumns = `
	"content_id", "coll_id", "transform_id", "request_id",
	"map_id", "sub_map_id", "dep_sub_map_id", "content_dep_id",
	"relation", "status", "substatus",
	"name", "min_id", "max_id", "path", "metadata",
	"created_at", "updated_at"
`

func scanContent(rows interface {
	Scan(dest ...interface{}) error
}) (domain.Content, error) {
	var c domain.Content
	var statusCode int16
	var relation string
	var metadata []byte

	if err := rows.Scan(
		&c.Id, &c.CollId, &c.TransformId, &c.RequestId,
		&c.MapId, &c.SubMapId, &c.DepSubMapId, &c.ContentDepId,
		&relation, &statusCode, &c.Substatus,
		&c.Name, &c.MinId, &c.MaxId, &c.Path, &metadata,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Content{}, err
	}

	var err error
	if c.Status, err = domain.StatusByCode(statusCode); err != nil {
		return domain.Content{}, err
	}
	if c.Relation, err = domain.AsCollectionRelation(relation); err != nil {
		return domain.Content{}, err
	}
	if metadata != nil {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return domain.Content{}, err
		}
	}
	return c, nil
}

func (m *catalogPG) GetCollections(
	ctx context.Context, transformId string, relation ...domain.CollectionRelation,
) ([]domain.Collection, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	colls, err := kpgintr.GetCollectionsByTransform(ctx, conn, []string{transformId})
	if err != nil {
		return nil, err
	}

	found := colls[transformId]
	if len(relation) == 0 {
		return found, nil
	}
	return slices.Filter(found, func(c domain.Collection) bool {
		for _, r := range relation {
			if c.Relation == r {
				return true
			}
		}
		return false
	}), nil
}

func (m *catalogPG) RegisterOutputContents(
	ctx context.Context, contents []domain.Content,
) (int, int, error) {
	if len(contents) == 0 {
		return 0, 0, nil
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	inserted, updated := 0, 0
	for _, c := range contents {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, 0, err
		}

		// xmax = 0 only on rows this statement freshly inserted.
		var fresh bool
		if err := tx.QueryRow(
			ctx,
			`
			insert into "content" (
				"coll_id", "transform_id", "request_id",
				"map_id", "sub_map_id", "dep_sub_map_id", "content_dep_id",
				"relation", "status", "substatus",
				"name", "min_id", "max_id", "path", "metadata",
				"created_at", "updated_at"
			)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
			on conflict (
				"transform_id", "coll_id", "map_id", "sub_map_id",
				"dep_sub_map_id", "relation", "name", "min_id", "max_id"
			) do update set
				"status" = excluded."status",
				"substatus" = excluded."substatus",
				"path" = excluded."path",
				"metadata" = excluded."metadata",
				"updated_at" = now()
			returning (xmax = 0)
			`,
			c.CollId, c.TransformId, c.RequestId,
			c.MapId, c.SubMapId, c.DepSubMapId, c.ContentDepId,
			c.Relation.String(), c.Status.Code(), c.Substatus,
			c.Name, c.MinId, c.MaxId, c.Path, metadata,
		).Scan(&fresh); err != nil {
			return 0, 0, err
		}
		if fresh {
			inserted += 1
		} else {
			updated += 1
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func (m *catalogPG) GetMatchContents(
	ctx context.Context, query domain.ContentMatchQuery,
) ([]domain.Content, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	limit := "all"
	if query.OnlyReturnBestMatch {
		limit = "1"
	}

	rows, err := conn.Query(
		ctx,
		`
		select `+contentColumns+`
		from "content"
		where ($1 = 0 or "coll_id" = $1)
		  and ($2 = '' or "coll_id" in (
			select "coll_id" from "collection" where "scope" = $2
		  ))
		  and ($3 = '' or "name" = $3)
		  and "min_id" <= $4 and $5 <= "max_id"
		order by ("max_id" - "min_id"), "updated_at" desc
		limit `+limit,
		query.CollId, query.Scope, query.Name, query.MinId, query.MaxId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contents := []domain.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func (m *catalogPG) FindContents(
	ctx context.Context, query domain.ContentFindQuery,
) ([]domain.Content, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select `+contentColumns+`
		from "content"
		where (cardinality($1::varchar[]) = 0 or "request_id" = any($1::varchar[]))
		  and (cardinality($2::varchar[]) = 0 or "transform_id" = any($2::varchar[]))
		  and (cardinality($3::bigint[]) = 0 or "coll_id" = any($3::bigint[]))
		  and (cardinality($4::varchar[]) = 0 or "relation" = any($4::varchar[]))
		  and (cardinality($5::smallint[]) = 0 or "status" = any($5::smallint[]))
		order by "content_id"
		`,
		query.RequestId, query.TransformId, query.CollId,
		slices.Map(query.Relation, domain.CollectionRelation.String),
		slices.Map(query.Status, domain.Status.Code),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contents := []domain.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func (m *catalogPG) ResolveDependencies(ctx context.Context, requestId string) (int, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// a dependency points at the one output content sharing its
	// (name, map id) coordinates; dep_sub_map_id selects the sub-map on
	// the producing side.
	tag, err := tx.Exec(
		ctx,
		`
		with "matched" as (
			select d."content_id" as "dep_id",
			       min(o."content_id") as "output_id",
			       count(*) as "n"
			from "content" d
			join "content" o
			  on o."request_id" = d."request_id"
			 and o."relation" = $2
			 and o."name" = d."name"
			 and o."map_id" = d."map_id"
			 and o."sub_map_id" = d."dep_sub_map_id"
			where d."request_id" = $1
			  and d."relation" = $3
			  and d."content_dep_id" = 0
			group by d."content_id"
		)
		update "content" c
		set "content_dep_id" = m."output_id", "updated_at" = now()
		from "matched" m
		where c."content_id" = m."dep_id" and m."n" = 1
		`,
		requestId,
		domain.OutputCollection.String(), domain.InputDependencyCollection.String(),
	)
	if err != nil {
		return 0, err
	}
	resolved := int(tag.RowsAffected())

	// dependencies matching more than one output stay unresolved and
	// are surfaced to the caller.
	var ambiguous int
	if err := tx.QueryRow(
		ctx,
		`
		select count(*) from (
			select d."content_id"
			from "content" d
			join "content" o
			  on o."request_id" = d."request_id"
			 and o."relation" = $2
			 and o."name" = d."name"
			 and o."map_id" = d."map_id"
			 and o."sub_map_id" = d."dep_sub_map_id"
			where d."request_id" = $1
			  and d."relation" = $3
			  and d."content_dep_id" = 0
			group by d."content_id"
			having count(*) > 1
		) as "amb"
		`,
		requestId,
		domain.OutputCollection.String(), domain.InputDependencyCollection.String(),
	).Scan(&ambiguous); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	if 0 < ambiguous {
		return resolved, kpgerr.TooMuch{
			Table:    "content",
			Identity: "dependencies of request " + requestId,
			Expected: 1,
		}
	}
	return resolved, nil
}

func (m *catalogPG) GetUpdatedTransformsByContentStatus(
	ctx context.Context, status domain.Status,
) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select d."transform_id"
		from "content" d
		join "content" o on o."content_id" = d."content_dep_id"
		where d."relation" = $1 and d."content_dep_id" <> 0
		group by d."transform_id"
		having bool_and(o."status" = $2)
		`,
		domain.InputDependencyCollection.String(), status.Code(),
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

func (m *catalogPG) RefreshCollectionCounters(
	ctx context.Context, collId int64,
) (domain.Collection, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Collection{}, err
	}
	defer tx.Rollback(ctx)

	// byte counters come from executor reports, not contents;
	// only the file counters are derived here.
	tag, err := tx.Exec(
		ctx,
		`
		update "collection" c
		set "total_files" = "agg"."total",
		    "processed_files" = "agg"."processed",
		    "updated_at" = now()
		from (
			select count(*) as "total",
			       count(*) filter (where "status" = any($2::smallint[])) as "processed"
			from "content" where "coll_id" = $1
		) as "agg"
		where c."coll_id" = $1
		`,
		collId, []int16{domain.Available.Code(), domain.Finished.Code()},
	)
	if err != nil {
		return domain.Collection{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Collection{}, kpgerr.Missing{
			Table: "collection", Identity: strconv.FormatInt(collId, 10),
		}
	}

	coll, err := kpgintr.GetCollection(ctx, tx, collId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Collection{}, kpgerr.Missing{
				Table: "collection", Identity: strconv.FormatInt(collId, 10),
			}
		}
		return domain.Collection{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Collection{}, err
	}
	return coll, nil
}
