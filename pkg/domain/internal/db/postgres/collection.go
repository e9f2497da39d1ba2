package postgres

import (
	"context"

	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
)

const collectionColumns = `
	"coll_id", "transform_id", "request_id", "name", "scope",
	"relation", "status",
	"total_files", "processed_files", "total_bytes", "processed_bytes",
	"created_at", "updated_at"
`

func scanCollection(rows interface {
	Scan(dest ...interface{}) error
}) (domain.Collection, error) {
	var c domain.Collection
	var statusCode int16
	var relation string

	if err := rows.Scan(
		&c.Id, &c.TransformId, &c.RequestId, &c.Name, &c.Scope,
		&relation, &statusCode,
		&c.TotalFiles, &c.ProcessedFiles, &c.TotalBytes, &c.ProcessedBytes,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Collection{}, err
	}

	var err error
	if c.Status, err = domain.StatusByCode(statusCode); err != nil {
		return domain.Collection{}, err
	}
	if c.Relation, err = domain.AsCollectionRelation(relation); err != nil {
		return domain.Collection{}, err
	}
	return c, nil
}

// GetCollectionsByTransform loads collections of the given transforms,
// grouped by transform id.
func GetCollectionsByTransform(
	ctx context.Context, conn kpool.Queryer, transformIds []string,
) (map[string][]domain.Collection, error) {
	if len(transformIds) == 0 {
		return map[string][]domain.Collection{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`select `+collectionColumns+`
		from "collection"
		where "transform_id" = any($1::varchar[])
		order by "coll_id"`,
		transformIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		result[c.TransformId] = append(result[c.TransformId], c)
	}
	return result, nil
}

// InsertCollection writes one collection row and returns its id.
func InsertCollection(
	ctx context.Context, conn kpool.Queryer, c domain.Collection,
) (int64, error) {
	var collId int64
	err := conn.QueryRow(
		ctx,
		`
		insert into "collection" (
			"transform_id", "request_id", "name", "scope", "relation", "status",
			"total_files", "processed_files", "total_bytes", "processed_bytes",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		returning "coll_id"
		`,
		c.TransformId, c.RequestId, c.Name, c.Scope, c.Relation.String(), c.Status.Code(),
		c.TotalFiles, c.ProcessedFiles, c.TotalBytes, c.ProcessedBytes,
	).Scan(&collId)
	return collId, err
}

// GetCollection loads one collection row.
func GetCollection(
	ctx context.Context, conn kpool.Queryer, collId int64,
) (domain.Collection, error) {
	row := conn.QueryRow(
		ctx,
		`select `+collectionColumns+` from "collection" where "coll_id" = $1`,
		collId,
	)
	return scanCollection(row)
}
