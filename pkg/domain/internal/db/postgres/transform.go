package postgres

import (
	"context"
	"encoding/json"
	"time"

	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
)

// GetTransforms loads transforms by id, with their specs.
// Collections are loaded separately (see GetCollectionsByTransform).
func GetTransforms(
	ctx context.Context, conn kpool.Queryer, transformIds []string,
) (map[string]domain.Transform, error) {
	if len(transformIds) == 0 {
		return map[string]domain.Transform{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"transform_id", "request_id", "internal_id", "parent_internal_id",
			"loop_index", "cloned_from", "site", "status", "gated",
			"retries", "max_retries", "current_processing_id", "spec",
			"locked_by", "locked_at",
			"created_at", "updated_at"
		from "transform"
		where "transform_id" = any($1::varchar[])
		`,
		transformIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Transform{}
	for rows.Next() {
		var t domain.Transform
		var statusCode int16
		var spec []byte
		var lockedBy *string
		var lockedAt *time.Time

		if err := rows.Scan(
			&t.Id, &t.RequestId, &t.InternalId, &t.ParentInternalId,
			&t.LoopIndex, &t.ClonedFrom, &t.Site, &statusCode, &t.Gated,
			&t.Retries, &t.MaxRetries, &t.CurrentProcessingId, &spec,
			&lockedBy, &lockedAt,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if t.Status, err = domain.StatusByCode(statusCode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(spec, &t.Spec); err != nil {
			return nil, err
		}
		t.Lock = lockOf(lockedBy, lockedAt)

		result[t.Id] = t
	}

	return result, nil
}

// InsertTransform writes one transform row.
//
// (request_id, internal_id) is unique; a conflicting insert is ignored
// and reported as inserted=false, which keeps loop-clone creation
// idempotent under concurrent condition firing.
func InsertTransform(
	ctx context.Context, conn kpool.Queryer, t domain.Transform,
) (inserted bool, err error) {
	spec, err := json.Marshal(t.Spec)
	if err != nil {
		return false, err
	}

	tag, err := conn.Exec(
		ctx,
		`
		insert into "transform" (
			"transform_id", "request_id", "internal_id", "parent_internal_id",
			"loop_index", "cloned_from", "site", "status", "gated",
			"retries", "max_retries", "current_processing_id", "spec",
			"created_at", "updated_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		on conflict ("request_id", "internal_id") do nothing
		`,
		t.Id, t.RequestId, t.InternalId, t.ParentInternalId,
		t.LoopIndex, t.ClonedFrom, t.Site, t.Status.Code(), t.Gated,
		t.Retries, t.MaxRetries, t.CurrentProcessingId, spec,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TransformStatusesByInternalId maps internal id -> status for a request.
func TransformStatusesByInternalId(
	ctx context.Context, conn kpool.Queryer, requestId string,
) (map[string]domain.Status, error) {
	rows, err := conn.Query(
		ctx,
		`select "internal_id", "status" from "transform" where "request_id" = $1`,
		requestId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Status{}
	for rows.Next() {
		var internalId string
		var code int16
		if err := rows.Scan(&internalId, &code); err != nil {
			return nil, err
		}
		s, err := domain.StatusByCode(code)
		if err != nil {
			return nil, err
		}
		result[internalId] = s
	}
	return result, nil
}
