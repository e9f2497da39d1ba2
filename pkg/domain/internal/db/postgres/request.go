package postgres

import (
	"context"
	"encoding/json"
	"time"

	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
)

// GetRequests loads requests by id, with workflow and metadata blobs.
//
// Missing ids are silently absent from the returned map.
func GetRequests(
	ctx context.Context, conn kpool.Queryer, requestIds []string,
) (map[string]domain.Request, error) {
	if len(requestIds) == 0 {
		return map[string]domain.Request{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"request_id", "scope", "workload", "requester", "req_type",
			"status", "priority", "expired_at",
			"total_transforms", "finished_transforms", "failed_transforms",
			"workflow", "metadata",
			"locked_by", "locked_at",
			"created_at", "updated_at"
		from "request"
		where "request_id" = any($1::varchar[])
		`,
		requestIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Request{}
	for rows.Next() {
		var r domain.Request
		var statusCode int16
		var workflow, metadata []byte
		var lockedBy *string
		var lockedAt *time.Time

		if err := rows.Scan(
			&r.Id, &r.Scope, &r.Workload, &r.Requester, &r.Type,
			&statusCode, &r.Priority, &r.ExpiredAt,
			&r.Progress.TotalTransforms, &r.Progress.FinishedTransforms, &r.Progress.FailedTransforms,
			&workflow, &metadata,
			&lockedBy, &lockedAt,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if r.Status, err = domain.StatusByCode(statusCode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(workflow, &r.Workflow); err != nil {
			return nil, err
		}
		if metadata != nil {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, err
			}
		}
		r.Lock = lockOf(lockedBy, lockedAt)

		result[r.Id] = r
	}

	return result, nil
}

func lockOf(lockedBy *string, lockedAt *time.Time) *domain.Lock {
	if lockedBy == nil || lockedAt == nil {
		return nil
	}
	return &domain.Lock{Owner: *lockedBy, Since: *lockedAt}
}
