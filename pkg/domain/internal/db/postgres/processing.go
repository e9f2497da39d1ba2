package postgres

import (
	"context"
	"encoding/json"
	"time"

	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
	"github.com/opst/weft/pkg/domain"
)

// GetProcessings loads processings by id, with executor metadata.
func GetProcessings(
	ctx context.Context, conn kpool.Queryer, processingIds []string,
) (map[string]domain.Processing, error) {
	if len(processingIds) == 0 {
		return map[string]domain.Processing{}, nil
	}

	rows, err := conn.Query(
		ctx,
		`
		select
			"processing_id", "transform_id", "request_id", "status",
			"granularity", "granularity_type", "retries",
			"executor", "handle", "metadata",
			"locked_by", "locked_at",
			"created_at", "updated_at"
		from "processing"
		where "processing_id" = any($1::varchar[])
		`,
		processingIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Processing{}
	for rows.Next() {
		var p domain.Processing
		var statusCode int16
		var metadata []byte
		var lockedBy *string
		var lockedAt *time.Time

		if err := rows.Scan(
			&p.Id, &p.TransformId, &p.RequestId, &statusCode,
			&p.Granularity, &p.GranularityType, &p.Retries,
			&p.Executor, &p.Handle, &metadata,
			&lockedBy, &lockedAt,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if p.Status, err = domain.StatusByCode(statusCode); err != nil {
			return nil, err
		}
		if metadata != nil {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, err
			}
		}
		p.Lock = lockOf(lockedBy, lockedAt)

		result[p.Id] = p
	}
	return result, nil
}
