package domain

import (
	"encoding/json"
	"time"

	"github.com/opst/weft/pkg/utils/cmp"
)

// Processing is one concrete execution attempt of a Transform,
// delegated to an external executor.
type Processing struct {
	Id          string
	TransformId string
	RequestId   string

	Status Status

	// how work is chunked for this attempt.
	Granularity     int
	GranularityType string

	Retries int

	// executor registry name this attempt was submitted through.
	Executor string

	// executor-side identity of the submitted job.
	// Empty until Submit succeeds.
	Handle string

	// executor-specific state: polling cursor, submit errors, raw report.
	Metadata ProcessingMetadata

	Lock      *Lock
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProcessingMetadata struct {
	// errors recorded at submission, newest last.
	SubmitErrors []string `json:"submit_errors,omitempty"`

	// opaque cursor the executor backend uses across polls.
	PollCursor string `json:"poll_cursor,omitempty"`

	// last raw report from the executor, for operators.
	LastReport json.RawMessage `json:"last_report,omitempty"`
}

func (p *Processing) Equal(o *Processing) bool {
	if (p == nil) || (o == nil) {
		return (p == nil) && (o == nil)
	}
	return p.Id == o.Id &&
		p.TransformId == o.TransformId &&
		p.RequestId == o.RequestId &&
		p.Status == o.Status &&
		p.Granularity == o.Granularity &&
		p.GranularityType == o.GranularityType &&
		p.Retries == o.Retries &&
		p.Executor == o.Executor &&
		p.Handle == o.Handle &&
		cmp.SliceEq(p.Metadata.SubmitErrors, o.Metadata.SubmitErrors) &&
		p.Metadata.PollCursor == o.Metadata.PollCursor
}

// parameter to query processings. Empty dimensions match any.
type ProcessingFindQuery struct {
	RequestId   []string
	TransformId []string
	Status      []Status
}

func (q ProcessingFindQuery) Equal(o ProcessingFindQuery) bool {
	return cmp.SliceContentEq(q.RequestId, o.RequestId) &&
		cmp.SliceContentEq(q.TransformId, o.TransformId) &&
		cmp.SliceContentEq(q.Status, o.Status)
}
