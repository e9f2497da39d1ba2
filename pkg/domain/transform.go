package domain

import (
	"time"

	"github.com/opst/weft/pkg/utils/cmp"
)

// Core part of Transform: one node of a request's DAG.
type TransformBody struct {
	Id        string
	RequestId string

	// position within the request's DAG.
	//
	// A loop clone carries "<template internal id>#<loop index>".
	InternalId       string
	ParentInternalId string

	// loop lineage. LoopIndex is 0 for non-loop nodes and first generations.
	LoopIndex  int
	ClonedFrom string

	Site   string
	Status Status

	// a gated transform is declared but not yet runnable: its condition
	// has not fired. Agents never pick gated transforms.
	Gated bool

	Retries    int
	MaxRetries int

	// id of the one active processing, if any.
	CurrentProcessingId string

	Lock      *Lock
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tb *TransformBody) Equal(o *TransformBody) bool {
	if (tb == nil) || (o == nil) {
		return (tb == nil) && (o == nil)
	}
	return tb.Id == o.Id &&
		tb.RequestId == o.RequestId &&
		tb.InternalId == o.InternalId &&
		tb.ParentInternalId == o.ParentInternalId &&
		tb.LoopIndex == o.LoopIndex &&
		tb.ClonedFrom == o.ClonedFrom &&
		tb.Site == o.Site &&
		tb.Status == o.Status &&
		tb.Gated == o.Gated &&
		tb.Retries == o.Retries &&
		tb.MaxRetries == o.MaxRetries &&
		tb.CurrentProcessingId == o.CurrentProcessingId
}

type Transform struct {
	TransformBody

	// the workflow node this transform instantiates.
	Spec TransformSpec

	// collections this transform reads/writes, by id.
	Collections []Collection
}

func (t *Transform) Equal(o *Transform) bool {
	return t.TransformBody.Equal(&o.TransformBody) &&
		t.Spec.Equal(&o.Spec) &&
		cmp.SliceContentEqWith(
			t.Collections, o.Collections,
			func(a, b Collection) bool { return a.Equal(&b) },
		)
}

// parameter to query transforms. Empty dimensions match any.
type TransformFindQuery struct {
	RequestId []string
	Site      []string
	Status    []Status
}

func (q TransformFindQuery) Equal(o TransformFindQuery) bool {
	return cmp.SliceContentEq(q.RequestId, o.RequestId) &&
		cmp.SliceContentEq(q.Site, o.Site) &&
		cmp.SliceContentEq(q.Status, o.Status)
}

// TransformCursor drives pick-and-progress polling over transforms.
type TransformCursor struct {
	// id of the transform picked last time.
	Head string

	// interval to avoid re-picking the same transform without progress.
	Debounce time.Duration

	// statuses eligible for picking.
	Status []Status
}

func (c TransformCursor) Equal(o TransformCursor) bool {
	return c.Head == o.Head &&
		c.Debounce == o.Debounce &&
		cmp.SliceContentEq(c.Status, o.Status)
}
