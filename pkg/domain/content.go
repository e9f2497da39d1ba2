package domain

import (
	"time"

	"github.com/opst/weft/pkg/utils/cmp"
)

// Content is the smallest addressable unit tracked by weft:
// a file, a partition, or a pseudo-content point such as a
// hyperparameter trial.
type Content struct {
	Id          int64
	CollId      int64
	TransformId string
	RequestId   string

	// position within the collection, used for dependency matching.
	// One row can represent a range [MinId, MaxId] (a file chunk).
	MapId    int64
	SubMapId int64

	// sub-position on the output side this content depends on.
	DepSubMapId int64

	// for InputDependencyCollection contents: id of the Output content
	// this one depends on. Must resolve to exactly one Output content
	// in the same Request. Zero when unresolved.
	ContentDepId int64

	Relation CollectionRelation

	Status    Status
	Substatus int

	Name  string
	MinId int64
	MaxId int64

	Path     string
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the composite unique key of the content.
//
// Names are not unique across large fan-outs; matching is keyed by the
// whole tuple, never by name alone.
func (c *Content) Key() ContentKey {
	return ContentKey{
		TransformId: c.TransformId,
		CollId:      c.CollId,
		MapId:       c.MapId,
		SubMapId:    c.SubMapId,
		DepSubMapId: c.DepSubMapId,
		Relation:    c.Relation,
		Name:        c.Name,
		MinId:       c.MinId,
		MaxId:       c.MaxId,
	}
}

type ContentKey struct {
	TransformId string
	CollId      int64
	MapId       int64
	SubMapId    int64
	DepSubMapId int64
	Relation    CollectionRelation
	Name        string
	MinId       int64
	MaxId       int64
}

func (c *Content) Equal(o *Content) bool {
	if (c == nil) || (o == nil) {
		return (c == nil) && (o == nil)
	}
	return c.Id == o.Id &&
		c.Key() == o.Key() &&
		c.RequestId == o.RequestId &&
		c.ContentDepId == o.ContentDepId &&
		c.Status == o.Status &&
		c.Substatus == o.Substatus &&
		c.Path == o.Path &&
		cmp.MapEq(c.Metadata, o.Metadata)
}

// ContentMatchQuery asks the catalog for stored contents covering a range.
type ContentMatchQuery struct {
	CollId int64
	Scope  string
	Name   string

	// requested range. A stored row matches when its [MinId, MaxId]
	// encloses [MinId, MaxId] of the query.
	MinId int64
	MaxId int64

	// when several stored rows enclose the range, return only the most
	// specific one: smallest enclosing width, then most recently updated.
	OnlyReturnBestMatch bool
}

// parameter to query contents. Empty dimensions match any.
type ContentFindQuery struct {
	RequestId   []string
	TransformId []string
	CollId      []int64
	Relation    []CollectionRelation
	Status      []Status
}

func (q ContentFindQuery) Equal(o ContentFindQuery) bool {
	return cmp.SliceContentEq(q.RequestId, o.RequestId) &&
		cmp.SliceContentEq(q.TransformId, o.TransformId) &&
		cmp.SliceContentEq(q.CollId, o.CollId) &&
		cmp.SliceContentEq(q.Relation, o.Relation) &&
		cmp.SliceContentEq(q.Status, o.Status)
}
