package domain

import (
	"fmt"
	"time"
)

// CollectionRelation tells how a Transform is related to a Collection.
type CollectionRelation string

const (
	// the transform consumes this collection.
	InputCollection CollectionRelation = "input"

	// the transform produces this collection.
	OutputCollection CollectionRelation = "output"

	// execution logs of the transform.
	LogCollection CollectionRelation = "log"

	// inputs resolved against another transform's outputs.
	InputDependencyCollection CollectionRelation = "input_dependency"
)

func (cr CollectionRelation) String() string {
	return string(cr)
}

func AsCollectionRelation(s string) (CollectionRelation, error) {
	switch s {
	case string(InputCollection):
		return InputCollection, nil
	case string(OutputCollection):
		return OutputCollection, nil
	case string(LogCollection):
		return LogCollection, nil
	case string(InputDependencyCollection):
		return InputDependencyCollection, nil
	default:
		return "", fmt.Errorf("'%s' is not a CollectionRelation", s)
	}
}

// Collection is a named group of Content tied to one Transform.
//
// Counters are progress aggregates over its contents, refreshed by agents;
// they feed condition evaluation ("is this collection fully produced").
type Collection struct {
	Id          int64
	TransformId string
	RequestId   string

	Name  string
	Scope string

	Relation CollectionRelation
	Status   Status

	TotalFiles     int64
	ProcessedFiles int64
	TotalBytes     int64
	ProcessedBytes int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Collection) Equal(o *Collection) bool {
	if (c == nil) || (o == nil) {
		return (c == nil) && (o == nil)
	}
	return c.Id == o.Id &&
		c.TransformId == o.TransformId &&
		c.RequestId == o.RequestId &&
		c.Name == o.Name &&
		c.Scope == o.Scope &&
		c.Relation == o.Relation &&
		c.Status == o.Status &&
		c.TotalFiles == o.TotalFiles &&
		c.ProcessedFiles == o.ProcessedFiles &&
		c.TotalBytes == o.TotalBytes &&
		c.ProcessedBytes == o.ProcessedBytes
}

// FullyProduced reports whether every expected content has arrived.
func (c *Collection) FullyProduced() bool {
	return 0 < c.TotalFiles && c.ProcessedFiles == c.TotalFiles
}
