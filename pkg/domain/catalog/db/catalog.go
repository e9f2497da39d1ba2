package db

import (
	"context"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// collections of a transform, optionally narrowed by relation.
	GetCollections(ctx context.Context, transformId string, relation ...domain.CollectionRelation) ([]domain.Collection, error)

	// register produced contents: bulk upsert on the composite unique
	// key (transform, coll, map, sub map, dep sub map, relation, name,
	// min, max). An existing row is updated in place, never duplicated,
	// tolerating at-least-once delivery from upstream executors.
	//
	// Returns numbers of rows inserted and updated.
	RegisterOutputContents(ctx context.Context, contents []domain.Content) (inserted int, updated int, err error)

	// contents enclosing the requested range.
	//
	// A stored row matches when query.CollId, Scope and Name match and
	// its [MinId, MaxId] encloses the query's. With OnlyReturnBestMatch,
	// only the most specific row is returned: smallest enclosing width,
	// tie broken by most recent update.
	GetMatchContents(ctx context.Context, query domain.ContentMatchQuery) ([]domain.Content, error)

	// find contents matching the query. Empty dimensions match any.
	FindContents(ctx context.Context, query domain.ContentFindQuery) ([]domain.Content, error)

	// resolve ContentDepId for unresolved InputDependency contents of a
	// request by matching their (transform, coll, map id, name) against
	// Output contents of the same request.
	//
	// Each dependency must resolve to exactly one Output content;
	// ambiguity is dberrors TooMuch and leaves the row unresolved.
	//
	// Returns the number of dependencies resolved by this call.
	ResolveDependencies(ctx context.Context, requestId string) (int, error)

	// ids of transforms owning InputDependency contents whose
	// depended-on Output contents are all in the given status.
	// Feeds condition/produce re-evaluation after content updates.
	GetUpdatedTransformsByContentStatus(ctx context.Context, status domain.Status) ([]string, error)

	// recompute a collection's progress counters from its contents.
	// Returns the refreshed collection.
	RefreshCollectionCounters(ctx context.Context, collId int64) (domain.Collection, error)
}
