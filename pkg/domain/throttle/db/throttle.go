package db

import (
	"context"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// throttle of a site. Nil (and no error) when the site has none;
	// throttling is opt-in per site.
	Get(ctx context.Context, site string) (*domain.Throttle, error)

	// all known throttles.
	List(ctx context.Context) ([]domain.Throttle, error)

	// create or update a site's limits and status, keeping counters.
	Upsert(ctx context.Context, throttle domain.Throttle) error

	// recompute a site's live counters from entity aggregates in one
	// statement. Called periodically by the conductor, not with every
	// state change.
	RefreshCounters(ctx context.Context, site string) (domain.Throttle, error)
}
