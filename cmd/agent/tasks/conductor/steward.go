package conductor

import (
	"context"
	"log"
	"time"

	"github.com/opst/weft/pkg/domain"
	kdbhlt "github.com/opst/weft/pkg/domain/health/db"
	kdbthr "github.com/opst/weft/pkg/domain/throttle/db"

	"github.com/opst/weft/cmd/agent/recurring"
)

// return:
//
// - task : reporting this instance's heartbeat and, while elected for
// the conductor role, refreshing throttle counters from the store
// aggregates.
//
// Counters drift between refreshes; admission may overshoot by one
// polling interval. Exactness is traded for never blocking submitters
// on aggregate queries.
func Steward(
	logger *log.Logger,
	self domain.HealthItem,
	leaderWindow time.Duration,
	dbHealth kdbhlt.Interface,
	dbThrottle kdbthr.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		self.Status = domain.HealthDefault
		if err := dbHealth.AddHealthItem(ctx, self); err != nil {
			return value, false, err
		}

		leader, err := dbHealth.SelectAgent(ctx, self.Agent, leaderWindow)
		if err != nil {
			return value, false, err
		}
		if leader.Key() != self.Key() {
			return value, false, nil
		}

		throttles, err := dbThrottle.List(ctx)
		if err != nil {
			return value, false, err
		}
		refreshed := false
		for _, throttle := range throttles {
			next, err := dbThrottle.RefreshCounters(ctx, throttle.Site)
			if err != nil {
				logger.Printf("counter refresh failed: site = %s: %s", throttle.Site, err)
				return value, refreshed, err
			}
			if !next.Equal(&throttle) {
				logger.Printf(
					"throttle refreshed: site = %s, requests = %d, transforms = %d, processings = %d, contents = %d",
					next.Site, next.ActiveRequests, next.ActiveTransforms,
					next.ActiveProcessings, next.QueuedContents,
				)
				refreshed = true
			}
		}
		return value, refreshed, nil
	}
}
