package db

import (
	"context"
	"time"

	"github.com/opst/weft/pkg/domain"
)

type Interface interface {
	// upsert a heartbeat keyed by (agent, hostname, pid, thread id),
	// refreshing its timestamp.
	AddHealthItem(ctx context.Context, item domain.HealthItem) error

	// elect the active instance for an agent name.
	//
	// Purges items with heartbeats older than newerThan, then among the
	// rest for the name: keeps an already-Active item if still fresh,
	// else promotes the item with the youngest heartbeat, demoting any
	// other Active rows.
	//
	// Advisory: concurrent callers may race and briefly double-promote.
	// The contract is "eventually exactly one", not mutual exclusion.
	//
	// Returns dberrors Missing when no live item exists for the name.
	SelectAgent(ctx context.Context, agent string, newerThan time.Duration) (domain.HealthItem, error)

	// all live items for an agent name, youngest heartbeat first.
	Find(ctx context.Context, agent string) ([]domain.HealthItem, error)
}
