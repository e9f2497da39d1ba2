package domain

import (
	"fmt"
	"time"
)

type HealthStatus string

const (
	// the elected instance for its agent name.
	HealthActive HealthStatus = "active"

	// reporting heartbeats, not elected.
	HealthDefault HealthStatus = "default"
)

func (hs HealthStatus) String() string {
	return string(hs)
}

// HealthItem is one heartbeat row per (agent, hostname, pid, thread).
//
// Used for advisory leader election: eventually exactly one Active item
// per agent name. Brief double-promotion under races is tolerated;
// the elected duties are safe when doubled for a short window.
type HealthItem struct {
	Agent    string
	Hostname string
	Pid      int
	ThreadId string

	Status HealthStatus

	Payload string

	UpdatedAt time.Time
}

// Key identifies the reporting instance.
func (h *HealthItem) Key() string {
	return fmt.Sprintf("%s@%s:%d/%s", h.Agent, h.Hostname, h.Pid, h.ThreadId)
}

func (h *HealthItem) Equal(o *HealthItem) bool {
	if (h == nil) || (o == nil) {
		return (h == nil) && (o == nil)
	}
	return h.Agent == o.Agent &&
		h.Hostname == o.Hostname &&
		h.Pid == o.Pid &&
		h.ThreadId == o.ThreadId &&
		h.Status == o.Status &&
		h.Payload == o.Payload &&
		h.UpdatedAt.Equal(o.UpdatedAt)
}

// Stale reports whether the heartbeat is older than the window at now.
func (h *HealthItem) Stale(now time.Time, window time.Duration) bool {
	return h.UpdatedAt.Add(window).Before(now)
}
