package domain

import "fmt"

type ThrottleStatus string

const (
	ThrottleActive   ThrottleStatus = "active"
	ThrottleInactive ThrottleStatus = "inactive"
)

func (ts ThrottleStatus) String() string {
	return string(ts)
}

// ThrottleKind is what a limit counts.
type ThrottleKind string

const (
	ThrottleRequests    ThrottleKind = "requests"
	ThrottleTransforms  ThrottleKind = "transforms"
	ThrottleProcessings ThrottleKind = "processings"
	ThrottleContents    ThrottleKind = "contents"
)

// Throttle is the per-site admission gate.
//
// Counters are refreshed periodically from store aggregates, not kept
// transactionally with every state change. The accepted failure mode is
// transient over-admission by one poll interval, never starvation.
type Throttle struct {
	Site   string
	Status ThrottleStatus

	// 0 means unlimited.
	MaxRequests    int64
	MaxTransforms  int64
	MaxProcessings int64
	MaxContents    int64

	ActiveRequests    int64
	ActiveTransforms  int64
	ActiveProcessings int64
	QueuedContents    int64
}

func (t *Throttle) Equal(o *Throttle) bool {
	if (t == nil) || (o == nil) {
		return (t == nil) && (o == nil)
	}
	return *t == *o
}

// Admits reports whether the site has capacity for one more entity of kind.
//
// An inactive throttle is a disabled rule: its limits are ignored and
// everything is admitted, same as an unknown site (nil receiver).
// Throttling is opt-in per site and per rule.
func (t *Throttle) Admits(kind ThrottleKind) bool {
	if t == nil {
		return true
	}
	if t.Status != ThrottleActive {
		return true
	}

	switch kind {
	case ThrottleRequests:
		return t.MaxRequests == 0 || t.ActiveRequests < t.MaxRequests
	case ThrottleTransforms:
		return t.MaxTransforms == 0 || t.ActiveTransforms < t.MaxTransforms
	case ThrottleProcessings:
		return t.MaxProcessings == 0 || t.ActiveProcessings < t.MaxProcessings
	case ThrottleContents:
		return t.MaxContents == 0 || t.QueuedContents < t.MaxContents
	default:
		return false
	}
}

var ErrSiteThrottled = fmt.Errorf("site is at capacity")
