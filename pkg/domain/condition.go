package domain

import (
	"fmt"
	"time"

	"github.com/opst/weft/pkg/utils/cmp"
)

type ConditionStatus string

const (
	// waiting for its predicate to become true.
	WaitForTrigger ConditionStatus = "wait_for_trigger"

	// predicate observed true; followers have been activated.
	Triggered ConditionStatus = "triggered"

	// evaluation paused by operator or cancel.
	ConditionSuspended ConditionStatus = "suspended"
)

func (cs ConditionStatus) String() string {
	return string(cs)
}

func AsConditionStatus(s string) (ConditionStatus, error) {
	switch s {
	case string(WaitForTrigger):
		return WaitForTrigger, nil
	case string(Triggered):
		return Triggered, nil
	case string(ConditionSuspended):
		return ConditionSuspended, nil
	default:
		return "", fmt.Errorf("'%s' is not a ConditionStatus", s)
	}
}

// Condition is a trigger record linking predecessor Transform statuses
// to follower Transform activation.
//
// A loop condition is never consumed: each satisfied evaluation clones
// it with LoopIndex+1 and ClonedFrom set, spawning a fresh generation of
// follower transforms. (RequestId, InternalId, LoopIndex) is unique,
// which keeps re-evaluation idempotent.
type Condition struct {
	Id        int64
	RequestId string

	InternalId string
	Status     ConditionStatus

	IsLoop    bool
	LoopIndex int
	MaxLoops  int

	// id of the template condition this one was cloned from. 0 for originals.
	ClonedFrom int64

	// internal ids feeding the predicate.
	PreviousTransforms []string

	// internal ids activated when the predicate fires.
	FollowingTransforms []string

	Predicate Expression

	// statuses observed at trigger time, keyed by internal id.
	EvaluateResult map[string]Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Condition) Equal(o *Condition) bool {
	if (c == nil) || (o == nil) {
		return (c == nil) && (o == nil)
	}
	return c.Id == o.Id &&
		c.RequestId == o.RequestId &&
		c.InternalId == o.InternalId &&
		c.Status == o.Status &&
		c.IsLoop == o.IsLoop &&
		c.LoopIndex == o.LoopIndex &&
		c.MaxLoops == o.MaxLoops &&
		c.ClonedFrom == o.ClonedFrom &&
		cmp.SliceContentEq(c.PreviousTransforms, o.PreviousTransforms) &&
		cmp.SliceContentEq(c.FollowingTransforms, o.FollowingTransforms) &&
		cmp.MapEq(c.EvaluateResult, o.EvaluateResult)
}

// LoopInternalId renders the internal id of a follower transform
// instantiated by loop generation loopIndex.
//
// Generation 0 keeps the template id as is.
func LoopInternalId(internalId string, loopIndex int) string {
	if loopIndex == 0 {
		return internalId
	}
	return fmt.Sprintf("%s#%d", internalId, loopIndex)
}
