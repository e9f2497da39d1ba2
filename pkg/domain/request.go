package domain

import (
	"time"

	"github.com/opst/weft/pkg/utils/cmp"
)

// Lock marks an entity owned by one agent instance.
//
// A nil Lock means the entity is idle. A Lock whose Since is older than
// the configured stale threshold is abandoned and may be re-acquired
// by another agent.
type Lock struct {
	// "<agent>@<hostname>:<pid>" of the holder.
	Owner string

	Since time.Time
}

func (l *Lock) Equal(o *Lock) bool {
	if (l == nil) || (o == nil) {
		return (l == nil) && (o == nil)
	}
	return l.Owner == o.Owner && l.Since.Equal(o.Since)
}

// RequestType tells what kind of workload the request describes.
type RequestType string

const (
	WorkflowRequest  RequestType = "workflow"
	SingleRequest    RequestType = "single"
	HyperLoopRequest RequestType = "hyperloop"
)

// aggregate counters rolled up from transforms, refreshed by agents.
type RequestProgress struct {
	TotalTransforms    int
	FinishedTransforms int
	FailedTransforms   int
}

// Core part of Request.
type RequestBody struct {
	Id string

	// client-side identity of the workload. Unique per (Scope, Workload).
	Scope    string
	Workload string

	Requester string
	Type      RequestType
	Status    Status
	Priority  int

	// the request expires when now passes this instant.
	ExpiredAt time.Time

	Progress RequestProgress

	Lock      *Lock
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (rb *RequestBody) Equal(o *RequestBody) bool {
	if (rb == nil) || (o == nil) {
		return (rb == nil) && (o == nil)
	}
	return rb.Id == o.Id &&
		rb.Scope == o.Scope &&
		rb.Workload == o.Workload &&
		rb.Requester == o.Requester &&
		rb.Type == o.Type &&
		rb.Status == o.Status &&
		rb.Priority == o.Priority &&
		rb.ExpiredAt.Equal(o.ExpiredAt) &&
		rb.Progress == o.Progress
}

type Request struct {
	RequestBody

	// declarative workflow this request expands to.
	Workflow Workflow

	// free-form metadata blob sent by the requester.
	Metadata map[string]string
}

func (r *Request) Equal(o *Request) bool {
	return r.RequestBody.Equal(&o.RequestBody) &&
		r.Workflow.Equal(&o.Workflow) &&
		cmp.MapEq(r.Metadata, o.Metadata)
}

// Expired reports whether the request's lifetime has elapsed at now.
func (r *RequestBody) Expired(now time.Time) bool {
	return !r.ExpiredAt.IsZero() && !now.Before(r.ExpiredAt)
}

// parameter to query requests.
//
// When all dimensions match a request, the query matches the request.
// Empty dimensions match any.
type RequestFindQuery struct {
	Scope    string
	Workload string
	Status   []Status

	UpdatedSince *time.Time
	UpdatedUntil *time.Time
}

func (q RequestFindQuery) Equal(o RequestFindQuery) bool {
	return q.Scope == o.Scope &&
		q.Workload == o.Workload &&
		cmp.SliceContentEq(q.Status, o.Status) &&
		cmp.PEqualWith(q.UpdatedSince, o.UpdatedSince, func(a, b time.Time) bool { return a.Equal(b) }) &&
		cmp.PEqualWith(q.UpdatedUntil, o.UpdatedUntil, func(a, b time.Time) bool { return a.Equal(b) })
}
