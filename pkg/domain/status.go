package domain

import "fmt"

// Status is the lifecycle state of a Request, Transform, Processing,
// Collection or Content.
//
// Statuses are stored as smallint codes in the database and rendered
// by name everywhere else. Use Code / StatusByCode at the store boundary
// and never leak codes past it.
type Status string

const (
	// just created, not picked up by any agent yet.
	New Status = "new"

	// children are being created or are still in progress.
	Transforming Status = "transforming"

	// handed to an external executor, not observed running yet.
	Submitted Status = "submitted"

	// observed running on an external executor. Rendered as
	// "processing" on the wire; the Go name avoids the entity type.
	Running Status = "processing"

	// content is produced and ready to be consumed.
	Available Status = "available"

	// finished, all parts successful.
	Finished Status = "finished"

	// finished, but some parts did not complete fully.
	SubFinished Status = "subfinished"

	// stopped with error after exhausting the retry budget.
	Failed Status = "failed"

	// cancel requested, children still being wound down.
	Cancelling Status = "cancelling"

	// cancelled on request.
	Cancelled Status = "cancelled"

	// paused by operator, can resume.
	Suspended Status = "suspended"

	// lifetime elapsed before completion.
	Expired Status = "expired"

	// the external executor lost track of it.
	Lost Status = "lost"

	// stored state is inconsistent, needs manual attention.
	Broken Status = "broken"
)

func (s Status) String() string {
	return string(s)
}

var statusCodes = map[Status]int16{
	New:          0,
	Transforming: 1,
	Submitted:    2,
	Running:      3,
	Available:    4,
	Finished:     5,
	SubFinished:  6,
	Failed:       7,
	Cancelling:   8,
	Cancelled:    9,
	Suspended:    10,
	Expired:      11,
	Lost:         12,
	Broken:       13,
}

var statusByCode = func() map[int16]Status {
	m := make(map[int16]Status, len(statusCodes))
	for s, c := range statusCodes {
		m[c] = s
	}
	return m
}()

// Code returns the smallint representation stored in the database.
func (s Status) Code() int16 {
	return statusCodes[s]
}

func StatusByCode(code int16) (Status, error) {
	s, ok := statusByCode[code]
	if !ok {
		return "", fmt.Errorf("%d is not a status code", code)
	}
	return s, nil
}

func AsStatus(status string) (Status, error) {
	s := Status(status)
	if _, ok := statusCodes[s]; !ok {
		return "", fmt.Errorf("'%s' is not a Status", status)
	}
	return s, nil
}

// Terminal reports whether no further transition can happen from s.
func (s Status) Terminal() bool {
	switch s {
	case Finished, SubFinished, Failed, Cancelled, Expired, Lost, Broken:
		return true
	default:
		return false
	}
}

// rollupRule: when the whole child multiset falls into Over,
// the parent's effective status is Result.
type rollupRule struct {
	Result Status
	Over   []Status
}

// Rules are tried in order; the first covering rule wins.
// Ordering matters: one non-terminal child keeps the parent non-terminal,
// and a "worse" terminal status takes over only when every child is terminal.
var rollupLattice = []rollupRule{
	{Result: Finished, Over: []Status{Finished}},
	{Result: SubFinished, Over: []Status{Finished, SubFinished}},
	{Result: Failed, Over: []Status{Finished, SubFinished, Failed}},
	{Result: Cancelled, Over: []Status{Finished, SubFinished, Failed, Cancelled}},
	{Result: Suspended, Over: []Status{Finished, SubFinished, Failed, Cancelled, Suspended}},
	{Result: Expired, Over: []Status{Finished, SubFinished, Failed, Cancelled, Suspended, Expired}},
}

// RollUp computes a parent's effective status from its children's statuses.
//
// It is a pure function: same multiset in, same status out.
// An empty child set means the parent has not expanded yet, so it rolls
// up to Transforming like any other still-in-progress shape.
func RollUp(children []Status) Status {
	if len(children) == 0 {
		return Transforming
	}

NEXT_RULE:
	for _, rule := range rollupLattice {
		for _, c := range children {
			admissible := false
			for _, o := range rule.Over {
				if c == o {
					admissible = true
					break
				}
			}
			if !admissible {
				continue NEXT_RULE
			}
		}
		return rule.Result
	}

	return Transforming
}

var ErrInvalidStatusChanging = fmt.Errorf("cannot change status")

func NewErrInvalidStatusChanging(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChanging, from, to)
}
