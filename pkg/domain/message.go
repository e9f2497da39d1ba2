package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentRole names one kind of polling agent.
type AgentRole string

const (
	// expands new requests into transforms, collections and conditions.
	Clerk AgentRole = "clerk"

	// activates triggered transforms and submits processings.
	Transformer AgentRole = "transformer"

	// polls executors and registers produced contents.
	Carrier AgentRole = "carrier"

	// dispatches commands/events, refreshes throttles, leader duties.
	Conductor AgentRole = "conductor"

	// expires, finalizes and cleans up terminal entities.
	Archiver AgentRole = "archiver"
)

func (r AgentRole) String() string {
	return string(r)
}

func AsAgentRole(s string) (AgentRole, error) {
	switch s {
	case string(Clerk):
		return Clerk, nil
	case string(Transformer):
		return Transformer, nil
	case string(Carrier):
		return Carrier, nil
	case string(Conductor):
		return Conductor, nil
	case string(Archiver):
		return Archiver, nil
	default:
		return "", fmt.Errorf("'%s' is not an AgentRole", s)
	}
}

// MessageStatus is the mailbox lifecycle of a Command or Event.
type MessageStatus string

const (
	// inserted, not picked by any consumer.
	NewMessage MessageStatus = "new"

	// picked by exactly one consumer which is acting on it.
	LockingMessage MessageStatus = "locking"

	// consumed; kept until retention cleanup.
	ProcessedMessage MessageStatus = "processed"

	// consumer reported failure; eligible for re-delivery.
	FailedMessage MessageStatus = "failed"
)

func (ms MessageStatus) String() string {
	return string(ms)
}

type CommandType string

const (
	// cancel a request and its live children.
	AbortRequest CommandType = "abort_request"

	// cancel a single transform.
	AbortTransform CommandType = "abort_transform"

	// push the request's expiry further out.
	ExtendLifetime CommandType = "extend_lifetime"

	// force condition re-evaluation for a request.
	Reevaluate CommandType = "reevaluate"
)

func AsCommandType(s string) (CommandType, error) {
	switch s {
	case string(AbortRequest):
		return AbortRequest, nil
	case string(AbortTransform):
		return AbortTransform, nil
	case string(ExtendLifetime):
		return ExtendLifetime, nil
	case string(Reevaluate):
		return Reevaluate, nil
	default:
		return "", fmt.Errorf("'%s' is not a CommandType", s)
	}
}

// Command carries a cross-agent instruction through the store.
type Command struct {
	Id        int64
	RequestId string

	Type CommandType

	// roles at both ends. Consumers poll by Destination.
	Source      AgentRole
	Destination AgentRole

	Status MessageStatus

	// holder of the Locking status, for stale-lock reclaim.
	LockedBy string
	LockedAt *time.Time

	Payload json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventType string

const (
	// new work appeared (request expanded, transform activated).
	// Structural; pre-empts routine polling events.
	AddWork EventType = "add_work"

	// re-check a processing against its executor.
	PollProcessing EventType = "poll_processing"

	// contents reached a terminal status; dependents may progress.
	ContentUpdated EventType = "content_updated"
)

func AsEventType(s string) (EventType, error) {
	switch s {
	case string(AddWork):
		return AddWork, nil
	case string(PollProcessing):
		return PollProcessing, nil
	case string(ContentUpdated):
		return ContentUpdated, nil
	default:
		return "", fmt.Errorf("'%s' is not an EventType", s)
	}
}

// Event carries a typed intra-agent trigger, consumed by exactly one of
// several competing workers for its type.
type Event struct {
	Id int64

	Type EventType

	// higher wins; age breaks ties.
	Priority int

	Status MessageStatus

	Payload json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}
