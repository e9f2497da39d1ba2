package types

import (
	"encoding/json"
	"time"
)

// CommandSpec is the body of POST /api/commands.
type CommandSpec struct {
	RequestId string `json:"request_id"`
	Type      string `json:"type"`

	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventSpec is the body of POST /api/events.
type EventSpec struct {
	Type     string          `json:"type"`
	Priority int             `json:"priority,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// MessagePosted acknowledges an accepted command or event.
type MessagePosted struct {
	Id int64 `json:"id"`
}

// HealthReport is the body of POST /api/health.
type HealthReport struct {
	Agent    string `json:"agent"`
	Hostname string `json:"hostname"`
	Pid      int    `json:"pid"`
	ThreadId string `json:"thread_id"`
	Payload  string `json:"payload,omitempty"`
}

type HealthItemDetail struct {
	Agent    string `json:"agent"`
	Hostname string `json:"hostname"`
	Pid      int    `json:"pid"`
	ThreadId string `json:"thread_id"`

	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

type ThrottleDetail struct {
	Site   string `json:"site"`
	Status string `json:"status"`

	MaxRequests    int64 `json:"max_requests,omitempty"`
	MaxTransforms  int64 `json:"max_transforms,omitempty"`
	MaxProcessings int64 `json:"max_processings,omitempty"`
	MaxContents    int64 `json:"max_contents,omitempty"`

	ActiveRequests    int64 `json:"active_requests"`
	ActiveTransforms  int64 `json:"active_transforms"`
	ActiveProcessings int64 `json:"active_processings"`
	QueuedContents    int64 `json:"queued_contents"`
}
