// Package types declares the JSON bodies of the weft API. Statuses are
// rendered symbolically; smallint codes never leak outside the store.
package types

import (
	"time"

	"github.com/opst/weft/pkg/domain"
)

// RequestSpec is the body of POST /api/requests.
//
// The workflow is stored as sent; expansion happens asynchronously in
// the clerk loop.
type RequestSpec struct {
	Scope     string `json:"scope"`
	Workload  string `json:"workload"`
	Requester string `json:"requester,omitempty"`
	Type      string `json:"type,omitempty"`
	Priority  int    `json:"priority,omitempty"`

	// Go duration syntax. Zero means the server default.
	Lifetime string `json:"lifetime,omitempty"`

	Workflow domain.Workflow   `json:"workflow"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type RequestProgress struct {
	TotalTransforms    int `json:"total_transforms"`
	FinishedTransforms int `json:"finished_transforms"`
	FailedTransforms   int `json:"failed_transforms"`
}

type RequestSummary struct {
	RequestId string `json:"request_id"`
	Scope     string `json:"scope"`
	Workload  string `json:"workload"`
	Requester string `json:"requester,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status"`
	Priority  int    `json:"priority,omitempty"`

	Progress RequestProgress `json:"progress"`

	ExpiredAt time.Time `json:"expired_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RequestDetail struct {
	RequestSummary

	Workflow   domain.Workflow    `json:"workflow"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Transforms []TransformSummary `json:"transforms,omitempty"`
}

type TransformSummary struct {
	TransformId      string `json:"transform_id"`
	RequestId        string `json:"request_id"`
	InternalId       string `json:"internal_id"`
	ParentInternalId string `json:"parent_internal_id,omitempty"`

	LoopIndex  int    `json:"loop_index,omitempty"`
	ClonedFrom string `json:"cloned_from,omitempty"`

	Site   string `json:"site"`
	Status string `json:"status"`
	Gated  bool   `json:"gated"`

	Retries    int `json:"retries"`
	MaxRetries int `json:"max_retries,omitempty"`

	CurrentProcessingId string `json:"current_processing_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransformDetail struct {
	TransformSummary

	Spec        domain.TransformSpec `json:"spec"`
	Collections []CollectionSummary  `json:"collections,omitempty"`
}

type ProcessingSummary struct {
	ProcessingId string `json:"processing_id"`
	TransformId  string `json:"transform_id"`
	RequestId    string `json:"request_id"`

	Status string `json:"status"`

	Granularity     int    `json:"granularity,omitempty"`
	GranularityType string `json:"granularity_type,omitempty"`

	Retries  int    `json:"retries"`
	Executor string `json:"executor"`
	Handle   string `json:"handle,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtendLifetimeSpec is the body of PUT /api/requests/:requestId/lifetime.
type ExtendLifetimeSpec struct {
	Until time.Time `json:"until"`
}
