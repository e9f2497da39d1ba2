package domain

import (
	"encoding/json"

	"github.com/opst/weft/pkg/utils/cmp"
)

// Workflow is the declarative shape a Request expands to:
// transform templates plus the conditions wiring them into a DAG.
//
// Internal ids name nodes within one request. They encode DAG position:
// a cloned loop iteration gets "<internal id>#<loop index>".
type Workflow struct {
	Transforms []TransformSpec `json:"transforms"`
	Conditions []ConditionSpec `json:"conditions,omitempty"`
}

func (w *Workflow) Equal(o *Workflow) bool {
	return cmp.SliceContentEqWith(
		w.Transforms, o.Transforms,
		func(a, b TransformSpec) bool { return a.Equal(&b) },
	) && cmp.SliceContentEqWith(
		w.Conditions, o.Conditions,
		func(a, b ConditionSpec) bool { return a.Equal(&b) },
	)
}

// TransformSpec is one node template of the workflow.
type TransformSpec struct {
	InternalId       string `json:"internal_id"`
	ParentInternalId string `json:"parent_internal_id,omitempty"`

	// site whose throttler gates submission of this node's processings.
	Site string `json:"site"`

	// executor registry name ("kubernetes", "noop", ...).
	Executor string `json:"executor"`

	// executor-specific job description, passed through on Submit.
	JobSpec json.RawMessage `json:"job_spec,omitempty"`

	// how processings chunk this transform's work.
	Granularity     int    `json:"granularity,omitempty"`
	GranularityType string `json:"granularity_type,omitempty"`

	MaxRetries int `json:"max_retries,omitempty"`

	Inputs  []CollectionSpec `json:"inputs,omitempty"`
	Outputs []CollectionSpec `json:"outputs,omitempty"`
	Logs    []CollectionSpec `json:"logs,omitempty"`
}

func (t *TransformSpec) Equal(o *TransformSpec) bool {
	return t.InternalId == o.InternalId &&
		t.ParentInternalId == o.ParentInternalId &&
		t.Site == o.Site &&
		t.Executor == o.Executor &&
		string(t.JobSpec) == string(o.JobSpec) &&
		t.Granularity == o.Granularity &&
		t.GranularityType == o.GranularityType &&
		t.MaxRetries == o.MaxRetries &&
		cmp.SliceContentEq(t.Inputs, o.Inputs) &&
		cmp.SliceContentEq(t.Outputs, o.Outputs) &&
		cmp.SliceContentEq(t.Logs, o.Logs)
}

// CollectionSpec names one collection a transform reads or writes.
type CollectionSpec struct {
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`

	// for inputs: internal id of the transform whose output this depends on.
	DependsOn string `json:"depends_on,omitempty"`
}

// ConditionSpec is one trigger template of the workflow.
type ConditionSpec struct {
	InternalId string `json:"internal_id"`

	// internal ids of transforms gated by this condition.
	Following []string `json:"following"`

	Predicate Expression `json:"predicate"`

	// a loop condition is re-instantiated per satisfied evaluation,
	// spawning the next generation of its following transforms.
	IsLoop bool `json:"is_loop,omitempty"`

	// upper bound of loop generations. 0 means no bound.
	MaxLoops int `json:"max_loops,omitempty"`
}

func (c *ConditionSpec) Equal(o *ConditionSpec) bool {
	prev, oprev := c.Predicate.Previous(), o.Predicate.Previous()
	return c.InternalId == o.InternalId &&
		cmp.SliceContentEq(c.Following, o.Following) &&
		cmp.SliceContentEq(prev, oprev) &&
		c.IsLoop == o.IsLoop &&
		c.MaxLoops == o.MaxLoops
}
