// Package binding composes API bodies from domain entities and parses
// request bodies back. Pure data mapping; no store access.
package binding

import (
	"fmt"

	"github.com/opst/weft/pkg/api/types"
	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/utils/slices"
)

func ComposeRequestSummary(r domain.Request) types.RequestSummary {
	return types.RequestSummary{
		RequestId: r.Id,
		Scope:     r.Scope,
		Workload:  r.Workload,
		Requester: r.Requester,
		Type:      string(r.Type),
		Status:    r.Status.String(),
		Priority:  r.Priority,
		Progress: types.RequestProgress{
			TotalTransforms:    r.Progress.TotalTransforms,
			FinishedTransforms: r.Progress.FinishedTransforms,
			FailedTransforms:   r.Progress.FailedTransforms,
		},
		ExpiredAt: r.ExpiredAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func ComposeRequestDetail(r domain.Request, transforms []domain.Transform) types.RequestDetail {
	return types.RequestDetail{
		RequestSummary: ComposeRequestSummary(r),
		Workflow:       r.Workflow,
		Metadata:       r.Metadata,
		Transforms:     slices.Map(transforms, ComposeTransformSummary),
	}
}

func ComposeTransformSummary(t domain.Transform) types.TransformSummary {
	return types.TransformSummary{
		TransformId:         t.Id,
		RequestId:           t.RequestId,
		InternalId:          t.InternalId,
		ParentInternalId:    t.ParentInternalId,
		LoopIndex:           t.LoopIndex,
		ClonedFrom:          t.ClonedFrom,
		Site:                t.Site,
		Status:              t.Status.String(),
		Gated:               t.Gated,
		Retries:             t.Retries,
		MaxRetries:          t.MaxRetries,
		CurrentProcessingId: t.CurrentProcessingId,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func ComposeTransformDetail(t domain.Transform) types.TransformDetail {
	return types.TransformDetail{
		TransformSummary: ComposeTransformSummary(t),
		Spec:             t.Spec,
		Collections:      slices.Map(t.Collections, ComposeCollectionSummary),
	}
}

func ComposeProcessingSummary(p domain.Processing) types.ProcessingSummary {
	return types.ProcessingSummary{
		ProcessingId:    p.Id,
		TransformId:     p.TransformId,
		RequestId:       p.RequestId,
		Status:          p.Status.String(),
		Granularity:     p.Granularity,
		GranularityType: p.GranularityType,
		Retries:         p.Retries,
		Executor:        p.Executor,
		Handle:          p.Handle,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func ComposeCollectionSummary(c domain.Collection) types.CollectionSummary {
	return types.CollectionSummary{
		CollId:         c.Id,
		TransformId:    c.TransformId,
		RequestId:      c.RequestId,
		Name:           c.Name,
		Scope:          c.Scope,
		Relation:       c.Relation.String(),
		Status:         c.Status.String(),
		TotalFiles:     c.TotalFiles,
		ProcessedFiles: c.ProcessedFiles,
		TotalBytes:     c.TotalBytes,
		ProcessedBytes: c.ProcessedBytes,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func ComposeContentDetail(c domain.Content) types.ContentDetail {
	return types.ContentDetail{
		ContentId:    c.Id,
		CollId:       c.CollId,
		TransformId:  c.TransformId,
		RequestId:    c.RequestId,
		MapId:        c.MapId,
		SubMapId:     c.SubMapId,
		DepSubMapId:  c.DepSubMapId,
		ContentDepId: c.ContentDepId,
		Relation:     c.Relation.String(),
		Status:       c.Status.String(),
		Substatus:    c.Substatus,
		Name:         c.Name,
		MinId:        c.MinId,
		MaxId:        c.MaxId,
		Path:         c.Path,
		Metadata:     c.Metadata,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ParseContentSpec turns one registered content into its domain form.
func ParseContentSpec(spec types.ContentSpec) (domain.Content, error) {
	relation, err := domain.AsCollectionRelation(spec.Relation)
	if err != nil {
		return domain.Content{}, err
	}
	status := domain.Available
	if spec.Status != "" {
		status, err = domain.AsStatus(spec.Status)
		if err != nil {
			return domain.Content{}, err
		}
	}
	if spec.TransformId == "" || spec.CollId == 0 {
		return domain.Content{}, fmt.Errorf("content needs transform_id and coll_id")
	}

	return domain.Content{
		CollId:      spec.CollId,
		TransformId: spec.TransformId,
		RequestId:   spec.RequestId,
		MapId:       spec.MapId,
		SubMapId:    spec.SubMapId,
		DepSubMapId: spec.DepSubMapId,
		Relation:    relation,
		Status:      status,
		Name:        spec.Name,
		MinId:       spec.MinId,
		MaxId:       spec.MaxId,
		Path:        spec.Path,
		Metadata:    spec.Metadata,
	}, nil
}

func ComposeThrottleDetail(t domain.Throttle) types.ThrottleDetail {
	return types.ThrottleDetail{
		Site:              t.Site,
		Status:            t.Status.String(),
		MaxRequests:       t.MaxRequests,
		MaxTransforms:     t.MaxTransforms,
		MaxProcessings:    t.MaxProcessings,
		MaxContents:       t.MaxContents,
		ActiveRequests:    t.ActiveRequests,
		ActiveTransforms:  t.ActiveTransforms,
		ActiveProcessings: t.ActiveProcessings,
		QueuedContents:    t.QueuedContents,
	}
}

func ComposeHealthItem(h domain.HealthItem) types.HealthItemDetail {
	return types.HealthItemDetail{
		Agent:     h.Agent,
		Hostname:  h.Hostname,
		Pid:       h.Pid,
		ThreadId:  h.ThreadId,
		Status:    h.Status.String(),
		Payload:   h.Payload,
		UpdatedAt: h.UpdatedAt,
	}
}
