// Package clerk expands picked requests into their DAG.
package clerk

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/weft/cmd/agent/recurring"
	"github.com/opst/weft/pkg/domain"
	kdb "github.com/opst/weft/pkg/domain/request/db"
	"github.com/opst/weft/pkg/utils/slices"
)

// initial value for task
func Seed() struct{} {
	return struct{}{}
}

// return:
//
// - task : expanding one New request per cycle into transforms,
// collections and conditions.
func Task(
	logger *log.Logger,
	owner string,
	staleLock time.Duration,
	dbRequest kdb.Interface,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		requestId, expanded, err := dbRequest.PickAndExpand(
			ctx, owner, staleLock,
			func(req domain.Request) (kdb.Expansion, error) {
				return Expand(req)
			},
		)
		if err != nil {
			logger.Printf("expansion failed: request = %s: %s", requestId, err)
			return value, false, err
		}
		if expanded {
			logger.Printf("expanded: request = %s", requestId)
		}
		return value, expanded, nil
	}
}

// Expand derives the stored DAG of a request from its workflow.
//
// Transforms named by a plain condition's Following list start gated;
// everything else is runnable at once. A loop condition's generation 0
// runs as part of the plain DAG: its firing activates generation N+1
// by storing fresh clones, never by ungating, so gating its own
// followers would wedge the loop before the first iteration.
// Ids are generated here so the whole expansion can be written in one
// transaction.
func Expand(req domain.Request) (kdb.Expansion, error) {
	gated := map[string]bool{}
	for _, c := range req.Workflow.Conditions {
		if c.IsLoop {
			continue
		}
		for _, follower := range c.Following {
			gated[follower] = true
		}
	}

	known := map[string]bool{}
	transforms := make([]domain.Transform, 0, len(req.Workflow.Transforms))
	collections := []domain.Collection{}
	for _, spec := range req.Workflow.Transforms {
		if known[spec.InternalId] {
			return kdb.Expansion{}, fmt.Errorf(
				"request %s: duplicated internal id: %s", req.Id, spec.InternalId,
			)
		}
		known[spec.InternalId] = true

		transformId := uuid.NewString()
		transforms = append(transforms, domain.Transform{
			TransformBody: domain.TransformBody{
				Id:               transformId,
				RequestId:        req.Id,
				InternalId:       spec.InternalId,
				ParentInternalId: spec.ParentInternalId,
				Site:             spec.Site,
				Status:           domain.New,
				Gated:            gated[spec.InternalId],
				MaxRetries:       spec.MaxRetries,
			},
			Spec: spec,
		})

		for _, cs := range spec.Inputs {
			rel := domain.InputCollection
			if cs.DependsOn != "" {
				rel = domain.InputDependencyCollection
			}
			collections = append(collections, newCollection(transformId, req.Id, cs, rel))
		}
		for _, cs := range spec.Outputs {
			collections = append(collections, newCollection(transformId, req.Id, cs, domain.OutputCollection))
		}
		for _, cs := range spec.Logs {
			collections = append(collections, newCollection(transformId, req.Id, cs, domain.LogCollection))
		}
	}

	for _, t := range transforms {
		if p := t.ParentInternalId; p != "" && !known[p] {
			return kdb.Expansion{}, fmt.Errorf(
				"request %s: transform %s: unknown parent: %s", req.Id, t.InternalId, p,
			)
		}
	}

	conditions := make([]domain.Condition, 0, len(req.Workflow.Conditions))
	for _, spec := range req.Workflow.Conditions {
		for _, internal := range slices.Concat(spec.Predicate.Previous(), spec.Following) {
			if !known[internal] {
				return kdb.Expansion{}, fmt.Errorf(
					"request %s: condition %s: unknown transform: %s",
					req.Id, spec.InternalId, internal,
				)
			}
		}
		conditions = append(conditions, domain.Condition{
			RequestId:           req.Id,
			InternalId:          spec.InternalId,
			Status:              domain.WaitForTrigger,
			IsLoop:              spec.IsLoop,
			MaxLoops:            spec.MaxLoops,
			PreviousTransforms:  spec.Predicate.Previous(),
			FollowingTransforms: spec.Following,
			Predicate:           spec.Predicate,
		})
	}

	return kdb.Expansion{
		Transforms:  transforms,
		Collections: collections,
		Conditions:  conditions,
	}, nil
}

func newCollection(
	transformId string, requestId string,
	spec domain.CollectionSpec, relation domain.CollectionRelation,
) domain.Collection {
	return domain.Collection{
		TransformId: transformId,
		RequestId:   requestId,
		Name:        spec.Name,
		Scope:       spec.Scope,
		Relation:    relation,
		Status:      domain.New,
	}
}
