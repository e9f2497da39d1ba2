package binding_test

import (
	"testing"
	"time"

	"github.com/opst/weft/pkg/api/binding"
	"github.com/opst/weft/pkg/api/types"
	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/utils/try"
)

func TestComposeRequestDetail(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	req := domain.Request{
		RequestBody: domain.RequestBody{
			Id:        "req-1",
			Scope:     "atlas",
			Workload:  "derivation-2026",
			Requester: "panda",
			Type:      domain.WorkflowRequest,
			Status:    domain.Transforming,
			Priority:  5,
			Progress: domain.RequestProgress{
				TotalTransforms: 3, FinishedTransforms: 1,
			},
			ExpiredAt: createdAt.Add(30 * 24 * time.Hour),
			CreatedAt: createdAt,
		},
		Workflow: domain.Workflow{
			Transforms: []domain.TransformSpec{{InternalId: "extract", Site: "cern"}},
		},
		Metadata: map[string]string{"campaign": "mc26"},
	}
	transforms := []domain.Transform{
		{
			TransformBody: domain.TransformBody{
				Id: "trn-1", RequestId: "req-1", InternalId: "extract",
				Site: "cern", Status: domain.Finished,
			},
		},
	}

	actual := binding.ComposeRequestDetail(req, transforms)

	if actual.RequestId != "req-1" ||
		actual.Scope != "atlas" ||
		actual.Workload != "derivation-2026" ||
		actual.Type != "workflow" ||
		actual.Status != "transforming" ||
		actual.Priority != 5 {
		t.Errorf("unexpected summary: %+v", actual.RequestSummary)
	}
	if actual.Progress.TotalTransforms != 3 || actual.Progress.FinishedTransforms != 1 {
		t.Errorf("unexpected progress: %+v", actual.Progress)
	}
	if actual.Metadata["campaign"] != "mc26" {
		t.Errorf("unexpected metadata: %+v", actual.Metadata)
	}
	if len(actual.Transforms) != 1 ||
		actual.Transforms[0].TransformId != "trn-1" ||
		actual.Transforms[0].Status != "finished" {
		t.Errorf("unexpected transforms: %+v", actual.Transforms)
	}
}

func TestParseContentSpec(t *testing.T) {
	t.Run("a full spec maps through", func(t *testing.T) {
		spec := types.ContentSpec{
			CollId:      11,
			TransformId: "trn-1",
			RequestId:   "req-1",
			MapId:       3,
			SubMapId:    1,
			Relation:    "output",
			Status:      "available",
			Name:        "out.parquet",
			MinId:       0,
			MaxId:       99,
			Path:        "/store/out.parquet",
			Metadata:    map[string]string{"checksum": "ad:a1b2"},
		}

		actual := try.To(binding.ParseContentSpec(spec)).OrFatal(t)
		if actual.CollId != 11 ||
			actual.TransformId != "trn-1" ||
			actual.Relation != domain.OutputCollection ||
			actual.Status != domain.Available ||
			actual.MapId != 3 || actual.SubMapId != 1 ||
			actual.MaxId != 99 ||
			actual.Metadata["checksum"] != "ad:a1b2" {
			t.Errorf("unexpected content: %+v", actual)
		}
	})

	t.Run("status defaults to available", func(t *testing.T) {
		actual := try.To(binding.ParseContentSpec(types.ContentSpec{
			CollId: 11, TransformId: "trn-1", Relation: "log",
		})).OrFatal(t)
		if actual.Status != domain.Available {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", actual.Status, domain.Available)
		}
		if actual.Relation != domain.LogCollection {
			t.Errorf("unexpected relation: %s", actual.Relation)
		}
	})

	for name, spec := range map[string]types.ContentSpec{
		"unknown relation": {
			CollId: 11, TransformId: "trn-1", Relation: "sideways",
		},
		"unknown status": {
			CollId: 11, TransformId: "trn-1", Relation: "output", Status: "done-ish",
		},
		"missing transform_id": {
			CollId: 11, Relation: "output",
		},
		"missing coll_id": {
			TransformId: "trn-1", Relation: "output",
		},
	} {
		t.Run(name+" can not be parsed", func(t *testing.T) {
			if _, err := binding.ParseContentSpec(spec); err == nil {
				t.Error("expected error does not occured")
			}
		})
	}
}

func TestComposeThrottleDetail(t *testing.T) {
	actual := binding.ComposeThrottleDetail(domain.Throttle{
		Site: "cern", Status: domain.ThrottleActive,
		MaxProcessings: 10, ActiveProcessings: 7,
	})
	if actual.Site != "cern" ||
		actual.Status != "active" ||
		actual.MaxProcessings != 10 ||
		actual.ActiveProcessings != 7 {
		t.Errorf("unexpected detail: %+v", actual)
	}
}
