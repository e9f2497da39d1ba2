package carrier_test

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/opst/weft/cmd/agent/tasks/carrier"
	"github.com/opst/weft/pkg/domain"
	kdbcatmock "github.com/opst/weft/pkg/domain/catalog/db/mock"
	"github.com/opst/weft/pkg/domain/executor"
	execmock "github.com/opst/weft/pkg/domain/executor/mock"
	kdbmsgmock "github.com/opst/weft/pkg/domain/message/db/mock"
	kdbprocmock "github.com/opst/weft/pkg/domain/processing/db/mock"
	kdbreqmock "github.com/opst/weft/pkg/domain/request/db/mock"
	kdbtrnmock "github.com/opst/weft/pkg/domain/transform/db/mock"
)

type mocks struct {
	processing *kdbprocmock.ProcessingInterface
	transform  *kdbtrnmock.TransformInterface
	request    *kdbreqmock.RequestInterface
	catalog    *kdbcatmock.CatalogInterface
	message    *kdbmsgmock.MessageInterface
	executor   *execmock.MockExecutor
}

func newMocks(t *testing.T) mocks {
	return mocks{
		processing: kdbprocmock.NewProcessingInterface(),
		transform:  kdbtrnmock.NewTransformInterface(),
		request:    kdbreqmock.NewRequestInterface(),
		catalog:    kdbcatmock.NewCatalogInterface(),
		message:    kdbmsgmock.NewMessageInterface(),
		executor:   execmock.New(t, "fake"),
	}
}

// run the picked processing through the task and return what the
// task decided for it.
func run(t *testing.T, m mocks, picked domain.Processing) (domain.Status, domain.ProcessingMetadata, error) {
	var gotStatus domain.Status
	var gotMetadata domain.ProcessingMetadata
	var gotErr error
	m.processing.Impl.PickAndSetStatus = func(
		ctx context.Context, statuses []domain.Status,
		owner string, stale time.Duration,
		task func(domain.Processing) (domain.Status, domain.ProcessingMetadata, error),
	) (string, bool, error) {
		gotStatus, gotMetadata, gotErr = task(picked)
		return picked.Id, gotErr == nil && gotStatus != picked.Status, gotErr
	}

	testee := carrier.Task(
		log.New(log.Writer(), "test: ", 0), "worker@host:1", time.Minute,
		executor.NewRegistry(m.executor),
		m.processing, m.transform, m.request, m.catalog, m.message,
	)
	if _, _, err := testee(context.Background(), carrier.Seed()); err != nil {
		gotErr = err
	}
	return gotStatus, gotMetadata, gotErr
}

func TestTask(t *testing.T) {
	picked := domain.Processing{
		Id:          "prc-1",
		TransformId: "trn-1",
		RequestId:   "req-1",
		Status:      domain.Running,
		Executor:    "fake",
		Handle:      "fake/job-42",
	}

	transform := domain.Transform{
		TransformBody: domain.TransformBody{
			Id: "trn-1", RequestId: "req-1", InternalId: "extract",
			Site: "cern", Status: domain.Submitted, MaxRetries: 2,
		},
		Collections: []domain.Collection{
			{Id: 10, TransformId: "trn-1", Relation: domain.InputCollection},
			{Id: 11, TransformId: "trn-1", Relation: domain.OutputCollection},
			{Id: 12, TransformId: "trn-1", Relation: domain.LogCollection},
		},
	}

	t.Run("an unknown backend breaks the processing", func(t *testing.T) {
		m := newMocks(t)
		orphan := picked
		orphan.Executor = "retired-backend"

		status, _, err := run(t, m, orphan)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Broken {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Broken)
		}
	})

	t.Run("an unchanged report is a no-op", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{
				Status: domain.Running,
				Raw:    json.RawMessage(`{"state":"running"}`),
			}, nil
		}

		status, metadata, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Running {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Running)
		}
		if string(metadata.LastReport) != `{"state":"running"}` {
			t.Errorf("the raw report should be kept: %s", metadata.LastReport)
		}
		if m.transform.Calls.Get.Times() != 0 {
			t.Error("an unchanged status should not touch the transform")
		}
	})

	t.Run("a finished report settles the transform and announces contents", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{
				Status: domain.Finished,
				Contents: []domain.Content{
					{CollId: 11, TransformId: "trn-1", Name: "out.parquet"},
				},
			}, nil
		}
		m.transform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{"trn-1": transform}, nil
		}
		m.transform.Impl.SetStatus = func(ctx context.Context, transformId string, s domain.Status) error {
			return nil
		}
		m.request.Impl.RollUp = func(ctx context.Context, requestId string) (domain.Status, error) {
			return domain.Finished, nil
		}
		m.catalog.Impl.RegisterOutputContents = func(ctx context.Context, contents []domain.Content) (int, int, error) {
			return len(contents), 0, nil
		}
		refreshed := []int64{}
		m.catalog.Impl.RefreshCollectionCounters = func(ctx context.Context, collId int64) (domain.Collection, error) {
			refreshed = append(refreshed, collId)
			return domain.Collection{Id: collId}, nil
		}
		var announced domain.Event
		m.message.Impl.AddEvent = func(ctx context.Context, event domain.Event) (int64, error) {
			announced = event
			return 1, nil
		}

		status, _, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Finished {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Finished)
		}

		if len(m.transform.Calls.SetStatus) != 1 ||
			m.transform.Calls.SetStatus[0].NewStatus != domain.Finished {
			t.Errorf("unexpected SetStatus calls: %+v", m.transform.Calls.SetStatus)
		}
		if m.request.Calls.RollUp.Times() != 1 {
			t.Errorf("RollUp should be called once: %d", m.request.Calls.RollUp.Times())
		}

		// output and log collections only; input counters are the
		// producer's business.
		if len(refreshed) != 2 || refreshed[0] != 11 || refreshed[1] != 12 {
			t.Errorf("unexpected refreshed collections: %+v", refreshed)
		}

		if announced.Type != domain.ContentUpdated {
			t.Errorf("unexpected event: %+v", announced)
		}
		var payload map[string]string
		if err := json.Unmarshal(announced.Payload, &payload); err != nil {
			t.Fatal(err)
		}
		if payload["request_id"] != "req-1" || payload["transform_id"] != "trn-1" {
			t.Errorf("unexpected event payload: %+v", payload)
		}
	})

	t.Run("a failed report within budget resubmits the transform", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{Status: domain.Failed, Message: "oom killed"}, nil
		}
		m.transform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{"trn-1": transform}, nil
		}
		m.transform.Impl.CountRetry = func(ctx context.Context, transformId string) (int, error) {
			return 1, nil
		}
		m.transform.Impl.SetStatus = func(ctx context.Context, transformId string, s domain.Status) error {
			return nil
		}

		status, _, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Failed {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Failed)
		}
		if len(m.transform.Calls.SetStatus) != 1 ||
			m.transform.Calls.SetStatus[0].NewStatus != domain.New {
			t.Errorf("unexpected SetStatus calls: %+v", m.transform.Calls.SetStatus)
		}
		if m.request.Calls.RollUp.Times() != 0 {
			t.Error("a retried transform should not roll up the request")
		}
	})

	t.Run("a lost report out of budget fails the transform for good", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{Status: domain.Lost, Message: "handle vanished"}, nil
		}
		m.transform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{"trn-1": transform}, nil
		}
		m.transform.Impl.CountRetry = func(ctx context.Context, transformId string) (int, error) {
			return 2, nil // MaxRetries of the transform
		}
		m.transform.Impl.SetStatus = func(ctx context.Context, transformId string, s domain.Status) error {
			return nil
		}
		m.request.Impl.RollUp = func(ctx context.Context, requestId string) (domain.Status, error) {
			return domain.Failed, nil
		}

		status, _, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Lost {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Lost)
		}
		if len(m.transform.Calls.SetStatus) != 1 ||
			m.transform.Calls.SetStatus[0].NewStatus != domain.Failed {
			t.Errorf("unexpected SetStatus calls: %+v", m.transform.Calls.SetStatus)
		}
		if m.request.Calls.RollUp.Times() != 1 {
			t.Errorf("RollUp should be called once: %d", m.request.Calls.RollUp.Times())
		}
	})

	t.Run("a late report against a terminal transform changes nothing beyond the processing", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{Status: domain.Failed, Message: "too late"}, nil
		}
		cancelled := transform
		cancelled.Status = domain.Cancelled
		m.transform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{"trn-1": cancelled}, nil
		}

		status, _, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Failed {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Failed)
		}
		if m.transform.Calls.SetStatus.Times() != 0 {
			t.Error("a terminal transform should absorb nothing")
		}
	})

	t.Run("a processing whose transform is gone goes broken", func(t *testing.T) {
		m := newMocks(t)
		m.executor.Impl.Poll = func(ctx context.Context, p domain.Processing) (executor.Report, error) {
			return executor.Report{Status: domain.Finished}, nil
		}
		m.transform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{}, nil
		}

		status, _, err := run(t, m, picked)
		if err != nil {
			t.Fatal(err)
		}
		if status != domain.Broken {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", status, domain.Broken)
		}
	})
}
