package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opst/weft/cmd/weftd/handlers"
	httptestutil "github.com/opst/weft/internal/testutils/http"
	apitypes "github.com/opst/weft/pkg/api/types"
	"github.com/opst/weft/pkg/domain"
	kpgerr "github.com/opst/weft/pkg/domain/errors/dberrors/postgres"
	kdbmsgmock "github.com/opst/weft/pkg/domain/message/db/mock"
	kdbreqmock "github.com/opst/weft/pkg/domain/request/db/mock"
	kdbtrnmock "github.com/opst/weft/pkg/domain/transform/db/mock"
)

func TestRequestRegisterHandler(t *testing.T) {
	spec := apitypes.RequestSpec{
		Scope:    "atlas",
		Workload: "derivation-2026",
		Workflow: domain.Workflow{
			Transforms: []domain.TransformSpec{
				{InternalId: "extract", Site: "cern", Executor: "noop"},
			},
		},
		Metadata: map[string]string{"campaign": "mc26"},
	}

	t.Run("a valid spec is registered and echoed back", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		var stored domain.Request
		dbRequest.Impl.New = func(ctx context.Context, r domain.Request) error {
			stored = r
			return nil
		}

		e := echo.New()
		body, _ := json.Marshal(spec)
		c, respRec := httptestutil.Post(
			e, "/api/requests", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)

		testee := handlers.RequestRegisterHandler(dbRequest)
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusCreated {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusCreated)
		}

		if stored.Id == "" ||
			stored.Scope != "atlas" ||
			stored.Workload != "derivation-2026" ||
			stored.Status != domain.New ||
			stored.Type != domain.WorkflowRequest ||
			stored.ExpiredAt.IsZero() {
			t.Errorf("unexpected stored request: %+v", stored.RequestBody)
		}

		var summary apitypes.RequestSummary
		if err := json.Unmarshal(respRec.Body.Bytes(), &summary); err != nil {
			t.Fatal(err)
		}
		if summary.RequestId != stored.Id || summary.Status != "new" {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("non-json content type is rejected with 400", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/requests", bytes.NewReader([]byte("scope: atlas")),
			httptestutil.ContentType("text/yaml"),
		)

		testee := handlers.RequestRegisterHandler(kdbreqmock.NewRequestInterface())
		err := testee(c)
		assertHTTPError(t, err, http.StatusBadRequest)
	})

	t.Run("a spec without workflow is rejected with 400", func(t *testing.T) {
		bare := spec
		bare.Workflow = domain.Workflow{}

		e := echo.New()
		body, _ := json.Marshal(bare)
		c, _ := httptestutil.Post(
			e, "/api/requests", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)

		testee := handlers.RequestRegisterHandler(kdbreqmock.NewRequestInterface())
		assertHTTPError(t, testee(c), http.StatusBadRequest)
	})

	t.Run("a broken lifetime is rejected with 400", func(t *testing.T) {
		bad := spec
		bad.Lifetime = "a fortnight"

		e := echo.New()
		body, _ := json.Marshal(bad)
		c, _ := httptestutil.Post(
			e, "/api/requests", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)

		testee := handlers.RequestRegisterHandler(kdbreqmock.NewRequestInterface())
		assertHTTPError(t, testee(c), http.StatusBadRequest)
	})

	t.Run("a duplicated (scope, workload) is a 409", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbRequest.Impl.New = func(ctx context.Context, r domain.Request) error {
			return kpgerr.Duplicate{Table: "request", Identity: "atlas/derivation-2026"}
		}

		e := echo.New()
		body, _ := json.Marshal(spec)
		c, _ := httptestutil.Post(
			e, "/api/requests", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)

		testee := handlers.RequestRegisterHandler(dbRequest)
		assertHTTPError(t, testee(c), http.StatusConflict)
	})
}

func TestGetRequestHandler(t *testing.T) {
	t.Run("a known request is returned with its transforms in find order", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbRequest.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Request, error) {
			return map[string]domain.Request{
				"req-1": {
					RequestBody: domain.RequestBody{
						Id: "req-1", Scope: "atlas", Workload: "derivation-2026",
						Type: domain.WorkflowRequest, Status: domain.Transforming,
					},
				},
			}, nil
		}
		dbTransform := kdbtrnmock.NewTransformInterface()
		dbTransform.Impl.Find = func(ctx context.Context, q domain.TransformFindQuery) ([]string, error) {
			return []string{"trn-2", "trn-1"}, nil
		}
		dbTransform.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Transform, error) {
			return map[string]domain.Transform{
				"trn-1": {TransformBody: domain.TransformBody{Id: "trn-1", Status: domain.New}},
				"trn-2": {TransformBody: domain.TransformBody{Id: "trn-2", Status: domain.Finished}},
			}, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/requests/req-1")
		c.SetParamNames("requestId")
		c.SetParamValues("req-1")

		testee := handlers.GetRequestHandler(dbRequest, dbTransform, "requestId")
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusOK {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusOK)
		}
		var detail apitypes.RequestDetail
		if err := json.Unmarshal(respRec.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.RequestId != "req-1" {
			t.Errorf("unexpected detail: %+v", detail)
		}
		if len(detail.Transforms) != 2 ||
			detail.Transforms[0].TransformId != "trn-2" ||
			detail.Transforms[1].TransformId != "trn-1" {
			t.Errorf("unexpected transforms: %+v", detail.Transforms)
		}
	})

	t.Run("an unknown request is a 404", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbRequest.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Request, error) {
			return map[string]domain.Request{}, nil
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/requests/req-ghost")
		c.SetParamNames("requestId")
		c.SetParamValues("req-ghost")

		testee := handlers.GetRequestHandler(
			dbRequest, kdbtrnmock.NewTransformInterface(), "requestId",
		)
		assertHTTPError(t, testee(c), http.StatusNotFound)
	})
}

func TestAbortRequestHandler(t *testing.T) {
	t.Run("an abort is queued for the conductor and accepted", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbRequest.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Request, error) {
			return map[string]domain.Request{
				"req-1": {RequestBody: domain.RequestBody{Id: "req-1"}},
			}, nil
		}
		dbMessage := kdbmsgmock.NewMessageInterface()
		var queued domain.Command
		dbMessage.Impl.AddCommand = func(ctx context.Context, command domain.Command) (int64, error) {
			queued = command
			return 77, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Delete(e, "/api/requests/req-1")
		c.SetParamNames("requestId")
		c.SetParamValues("req-1")

		testee := handlers.AbortRequestHandler(dbRequest, dbMessage, "requestId")
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusAccepted {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusAccepted)
		}
		if queued.Type != domain.AbortRequest ||
			queued.RequestId != "req-1" ||
			queued.Destination != domain.Conductor {
			t.Errorf("unexpected command: %+v", queued)
		}

		var posted apitypes.MessagePosted
		if err := json.Unmarshal(respRec.Body.Bytes(), &posted); err != nil {
			t.Fatal(err)
		}
		if posted.Id != 77 {
			t.Errorf("unexpected posted id: %d", posted.Id)
		}
	})

	t.Run("aborting an unknown request is a 404", func(t *testing.T) {
		dbRequest := kdbreqmock.NewRequestInterface()
		dbRequest.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Request, error) {
			return map[string]domain.Request{}, nil
		}

		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/requests/req-ghost")
		c.SetParamNames("requestId")
		c.SetParamValues("req-ghost")

		testee := handlers.AbortRequestHandler(
			dbRequest, kdbmsgmock.NewMessageInterface(), "requestId",
		)
		assertHTTPError(t, testee(c), http.StatusNotFound)
	})
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var echoErr *echo.HTTPError
	if !errors.As(err, &echoErr) {
		t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
	}
	if echoErr.Code != code {
		t.Errorf("unmatch error code: %d, expected: %d", echoErr.Code, code)
	}
}
