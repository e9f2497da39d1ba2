package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opst/weft/cmd/weftd/handlers"
	httptestutil "github.com/opst/weft/internal/testutils/http"
	apitypes "github.com/opst/weft/pkg/api/types"
	"github.com/opst/weft/pkg/domain"
	kdbhltmock "github.com/opst/weft/pkg/domain/health/db/mock"
	kdbthrmock "github.com/opst/weft/pkg/domain/throttle/db/mock"
)

func TestPostHealthHandler(t *testing.T) {
	t.Run("a heartbeat is stored", func(t *testing.T) {
		dbHealth := kdbhltmock.NewHealthInterface()
		dbHealth.Impl.AddHealthItem = func(ctx context.Context, item domain.HealthItem) error {
			return nil
		}

		body, _ := json.Marshal(apitypes.HealthReport{
			Agent:    "conductor",
			Hostname: "node-1",
			Pid:      4242,
			ThreadId: "main",
			Payload:  "idle",
		})

		e := echo.New()
		c, respRec := httptestutil.Post(
			e, "/api/health", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)

		testee := handlers.PostHealthHandler(dbHealth)
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusNoContent {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusNoContent)
		}
		if dbHealth.Calls.AddHealthItem.Times() != 1 {
			t.Fatal("AddHealthItem should be called once")
		}
		stored := dbHealth.Calls.AddHealthItem[0]
		if stored.Agent != "conductor" || stored.Hostname != "node-1" ||
			stored.Pid != 4242 || stored.ThreadId != "main" || stored.Payload != "idle" {
			t.Errorf("unexpected health item: %+v", stored)
		}
	})

	t.Run("a heartbeat without agent or hostname is a 400", func(t *testing.T) {
		for name, report := range map[string]apitypes.HealthReport{
			"no agent":    {Hostname: "node-1"},
			"no hostname": {Agent: "conductor"},
		} {
			t.Run(name, func(t *testing.T) {
				dbHealth := kdbhltmock.NewHealthInterface()

				body, _ := json.Marshal(report)
				e := echo.New()
				c, _ := httptestutil.Post(
					e, "/api/health", bytes.NewReader(body),
					httptestutil.ContentType("application/json"),
				)

				testee := handlers.PostHealthHandler(dbHealth)
				assertHTTPError(t, testee(c), http.StatusBadRequest)

				if dbHealth.Calls.AddHealthItem.Times() != 0 {
					t.Error("AddHealthItem should not be called")
				}
			})
		}
	})
}

func TestGetLeaderHandler(t *testing.T) {
	t.Run("the active instance is reported", func(t *testing.T) {
		dbHealth := kdbhltmock.NewHealthInterface()
		dbHealth.Impl.Find = func(ctx context.Context, agent string) ([]domain.HealthItem, error) {
			return []domain.HealthItem{
				{Agent: "conductor", Hostname: "node-2", Pid: 7, Status: domain.HealthDefault},
				{Agent: "conductor", Hostname: "node-1", Pid: 3, Status: domain.HealthActive},
			}, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/health/leader?agent=conductor")

		testee := handlers.GetLeaderHandler(dbHealth)
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusOK {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusOK)
		}
		var leader apitypes.HealthItemDetail
		if err := json.Unmarshal(respRec.Body.Bytes(), &leader); err != nil {
			t.Fatal(err)
		}
		if leader.Hostname != "node-1" || leader.Pid != 3 {
			t.Errorf("unexpected leader: %+v", leader)
		}
	})

	t.Run("no active instance is a 404", func(t *testing.T) {
		dbHealth := kdbhltmock.NewHealthInterface()
		dbHealth.Impl.Find = func(ctx context.Context, agent string) ([]domain.HealthItem, error) {
			return []domain.HealthItem{
				{Agent: "conductor", Hostname: "node-2", Status: domain.HealthDefault},
			}, nil
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/health/leader?agent=conductor")

		testee := handlers.GetLeaderHandler(dbHealth)
		assertHTTPError(t, testee(c), http.StatusNotFound)
	})

	t.Run("a query without agent is a 400", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/health/leader")

		testee := handlers.GetLeaderHandler(kdbhltmock.NewHealthInterface())
		assertHTTPError(t, testee(c), http.StatusBadRequest)
	})
}

func TestPutThrottleHandler(t *testing.T) {
	t.Run("limits are upserted and the stored record echoed", func(t *testing.T) {
		dbThrottle := kdbthrmock.NewThrottleInterface()
		dbThrottle.Impl.Upsert = func(ctx context.Context, throttle domain.Throttle) error {
			return nil
		}
		dbThrottle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return &domain.Throttle{
				Site:              site,
				Status:            domain.ThrottleActive,
				MaxTransforms:     20,
				MaxProcessings:    100,
				ActiveTransforms:  4,
				ActiveProcessings: 37,
			}, nil
		}

		body, _ := json.Marshal(apitypes.ThrottleDetail{
			MaxTransforms:  20,
			MaxProcessings: 100,

			// counters in the body must not reach the store.
			ActiveProcessings: 9999,
		})

		e := echo.New()
		c, respRec := httptestutil.Put(
			e, "/api/throttles/cern", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("site")
		c.SetParamValues("cern")

		testee := handlers.PutThrottleHandler(dbThrottle, "site")
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if respRec.Code != http.StatusOK {
			t.Errorf("unmatch status code: %d, expected: %d", respRec.Code, http.StatusOK)
		}
		if dbThrottle.Calls.Upsert.Times() != 1 {
			t.Fatal("Upsert should be called once")
		}
		upserted := dbThrottle.Calls.Upsert[0]
		if upserted.Site != "cern" || upserted.Status != domain.ThrottleActive ||
			upserted.MaxTransforms != 20 || upserted.MaxProcessings != 100 ||
			upserted.ActiveProcessings != 0 {
			t.Errorf("unexpected upsert: %+v", upserted)
		}

		var detail apitypes.ThrottleDetail
		if err := json.Unmarshal(respRec.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.Site != "cern" || detail.ActiveProcessings != 37 || detail.ActiveTransforms != 4 {
			t.Errorf("unexpected detail: %+v", detail)
		}
	})

	t.Run("a rule can be disabled with status inactive", func(t *testing.T) {
		dbThrottle := kdbthrmock.NewThrottleInterface()
		dbThrottle.Impl.Upsert = func(ctx context.Context, throttle domain.Throttle) error {
			return nil
		}
		dbThrottle.Impl.Get = func(ctx context.Context, site string) (*domain.Throttle, error) {
			return &domain.Throttle{Site: site, Status: domain.ThrottleInactive}, nil
		}

		body, _ := json.Marshal(apitypes.ThrottleDetail{Status: "inactive"})

		e := echo.New()
		c, _ := httptestutil.Put(
			e, "/api/throttles/cern", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("site")
		c.SetParamValues("cern")

		testee := handlers.PutThrottleHandler(dbThrottle, "site")
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		if dbThrottle.Calls.Upsert[0].Status != domain.ThrottleInactive {
			t.Errorf("unexpected status: %s", dbThrottle.Calls.Upsert[0].Status)
		}
	})

	t.Run("an unknown status is a 400", func(t *testing.T) {
		dbThrottle := kdbthrmock.NewThrottleInterface()

		body, _ := json.Marshal(apitypes.ThrottleDetail{Status: "half-open"})

		e := echo.New()
		c, _ := httptestutil.Put(
			e, "/api/throttles/cern", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("site")
		c.SetParamValues("cern")

		testee := handlers.PutThrottleHandler(dbThrottle, "site")
		assertHTTPError(t, testee(c), http.StatusBadRequest)

		if dbThrottle.Calls.Upsert.Times() != 0 {
			t.Error("Upsert should not be called")
		}
	})
}
