package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opst/weft/pkg/api/binding"
	binderr "github.com/opst/weft/pkg/api/types/errors"
	"github.com/opst/weft/pkg/domain"
	kdbhlt "github.com/opst/weft/pkg/domain/health/db"
	kdbthr "github.com/opst/weft/pkg/domain/throttle/db"
	"github.com/opst/weft/pkg/utils/slices"

	apitypes "github.com/opst/weft/pkg/api/types"
)

func PostHealthHandler(dbHealth kdbhlt.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		report := new(apitypes.HealthReport)
		if err := json.NewDecoder(c.Request().Body).Decode(report); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if report.Agent == "" || report.Hostname == "" {
			return binderr.BadRequest("agent and hostname are required", nil)
		}

		if err := dbHealth.AddHealthItem(ctx, domain.HealthItem{
			Agent:    report.Agent,
			Hostname: report.Hostname,
			Pid:      report.Pid,
			ThreadId: report.ThreadId,
			Payload:  report.Payload,
		}); err != nil {
			return binderr.InternalServerError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// GetLeaderHandler reports the Active instance of an agent name.
// Read-only; the election itself runs inside the conductor loop.
func GetLeaderHandler(dbHealth kdbhlt.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		agent := c.QueryParam("agent")
		if agent == "" {
			return binderr.BadRequest("agent is required", nil)
		}

		items, err := dbHealth.Find(ctx, agent)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		for _, item := range items {
			if item.Status == domain.HealthActive {
				return c.JSON(http.StatusOK, binding.ComposeHealthItem(item))
			}
		}
		return binderr.NotFound()
	}
}

func FindHealthHandler(dbHealth kdbhlt.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		agent := c.QueryParam("agent")
		if agent == "" {
			return binderr.BadRequest("agent is required", nil)
		}

		items, err := dbHealth.Find(ctx, agent)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(items, binding.ComposeHealthItem))
	}
}

func ListThrottleHandler(dbThrottle kdbthr.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		throttles, err := dbThrottle.List(ctx)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(throttles, binding.ComposeThrottleDetail))
	}
}

// PutThrottleHandler creates or updates a site's admission limits.
// Live counters are ignored in the body; only the conductor writes them.
func PutThrottleHandler(dbThrottle kdbthr.Interface, siteParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		site := c.Param(siteParam)

		detail := new(apitypes.ThrottleDetail)
		if err := json.NewDecoder(c.Request().Body).Decode(detail); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		status := domain.ThrottleActive
		if detail.Status != "" {
			switch domain.ThrottleStatus(detail.Status) {
			case domain.ThrottleActive, domain.ThrottleInactive:
				status = domain.ThrottleStatus(detail.Status)
			default:
				return binderr.BadRequest("can not parse status", nil)
			}
		}

		if err := dbThrottle.Upsert(ctx, domain.Throttle{
			Site:           site,
			Status:         status,
			MaxRequests:    detail.MaxRequests,
			MaxTransforms:  detail.MaxTransforms,
			MaxProcessings: detail.MaxProcessings,
			MaxContents:    detail.MaxContents,
		}); err != nil {
			return binderr.InternalServerError(err)
		}

		throttle, err := dbThrottle.Get(ctx, site)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		if throttle == nil {
			return binderr.NotFound()
		}
		return c.JSON(http.StatusOK, binding.ComposeThrottleDetail(*throttle))
	}
}
