// Package handlers implements the weftd HTTP API over the store
// interfaces. Handlers never talk to executors; everything
// asynchronous goes through the mailboxes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/opst/weft/pkg/api/binding"
	binderr "github.com/opst/weft/pkg/api/types/errors"
	"github.com/opst/weft/pkg/domain"
	domerr "github.com/opst/weft/pkg/domain/errors"
	kdbmsg "github.com/opst/weft/pkg/domain/message/db"
	kdbproc "github.com/opst/weft/pkg/domain/processing/db"
	kdbreq "github.com/opst/weft/pkg/domain/request/db"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"
	"github.com/opst/weft/pkg/utils/slices"

	apitypes "github.com/opst/weft/pkg/api/types"
)

// lifetime applied when a request spec does not carry one.
const defaultLifetime = 30 * 24 * time.Hour

func RequestRegisterHandler(dbRequest kdbreq.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		if !strings.HasPrefix(strings.ToLower(req.Header.Get("content-type")), "application/json") {
			return binderr.BadRequest(
				"unexpected content type. it should be application/json", nil,
			)
		}

		spec := new(apitypes.RequestSpec)
		if err := json.NewDecoder(req.Body).Decode(spec); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if spec.Scope == "" || spec.Workload == "" {
			return binderr.BadRequest("scope and workload are required", nil)
		}
		if len(spec.Workflow.Transforms) == 0 {
			return binderr.BadRequest("workflow needs at least one transform", nil)
		}

		requestType := domain.WorkflowRequest
		if spec.Type != "" {
			requestType = domain.RequestType(spec.Type)
		}

		lifetime := defaultLifetime
		if spec.Lifetime != "" {
			parsed, err := time.ParseDuration(spec.Lifetime)
			if err != nil {
				return binderr.BadRequest("can not parse lifetime", err)
			}
			lifetime = parsed
		}

		registered := domain.Request{
			RequestBody: domain.RequestBody{
				Id:        uuid.NewString(),
				Scope:     spec.Scope,
				Workload:  spec.Workload,
				Requester: spec.Requester,
				Type:      requestType,
				Status:    domain.New,
				Priority:  spec.Priority,
				ExpiredAt: time.Now().Add(lifetime),
			},
			Workflow: spec.Workflow,
			Metadata: spec.Metadata,
		}

		if err := dbRequest.New(ctx, registered); err != nil {
			if errors.Is(err, domerr.ErrDuplicate) {
				return binderr.Conflict(
					"workload is already requested",
					binderr.WithAdvice("(scope, workload) must be unique"),
					binderr.WithError(err),
				)
			}
			return binderr.InternalServerError(err)
		}

		return c.JSON(http.StatusCreated, binding.ComposeRequestSummary(registered))
	}
}

func FindRequestHandler(dbRequest kdbreq.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		query := domain.RequestFindQuery{
			Scope:    c.QueryParam("scope"),
			Workload: c.QueryParam("workload"),
		}
		statuses, err := parseStatuses(c.QueryParam("status"))
		if err != nil {
			return binderr.BadRequest("can not parse status", err)
		}
		query.Status = statuses

		if since := c.QueryParam("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return binderr.BadRequest("can not parse since", err)
			}
			query.UpdatedSince = &t
		}
		if until := c.QueryParam("until"); until != "" {
			t, err := time.Parse(time.RFC3339, until)
			if err != nil {
				return binderr.BadRequest("can not parse until", err)
			}
			query.UpdatedUntil = &t
		}

		requestIds, err := dbRequest.Find(ctx, query)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		requests, err := dbRequest.Get(ctx, requestIds)
		if err != nil {
			return binderr.InternalServerError(err)
		}

		summaries := make([]apitypes.RequestSummary, 0, len(requests))
		for _, requestId := range requestIds {
			if r, ok := requests[requestId]; ok {
				summaries = append(summaries, binding.ComposeRequestSummary(r))
			}
		}
		return c.JSON(http.StatusOK, summaries)
	}
}

func GetRequestHandler(
	dbRequest kdbreq.Interface,
	dbTransform kdbtrn.Interface,
	requestIdParam string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		requestId := c.Param(requestIdParam)

		requests, err := dbRequest.Get(ctx, []string{requestId})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		request, ok := requests[requestId]
		if !ok {
			return binderr.NotFound()
		}

		transformIds, err := dbTransform.Find(ctx, domain.TransformFindQuery{
			RequestId: []string{requestId},
		})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		transforms, err := dbTransform.Get(ctx, transformIds)
		if err != nil {
			return binderr.InternalServerError(err)
		}

		ordered := make([]domain.Transform, 0, len(transforms))
		for _, transformId := range transformIds {
			if t, ok := transforms[transformId]; ok {
				ordered = append(ordered, t)
			}
		}
		return c.JSON(http.StatusOK, binding.ComposeRequestDetail(request, ordered))
	}
}

func ExtendLifetimeHandler(dbRequest kdbreq.Interface, requestIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		requestId := c.Param(requestIdParam)

		spec := new(apitypes.ExtendLifetimeSpec)
		if err := json.NewDecoder(c.Request().Body).Decode(spec); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if spec.Until.IsZero() {
			return binderr.BadRequest("until is required", nil)
		}

		if err := dbRequest.ExtendLifetime(ctx, requestId, spec.Until); err != nil {
			if errors.Is(err, domerr.ErrMissing) {
				return binderr.NotFound()
			}
			return binderr.InternalServerError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// AbortRequestHandler accepts a cancel. The abort itself happens
// asynchronously in the conductor, so the response is 202.
func AbortRequestHandler(
	dbRequest kdbreq.Interface,
	dbMessage kdbmsg.Interface,
	requestIdParam string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		requestId := c.Param(requestIdParam)

		requests, err := dbRequest.Get(ctx, []string{requestId})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		if _, ok := requests[requestId]; !ok {
			return binderr.NotFound()
		}

		commandId, err := dbMessage.AddCommand(ctx, domain.Command{
			RequestId:   requestId,
			Type:        domain.AbortRequest,
			Destination: domain.Conductor,
		})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusAccepted, apitypes.MessagePosted{Id: commandId})
	}
}

func FindTransformHandler(dbTransform kdbtrn.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		statuses, err := parseStatuses(c.QueryParam("status"))
		if err != nil {
			return binderr.BadRequest("can not parse status", err)
		}
		query := domain.TransformFindQuery{
			RequestId: commaSeparated(c.QueryParam("request_id")),
			Site:      commaSeparated(c.QueryParam("site")),
			Status:    statuses,
		}

		transformIds, err := dbTransform.Find(ctx, query)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		transforms, err := dbTransform.Get(ctx, transformIds)
		if err != nil {
			return binderr.InternalServerError(err)
		}

		details := make([]apitypes.TransformDetail, 0, len(transforms))
		for _, transformId := range transformIds {
			if t, ok := transforms[transformId]; ok {
				details = append(details, binding.ComposeTransformDetail(t))
			}
		}
		return c.JSON(http.StatusOK, details)
	}
}

func GetTransformHandler(dbTransform kdbtrn.Interface, transformIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		transformId := c.Param(transformIdParam)

		transforms, err := dbTransform.Get(ctx, []string{transformId})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		transform, ok := transforms[transformId]
		if !ok {
			return binderr.NotFound()
		}
		return c.JSON(http.StatusOK, binding.ComposeTransformDetail(transform))
	}
}

func FindProcessingHandler(dbProcessing kdbproc.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		statuses, err := parseStatuses(c.QueryParam("status"))
		if err != nil {
			return binderr.BadRequest("can not parse status", err)
		}
		query := domain.ProcessingFindQuery{
			RequestId:   commaSeparated(c.QueryParam("request_id")),
			TransformId: commaSeparated(c.QueryParam("transform_id")),
			Status:      statuses,
		}

		processingIds, err := dbProcessing.Find(ctx, query)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		processings, err := dbProcessing.Get(ctx, processingIds)
		if err != nil {
			return binderr.InternalServerError(err)
		}

		summaries := make([]apitypes.ProcessingSummary, 0, len(processings))
		for _, processingId := range processingIds {
			if p, ok := processings[processingId]; ok {
				summaries = append(summaries, binding.ComposeProcessingSummary(p))
			}
		}
		return c.JSON(http.StatusOK, summaries)
	}
}

func commaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseStatuses(s string) ([]domain.Status, error) {
	return slices.MapUntilError(commaSeparated(s), domain.AsStatus)
}
