package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opst/weft/pkg/api/binding"
	binderr "github.com/opst/weft/pkg/api/types/errors"
	"github.com/opst/weft/pkg/domain"
	kdbcat "github.com/opst/weft/pkg/domain/catalog/db"
	domerr "github.com/opst/weft/pkg/domain/errors"
	kdbtrn "github.com/opst/weft/pkg/domain/transform/db"
	"github.com/opst/weft/pkg/utils/slices"

	apitypes "github.com/opst/weft/pkg/api/types"
)

func FindCollectionHandler(
	dbCatalog kdbcat.Interface,
	dbTransform kdbtrn.Interface,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		relations, err := slices.MapUntilError(
			commaSeparated(c.QueryParam("relation")), domain.AsCollectionRelation,
		)
		if err != nil {
			return binderr.BadRequest("can not parse relation", err)
		}

		transformIds := commaSeparated(c.QueryParam("transform_id"))
		if len(transformIds) == 0 {
			// request-scoped lookup walks the request's transforms.
			requestIds := commaSeparated(c.QueryParam("request_id"))
			if len(requestIds) == 0 {
				return binderr.BadRequest("transform_id or request_id is required", nil)
			}
			transformIds, err = dbTransform.Find(ctx, domain.TransformFindQuery{
				RequestId: requestIds,
			})
			if err != nil {
				return binderr.InternalServerError(err)
			}
		}

		summaries := []apitypes.CollectionSummary{}
		for _, transformId := range transformIds {
			collections, err := dbCatalog.GetCollections(ctx, transformId, relations...)
			if err != nil {
				return binderr.InternalServerError(err)
			}
			for _, coll := range collections {
				summaries = append(summaries, binding.ComposeCollectionSummary(coll))
			}
		}
		return c.JSON(http.StatusOK, summaries)
	}
}

func FindContentHandler(dbCatalog kdbcat.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		statuses, err := parseStatuses(c.QueryParam("status"))
		if err != nil {
			return binderr.BadRequest("can not parse status", err)
		}
		relations, err := slices.MapUntilError(
			commaSeparated(c.QueryParam("relation")), domain.AsCollectionRelation,
		)
		if err != nil {
			return binderr.BadRequest("can not parse relation", err)
		}
		collIds, err := slices.MapUntilError(
			commaSeparated(c.QueryParam("coll_id")),
			func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		)
		if err != nil {
			return binderr.BadRequest("can not parse coll_id", err)
		}

		contents, err := dbCatalog.FindContents(ctx, domain.ContentFindQuery{
			RequestId:   commaSeparated(c.QueryParam("request_id")),
			TransformId: commaSeparated(c.QueryParam("transform_id")),
			CollId:      collIds,
			Relation:    relations,
			Status:      statuses,
		})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(contents, binding.ComposeContentDetail))
	}
}

func RegisterContentHandler(dbCatalog kdbcat.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		registration := new(apitypes.ContentRegistration)
		if err := json.NewDecoder(c.Request().Body).Decode(registration); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if len(registration.Contents) == 0 {
			return binderr.BadRequest("contents is empty", nil)
		}

		contents, err := slices.MapUntilError(
			registration.Contents, binding.ParseContentSpec,
		)
		if err != nil {
			return binderr.BadRequest("can not parse contents", err)
		}

		inserted, updated, err := dbCatalog.RegisterOutputContents(ctx, contents)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apitypes.ContentRegistered{
			Inserted: inserted, Updated: updated,
		})
	}
}

func MatchContentHandler(dbCatalog kdbcat.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		query := domain.ContentMatchQuery{
			Scope:               c.QueryParam("scope"),
			Name:                c.QueryParam("name"),
			OnlyReturnBestMatch: c.QueryParam("best") == "true",
		}
		var err error
		if collId := c.QueryParam("coll_id"); collId != "" {
			query.CollId, err = strconv.ParseInt(collId, 10, 64)
			if err != nil {
				return binderr.BadRequest("can not parse coll_id", err)
			}
		}
		if minId := c.QueryParam("min_id"); minId != "" {
			query.MinId, err = strconv.ParseInt(minId, 10, 64)
			if err != nil {
				return binderr.BadRequest("can not parse min_id", err)
			}
		}
		if maxId := c.QueryParam("max_id"); maxId != "" {
			query.MaxId, err = strconv.ParseInt(maxId, 10, 64)
			if err != nil {
				return binderr.BadRequest("can not parse max_id", err)
			}
		}

		contents, err := dbCatalog.GetMatchContents(ctx, query)
		if err != nil {
			if errors.Is(err, domerr.ErrMissing) {
				return binderr.NotFound()
			}
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(contents, binding.ComposeContentDetail))
	}
}
