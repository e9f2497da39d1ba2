package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	binderr "github.com/opst/weft/pkg/api/types/errors"
	"github.com/opst/weft/pkg/domain"
	kdbmsg "github.com/opst/weft/pkg/domain/message/db"

	apitypes "github.com/opst/weft/pkg/api/types"
)

func PostCommandHandler(dbMessage kdbmsg.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		spec := new(apitypes.CommandSpec)
		if err := json.NewDecoder(c.Request().Body).Decode(spec); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		commandType, err := domain.AsCommandType(spec.Type)
		if err != nil {
			return binderr.BadRequest("can not parse type", err)
		}
		if spec.RequestId == "" {
			return binderr.BadRequest("request_id is required", nil)
		}

		destination := domain.Conductor
		if spec.Destination != "" {
			destination, err = domain.AsAgentRole(spec.Destination)
			if err != nil {
				return binderr.BadRequest("can not parse destination", err)
			}
		}
		var source domain.AgentRole
		if spec.Source != "" {
			source, err = domain.AsAgentRole(spec.Source)
			if err != nil {
				return binderr.BadRequest("can not parse source", err)
			}
		}

		commandId, err := dbMessage.AddCommand(ctx, domain.Command{
			RequestId:   spec.RequestId,
			Type:        commandType,
			Source:      source,
			Destination: destination,
			Payload:     spec.Payload,
		})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusCreated, apitypes.MessagePosted{Id: commandId})
	}
}

func PostEventHandler(dbMessage kdbmsg.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		spec := new(apitypes.EventSpec)
		if err := json.NewDecoder(c.Request().Body).Decode(spec); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		eventType, err := domain.AsEventType(spec.Type)
		if err != nil {
			return binderr.BadRequest("can not parse type", err)
		}

		eventId, err := dbMessage.AddEvent(ctx, domain.Event{
			Type:     eventType,
			Priority: spec.Priority,
			Payload:  spec.Payload,
		})
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusCreated, apitypes.MessagePosted{Id: eventId})
	}
}
