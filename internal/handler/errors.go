// Package handler holds the echo handlers of the booking API.  Handlers
// translate between JSON and the service layer; business rules live in
// internal/service.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientCapacity), errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrDownstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": "..."}.  Internal errors are logged and
// hidden from the client.
func fail(c echo.Context, err error) error {
	return failWith(c, statusFor(err), err)
}

func failWith(c echo.Context, status int, err error) error {
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
	}
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		msg = "a downstream service is unavailable, please retry"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// pathParam returns a trimmed, non-empty path parameter.
func pathParam(c echo.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	return v, v != ""
}
