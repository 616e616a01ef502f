package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-booking/internal/logging"
)

// CorrelationIDHeader is read from and echoed back on every request.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID makes sure every request carries a correlation id and a
// logger entry tagged with it.
func CorrelationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(CorrelationIDHeader)
			if id == "" {
				id = shortuuid.New()
			}
			ctx := logging.ContextWithCorrelationID(req.Context(), id)
			ctx = logging.ToContext(ctx, logrus.WithField("correlation_id", id))
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(CorrelationIDHeader, id)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request once the handler has returned.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			entry := logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{
				"method":   c.Request().Method,
				"route":    c.Path(),
				"status":   status,
				"duration": time.Since(start).String(),
			})
			switch {
			case status >= 500:
				entry.WithError(err).Error("request failed")
			case status >= 400:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}
