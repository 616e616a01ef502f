// Package middleware holds the echo middleware of the booking API:
// authentication, authorization, rate limiting, response caching and
// request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// Verifier turns a bearer token into an identity.  Implemented by
// client.IdentityClient and utils.JWTVerifier.
type Verifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

const identityKey = "identity"

// Authenticate verifies the bearer token with v and stores the identity in
// the echo context.  Handlers read it with IdentityFrom.  The user id is
// also stored under "user_id" for the rate limiter.
func Authenticate(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			ctx := c.Request().Context()
			who, err := v.Verify(ctx, raw)
			if err != nil {
				logging.FromContext(ctx).WithError(err).Debug("token rejected")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(identityKey, who)
			c.Set("user_id", who.ID)
			c.Set("role", who.Role)
			entry := logging.FromContext(ctx).WithField("user_id", who.ID)
			c.SetRequest(c.Request().WithContext(logging.ToContext(ctx, entry)))
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	who, ok := c.Get(identityKey).(model.Identity)
	return who, ok && who.ID != ""
}
