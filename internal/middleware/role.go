package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole lets the request through only when the authenticated
// identity holds one of roles.  It must run after Authenticate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, ok := IdentityFrom(c)
			if !ok || !allowed[who.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// InternalKeyHeader carries the shared secret of service-to-service calls.
const InternalKeyHeader = "X-Internal-Key"

// RequireInternalKey guards routes called by other services.  An empty
// key disables the check.
func RequireInternalKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if key == "" {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(InternalKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid internal key"})
			}
			return next(c)
		}
	}
}
