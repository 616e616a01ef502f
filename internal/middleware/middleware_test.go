package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

type stubVerifier map[string]model.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (model.Identity, error) {
	if who, ok := s[token]; ok {
		return who, nil
	}
	return model.Identity{}, model.ErrUnauthorized
}

var verifier = stubVerifier{
	"user-token":  {ID: "u1", Role: "user"},
	"admin-token": {ID: "a1", Role: model.RoleAdmin},
}

func serve(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	who, ok := IdentityFrom(c)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.String(http.StatusOK, who.ID)
}

func TestAuthenticate(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, Authenticate(verifier))

	cases := []struct {
		name   string
		auth   string
		status int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer user-token", http.StatusOK, "u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": tc.auth})
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, Authenticate(verifier), RequireRole(model.RoleAdmin))

	assert.Equal(t, http.StatusForbidden,
		serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer user-token"}).Code)
	assert.Equal(t, http.StatusOK,
		serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer admin-token"}).Code)
}

func TestRequireInternalKey(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e := echo.New()
	e.GET("/guarded", ok, RequireInternalKey("k3y"))
	e.GET("/open", ok, RequireInternalKey(""))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/guarded", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		serve(e, http.MethodGet, "/guarded", map[string]string{InternalKeyHeader: "wrong"}).Code)
	assert.Equal(t, http.StatusNoContent,
		serve(e, http.MethodGet, "/guarded", map[string]string{InternalKeyHeader: "k3y"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/open", nil).Code)
}

func TestCorrelationID(t *testing.T) {
	e := echo.New()
	e.Use(CorrelationID(), RequestLogger())
	e.GET("/id", func(c echo.Context) error {
		return c.String(http.StatusOK, logging.CorrelationIDFromContext(c.Request().Context()))
	})
	e.GET("/fail", func(c echo.Context) error { return errors.New("boom") })

	rec := serve(e, http.MethodGet, "/id", map[string]string{CorrelationIDHeader: "given"})
	assert.Equal(t, "given", rec.Body.String())
	assert.Equal(t, "given", rec.Header().Get(CorrelationIDHeader))

	rec = serve(e, http.MethodGet, "/id", nil)
	assert.NotEmpty(t, rec.Body.String())
	assert.Equal(t, rec.Body.String(), rec.Header().Get(CorrelationIDHeader))

	rec = serve(e, http.MethodGet, "/fail", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRateLimitPerUser(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		Prefix:         "rl:test",
	}
	e := echo.New()
	e.GET("/me", whoami, Authenticate(verifier), RateLimit(cfg, rdb))
	user := map[string]string{"Authorization": "Bearer user-token"}

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/me", user).Code)
	rec := serve(e, http.MethodGet, "/me", user)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/me", user)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per user
	assert.Equal(t, http.StatusOK,
		serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer admin-token"}).Code)
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, Authenticate(verifier), RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK,
			serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer user-token"}).Code)
	}
}

func TestResponseCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache:test", MaxBodyBytes: 1 << 10}
	calls := 0
	e := echo.New()
	e.GET("/v1/events/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	}, ResponseCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/v1/events/e1", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/v1/events/e1", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	fresh := serve(e, http.MethodGet, "/v1/events/e1", map[string]string{"Cache-Control": "no-cache"})
	assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}
