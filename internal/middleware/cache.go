package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/logging"
)

// captureWriter tees the response body into a bounded buffer.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
	over   bool
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.over {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.over = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

type cachedResponse struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// ResponseCache serves GET responses from Redis for cfg.TTL.  Only 200
// responses are stored.  A request sent with Cache-Control: no-cache
// bypasses the lookup, which the seat ledger client uses to read fresh
// counts.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || cfg.TTL <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			ctx := req.Context()
			key := cfg.Prefix + ":" + req.URL.RequestURI()

			if !strings.Contains(req.Header.Get("Cache-Control"), "no-cache") {
				if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
					var hit cachedResponse
					if json.Unmarshal(raw, &hit) == nil {
						c.Response().Header().Set("X-Cache", "HIT")
						return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
					}
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.over {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err == nil {
				err = rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err()
			}
			if err != nil {
				logging.FromContext(ctx).WithError(err).Debug("response not cached")
			}
			return nil
		}
	}
}
