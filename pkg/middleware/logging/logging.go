// Package logging writes one structured access log entry per request.
package logging

import (
	"net/http"
	"time"

	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// Config controls the access logger.
type Config struct {
	// SkipPaths are exact request paths that are not logged, e.g. "/health".
	SkipPaths []string
}

// Logging logs method, path, route, status and duration after the handler returns.
// 5xx responses log at error level and 4xx at warn.
func Logging(log logger.Logger, cfgs ...Config) router.MiddlewareFunc {
	if log == nil {
		log = logger.NewNop()
	}
	skip := map[string]struct{}{}
	for _, cfg := range cfgs {
		for _, p := range cfg.SkipPaths {
			skip[p] = struct{}{}
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			r := c.Request()
			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", router.Route(c),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			}
			if err != nil {
				fields = append(fields, "error", err.Error())
			}

			l := log.WithContext(r.Context())
			switch {
			case status >= 500:
				l.Error("request completed", fields...)
			case status >= 400:
				l.Warn("request completed", fields...)
			default:
				l.Info("request completed", fields...)
			}
			return err
		}
	}
}
