// Package metrics feeds the HTTP request collectors of a metrics.Registry.
package metrics

import (
	"net/http"

	"github.com/nimburion/crudkit/pkg/observability/metrics"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// Metrics records every request on m, labelled by method, route pattern and status. A handler
// error that left the response unwritten counts as 500.
func Metrics(m *metrics.HTTPMetrics) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			done := m.Begin()
			err := next(c)

			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}
			done(c.Request().Method, router.Route(c), status)
			return err
		}
	}
}
