// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/controller"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// Recovery recovers panics in later middleware and handlers, logs them with the stack trace
// and answers 500 unless a response was already started. http.ErrAbortHandler is re-raised.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := c.Request().Context()
				log.WithContext(ctx).Error("panic recovered",
					"panic", fmt.Sprint(rec),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(debug.Stack()),
				)
				if c.Response().Written() {
					return
				}
				err = controller.WriteError(c, apperror.Internal("an unexpected error occurred", fmt.Errorf("panic: %v", rec)))
			}()

			return next(c)
		}
	}
}
