// Package requestid assigns every request an identifier that is echoed in the response and
// attached to the request context for logging.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

const maxLength = 128

// RequestID keeps a well-formed incoming X-Request-ID and generates a UUID otherwise. The ID
// is set on the response header, stored on the router context and attached to the request
// context with logger.ContextWithRequestID.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requestID := c.Request().Header.Get(RequestIDHeader)
			if !valid(requestID) {
				requestID = uuid.NewString()
			}

			c.Set(logger.RequestIDKey, requestID)
			c.Response().Header().Set(RequestIDHeader, requestID)
			ctx := logger.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetRequestID extracts the request ID from a context.
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}

// valid accepts 1 to 128 visible ASCII characters.
func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
