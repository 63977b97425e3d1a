// Package authn authenticates requests carrying a bearer JWT.
package authn

import (
	"strings"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/controller"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// ClaimsKey is the router.Context key holding the validated *auth.Claims.
const ClaimsKey = "claims"

// Authenticate rejects requests without a valid "Authorization: Bearer <token>" header with 401.
// Validated claims are stored on the router context and on the request context, where
// auth.GetClaims and the scope ACL read them.
func Authenticate(validator auth.JWTValidator, log logger.Logger) router.MiddlewareFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			ctx := c.Request().Context()

			token, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return controller.WriteError(c, apperror.Unauthorized("missing bearer token"))
			}

			claims, err := validator.Validate(ctx, token)
			if err != nil {
				log.WithContext(ctx).Warn("token rejected", "error", err.Error())
				return controller.WriteError(c, apperror.Unauthorized("invalid bearer token"))
			}

			c.Set(ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(auth.WithClaims(ctx, claims)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
