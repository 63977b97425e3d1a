package server

import (
	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/middleware/logging"
	"github.com/nimburion/crudkit/pkg/middleware/metrics"
	"github.com/nimburion/crudkit/pkg/middleware/ratelimit"
	"github.com/nimburion/crudkit/pkg/middleware/recovery"
	"github.com/nimburion/crudkit/pkg/middleware/requestid"
	"github.com/nimburion/crudkit/pkg/middleware/tracing"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	obsmetrics "github.com/nimburion/crudkit/pkg/observability/metrics"
	"github.com/nimburion/crudkit/pkg/server/router"
)

// PublicAPIServer serves the resource API.
type PublicAPIServer struct {
	*Server
}

// NewPublicAPIServer applies the standard middleware stack to r, in order: request ID,
// tracing (when enabled), access logging, panic recovery, HTTP metrics (when reg is set) and
// per-client rate limiting (when http.rate_limit_rps is positive).
// Routes must be registered after this call.
func NewPublicAPIServer(cfg config.HTTPConfig, obs config.ObservabilityConfig, r router.Router, log logger.Logger, reg *obsmetrics.Registry) *PublicAPIServer {
	stack := []router.MiddlewareFunc{requestid.RequestID()}
	if obs.TracingEnabled {
		stack = append(stack, tracing.Tracing())
	}
	stack = append(stack, logging.Logging(log), recovery.Recovery(log))
	if reg != nil {
		stack = append(stack, metrics.Metrics(reg.HTTP()))
	}
	if cfg.RateLimitRPS > 0 {
		stack = append(stack, ratelimit.RateLimit(ratelimit.NewTokenBucketLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), nil))
	}
	r.Use(stack...)

	return &PublicAPIServer{Server: NewServer(Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, r, log)}
}
