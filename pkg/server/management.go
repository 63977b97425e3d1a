package server

import (
	"net/http"
	"time"

	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/health"
	"github.com/nimburion/crudkit/pkg/middleware/logging"
	"github.com/nimburion/crudkit/pkg/middleware/recovery"
	"github.com/nimburion/crudkit/pkg/middleware/requestid"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/observability/metrics"
	"github.com/nimburion/crudkit/pkg/server/router"
	"github.com/nimburion/crudkit/pkg/version"
)

// ManagementServer serves operational endpoints on a separate port:
//
//	/health   dependency checks, 200 or 503
//	/metrics  Prometheus exposition, when a registry is given
//	/version  build metadata
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
	info            version.Info
}

// NewManagementServer registers the management endpoints on r. metricsPath defaults to
// "/metrics"; a nil metrics registry disables the endpoint.
func NewManagementServer(
	cfg config.ManagementConfig,
	metricsPath string,
	r router.Router,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	info version.Info,
) *ManagementServer {
	if healthRegistry == nil {
		healthRegistry = health.NewRegistry()
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r.Use(
		requestid.RequestID(),
		logging.Logging(log, logging.Config{SkipPaths: []string{"/health", metricsPath}}),
		recovery.Recovery(log),
	)

	s := &ManagementServer{
		Server: NewServer(Config{
			Port:         cfg.Port,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, r, log),
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		info:            info,
	}

	r.GET("/health", s.handleHealth)
	r.GET("/version", s.handleVersion)
	if metricsRegistry != nil {
		r.GET(metricsPath, s.handleMetrics)
	}
	return s
}

func (s *ManagementServer) handleHealth(c router.Context) error {
	result := s.healthRegistry.Check(c.Request().Context())
	if !result.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleVersion(c router.Context) error {
	return c.JSON(http.StatusOK, s.info)
}

func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
