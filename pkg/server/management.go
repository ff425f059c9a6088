package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/health"
	"github.com/learnhub/learnhub/pkg/middleware/logging"
	"github.com/learnhub/learnhub/pkg/middleware/recovery"
	"github.com/learnhub/learnhub/pkg/middleware/requestid"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/metrics"
	"github.com/learnhub/learnhub/pkg/version"
)

// ManagementServer serves /healthz, /readyz, /metrics and /version on a
// separate port from the public API.
type ManagementServer struct {
	*Server
	engine *gin.Engine
	health *health.Registry
}

// NewManagementServer builds the management endpoints.
func NewManagementServer(
	cfg config.ManagementConfig,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	info version.Info,
) (*ManagementServer, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if healthRegistry == nil {
		return nil, errors.New("health registry is required")
	}
	if metricsRegistry == nil {
		return nil, errors.New("metrics registry is required")
	}

	log = log.With("component", "management")
	loggingCfg := logging.DefaultConfig()
	loggingCfg.ExcludedPathPrefixes = append(loggingCfg.ExcludedPathPrefixes, "/metrics")

	engine := gin.New()
	engine.Use(
		recovery.Recovery(log),
		requestid.RequestID(),
		func(c *gin.Context) { c.Set(controller.LoggerKey, log) },
		logging.WithConfig(log, loggingCfg),
	)
	s := &ManagementServer{engine: engine, health: healthRegistry}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/readyz", s.handleReady)
	engine.GET("/metrics", gin.WrapH(metricsRegistry.Handler()))
	engine.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, info) })
	engine.NoRoute(func(c *gin.Context) {
		controller.Error(c, controller.NewNotFoundError("route not found"))
	})

	s.Server = NewServer("management", Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, engine, log)
	return s, nil
}

// Handler exposes the management routes, mainly for tests.
func (s *ManagementServer) Handler() http.Handler { return s.engine }

// handleHealth is the liveness probe; it never checks dependencies.
func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
}

// handleReady answers 503 while any dependency is unhealthy.
func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if !result.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
