package server

import (
	"net/http"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// NewPublicServer serves the API router with the http section of the config.
func NewPublicServer(cfg config.HTTPConfig, handler http.Handler, log logger.Logger) *Server {
	return NewServer("public", Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, handler, log)
}
