// Package tracing starts an OpenTelemetry server span per request.
package tracing

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Config holds configuration for the tracing middleware.
type Config struct {
	// TracerName identifies the tracer (e.g., "http-server")
	TracerName string

	// ExcludedPathPrefixes disables tracing for matching path prefixes.
	ExcludedPathPrefixes []string
}

// Tracing extracts the incoming trace context, starts a server span named
// after the route template and marks 5xx responses as errors.
func Tracing(cfg Config) gin.HandlerFunc {
	if cfg.TracerName == "" {
		cfg.TracerName = "http-server"
	}

	tracer := otel.Tracer(cfg.TracerName)

	return func(c *gin.Context) {
		req := c.Request
		for _, prefix := range cfg.ExcludedPathPrefixes {
			if strings.HasPrefix(req.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, spanName(c), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.target", req.URL.Path),
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.user_agent", req.UserAgent()),
		)
		if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Request = req.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
				span.RecordError(errs.Last().Err)
			}
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

func spanName(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return fmt.Sprintf("HTTP %s %s", c.Request.Method, route)
}
