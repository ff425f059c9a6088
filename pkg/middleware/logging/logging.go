// Package logging writes one access log line per request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Mode defines logging verbosity for matching request paths.
type Mode string

// Logging mode constants
const (
	// ModeOff disables request logging
	ModeOff Mode = "off"
	// ModeMinimal logs only the completion line with the default fields
	ModeMinimal Mode = "minimal"
	// ModeFull also logs request start and the extra client fields
	ModeFull Mode = "full"
)

// Log field name constants
const (
	FieldRequestID     = "request_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldRoute         = "route"
	FieldStatus        = "status"
	FieldDurationMS    = "duration_ms"
	FieldError         = "error"
	FieldRemoteAddr    = "remote_addr"
	FieldQueryString   = "query_string"
	FieldHTTPUserAgent = "http_user_agent"
	FieldResponseSize  = "response_size"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled              bool
	LogStart             bool
	ExcludedPathPrefixes []string
	PathPolicies         []PathPolicy
}

// PathPolicy configures a logging mode for a path prefix.
type PathPolicy struct {
	Prefix string
	Mode   Mode
}

// DefaultConfig returns default request logging behavior. Health probes are
// excluded so orchestrator polling does not flood the log.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		ExcludedPathPrefixes: []string{"/healthz", "/readyz"},
	}
}

// Logging creates middleware with default configuration.
func Logging(log logger.Logger) gin.HandlerFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware with custom configuration.
func WithConfig(log logger.Logger, cfg Config) gin.HandlerFunc {
	normalized := normalize(cfg)

	return func(c *gin.Context) {
		mode := normalized.modeForPath(c.Request.URL.Path)
		if mode == ModeOff {
			c.Next()
			return
		}

		start := time.Now()
		reqLog := log.WithContext(c.Request.Context())
		if normalized.LogStart && mode == ModeFull {
			reqLog.Info("request started", startFields(c)...)
		}

		c.Next()

		fields := completionFields(c, mode, time.Since(start))
		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
				fields = append(fields, FieldError, errs.Last().Err)
			}
			reqLog.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("request completed", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}

func startFields(c *gin.Context) []any {
	return []any{
		FieldRequestID, logger.RequestIDFromContext(c.Request.Context()),
		FieldMethod, c.Request.Method,
		FieldPath, c.Request.URL.Path,
		FieldRemoteAddr, c.ClientIP(),
	}
}

func completionFields(c *gin.Context, mode Mode, duration time.Duration) []any {
	fields := []any{
		FieldRequestID, logger.RequestIDFromContext(c.Request.Context()),
		FieldMethod, c.Request.Method,
		FieldPath, c.Request.URL.Path,
		FieldStatus, c.Writer.Status(),
		FieldDurationMS, duration.Milliseconds(),
		FieldRemoteAddr, c.ClientIP(),
	}
	if mode != ModeFull {
		return fields
	}
	return append(fields,
		FieldRoute, c.FullPath(),
		FieldQueryString, c.Request.URL.RawQuery,
		FieldHTTPUserAgent, c.Request.UserAgent(),
		FieldResponseSize, c.Writer.Size(),
	)
}

func normalize(cfg Config) Config {
	normalized := cfg
	normalized.PathPolicies = append([]PathPolicy(nil), cfg.PathPolicies...)
	for index := range normalized.PathPolicies {
		normalized.PathPolicies[index].Mode = parseMode(normalized.PathPolicies[index].Mode)
	}
	return normalized
}

func (c Config) modeForPath(path string) Mode {
	if !c.Enabled {
		return ModeOff
	}

	for _, prefix := range c.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return ModeOff
		}
	}

	bestLen := -1
	bestMode := ModeMinimal
	for _, policy := range c.PathPolicies {
		if strings.TrimSpace(policy.Prefix) == "" {
			continue
		}
		if strings.HasPrefix(path, policy.Prefix) && len(policy.Prefix) > bestLen {
			bestLen = len(policy.Prefix)
			bestMode = policy.Mode
		}
	}
	return bestMode
}

func parseMode(mode Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(ModeOff):
		return ModeOff
	case string(ModeFull):
		return ModeFull
	default:
		return ModeMinimal
	}
}
