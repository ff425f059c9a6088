// Package api exposes the registration, instructor review and notification
// endpoints over gin.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/middleware/authz"
	"github.com/learnhub/learnhub/pkg/middleware/logging"
	"github.com/learnhub/learnhub/pkg/middleware/metrics"
	"github.com/learnhub/learnhub/pkg/middleware/ratelimit"
	"github.com/learnhub/learnhub/pkg/middleware/recovery"
	"github.com/learnhub/learnhub/pkg/middleware/requestid"
	"github.com/learnhub/learnhub/pkg/middleware/tracing"
	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/registration"
)

// Registration runs instructor sign-up.
type Registration interface {
	Start(ctx context.Context, form registration.Form) error
	Verify(ctx context.Context, email, code string) (*instructor.Instructor, error)
	Resend(ctx context.Context, email string) error
}

// Instructors runs the admin review transitions.
type Instructors interface {
	Get(ctx context.Context, id string) (*instructor.Instructor, error)
	Decline(ctx context.Context, id string) (*jobs.JobHandle, error)
	Reinstate(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) error
}

// Notifications is the server side notification service.
type Notifications interface {
	Create(ctx context.Context, in notification.Input) (*notification.Notification, error)
	List(ctx context.Context, userID string, page, limit int) (*notification.Page, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	SendTest(ctx context.Context, userID string) (*notification.Notification, error)
}

// Subscriber registers live connections.
type Subscriber interface {
	Subscribe(userID string) *notification.Subscription
}

// Dependencies are the services behind the routes.
type Dependencies struct {
	Registration  Registration
	Instructors   Instructors
	Notifications Notifications
	Live          Subscriber
	Tokens        auth.JWTValidator
	// Jobs backs the failed-job admin routes; nil leaves them unregistered.
	Jobs FailedJobs
	// Limiter guards the OTP routes; nil disables limiting.
	Limiter ratelimit.RateLimiter
	Logger  logger.Logger
}

// LiveConfig configures the live notification channel.
type LiveConfig struct {
	JoinTimeout    time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// Config configures the router.
type Config struct {
	UploadDir     string
	MaxUploadSize int64
	Live          LiveConfig
	Logging       logging.Config
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{
		UploadDir:     "uploads",
		MaxUploadSize: 10 << 20,
		Live: LiveConfig{
			JoinTimeout:    10 * time.Second,
			PingInterval:   30 * time.Second,
			WriteTimeout:   5 * time.Second,
			MaxMessageSize: 4096,
		},
		Logging: logging.DefaultConfig(),
	}
}

type handlers struct {
	deps Dependencies
	cfg  Config
	log  logger.Logger
}

// NewRouter builds the public gin engine.
func NewRouter(deps Dependencies, cfg Config) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultConfig().MaxUploadSize
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultConfig().UploadDir
	}
	if cfg.Live.JoinTimeout <= 0 {
		cfg.Live.JoinTimeout = DefaultConfig().Live.JoinTimeout
	}

	h := &handlers{deps: deps, cfg: cfg, log: deps.Logger.With("component", "api")}

	r := gin.New()
	r.Use(
		recovery.Recovery(h.log),
		requestid.RequestID(),
		func(c *gin.Context) { c.Set(controller.LoggerKey, h.log) },
		tracing.Tracing(tracing.Config{TracerName: "learnhub-api"}),
		metrics.Metrics(),
		logging.WithConfig(h.log, cfg.Logging),
	)
	r.NoRoute(func(c *gin.Context) {
		controller.Error(c, controller.NewNotFoundError("route not found"))
	})

	v1 := r.Group("/api/v1")

	otpLimit := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		otpLimit = ratelimit.RateLimit(deps.Limiter, ratelimit.Config{
			Message: "too many verification requests, please slow down",
		})
	}
	instructors := v1.Group("/instructors")
	instructors.POST("/register", otpLimit, h.register)
	instructors.POST("/verify-otp", otpLimit, h.verifyOTP)
	instructors.POST("/resend-otp", otpLimit, h.resendOTP)

	admin := v1.Group("/admin", authz.Authenticate(deps.Tokens), authz.RequireRole(auth.RoleAdmin))
	admin.GET("/instructors/:id", h.getInstructor)
	admin.POST("/instructors/:id/decline", h.declineInstructor)
	admin.POST("/instructors/:id/reinstate", h.reinstateInstructor)
	admin.POST("/instructors/:id/approve", h.approveInstructor)
	if deps.Jobs != nil {
		admin.GET("/jobs/:queue/failed", h.listFailedJobs)
		admin.POST("/jobs/:queue/retry", h.retryFailedJobs)
	}

	// The live channel authenticates itself because browsers cannot set
	// headers on websocket upgrades.
	v1.GET("/notifications/live", h.live)

	notifications := v1.Group("/notifications", authz.Authenticate(deps.Tokens))
	notifications.GET("", h.listNotifications)
	notifications.GET("/unread-count", h.unreadCount)
	notifications.PATCH("/read-all", h.markAllRead)
	notifications.PATCH("/:id/read", h.markRead)
	notifications.POST("/test", h.sendTest)

	return r, nil
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Registration == nil {
		errs = append(errs, errors.New("registration service is required"))
	}
	if d.Instructors == nil {
		errs = append(errs, errors.New("instructor service is required"))
	}
	if d.Notifications == nil {
		errs = append(errs, errors.New("notification service is required"))
	}
	if d.Live == nil {
		errs = append(errs, errors.New("live subscriber is required"))
	}
	if d.Tokens == nil {
		errs = append(errs, errors.New("token validator is required"))
	}
	if d.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}
