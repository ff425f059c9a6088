// Package app assembles the learnhub runtime from configuration: adapters,
// services, job processors, the public router and the health checks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnhub/learnhub/pkg/api"
	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/email"
	"github.com/learnhub/learnhub/pkg/health"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	jobsfactory "github.com/learnhub/learnhub/pkg/jobs/factory"
	"github.com/learnhub/learnhub/pkg/middleware/logging"
	"github.com/learnhub/learnhub/pkg/middleware/ratelimit"
	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/otp"
	"github.com/learnhub/learnhub/pkg/processors"
	"github.com/learnhub/learnhub/pkg/registration"
	"github.com/learnhub/learnhub/pkg/server"
	mongostore "github.com/learnhub/learnhub/pkg/store/mongodb"
	redisstore "github.com/learnhub/learnhub/pkg/store/redis"
	s3store "github.com/learnhub/learnhub/pkg/store/s3"
)

// Role selects which parts of the runtime are assembled.
type Role string

const (
	// RoleServe runs the public API, and the job workers when jobs.embedded_worker is set.
	RoleServe Role = "serve"
	// RoleWorker runs the job workers only.
	RoleWorker Role = "worker"
)

// App holds the assembled runtime. Fields the role does not need stay nil.
type App struct {
	Config *config.Config
	Role   Role

	Redis   *redisstore.Adapter
	Mongo   *mongostore.Adapter
	Objects *s3store.Adapter
	Mailer  email.Provider
	Queues  *jobs.QueueRegistry

	Instructors   *instructor.Service
	Registration  *registration.Service
	Notifications *notification.Service
	Hub           *notification.Hub
	Limiter       *ratelimit.TokenBucketLimiter

	// Public is the API router, nil for RoleWorker.
	Public http.Handler
	Health *health.Registry

	log     logger.Logger
	closers []namedCloser
	stop    chan struct{}
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

// Build connects to every dependency the role needs. On error everything
// opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, role Role, log logger.Logger) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	a := &App{
		Config: cfg,
		Role:   role,
		Health: health.NewRegistry(),
		log:    log.With("role", string(role)),
		stop:   make(chan struct{}),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if err := a.openRedis(); err != nil {
		return nil, err
	}
	if err := a.openMongo(); err != nil {
		return nil, err
	}
	if err := a.openObjectStorage(); err != nil {
		return nil, err
	}
	if err := a.openMailer(); err != nil {
		return nil, err
	}
	if err := a.openQueues(); err != nil {
		return nil, err
	}

	instructors, err := instructor.NewMongoRepository(a.Mongo)
	if err != nil {
		return nil, fmt.Errorf("create instructor repository: %w", err)
	}
	if err := instructors.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure instructor indexes: %w", err)
	}

	if role == RoleWorker || cfg.Jobs.EmbeddedWorker {
		if err := processors.Register(a.Queues, processors.Dependencies{
			Instructors:  instructors,
			Uploader:     a.Objects,
			Objects:      a.Objects,
			Mailer:       a.Mailer,
			ResumeFolder: cfg.ObjectStorage.ResumeFolder,
			Logger:       a.log,
		}); err != nil {
			return nil, fmt.Errorf("register processors: %w", err)
		}
	}

	if role == RoleServe {
		if err := a.buildAPI(ctx, instructors); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) openRedis() error {
	needsRedis := a.Role == RoleServe || !strings.EqualFold(a.Config.Jobs.Backend, config.JobsBackendMemory)
	if !needsRedis {
		return nil
	}
	adapter, err := redisstore.NewAdapter(redisstore.Config{
		URL:              a.Config.Redis.URL,
		MaxConns:         a.Config.Redis.MaxConns,
		OperationTimeout: a.Config.Redis.OperationTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = adapter
	a.addCloser("redis", func(context.Context) error { return adapter.Close() })
	a.Health.Register(health.NewCacheChecker("redis", adapter))
	return nil
}

func (a *App) openMongo() error {
	maxPool := a.Config.MongoDB.MaxPoolSize
	if maxPool < 0 {
		maxPool = 0
	}
	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              a.Config.MongoDB.URL,
		Database:         a.Config.MongoDB.Database,
		MaxPoolSize:      uint64(maxPool),
		ConnectTimeout:   a.Config.MongoDB.ConnectTimeout,
		OperationTimeout: a.Config.MongoDB.QueryTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	a.Mongo = adapter
	a.addCloser("mongodb", func(context.Context) error { return adapter.Close() })
	a.Health.Register(health.NewDocumentStoreChecker("mongodb", adapter))
	return nil
}

func (a *App) openObjectStorage() error {
	s3cfg := a.Config.ObjectStorage.S3
	adapter, err := s3store.NewAdapter(s3store.Config{
		Bucket:           s3cfg.Bucket,
		Region:           s3cfg.Region,
		Endpoint:         s3cfg.Endpoint,
		AccessKeyID:      s3cfg.AccessKeyID,
		SecretAccessKey:  s3cfg.SecretAccessKey,
		SessionToken:     s3cfg.SessionToken,
		UsePathStyle:     s3cfg.UsePathStyle,
		PublicBaseURL:    s3cfg.PublicBaseURL,
		OperationTimeout: s3cfg.OperationTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("create object storage: %w", err)
	}
	a.Objects = adapter
	a.addCloser("object-storage", func(context.Context) error { return adapter.Close() })
	a.Health.Register(health.NewObjectStorageChecker("object-storage", adapter))
	return nil
}

func (a *App) openMailer() error {
	mailer, err := email.NewProvider(a.Config.Email, a.log)
	if err != nil {
		return fmt.Errorf("create email provider: %w", err)
	}
	a.Mailer = mailer
	a.addCloser("email", func(context.Context) error { return mailer.Close() })
	return nil
}

func (a *App) openQueues() error {
	var client redis.UniversalClient
	if a.Redis != nil {
		client = a.Redis.Client()
	}
	registry, err := jobsfactory.NewRegistry(a.Config.Jobs, a.Config.Redis, client, a.log)
	if err != nil {
		return fmt.Errorf("create job queues: %w", err)
	}
	a.Queues = registry
	// queues close before redis, whose client they share
	a.closers = append([]namedCloser{{name: "jobs", fn: registry.CloseAll}}, a.closers...)
	a.Health.Register(jobs.NewBackendHealthChecker("jobs-backend", registry.Backend(), 0))
	return nil
}

func (a *App) buildAPI(ctx context.Context, instructors instructor.Repository) error {
	cfg := a.Config

	tokens, err := auth.NewHMACTokens(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("create token validator: %w", err)
	}

	renderer, err := email.NewRenderer()
	if err != nil {
		return fmt.Errorf("create email renderer: %w", err)
	}
	codes, err := otp.NewService(a.Redis, a.Queues, renderer, otp.Config{
		TTL:         cfg.OTP.TTL,
		TempDataTTL: cfg.OTP.TempDataTTL,
		CodeDigits:  cfg.OTP.CodeDigits,
		KeyPrefix:   cfg.OTP.KeyPrefix,
	}, a.log)
	if err != nil {
		return fmt.Errorf("create otp service: %w", err)
	}
	a.Registration, err = registration.NewService(codes, instructors, a.Queues, registration.Config{
		Subject:         cfg.OTP.Subject,
		UploadRetention: uploadRetention(cfg.OTP.TempDataTTL),
	}, a.log)
	if err != nil {
		return fmt.Errorf("create registration service: %w", err)
	}
	a.Instructors, err = instructor.NewService(instructors, a.Queues, instructor.ServiceConfig{
		DeclineGracePeriod: cfg.Instructor.DeclineGracePeriod,
	}, a.log)
	if err != nil {
		return fmt.Errorf("create instructor service: %w", err)
	}

	notifications, err := notification.NewMongoRepository(a.Mongo)
	if err != nil {
		return fmt.Errorf("create notification repository: %w", err)
	}
	if err := notifications.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure notification indexes: %w", err)
	}
	a.Hub, err = notification.NewHub(notification.HubConfig{
		SendBuffer:      cfg.Realtime.SendBuffer,
		MaxConnsPerUser: cfg.Realtime.MaxConnsPerUser,
	}, a.log)
	if err != nil {
		return fmt.Errorf("create notification hub: %w", err)
	}
	// live connections close before the stores they read from
	hub := a.Hub
	a.closers = append([]namedCloser{{name: "notification-hub", fn: func(context.Context) error {
		hub.CloseAll()
		return nil
	}}}, a.closers...)
	a.Notifications, err = notification.NewService(notifications, a.Hub, a.log)
	if err != nil {
		return fmt.Errorf("create notification service: %w", err)
	}

	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		a.Limiter = ratelimit.NewTokenBucketLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
		a.Limiter.StartSweeper(a.stop)
		limiter = a.Limiter
	}

	router, err := api.NewRouter(api.Dependencies{
		Registration:  a.Registration,
		Instructors:   a.Instructors,
		Notifications: a.Notifications,
		Live:          a.Hub,
		Tokens:        tokens,
		Jobs:          a.Queues,
		Limiter:       limiter,
		Logger:        a.log,
	}, api.Config{
		UploadDir:     cfg.HTTP.UploadDir,
		MaxUploadSize: cfg.HTTP.MaxRequestSize,
		Live: api.LiveConfig{
			JoinTimeout:    cfg.Realtime.JoinTimeout,
			PingInterval:   cfg.Realtime.PingInterval,
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
		},
		Logging: logging.DefaultConfig(),
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	a.Public = router
	return nil
}

// StartWorkers launches the queue workers. It is a no-op for a serve role
// without an embedded worker.
func (a *App) StartWorkers(ctx context.Context) error {
	if a.Role == RoleServe && !a.Config.Jobs.EmbeddedWorker {
		return nil
	}
	a.log.Info("starting job workers")
	return a.Queues.Start(ctx)
}

// ShutdownHooks hands the close steps to the server lifecycle, in order: live
// connections and workers first, stores last. Close is a no-op afterwards.
func (a *App) ShutdownHooks() []server.LifecycleHook {
	hooks := []server.LifecycleHook{{Name: "stop-background", Fn: func(context.Context) error {
		a.stopBackground()
		return nil
	}}}
	for _, c := range a.closers {
		hooks = append(hooks, server.LifecycleHook{Name: c.name, Fn: c.fn})
	}
	a.closers = nil
	return hooks
}

// Close releases every dependency. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.stopBackground()
	var errs []error
	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) stopBackground() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, fn: fn})
}

// uploadRetention keeps parked resumes well past the temp data that points at them.
func uploadRetention(tempDataTTL time.Duration) time.Duration {
	if tempDataTTL <= 0 {
		return registration.DefaultUploadRetention
	}
	return tempDataTTL + 10*time.Minute
}
