package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/health"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/metrics"
	"github.com/learnhub/learnhub/pkg/observability/tracing"
	"github.com/learnhub/learnhub/pkg/version"
)

const defaultHookTimeout = 10 * time.Second

// LifecycleHook defines a named startup/shutdown action.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// RunOptions defines inputs for building and running the HTTP servers.
type RunOptions struct {
	Config *config.Config
	// Public is the API handler. When nil only the management server runs.
	Public http.Handler
	Logger logger.Logger

	Health  *health.Registry
	Metrics *metrics.Registry

	StartupHooks        []LifecycleHook
	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

// HTTPServers groups the public and management servers. Either may be nil.
type HTTPServers struct {
	Public     *Server
	Management *ManagementServer
}

// BuildHTTPServers constructs the servers from config and options.
func BuildHTTPServers(opts *RunOptions) (*HTTPServers, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	servers := &HTTPServers{}
	if opts.Public != nil {
		servers.Public = NewPublicServer(opts.Config.HTTP, opts.Public, opts.Logger)
	}
	if opts.Config.Management.Enabled {
		if opts.Health == nil {
			opts.Health = health.NewRegistry()
		}
		if opts.Metrics == nil {
			opts.Metrics = metrics.NewRegistry()
		}
		management, err := NewManagementServer(
			opts.Config.Management,
			opts.Logger,
			opts.Health,
			opts.Metrics,
			version.Current(serviceName(opts.Config)),
		)
		if err != nil {
			return nil, fmt.Errorf("create management server: %w", err)
		}
		servers.Management = management
	}
	if servers.Public == nil && servers.Management == nil {
		return nil, errors.New("no server to run")
	}
	return servers, nil
}

// RunHTTPServers starts every configured server and blocks until ctx is done
// or one of them fails. Shutdown hooks run after the servers stop.
func RunHTTPServers(ctx context.Context, servers *HTTPServers, opts *RunOptions) error {
	if servers == nil || (servers.Public == nil && servers.Management == nil) {
		return errors.New("at least one server is required")
	}
	if opts.Logger == nil {
		return errors.New("logger is required")
	}
	if opts.Config == nil {
		return errors.New("config is required")
	}

	info := version.Current(serviceName(opts.Config))
	opts.Logger.Info("application version metadata", info.LogFields()...)

	if err := runStartupHooks(ctx, opts); err != nil {
		return err
	}
	defer func() {
		if err := runShutdownHooks(opts); err != nil {
			opts.Logger.Error("shutdown hooks completed with errors", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var starters []func(context.Context) error
	if servers.Public != nil {
		starters = append(starters, servers.Public.Start)
	}
	if servers.Management != nil {
		starters = append(starters, servers.Management.Start)
	}

	errCh := make(chan error, len(starters))
	for _, start := range starters {
		go func() { errCh <- start(runCtx) }()
	}

	var firstErr error
	for range starters {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// RunHTTPServersWithSignals runs the servers until SIGINT or SIGTERM.
func RunHTTPServersWithSignals(servers *HTTPServers, opts *RunOptions, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()
	return RunHTTPServers(ctx, servers, opts)
}

// StartTracing installs the global tracer provider. The returned function
// flushes and stops it.
func StartTracing(ctx context.Context, cfg *config.Config, log logger.Logger) (func(), error) {
	info := version.Current(serviceName(cfg))
	tracingName := strings.TrimSpace(cfg.Observability.ServiceName)
	if tracingName == "" {
		tracingName = info.Service
	}
	provider, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    tracingName,
		ServiceVersion: info.Version,
		Environment:    orUnknown(cfg.Service.Environment),
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracing provider: %w", err)
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultHookTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown tracing provider", "error", err)
		}
	}, nil
}

func serviceName(cfg *config.Config) string {
	if cfg == nil {
		return version.Unknown
	}
	return orUnknown(cfg.Service.Name)
}

func orUnknown(v string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return version.Unknown
}

func hookName(hook LifecycleHook) string {
	if name := strings.TrimSpace(hook.Name); name != "" {
		return name
	}
	return "unnamed"
}

func runStartupHooks(ctx context.Context, opts *RunOptions) error {
	for _, hook := range opts.StartupHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("startup hook start", "hook", name)
		if err := hook.Fn(ctx); err != nil {
			opts.Logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("startup hook %q failed: %w", name, err)
		}
		opts.Logger.Info("startup hook complete", "hook", name)
	}
	return nil
}

// runShutdownHooks runs every hook even when earlier ones fail.
func runShutdownHooks(opts *RunOptions) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("shutdown hook start", "hook", name)

		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(hookCtx)
		cancel()

		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook complete", "hook", name)
	}
	return errors.Join(errs...)
}
