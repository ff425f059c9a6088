// Command learnhub runs the instructor onboarding API, its job workers and the
// live notification channel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnhub/learnhub/pkg/app"
	"github.com/learnhub/learnhub/pkg/cli"
	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/metrics"
	"github.com/learnhub/learnhub/pkg/server"
)

func main() {
	cli.Execute(cli.NewServiceCommand(cli.ServiceCommandOptions{
		Name:        "learnhub",
		Description: "Instructor onboarding API, job workers and live notifications",
		RunServer:   runServer,
		RunWorker:   runWorker,
	}))
}

func runServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	stopTracing, err := server.StartTracing(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	a, err := app.Build(ctx, cfg, app.RoleServe, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	opts := &server.RunOptions{
		Config:  cfg,
		Public:  a.Public,
		Logger:  log,
		Health:  a.Health,
		Metrics: metrics.NewRegistry(),
		StartupHooks: []server.LifecycleHook{
			{Name: "job-workers", Fn: a.StartWorkers},
		},
		ShutdownHooks:       a.ShutdownHooks(),
		ShutdownHookTimeout: cfg.Jobs.Worker.StopTimeout,
	}
	servers, err := server.BuildHTTPServers(opts)
	if err != nil {
		return err
	}
	return server.RunHTTPServersWithSignals(servers, opts)
}

// runWorker keeps the management server up so the worker can be probed and scraped.
func runWorker(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	stopTracing, err := server.StartTracing(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	a, err := app.Build(ctx, cfg, app.RoleWorker, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Management.Enabled {
		if err := a.StartWorkers(runCtx); err != nil {
			return fmt.Errorf("start workers: %w", err)
		}
		<-runCtx.Done()
		return a.Close(context.Background())
	}

	opts := &server.RunOptions{
		Config:  cfg,
		Logger:  log,
		Health:  a.Health,
		Metrics: metrics.NewRegistry(),
		StartupHooks: []server.LifecycleHook{
			{Name: "job-workers", Fn: a.StartWorkers},
		},
		ShutdownHooks:       a.ShutdownHooks(),
		ShutdownHookTimeout: cfg.Jobs.Worker.StopTimeout,
	}
	servers, err := server.BuildHTTPServers(opts)
	if err != nil {
		return err
	}
	return server.RunHTTPServers(runCtx, servers, opts)
}
