package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = 0
	cfg.HTTP.ShutdownTimeout = time.Second
	cfg.Management.Port = 0
	return cfg
}

func TestBuildHTTPServers(t *testing.T) {
	t.Run("public and management", func(t *testing.T) {
		servers, err := BuildHTTPServers(&RunOptions{Config: testConfig(), Public: http.NotFoundHandler(), Logger: logger.Nop()})
		if err != nil {
			t.Fatalf("BuildHTTPServers: %v", err)
		}
		if servers.Public == nil || servers.Management == nil {
			t.Fatalf("expected both servers, got %+v", servers)
		}
	})

	t.Run("management only", func(t *testing.T) {
		servers, err := BuildHTTPServers(&RunOptions{Config: testConfig(), Logger: logger.Nop()})
		if err != nil {
			t.Fatalf("BuildHTTPServers: %v", err)
		}
		if servers.Public != nil || servers.Management == nil {
			t.Fatalf("expected management only, got %+v", servers)
		}
	})

	t.Run("nothing to run", func(t *testing.T) {
		cfg := testConfig()
		cfg.Management.Enabled = false
		if _, err := BuildHTTPServers(&RunOptions{Config: cfg, Logger: logger.Nop()}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("logger required", func(t *testing.T) {
		if _, err := BuildHTTPServers(&RunOptions{Config: testConfig(), Public: http.NotFoundHandler()}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestRunHTTPServers_HooksRunInOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(name string, err error) LifecycleHook {
		return LifecycleHook{Name: name, Fn: func(context.Context) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return err
		}}
	}

	cfg := testConfig()
	opts := &RunOptions{
		Config:        cfg,
		Public:        http.NotFoundHandler(),
		Logger:        logger.Nop(),
		StartupHooks:  []LifecycleHook{record("start-jobs", nil)},
		ShutdownHooks: []LifecycleHook{record("close-hub", errors.New("boom")), record("close-redis", nil)},
	}
	servers, err := BuildHTTPServers(opts)
	if err != nil {
		t.Fatalf("BuildHTTPServers: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunHTTPServers(ctx, servers, opts) }()

	<-servers.Public.Ready()
	<-servers.Management.Ready()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("servers did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(calls, ","); got != "start-jobs,close-hub,close-redis" {
		t.Fatalf("unexpected hook order %q", got)
	}
}

func TestRunHTTPServers_StartupHookFailureAborts(t *testing.T) {
	opts := &RunOptions{
		Config: testConfig(),
		Public: http.NotFoundHandler(),
		Logger: logger.Nop(),
		StartupHooks: []LifecycleHook{{Name: "mongodb-indexes", Fn: func(context.Context) error {
			return errors.New("no primary")
		}}},
	}
	servers, err := BuildHTTPServers(opts)
	if err != nil {
		t.Fatalf("BuildHTTPServers: %v", err)
	}
	err = RunHTTPServers(context.Background(), servers, opts)
	if err == nil || !strings.Contains(err.Error(), "mongodb-indexes") {
		t.Fatalf("expected startup hook error, got %v", err)
	}
}

func TestStartTracing_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.TracingEnabled = false
	stop, err := StartTracing(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("StartTracing: %v", err)
	}
	stop()
}
