package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/health"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

func TestBuild_RequiresConfigAndLogger(t *testing.T) {
	if _, err := Build(context.Background(), nil, RoleServe, logger.Nop()); err == nil {
		t.Fatalf("expected error without config")
	}
	if _, err := Build(context.Background(), config.DefaultConfig(), RoleServe, nil); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestBuild_FailsWithoutRedisURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.URL = ""

	_, err := Build(context.Background(), cfg, RoleServe, logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "connect redis") {
		t.Fatalf("expected redis error, got %v", err)
	}
}

func newBareApp(role Role) *App {
	return &App{
		Config: config.DefaultConfig(),
		Role:   role,
		Health: health.NewRegistry(),
		log:    logger.Nop(),
		stop:   make(chan struct{}),
	}
}

func TestShutdownHooks_OrderAndHandOff(t *testing.T) {
	a := newBareApp(RoleServe)
	var closed []string
	for _, name := range []string{"redis", "mongodb"} {
		a.addCloser(name, func(context.Context) error {
			closed = append(closed, name)
			return nil
		})
	}

	hooks := a.ShutdownHooks()
	if len(hooks) != 3 || hooks[0].Name != "stop-background" || hooks[1].Name != "redis" || hooks[2].Name != "mongodb" {
		t.Fatalf("unexpected hooks %+v", hooks)
	}
	for _, hook := range hooks {
		if err := hook.Fn(context.Background()); err != nil {
			t.Fatalf("hook %s: %v", hook.Name, err)
		}
	}
	select {
	case <-a.stop:
	default:
		t.Fatalf("expected background work to be stopped")
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if strings.Join(closed, ",") != "redis,mongodb" {
		t.Fatalf("expected each closer once, got %v", closed)
	}
}

func TestClose_JoinsErrorsAndIsIdempotent(t *testing.T) {
	a := newBareApp(RoleWorker)
	calls := 0
	a.addCloser("mongodb", func(context.Context) error {
		calls++
		return errors.New("disconnect failed")
	})
	a.addCloser("object-storage", func(context.Context) error {
		calls++
		return nil
	})

	err := a.Close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "close mongodb") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 closer calls, got %d", calls)
	}
}

func TestStartWorkers_SkippedWithoutEmbeddedWorker(t *testing.T) {
	a := newBareApp(RoleServe)
	a.Config.Jobs.EmbeddedWorker = false
	if err := a.StartWorkers(context.Background()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
