package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCheckable struct {
	err   error
	delay time.Duration
}

func (f fakeCheckable) HealthCheck(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestRegistry_AggregatesWorstStatus(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewCacheChecker("redis", fakeCheckable{}))
	reg.Register(NewDocumentStoreChecker("mongodb", fakeCheckable{}))

	result := reg.Check(context.Background())
	if !result.IsHealthy() || len(result.Checks) != 2 || result.Checks[0].Name != "mongodb" {
		t.Fatalf("unexpected result: %+v", result)
	}

	reg.RegisterFunc("jobs-backend", func(context.Context) CheckResult {
		return CheckResult{Name: "jobs-backend", Status: StatusDegraded}
	})
	if got := reg.Check(context.Background()).Status; got != StatusDegraded {
		t.Fatalf("status = %s, want degraded", got)
	}

	reg.Register(NewObjectStorageChecker("object-storage", fakeCheckable{err: errors.New("bucket missing")}))
	result = reg.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", result.Status)
	}
	for _, check := range result.Checks {
		if check.Name == "object-storage" && check.Error != "bucket missing" {
			t.Fatalf("error = %q", check.Error)
		}
	}
}

func TestAdapterChecker_Timeout(t *testing.T) {
	checker := NewAdapterChecker("slow", fakeCheckable{delay: time.Second}, 20*time.Millisecond)
	result := checker.Check(context.Background())
	if result.Status != StatusUnhealthy || result.Error != context.DeadlineExceeded.Error() {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRegistry_CheckOneAndList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewCacheChecker("redis", fakeCheckable{}))
	reg.Register(NewDocumentStoreChecker("mongodb", fakeCheckable{}))

	if names := reg.List(); len(names) != 2 || names[0] != "mongodb" || names[1] != "redis" {
		t.Fatalf("names = %v", names)
	}
	if _, err := reg.CheckOne(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown check")
	}
	reg.Unregister("redis")
	if result, err := reg.CheckOne(context.Background(), "mongodb"); err != nil || result.Status != StatusHealthy {
		t.Fatalf("CheckOne = %+v, %v", result, err)
	}
	if len(reg.List()) != 1 {
		t.Fatal("expected redis to be unregistered")
	}
}
