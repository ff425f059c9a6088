package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	redisstore "github.com/learnhub/learnhub/pkg/store/redis"
	"github.com/learnhub/learnhub/pkg/testutil"
)

func TestService_RedisIntegration(t *testing.T) {
	url := testutil.StartRedis(t)
	store, err := redisstore.NewAdapter(redisstore.Config{URL: url, OperationTimeout: 2 * time.Second}, logger.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	enqueuer := &fakeEnqueuer{}
	svc := newTestService(t, store, enqueuer)
	ctx := context.Background()

	if err := svc.SendOTP(ctx, "a@x.com", "Amy", "Verify"); err != nil {
		t.Fatalf("send: %v", err)
	}
	code, err := store.Get(ctx, DefaultKeyPrefix+":code:a@x.com")
	if err != nil || !fourDigits.MatchString(code) {
		t.Fatalf("unexpected stored code %q: %v", code, err)
	}
	ttl, err := store.TTL(ctx, DefaultKeyPrefix+":code:a@x.com")
	if err != nil || ttl < DefaultTTL-time.Second || ttl > DefaultTTL {
		t.Fatalf("unexpected ttl %s: %v", ttl, err)
	}

	var rle *RateLimitError
	if err := svc.SendOTP(ctx, "a@x.com", "Amy", "Verify"); !errors.As(err, &rle) || rle.Remaining <= 0 {
		t.Fatalf("expected rate limit with positive remaining, got %v", err)
	}

	if ok, err := svc.VerifyOTP(ctx, "a@x.com", code); !ok || err != nil {
		t.Fatalf("verify: %v %v", ok, err)
	}
	if ok, _ := svc.VerifyOTP(ctx, "a@x.com", code); ok {
		t.Fatal("expected second verify to fail")
	}
}
