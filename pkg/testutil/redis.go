// Package testutil starts containerised dependencies for integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RequireIntegration skips t in short mode. On CI it also skips unless
// INTEGRATION_TESTS is set, since runners may lack a docker daemon.
func RequireIntegration(t *testing.T) {
	t.Helper()
	switch {
	case testing.Short():
		t.Skip("integration test skipped in short mode")
	case os.Getenv("CI") != "" && os.Getenv("INTEGRATION_TESTS") == "":
		t.Skip("integration test skipped on CI; set INTEGRATION_TESTS=1")
	}
}

// RedisImage is the image started by StartRedis.
const RedisImage = "redis:7-alpine"

// StartRedis starts a throwaway Redis container and returns its connection URL.
// The test is skipped in short mode; the container is terminated on cleanup.
func StartRedis(t *testing.T) string {
	t.Helper()
	RequireIntegration(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		RedisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	return url
}
