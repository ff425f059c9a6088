package health

import (
	"context"
	"time"
)

// Checkable is implemented by the store adapters and the jobs backends.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

const defaultCheckTimeout = 5 * time.Second

// AdapterChecker turns a Checkable into a Checker bounded by a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a checker for adapter. A zero timeout means 5s.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout}
}

// Check calls HealthCheck with the checker's timeout.
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}

func (c *AdapterChecker) Name() string { return c.name }

// NewCacheChecker checks the Redis adapter shared by OTP and rate limiting.
func NewCacheChecker(name string, cache Checkable) *AdapterChecker {
	return NewAdapterChecker(name, cache, 3*time.Second)
}

// NewDocumentStoreChecker checks the MongoDB adapter.
func NewDocumentStoreChecker(name string, db Checkable) *AdapterChecker {
	return NewAdapterChecker(name, db, 5*time.Second)
}

// NewObjectStorageChecker checks the S3 bucket used for resumes.
func NewObjectStorageChecker(name string, storage Checkable) *AdapterChecker {
	return NewAdapterChecker(name, storage, 5*time.Second)
}
