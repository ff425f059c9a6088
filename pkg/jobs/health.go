package jobs

import (
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/health"
)

const defaultBackendHealthCheckName = "jobs-backend"

// NewBackendHealthChecker creates a standard health checker for a jobs backend.
func NewBackendHealthChecker(name string, backend Backend, timeout time.Duration) health.Checker {
	checkName := strings.TrimSpace(name)
	if checkName == "" {
		checkName = defaultBackendHealthCheckName
	}
	return health.NewAdapterChecker(checkName, backend, timeout)
}
