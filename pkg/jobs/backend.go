package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultLeaseTTL is the lease duration used when Reserve is not given one.
const DefaultLeaseTTL = 30 * time.Second

// Lease tracks temporary ownership over a reserved job.
type Lease struct {
	JobID    string
	Token    string
	Queue    string
	ExpireAt time.Time
	Attempt  int
}

// Backend is the durable store behind every queue.
//
// Reserve hands out one job under a lease. The holder must settle the lease with
// exactly one of Ack (completed), Nack (retry later) or Fail (failed, retained for
// inspection). A lease that expires without being settled puts the job back to waiting.
type Backend interface {
	Enqueue(ctx context.Context, job *Job) error
	Reserve(ctx context.Context, queue string, leaseFor time.Duration) (*Job, *Lease, error)
	Ack(ctx context.Context, lease *Lease) error
	Nack(ctx context.Context, lease *Lease, nextRunAt time.Time, reason error) error
	Renew(ctx context.Context, lease *Lease, leaseFor time.Duration) error
	Fail(ctx context.Context, lease *Lease, reason error) error
	State(ctx context.Context, queue, jobID string) (JobState, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

func randomToken() string {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(raw)
}
