// Package mongodb owns the MongoDB client shared by the document repositories.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/observability/tracing"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("mongodb adapter is closed")

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	MaxPoolSize      uint64
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Adapter provides MongoDB connectivity.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewAdapter connects to MongoDB and verifies connectivity with a ping.
// It does not create collections; repositories create their own indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("mongodb URL is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("mongodb database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URL).SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

// Database returns the configured database handle.
func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.database)
}

// Collection returns a collection of the configured database.
func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.Database().Collection(name)
}

// OperationTimeout is the deadline applied by OperationContext.
func (a *Adapter) OperationTimeout() time.Duration {
	return a.timeout
}

// OperationContext bounds ctx by the operation timeout unless it already carries a deadline.
func (a *Adapter) OperationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return WithOperationTimeout(ctx, a.timeout)
}

// Ping verifies the primary is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings with a short timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Further calls are no-ops.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

// WithOperationTimeout bounds ctx by timeout unless it already carries a deadline.
func WithOperationTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Operation bounds ctx like WithOperationTimeout and opens a span for op on
// collection. end records the outcome and releases the context.
func Operation(ctx context.Context, timeout time.Duration, collection string, op tracing.SpanOperation) (context.Context, func(error)) {
	ctx, cancel := WithOperationTimeout(ctx, timeout)
	ctx, span := tracing.StartDatabaseSpan(ctx, op,
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBCollection(collection),
	)
	return ctx, func(err error) {
		tracing.End(span, err)
		cancel()
	}
}
