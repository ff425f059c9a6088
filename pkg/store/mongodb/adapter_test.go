package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error for empty URL and database")
	}
	if _, err := NewAdapter(Config{URL: "mongodb://localhost:27017"}, logger.Nop()); err == nil {
		t.Fatal("expected error for empty database")
	}
	if _, err := NewAdapter(Config{URL: "mongodb://localhost:27017", Database: "learnhub"}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestPing_WhenClosed(t *testing.T) {
	a := &Adapter{closed: true}
	if err := a.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestClose_IdempotentWhenAlreadyClosed(t *testing.T) {
	a := &Adapter{closed: true}
	if err := a.Close(); err != nil {
		t.Fatalf("expected nil on second close, got %v", err)
	}
}

func TestWithOperationTimeout(t *testing.T) {
	ctx, cancel := WithOperationTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected deadline to be applied")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Hour)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx, cancel = WithOperationTimeout(parent, time.Second)
	defer cancel()
	if got, _ := ctx.Deadline(); !got.Equal(want) {
		t.Fatalf("expected existing deadline to be kept, got %v", got)
	}

	ctx, cancel = WithOperationTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline for zero timeout")
	}
}
