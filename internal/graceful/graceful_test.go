package graceful

import (
	"context"
	"errors"
	"testing"
	"time"
)

type ctxKey struct{}

func TestWithGraceOutlivesParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "run"))
	ctx, cancel := WithGrace(parent, 150*time.Millisecond)
	defer cancel()

	if got := ctx.Value(ctxKey{}); got != "run" {
		t.Errorf("value not inherited: %v", got)
	}

	cancelParent()
	time.Sleep(30 * time.Millisecond)
	if Stopping(ctx) {
		t.Fatal("grace context cancelled before the grace period elapsed")
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("grace context never cancelled")
	}
	if !errors.Is(context.Cause(ctx), ErrGraceExpired) {
		t.Errorf("cause = %v, want ErrGraceExpired", context.Cause(ctx))
	}
	if !errors.Is(context.Cause(ctx), context.Canceled) {
		t.Errorf("cause should wrap the parent's cause, got %v", context.Cause(ctx))
	}
}

func TestWithGraceZeroCancelsImmediately(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithGrace(parent, 0)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("zero grace should follow the parent")
	}
}

func TestWithGraceCancelFunc(t *testing.T) {
	ctx, cancel := WithGrace(context.Background(), time.Hour)
	if Stopping(ctx) {
		t.Fatal("fresh context reports stopping")
	}
	cancel()
	if !Stopping(ctx) {
		t.Fatal("cancel func did not cancel the context")
	}
}

func TestWithGraceDropsParentDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()

	ctx, cancel := WithGrace(parent, time.Second)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Error("grace context should not carry the parent's deadline")
	}
}
