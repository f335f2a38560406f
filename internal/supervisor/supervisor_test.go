package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSuperviseReturnsImmediatelyWhenRestartDisabled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	err := Supervise(context.Background(), nil, "test", false, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("got %d calls, want 1", calls.Load())
	}
}

// restart is a static, all-or-nothing configuration (mirroring the original
// supervised()'s "restart" flag): with restart=true the loop keeps calling
// fn forever regardless of whether it returned an error, and the only way
// to stop it in a test is to cancel the context from within fn itself.

func TestSuperviseRestartsOnCleanReturn(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	err := Supervise(ctx, nil, "test", true, func(context.Context) error {
		if calls.Add(1) >= 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("got %d calls, want 3", calls.Load())
	}
}

func TestSuperviseRestartsOnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	err := Supervise(ctx, nil, "test", true, func(context.Context) error {
		if calls.Add(1) >= 2 {
			cancel()
		}
		return errors.New("transient")
	})
	if err == nil || err.Error() != "transient" {
		t.Fatalf("got %v, want \"transient\"", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("got %d calls, want 2", calls.Load())
	}
}

func TestSuperviseStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	err := Supervise(ctx, nil, "test", true, func(context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("got %d calls, want 1 (no restart once ctx is cancelled)", calls.Load())
	}
}

func TestGroupWaitJoinsSecondaryAfterAllPrimaryExit(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background(), nil)

	var secondaryObservedCancel atomic.Bool

	g.GoPrimary("p1", false, func(context.Context) error {
		return nil
	})
	g.GoPrimary("p2", false, func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	g.GoSecondary("controller", false, func(ctx context.Context) error {
		<-ctx.Done()
		secondaryObservedCancel.Store(true)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !secondaryObservedCancel.Load() {
		t.Fatal("expected the secondary thread to observe cancellation once primary threads finished")
	}
}

func TestGroupWaitReturnsPrimaryError(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background(), nil)
	boom := errors.New("boom")

	g.GoPrimary("p1", false, func(context.Context) error {
		return boom
	})
	g.GoSecondary("controller", false, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}
