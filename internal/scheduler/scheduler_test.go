package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var cycles atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, _ time.Time) error {
			if cycles.Add(1) >= 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	if cycles.Load() < 2 {
		t.Fatalf("expected at least 2 cycles, got %d", cycles.Load())
	}
}

func TestRunEnforcesMinGap(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond, MinGap: 60 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, func(ctx context.Context, started time.Time) error {
			starts = append(starts, started)
			// Slow cycle: longer than the interval, so only MinGap keeps the
			// loop from scheduling the next cycle in the past.
			time.Sleep(10 * time.Millisecond)
			if len(starts) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not finish")
	}

	if len(starts) < 3 {
		t.Fatalf("expected 3 cycles, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 60*time.Millisecond {
			t.Fatalf("cycle %d started %v after its predecessor, want >= 60ms", i, gap)
		}
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
