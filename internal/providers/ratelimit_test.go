package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("first call is immediate", func(t *testing.T) {
		r := NewRateLimiter(time.Second)
		start := time.Now()
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("first Wait took %v", elapsed)
		}
	})

	t.Run("back-to-back calls are spaced", func(t *testing.T) {
		interval := 50 * time.Millisecond
		r := NewRateLimiter(interval)
		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := r.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 2*interval {
			t.Errorf("three calls took %v, want >= %v", elapsed, 2*interval)
		}

		status := r.Status()
		if status.TotalAdmitted != 3 {
			t.Errorf("TotalAdmitted = %d, want 3", status.TotalAdmitted)
		}
		if status.TotalWaited <= 0 {
			t.Error("expected TotalWaited > 0")
		}
	})

	t.Run("zero interval never waits", func(t *testing.T) {
		r := NewRateLimiter(0)
		start := time.Now()
		for i := 0; i < 10; i++ {
			_ = r.Wait(context.Background())
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("ten calls took %v", elapsed)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := NewRateLimiter(time.Minute)
		_ = r.Wait(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx); err == nil {
			t.Error("expected context error")
		}
	})

	t.Run("cancelled wait does not delay the next caller", func(t *testing.T) {
		interval := 200 * time.Millisecond
		r := NewRateLimiter(interval)
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx); err == nil {
			t.Fatal("expected context error")
		}

		time.Sleep(interval)
		start := time.Now()
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Wait after cancelled reservation took %v, want ~0", elapsed)
		}
		if got := r.Status().TotalAdmitted; got != 2 {
			t.Errorf("TotalAdmitted = %d, want 2", got)
		}
	})
}

func TestRateLimiter_Status(t *testing.T) {
	r := NewRateLimiter(time.Minute)
	if got := r.Status().TimeUntilReady; got != 0 {
		t.Errorf("TimeUntilReady before any call = %v, want 0", got)
	}
	_ = r.Wait(context.Background())
	status := r.Status()
	if status.TimeUntilReady <= 0 {
		t.Error("expected TimeUntilReady > 0 after a call")
	}
	if status.LastCall.IsZero() {
		t.Error("expected LastCall to be set")
	}
	if status.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", status.Interval)
	}
}
