package security

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Paces(t *testing.T) {
	rl := NewRateLimiter(10, 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	// the first 10 are the burst, the next 10 take one interval each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("20 waits took %v, want at least 80ms", elapsed)
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := SweepLimiter(0)
	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unlimited limiter blocked for %v", elapsed)
	}
}

func TestRateLimiter_HonoursContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait() should use the burst, got %v", err)
	}
	if err := rl.Wait(ctx); err == nil {
		t.Error("second Wait() should fail once the context expires")
	}
}
