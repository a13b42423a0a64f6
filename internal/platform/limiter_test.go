package platform

import (
	"testing"
	"time"

	"q3backend/internal/config"
)

func TestFrameLimiterUnlimited(t *testing.T) {
	config.Reset()
	f := NewFrameLimiter()
	start := time.Now()
	f.Wait()
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("unlimited wait took %v", d)
	}
	if !f.next.IsZero() {
		t.Errorf("deadline kept with no cap")
	}
}

func TestFrameLimiterPaces(t *testing.T) {
	config.Reset()
	defer config.Reset()
	config.SetMaxFPS(100)

	f := NewFrameLimiter()
	start := time.Now()
	for i := 0; i < 5; i++ {
		f.Wait()
	}
	if d := time.Since(start); d < 45*time.Millisecond {
		t.Errorf("5 frames at 100 fps took %v, want at least 45ms", d)
	}
}

func TestFrameLimiterResyncsAfterHitch(t *testing.T) {
	config.Reset()
	defer config.Reset()
	config.SetMaxFPS(100)

	now := time.Unix(0, 0)
	f := &FrameLimiter{now: func() time.Time { return now }}
	f.next = now.Add(-time.Second)

	f.Wait()
	if want := now.Add(10 * time.Millisecond); !f.next.Equal(want) {
		t.Errorf("next: got %v, want %v", f.next, want)
	}
}
