package platform

import (
	"time"

	"q3backend/internal/config"
)

// spinWindow is how close to the deadline Wait stops sleeping and spins.
const spinWindow = 200 * time.Microsecond

// FrameLimiter paces the main loop to the maxfps setting.
type FrameLimiter struct {
	next time.Time
	now  func() time.Time
}

func NewFrameLimiter() *FrameLimiter {
	return &FrameLimiter{now: time.Now}
}

// Wait blocks until the next frame is due. A cap of zero returns at once.
func (f *FrameLimiter) Wait() {
	limit := config.GetMaxFPS()
	if limit <= 0 {
		f.next = time.Time{}
		return
	}
	target := time.Second / time.Duration(limit)

	if f.next.IsZero() {
		f.next = f.now().Add(target)
	} else {
		f.next = f.next.Add(target)
	}

	for {
		remaining := f.next.Sub(f.now())
		if remaining <= 0 {
			break
		}
		if remaining > spinWindow {
			time.Sleep(remaining - spinWindow)
		}
	}

	// resync after a hitch instead of racing to catch up
	if late := f.now().Sub(f.next); late > target {
		f.next = f.now().Add(target)
	}
}
