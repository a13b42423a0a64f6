package profiling

import (
	"strings"
	"testing"
	"time"
)

func TestCountersResetPerFrame(t *testing.T) {
	ResetFrame()
	Count("backend.draws", 2)
	Count("backend.draws", 3)
	if got := Counters()["backend.draws"]; got != 5 {
		t.Fatalf("draws: got %d, want 5", got)
	}
	ResetFrame()
	if got := len(Counters()); got != 0 {
		t.Fatalf("after reset: got %d counters, want 0", got)
	}
}

func TestTrackAndTopN(t *testing.T) {
	ResetFrame()
	stop := Track("backend.EndSurface")
	time.Sleep(time.Millisecond)
	stop()
	Track("backend.Other")()

	if SumWithPrefix("backend.") < time.Millisecond {
		t.Fatalf("sum should include the tracked sleep")
	}
	top := TopN(1)
	if !strings.HasPrefix(top, "backend.EndSurface:") {
		t.Fatalf("got %q, want EndSurface first", top)
	}
}
