package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"q3backend/internal/logging"
	"q3backend/internal/profiling"
)

func TestLogSpeedsReportsTimersAndCounters(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { logging.SetLogger(nil) })

	profiling.ResetFrame()
	t.Cleanup(profiling.ResetFrame)
	profiling.Track("backend.EndSurface")()
	profiling.Count("backend.draws", 3)
	profiling.Count("backend.shaders", 1)

	logSpeeds()

	out := buf.String()
	for _, want := range []string{"msg=speeds", "backend.draws=3", "backend.shaders=1", "backend.EndSurface:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if strings.Index(out, "backend.draws=") > strings.Index(out, "backend.shaders=") {
		t.Errorf("counters not sorted by name: %q", out)
	}
}
