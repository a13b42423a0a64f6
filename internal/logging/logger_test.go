package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("default logger should be disabled at every level")
	}
}

func TestSetLoggerRoutesRecords(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	Logger().Warn("NULL image", "unit", 2)
	out := buf.String()
	if !strings.Contains(out, "NULL image") || !strings.Contains(out, "unit=2") {
		t.Fatalf("got %q, want the warning with its attrs", out)
	}
}
