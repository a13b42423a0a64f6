package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	Reset()
	if got := GetLodCurveError(); got != 250 {
		t.Fatalf("lodcurveerror: got %v, want 250", got)
	}
	if got := GetDepthBiasFactor(); got != -0.1 {
		t.Fatalf("depthbiasfactor: got %v, want -0.1", got)
	}
	if !GetDynamicLight() {
		t.Fatalf("dynamiclight should default on")
	}
	if got := GetScreenshotFormat(); got != "png" {
		t.Fatalf("screenshotformat: got %q, want png", got)
	}
}

func TestClampedSetters(t *testing.T) {
	Reset()
	defer Reset()

	SetGamma(10)
	if got := GetGamma(); got != 3 {
		t.Errorf("gamma: got %v, want 3", got)
	}
	SetShowImages(7)
	if got := GetShowImages(); got != 2 {
		t.Errorf("showimages: got %d, want 2", got)
	}
	SetRailSegmentLength(1)
	if got := GetRailSegmentLength(); got != 4 {
		t.Errorf("railsegmentlength: got %v, want 4", got)
	}
	SetFinish(5)
	if got := GetFinish(); got != 1 {
		t.Errorf("finish: got %d, want 1", got)
	}
	SetScreenshotFormat("gif")
	if got := GetScreenshotFormat(); got != "png" {
		t.Errorf("unknown format should be ignored, got %q", got)
	}
	SetScreenshotFormat("jpeg")
	if got := GetScreenshotFormat(); got != "jpg" {
		t.Errorf("jpeg alias: got %q, want jpg", got)
	}
	// negative lod error is meaningful and must not be clamped
	SetLodCurveError(-1)
	if got := GetLodCurveError(); got != -1 {
		t.Errorf("lodcurveerror: got %v, want -1", got)
	}
}

func TestParseYAML(t *testing.T) {
	Reset()
	defer Reset()

	data := []byte("lodcurveerror: -5\nnobind: true\ngamma: 1.5\nshowimages: 1\nunknown: 3\n")
	if err := Parse(data); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := GetLodCurveError(); got != -5 {
		t.Errorf("lodcurveerror: got %v, want -5", got)
	}
	if !GetNoBind() {
		t.Errorf("nobind: got false, want true")
	}
	if got := GetGamma(); got != 1.5 {
		t.Errorf("gamma: got %v, want 1.5", got)
	}
	if got := GetBrightness(); got != 1 {
		t.Errorf("unset brightness changed: got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	Reset()
	if err := Load(filepath.Join(t.TempDir(), "nope.yml")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "render.yml")
	if err := os.WriteFile(path, []byte("railwidth: 20\nfinish: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := GetRailWidth(); got != 20 {
		t.Errorf("railwidth: got %v, want 20", got)
	}
	snap := Snapshot()
	if *snap.Finish != 1 {
		t.Errorf("snapshot finish: got %d, want 1", *snap.Finish)
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	Reset()
	if err := Parse([]byte("gamma: [1, 2")); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestDisplaySettings(t *testing.T) {
	Reset()
	defer Reset()

	if GetMaxFPS() != 0 || !GetVSync() {
		t.Fatalf("defaults: got maxfps %d vsync %v, want 0 true", GetMaxFPS(), GetVSync())
	}
	if err := Parse([]byte("maxfps: 5000\nvsync: false\n")); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := GetMaxFPS(); got != 1000 {
		t.Errorf("maxfps: got %d, want 1000", got)
	}
	if GetVSync() {
		t.Errorf("vsync: got true, want false")
	}

	snap := Snapshot()
	if snap.MaxFPS == nil || *snap.MaxFPS != 1000 {
		t.Errorf("snapshot maxfps: got %v, want 1000", snap.MaxFPS)
	}

	Reset()
	if GetMaxFPS() != 0 || !GetVSync() {
		t.Errorf("reset: got maxfps %d vsync %v", GetMaxFPS(), GetVSync())
	}
}
