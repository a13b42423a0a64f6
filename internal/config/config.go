package config

import "sync"

// RenderSettings holds the renderer cvars read by the backend.
type RenderSettings struct {
	mu sync.RWMutex

	lodCurveError     float32
	depthBiasFactor   float32
	railWidth         float32
	railCoreWidth     float32
	railSegmentLength float32
	gamma             float32
	brightness        float32
	finish            int
	noBind            bool
	showImages        int
	debugSort         int
	dynamicLight      bool
	logFile           bool
	speeds            bool
	screenshotFormat  string
	screenshotDir     string
}

func defaults() RenderSettings {
	return RenderSettings{
		lodCurveError:     250,
		depthBiasFactor:   -0.1,
		railWidth:         16,
		railCoreWidth:     6,
		railSegmentLength: 32,
		gamma:             1,
		brightness:        1,
		dynamicLight:      true,
		screenshotFormat:  "png",
		screenshotDir:     "screenshots",
	}
}

var globalRenderSettings = newSettings()

func newSettings() *RenderSettings {
	s := defaults()
	return &s
}

// Reset restores every setting to its default.
func Reset() {
	d := defaults()
	globalRenderSettings.mu.Lock()
	globalRenderSettings.lodCurveError = d.lodCurveError
	globalRenderSettings.depthBiasFactor = d.depthBiasFactor
	globalRenderSettings.railWidth = d.railWidth
	globalRenderSettings.railCoreWidth = d.railCoreWidth
	globalRenderSettings.railSegmentLength = d.railSegmentLength
	globalRenderSettings.gamma = d.gamma
	globalRenderSettings.brightness = d.brightness
	globalRenderSettings.finish = d.finish
	globalRenderSettings.noBind = d.noBind
	globalRenderSettings.showImages = d.showImages
	globalRenderSettings.debugSort = d.debugSort
	globalRenderSettings.dynamicLight = d.dynamicLight
	globalRenderSettings.logFile = d.logFile
	globalRenderSettings.speeds = d.speeds
	globalRenderSettings.screenshotFormat = d.screenshotFormat
	globalRenderSettings.screenshotDir = d.screenshotDir
	globalRenderSettings.mu.Unlock()

	resetDisplay()
}

// GetLodCurveError returns the base error for curved patch LOD. Negative
// disables simplification.
func GetLodCurveError() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.lodCurveError
}

func SetLodCurveError(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.lodCurveError = v
}

// GetDepthBiasFactor returns the projection bias applied to polygonOffset shaders.
func GetDepthBiasFactor() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.depthBiasFactor
}

func SetDepthBiasFactor(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.depthBiasFactor = v
}

func GetRailWidth() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.railWidth
}

func SetRailWidth(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v < 1 {
		v = 1
	}
	globalRenderSettings.railWidth = v
}

func GetRailCoreWidth() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.railCoreWidth
}

func SetRailCoreWidth(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v < 1 {
		v = 1
	}
	globalRenderSettings.railCoreWidth = v
}

func GetRailSegmentLength() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.railSegmentLength
}

// SetRailSegmentLength clamps to at least 4 units; shorter segments
// explode the ring count.
func SetRailSegmentLength(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v < 4 {
		v = 4
	}
	globalRenderSettings.railSegmentLength = v
}

func GetGamma() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.gamma
}

func SetGamma(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.gamma = clamp(v, 0.5, 3)
}

func GetBrightness() float32 {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.brightness
}

func SetBrightness(v float32) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.brightness = clamp(v, 0.5, 3)
}

// GetFinish returns 1 when the backend should sync with the GPU every view.
func GetFinish() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.finish
}

func SetFinish(v int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v != 0 {
		v = 1
	}
	globalRenderSettings.finish = v
}

// GetNoBind reports whether every texture bind is replaced by the dlight image.
func GetNoBind() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.noBind
}

func SetNoBind(v bool) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.noBind = v
}

// GetShowImages returns 0 (off), 1 (grid) or 2 (grid scaled by upload size).
func GetShowImages() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.showImages
}

func SetShowImages(v int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2 {
		v = 2
	}
	globalRenderSettings.showImages = v
}

// GetDebugSort returns the sort value past which surfaces are not drawn; 0 is off.
func GetDebugSort() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.debugSort
}

func SetDebugSort(v int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if v < 0 {
		v = 0
	}
	globalRenderSettings.debugSort = v
}

func GetDynamicLight() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.dynamicLight
}

func SetDynamicLight(v bool) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.dynamicLight = v
}

// GetLogFile reports whether per-iterator debug comments are logged.
func GetLogFile() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.logFile
}

func SetLogFile(v bool) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.logFile = v
}

func GetSpeeds() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.speeds
}

func SetSpeeds(v bool) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.speeds = v
}

// GetScreenshotFormat returns one of "png", "jpg" or "bmp".
func GetScreenshotFormat() string {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.screenshotFormat
}

// SetScreenshotFormat ignores unknown formats.
func SetScreenshotFormat(v string) {
	switch v {
	case "png", "jpg", "bmp":
	case "jpeg":
		v = "jpg"
	default:
		return
	}
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.screenshotFormat = v
}

func GetScreenshotDir() string {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.screenshotDir
}

func SetScreenshotDir(v string) {
	if v == "" {
		return
	}
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.screenshotDir = v
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
