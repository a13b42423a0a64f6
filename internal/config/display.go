package config

import "sync"

// DisplaySettings holds presentation options for the viewer window. They
// never reach the backend.
type DisplaySettings struct {
	mu     sync.RWMutex
	maxFPS int
	vsync  bool
}

var globalDisplaySettings = &DisplaySettings{
	maxFPS: 0,    // unlimited
	vsync:  true, // swap waits for vertical blank
}

func resetDisplay() {
	globalDisplaySettings.mu.Lock()
	defer globalDisplaySettings.mu.Unlock()
	globalDisplaySettings.maxFPS = 0
	globalDisplaySettings.vsync = true
}

// GetMaxFPS returns the frame cap; 0 means no cap.
func GetMaxFPS() int {
	globalDisplaySettings.mu.RLock()
	defer globalDisplaySettings.mu.RUnlock()
	return globalDisplaySettings.maxFPS
}

// SetMaxFPS clamps to [0, 1000].
func SetMaxFPS(v int) {
	if v < 0 {
		v = 0
	}
	if v > 1000 {
		v = 1000
	}
	globalDisplaySettings.mu.Lock()
	defer globalDisplaySettings.mu.Unlock()
	globalDisplaySettings.maxFPS = v
}

func GetVSync() bool {
	globalDisplaySettings.mu.RLock()
	defer globalDisplaySettings.mu.RUnlock()
	return globalDisplaySettings.vsync
}

func SetVSync(v bool) {
	globalDisplaySettings.mu.Lock()
	defer globalDisplaySettings.mu.Unlock()
	globalDisplaySettings.vsync = v
}
