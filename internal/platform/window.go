// Package platform owns the native window and the GL context the device
// draws into.
package platform

import (
	"fmt"

	"q3backend/internal/logging"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Key aliases the windowing key codes so callers need not import glfw.
type Key = glfw.Key

const (
	KeyEscape = glfw.KeyEscape
	KeyF12    = glfw.KeyF12
	KeyN      = glfw.KeyN
	KeyI      = glfw.KeyI
	KeyP      = glfw.KeyP
)

// Window is a GL 4.1 core window. Create it and call every method from the
// main thread.
type Window struct {
	win *glfw.Window

	onKey    func(Key)
	onResize func(width, height int)
}

// Init starts the windowing system. Pair with Terminate.
func Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	return nil
}

func Terminate() { glfw.Terminate() }

// NewWindow opens a window and makes its context current.
func NewWindow(title string, width, height int, vsync bool) (*Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.DepthBits, 24)
	glfw.WindowHint(glfw.StencilBits, 8)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	win.MakeContextCurrent()

	if vsync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	w := &Window{win: win}
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press && w.onKey != nil {
			w.onKey(key)
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		logging.Logger().Debug("framebuffer resized", "width", width, "height", height)
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	return w, nil
}

// OnKey registers fn for key presses. Repeats and releases are ignored.
func (w *Window) OnKey(fn func(Key)) { w.onKey = fn }

// OnResize registers fn for framebuffer size changes.
func (w *Window) OnResize(fn func(width, height int)) { w.onResize = fn }

// FramebufferSize returns the drawable size in pixels, which differs from
// the window size on high-DPI displays.
func (w *Window) FramebufferSize() (int, int) { return w.win.GetFramebufferSize() }

func (w *Window) SwapBuffers()          { w.win.SwapBuffers() }
func (w *Window) ShouldClose() bool     { return w.win.ShouldClose() }
func (w *Window) SetShouldClose(v bool) { w.win.SetShouldClose(v) }

// PollEvents dispatches pending input to the registered callbacks.
func (w *Window) PollEvents() { glfw.PollEvents() }

// Time returns seconds since Init.
func (w *Window) Time() float64 { return glfw.GetTime() }

func (w *Window) Destroy() { w.win.Destroy() }
