package main

import (
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"q3backend/internal/assets"
	"q3backend/internal/backend"
	"q3backend/internal/config"
	"q3backend/internal/device/gldevice"
	"q3backend/internal/logging"
	"q3backend/internal/platform"
	"q3backend/internal/profiling"
	"q3backend/internal/screenshot"

	"github.com/xlab/closer"
)

func init() {
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "q3view.yaml", "settings file")
	logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	width      = flag.Int("width", 1024, "window width")
	height     = flag.Int("height", 768, "window height")
	texture    = flag.String("texture", "", "image file for the floor; a checker when empty")
)

func main() {
	flag.Parse()
	setupLogging(*logLevel)

	shots := screenshot.NewPool(2, 8)
	closer.Bind(func() {
		shots.Shutdown()
		logging.Logger().Info("screenshot pool drained")
	})

	if err := run(shots); err != nil {
		closer.Fatalln(err)
	}
	closer.Close()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// run owns every GL object; it returns only after they are released so
// the closer hooks never touch the context from another thread.
func run(shots *screenshot.Pool) error {
	if err := config.Load(*configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := platform.Init(); err != nil {
		return err
	}
	defer platform.Terminate()

	win, err := platform.NewWindow("q3view", *width, *height, config.GetVSync())
	if err != nil {
		return err
	}
	defer win.Destroy()

	fbW, fbH := win.FramebufferSize()
	dev, err := gldevice.New(gldevice.Options{Width: fbW, Height: fbH, Swap: win.SwapBuffers})
	if err != nil {
		return err
	}
	defer dev.Shutdown()

	images, err := assets.New(dev)
	if err != nil {
		return fmt.Errorf("create images: %w", err)
	}
	defer images.Shutdown()

	be, err := backend.New(dev, dev, images, backend.Options{
		Width:          fbW,
		Height:         fbH,
		OverbrightBits: 1,
		Screenshots:    shots,
	})
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer be.Shutdown()

	d, err := newDemo(images, *texture)
	if err != nil {
		return err
	}

	setupInput(win, d)
	win.OnResize(func(w, h int) {
		dev.Resize(w, h)
		be.Resize(w, h)
	})

	return runLoop(win, be, d)
}

func setupInput(win *platform.Window, d *demo) {
	win.OnKey(func(key platform.Key) {
		switch key {
		case platform.KeyEscape:
			win.SetShouldClose(true)
		case platform.KeyF12:
			d.screenshot = true
		case platform.KeyN:
			config.SetNoBind(!config.GetNoBind())
			logging.Logger().Info("nobind", "enabled", config.GetNoBind())
		case platform.KeyI:
			config.SetShowImages((config.GetShowImages() + 1) % 3)
		case platform.KeyP:
			d.paused = !d.paused
		}
	})
}

func runLoop(win *platform.Window, be *backend.Context, d *demo) error {
	limiter := platform.NewFrameLimiter()
	start := time.Now()
	frames := 0
	lastFPSCheck := time.Now()

	for !win.ShouldClose() {
		profiling.ResetFrame()

		w, h := win.FramebufferSize()
		list := new(backend.CommandList)
		d.frame(list, w, h, time.Since(start))

		if err := be.ExecuteCommands(list); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		frames++

		func() { defer profiling.Track("platform.PollEvents")(); win.PollEvents() }()
		limiter.Wait()

		if time.Since(lastFPSCheck) >= time.Second {
			logging.Logger().Debug("frame rate", "fps", frames, "lost", be.Lost())
			if config.GetSpeeds() {
				logSpeeds()
			}
			frames = 0
			lastFPSCheck = time.Now()
		}
	}
	return nil
}

// logSpeeds reports the slowest timers and the counters of the last frame.
func logSpeeds() {
	counters := profiling.Counters()
	attrs := make([]any, 0, 4+2*len(counters))
	attrs = append(attrs,
		"backend", profiling.SumWithPrefix("backend."),
		"top", profiling.TopN(5))
	for _, name := range slices.Sorted(maps.Keys(counters)) {
		attrs = append(attrs, name, counters[name])
	}
	logging.Logger().Info("speeds", attrs...)
}
