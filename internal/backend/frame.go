package backend

import (
	"errors"
	"image"
	"time"

	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/profiling"
	"q3backend/internal/screenshot"
	"q3backend/internal/shader"

	"golang.org/x/image/draw"
)

// resetSettle gives the device time to finish a reset before it is polled
// again.
const resetSettle = 10 * time.Millisecond

// CheckScene reports whether the frame can be drawn, opening a scene on
// the device if none is open. A lost device is polled for recovery and the
// frame skipped, even on the poll that recovers it.
func (c *Context) CheckScene() bool {
	if c.deviceLost {
		c.handleLostDevice()
		return false
	}

	if !c.inBeginScene {
		// always clear the render target so a frame that does not cover
		// the screen doesn't show the last one
		c.dev.Clear(device.ClearTarget, nil, device.Color{}, 1, 0)

		if err := c.dev.BeginScene(); err != nil {
			if errors.Is(err, device.ErrDeviceLost) {
				c.markLost()
			} else {
				logging.Logger().Warn("BeginScene failed", "err", err)
			}
			return false
		}
		c.inBeginScene = true
	}
	return true
}

func (c *Context) markLost() {
	if !c.deviceLost {
		logging.Logger().Info("device lost")
	}
	c.deviceLost = true
	c.inBeginScene = false
}

// handleLostDevice polls the device and brings everything back once it
// can be used again.
func (c *Context) handleLostDevice() {
	switch status := c.dev.CheckDevice(); status {
	case device.StatusOK:
		if err := c.progs.OnResetDevice(); err != nil {
			fatalErr("recreating stream buffers", err)
		}
		if err := c.images.OnResetDevice(); err != nil {
			fatalErr("recreating textures", err)
		}
		c.state.Invalidate()
		c.state.SetDefaultState()
		c.xf.Reupload()
		c.deviceLost = false
		logging.Logger().Info("device recovered")

	case device.StatusLost:
		// still lost, try again next frame
		logging.Logger().Debug("device still lost")
		time.Sleep(resetSettle)

	case device.StatusNotReset:
		c.progs.OnLostDevice()
		c.images.OnLostDevice()
		if err := c.dev.Reset(); err != nil {
			fatalErr("device reset failed", err)
		}
		time.Sleep(resetSettle)

	default:
		fatal("device driver internal error", int(status), 0)
	}
}

// genericQuad draws img over a screen rectangle with the 2D program.
func (c *Context) genericQuad(img *shader.Image, x, y, w, h float32, col device.Color) {
	verts := [4]device.GenericVertex{
		{XYZ: [3]float32{x, y, 0}, Color: col, UV: [2]float32{0, 0}},
		{XYZ: [3]float32{x + w, y, 0}, Color: col, UV: [2]float32{1, 0}},
		{XYZ: [3]float32{x + w, y + h, 0}, Color: col, UV: [2]float32{1, 1}},
		{XYZ: [3]float32{x, y + h, 0}, Color: col, UV: [2]float32{0, 1}},
	}

	c.state.BindTexture(0, img)
	c.state.SetVertexFormat(c.progs.Generic.Format)
	c.state.SetProgram(c.progs.Generic)
	c.dev.DrawUP(device.TriangleFan, 2, verts[:])
}

// showImages draws every registered image in a grid, on top of whatever
// is there. Used to look for texture thrashing.
func (c *Context) showImages() {
	if !c.projection2D {
		c.SetGL2D()
	}

	c.dev.Clear(device.ClearTarget, nil, device.Color{}, 1, 0)
	c.dev.Finish()

	start := time.Now()
	l := c.identityLightByte
	col := device.Color{l, l, l, 255}
	mode := config.GetShowImages()

	images := c.images.Images()
	for i, img := range images {
		w := float32(c.width / 20)
		h := float32(c.height / 15)
		x := float32(i%20) * w
		y := float32(i/20) * h

		// proportional size in mode 2
		if mode == 2 {
			w *= float32(img.UploadWidth) / 512
			h *= float32(img.UploadHeight) / 512
		}

		c.genericQuad(img, x, y, w, h, col)
	}

	c.dev.Finish()
	logging.Logger().Info("drew all images", "count", len(images), "msec", time.Since(start).Milliseconds())
}

// captureScreenshot reads back the frame and hands it to the writer.
func (c *Context) captureScreenshot(req *ScreenshotRequest) {
	c.dev.Finish()
	c.finishCalled = true

	img, err := c.dev.ReadBackbuffer()
	if err != nil {
		logging.Logger().Warn("screenshot readback failed", "err", err)
		return
	}

	rect := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
	if req.Width > 0 && req.Height > 0 && rect != img.Bounds() {
		rect = rect.Intersect(img.Bounds())
		if rect.Empty() {
			logging.Logger().Warn("screenshot rect outside the frame", "rect", rect)
			return
		}
		cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)
		img = cropped
	}

	format := config.GetScreenshotFormat()
	path := req.Path
	if path == "" {
		path = screenshot.Filename(config.GetScreenshotDir(), format, c.screenshotCount)
		c.screenshotCount++
	}

	job := screenshot.Job{Image: img, Path: path, Format: format}
	if c.shots == nil {
		if err := screenshot.Write(img, path, format); err != nil {
			logging.Logger().Warn("screenshot write failed", "path", path, "err", err)
			return
		}
		logging.Logger().Info("wrote screenshot", "path", path)
		return
	}
	if !c.shots.Submit(job) {
		logging.Logger().Warn("screenshot queue full, capture dropped", "path", path)
		return
	}
	profiling.Count("backend.screenshots", 1)
}

// swapBuffers draws the frame's overlays and presents it.
func (c *Context) swapBuffers() {
	// finish any 2D drawing if needed
	if c.tess.NumIndexes != 0 {
		c.EndSurface()
	}

	// texture swapping test
	if config.GetShowImages() != 0 {
		c.showImages()
	}

	if c.raw.pending {
		c.drawRaw()
	}

	if req := c.pendingShot; req != nil {
		c.pendingShot = nil
		c.captureScreenshot(req)
	}

	if !c.finishCalled {
		c.dev.Finish()
	}

	c.inBeginScene = false
	if err := c.dev.EndScene(); err != nil {
		logging.Logger().Warn("EndScene failed", "err", err)
	}
	if err := c.dev.Present(); err != nil {
		if errors.Is(err, device.ErrDeviceLost) {
			c.markLost()
		} else {
			logging.Logger().Warn("Present failed", "err", err)
		}
	}

	c.projection2D = false
	c.finishCalled = false
	c.state.FrameCount++
}
