package backend

import (
	"fmt"
	"image"
	"time"

	"q3backend/internal/assets"
	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"

	"golang.org/x/image/draw"
)

// maxCinematicSize bounds scratch textures; larger frames are scaled down.
const maxCinematicSize = 1024

// rawFrame is the cinematic drawn over the screen at the next swap.
type rawFrame struct {
	x, y, w, h int
	client     int
	pending    bool

	// source size last uploaded per scratch image
	cols, rows [assets.NumScratch]int
}

func (c *Context) stretchRaw(cmd *StretchRawCmd) {
	c.setGammaBrightness()

	start := time.Now()
	if err := c.UploadCinematic(cmd.Cols, cmd.Rows, cmd.Data, cmd.Client, cmd.Dirty); err != nil {
		logging.Logger().Warn("cinematic upload failed", "client", cmd.Client, "err", err)
		return
	}
	if config.GetSpeeds() {
		logging.Logger().Info("UploadCinematic", "cols", cmd.Cols, "rows", cmd.Rows,
			"msec", time.Since(start).Milliseconds())
	}

	c.raw.x, c.raw.y, c.raw.w, c.raw.h = cmd.X, cmd.Y, cmd.W, cmd.H
	c.raw.client = cmd.Client
	c.raw.pending = true
}

// UploadCinematic copies a cols x rows RGBA frame into scratch image
// client. The texture is recreated when the frame size changes; otherwise
// it is only updated when dirty. Render goroutine only.
func (c *Context) UploadCinematic(cols, rows int, data []byte, client int, dirty bool) error {
	if client < 0 || client >= assets.NumScratch {
		return fmt.Errorf("cinematic client %d out of range", client)
	}
	if cols <= 0 || rows <= 0 || len(data) < cols*rows*4 {
		return fmt.Errorf("cinematic frame %dx%d with %d bytes", cols, rows, len(data))
	}

	resize := cols != c.raw.cols[client] || rows != c.raw.rows[client]
	if !resize && !dirty {
		return nil
	}

	pix := cinematicImage(cols, rows, data)
	img := c.images.Scratch[client]
	if resize {
		c.raw.cols[client], c.raw.rows[client] = cols, rows
		return c.images.Resize(img, pix)
	}
	return c.images.Update(img, pix)
}

// cinematicImage wraps data, scaling it down if it exceeds the texture
// limit.
func cinematicImage(cols, rows int, data []byte) *image.RGBA {
	src := &image.RGBA{
		Pix:    append([]byte(nil), data[:cols*rows*4]...),
		Stride: cols * 4,
		Rect:   image.Rect(0, 0, cols, rows),
	}
	if cols <= maxCinematicSize && rows <= maxCinematicSize {
		return src
	}

	w, h := cols, rows
	if w > maxCinematicSize {
		h = h * maxCinematicSize / w
		w = maxCinematicSize
	}
	if h > maxCinematicSize {
		w = w * maxCinematicSize / h
		h = maxCinematicSize
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// drawRaw puts the pending cinematic frame on screen.
func (c *Context) drawRaw() {
	c.SetGL2D()

	// cinematics always sync every frame
	c.dev.Finish()
	c.finishCalled = true

	// always clear when drawing cinematics
	c.dev.Clear(device.ClearTarget|device.ClearZBuffer|device.ClearStencil, nil, device.Color{}, 1, 0)

	l := c.identityLightByte
	r := &c.raw
	c.genericQuad(c.images.Scratch[r.client], float32(r.x), float32(r.y), float32(r.w), float32(r.h), device.Color{l, l, l, 255})

	r.pending = false
}
