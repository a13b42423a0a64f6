// Package backend executes render command lists. Surfaces are batched into
// the tessellator by shader and fog, and each batch is evaluated stage by
// stage into device state and draws.
//
// A Context is owned by a single render goroutine. Only the command list
// entry points documented as such may be called from elsewhere.
package backend

import (
	"errors"
	"fmt"
	"time"

	"q3backend/internal/assets"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/progcache"
	"q3backend/internal/scene"
	"q3backend/internal/screenshot"
	"q3backend/internal/shader"
	"q3backend/internal/statecache"
	"q3backend/internal/xform"
)

// FatalError is raised for conditions the renderer cannot continue past.
// It travels as a panic from the render thread and is returned as an error
// by New and ExecuteCommands.
type FatalError struct {
	What  string
	Value int
	Limit int
	Err   error
}

func (e *FatalError) Error() string {
	msg := e.What
	if e.Value != 0 || e.Limit != 0 {
		msg += fmt.Sprintf(": %d (limit %d)", e.Value, e.Limit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(what string, value, limit int) {
	logging.Logger().Error("fatal renderer error", "what", what, "value", value, "limit", limit)
	panic(&FatalError{What: what, Value: value, Limit: limit})
}

func fatalErr(what string, err error) {
	logging.Logger().Error("fatal renderer error", "what", what, "err", err)
	panic(&FatalError{What: what, Err: err})
}

// recoverFatal turns a FatalError panic into *errp. Other panics continue.
func recoverFatal(errp *error) {
	if r := recover(); r != nil {
		fe, ok := r.(*FatalError)
		if !ok {
			panic(r)
		}
		*errp = fe
	}
}

// ScreenshotSink receives captured frames.
type ScreenshotSink interface {
	Submit(job screenshot.Job) bool
}

type Options struct {
	// Width and Height are the framebuffer size in pixels.
	Width, Height int

	// OverbrightBits shifts vertex lighting; identityLight is 1/2^bits.
	OverbrightBits int

	Screenshots ScreenshotSink

	// Now returns milliseconds for the 2D clock. Defaults to time since New.
	Now func() int
}

// Context is the backend state for one device.
type Context struct {
	dev    device.Device
	caps   device.Caps
	state  *statecache.Cache
	progs  *progcache.Cache
	xf     *xform.Pipeline
	images *assets.Registry
	shots  ScreenshotSink
	now    func() int

	tess *Tess

	// stage colours, rebuilt for every stage
	colors [MaxVertexes]device.Color

	defaultShader *shader.Shader
	fogShader     *shader.Shader
	shadowShader  *shader.Shader

	width, height int

	identityLight     float32
	identityLightByte uint8

	refdef        scene.RefDef
	viewParms     scene.ViewParms
	or            scene.Orientation
	world         *scene.World
	shaders       []*shader.Shader
	currentEntity *scene.Entity
	worldEntity   scene.Entity
	entity2D      scene.Entity

	color2D device.Color

	projection2D        bool
	skyRenderedThisView bool
	isHyperspace        bool
	finishCalled        bool
	inBeginScene        bool
	deviceLost          bool

	pendingShot     *ScreenshotRequest
	screenshotCount int
	raw             rawFrame
}

// New builds a backend on dev. compiler may be nil only if the caller wants
// the missing-compiler error.
func New(dev device.Device, compiler device.Compiler, images *assets.Registry, opts Options) (c *Context, err error) {
	defer recoverFatal(&err)

	if images == nil {
		return nil, errors.New("backend: image registry is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("backend: invalid framebuffer size %dx%d", opts.Width, opts.Height)
	}

	progs, perr := progcache.Init(dev, compiler)
	if perr != nil {
		fatalErr("program cache init", perr)
	}

	c = &Context{
		dev:    dev,
		caps:   dev.Caps(),
		state:  statecache.New(dev),
		progs:  progs,
		xf:     xform.NewPipeline(dev),
		images: images,
		shots:  opts.Screenshots,
		now:    opts.Now,
		tess:   new(Tess),
		width:  opts.Width,
		height: opts.Height,
	}
	if c.now == nil {
		start := time.Now()
		c.now = func() int { return int(time.Since(start).Milliseconds()) }
	}

	c.identityLight = 1 / float32(int(1)<<opts.OverbrightBits)
	c.identityLightByte = uint8(255 * c.identityLight)
	c.worldEntity = scene.WorldEntity()
	c.entity2D = scene.WorldEntity()
	c.currentEntity = &c.worldEntity
	c.color2D = device.Color{255, 255, 255, 255}

	c.state.DefaultImage = images.Default
	c.state.NoBindImage = images.DLight

	c.createBuiltinShaders()
	c.state.SetDefaultState()

	logging.Logger().Info("backend ready", "width", c.width, "height", c.height,
		"zeroStride", c.caps.ZeroStrideStreams, "units", c.caps.MaxTextureUnits)
	return c, nil
}

func (c *Context) createBuiltinShaders() {
	c.defaultShader = &shader.Shader{
		Name:              "<default>",
		Sort:              shader.SortOpaque,
		NumUnfoggedPasses: 1,
		Stages: []*shader.Stage{{
			Bundle: shader.TextureBundle{
				Images:             [shader.MaxImageAnimations]*shader.Image{c.images.Default},
				NumImageAnimations: 1,
				TCGen:              shader.TCGenTexture,
			},
			RGBGen:    shader.CGenIdentityLighting,
			AlphaGen:  shader.AGenIdentity,
			StateBits: shader.StateDefault,
		}},
	}

	// stateBits are rewritten per use by the fog pass
	c.fogShader = &shader.Shader{
		Name:              "<fog>",
		Sort:              shader.SortFog,
		NumUnfoggedPasses: 1,
		Stages: []*shader.Stage{{
			Bundle: shader.TextureBundle{
				Images:             [shader.MaxImageAnimations]*shader.Image{c.images.Fog},
				NumImageAnimations: 1,
				TCGen:              shader.TCGenFog,
			},
			RGBGen:   shader.CGenFog,
			AlphaGen: shader.AGenIdentity,
		}},
	}

	c.shadowShader = &shader.Shader{
		Name: "<stencil shadow>",
		Sort: shader.SortStencilShadow,
	}

	c.prepare(c.defaultShader)
	c.prepare(c.fogShader)
}

// prepare resolves programs for any stage of sh that has not been
// attempted yet.
func (c *Context) prepare(sh *shader.Shader) {
	if err := c.progs.PrepareShader(sh); err != nil {
		var limit int
		if errors.Is(err, progcache.ErrCacheFull) {
			limit = progcache.MaxEntries
		}
		logging.Logger().Error("fatal renderer error", "what", "program cache", "shader", sh.Name, "err", err)
		panic(&FatalError{What: "program cache", Value: c.progs.Len(), Limit: limit, Err: err})
	}
}

// DefaultShader is used for surfaces whose shader index is unknown.
func (c *Context) DefaultShader() *shader.Shader { return c.defaultShader }

// ShadowShader marks batches for the stencil shadow path.
func (c *Context) ShadowShader() *shader.Shader { return c.shadowShader }

// IdentityLight returns the overbright scale applied to vertex colours.
func (c *Context) IdentityLight() float32 { return c.identityLight }

// Lost reports whether the device is waiting to be recovered.
func (c *Context) Lost() bool { return c.deviceLost }

// Resize updates the framebuffer size used by 2D and full-screen clears.
func (c *Context) Resize(width, height int) {
	if width > 0 && height > 0 {
		c.width, c.height = width, height
	}
}

// Shutdown releases every device object owned by the backend.
func (c *Context) Shutdown() {
	if c.inBeginScene {
		_ = c.dev.EndScene()
		c.inBeginScene = false
	}
	c.progs.Shutdown()
	logging.Logger().Info("backend shut down")
}
