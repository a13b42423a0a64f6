// Package gldevice implements device.Device and device.Compiler on an
// OpenGL 4.1 core context. Every method must be called from the thread
// that owns the context.
package gldevice

import (
	"fmt"
	"image"
	"time"

	"q3backend/internal/device"
	"q3backend/internal/logging"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const (
	maxUnits     = 8
	numRegisters = 24

	finishTimeout = 2 * time.Second
)

// Options configure a Device.
type Options struct {
	Width, Height int
	// Swap presents the back buffer, normally the window's SwapBuffers.
	Swap func()
}

// Device drives a single GL context.
type Device struct {
	width, height int
	swap          func()
	caps          device.Caps

	vao      uint32
	upBuffer uint32
	upSize   int

	compiled map[string]uint32
	programs map[programKey]*program
	current  *program
	vs, ps   *Shader

	vc, pc           [numRegisters][4]float32
	vcDirty, pcDirty bool
	alphaDirty       bool
	alphaTest        bool
	alphaFunc        device.CompareFunc
	alphaRef         uint8
	depthWrite       bool
	format           device.VertexFormat
	streams          [2]stream
	indices          *Buffer
	textures         [maxUnits]*Texture
	wrap             [maxUnits]device.WrapMode
}

// New initializes GL function pointers and the fixed state the backend
// expects. The context must already be current.
func New(opts Options) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gldevice: init: %w", err)
	}
	logging.Logger().Info("gldevice: context",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	var units int32
	gl.GetIntegerv(gl.MAX_TEXTURE_IMAGE_UNITS, &units)
	if units > maxUnits {
		units = maxUnits
	}

	d := &Device{
		width:  opts.Width,
		height: opts.Height,
		swap:   opts.Swap,
		caps: device.Caps{
			MaxTextureUnits: int(units),
			// a zero stride means tightly packed to GL
			ZeroStrideStreams: false,
			ProgramModel:      4,
		},
		compiled:   make(map[string]uint32),
		programs:   make(map[programKey]*program),
		depthWrite: true,
	}

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &d.upBuffer)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.CULL_FACE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	return d, nil
}

// Resize records a new framebuffer size. Viewports are given top-down and
// flipped against this height.
func (d *Device) Resize(width, height int) {
	d.width, d.height = width, height
}

func (d *Device) Caps() device.Caps { return d.caps }

func (d *Device) SetCullMode(m device.CullMode) {
	switch m {
	case device.CullNone:
		gl.Disable(gl.CULL_FACE)
		return
	case device.CullCW:
		// winding is judged in window space with y up, the mirror of a
		// y-down target, so the clockwise face is GL's counter-clockwise
		gl.FrontFace(gl.CW)
	case device.CullCCW:
		gl.FrontFace(gl.CCW)
	}
	gl.CullFace(gl.BACK)
	gl.Enable(gl.CULL_FACE)
}

var compareFuncs = map[device.CompareFunc]uint32{
	device.CompareNever:        gl.NEVER,
	device.CompareLess:         gl.LESS,
	device.CompareEqual:        gl.EQUAL,
	device.CompareLessEqual:    gl.LEQUAL,
	device.CompareGreater:      gl.GREATER,
	device.CompareNotEqual:     gl.NOTEQUAL,
	device.CompareGreaterEqual: gl.GEQUAL,
	device.CompareAlways:       gl.ALWAYS,
}

var blendFactors = map[device.BlendFactor]uint32{
	device.BlendZero:        gl.ZERO,
	device.BlendOne:         gl.ONE,
	device.BlendSrcColor:    gl.SRC_COLOR,
	device.BlendInvSrcColor: gl.ONE_MINUS_SRC_COLOR,
	device.BlendSrcAlpha:    gl.SRC_ALPHA,
	device.BlendInvSrcAlpha: gl.ONE_MINUS_SRC_ALPHA,
	device.BlendDstAlpha:    gl.DST_ALPHA,
	device.BlendInvDstAlpha: gl.ONE_MINUS_DST_ALPHA,
	device.BlendDstColor:    gl.DST_COLOR,
	device.BlendInvDstColor: gl.ONE_MINUS_DST_COLOR,
	device.BlendSrcAlphaSat: gl.SRC_ALPHA_SATURATE,
}

func (d *Device) SetDepthFunc(fn device.CompareFunc) {
	gl.DepthFunc(compareFuncs[fn])
}

func (d *Device) SetBlendEnable(enable bool) {
	if enable {
		gl.Enable(gl.BLEND)
	} else {
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) SetBlendFunc(src, dst device.BlendFactor) {
	gl.BlendFunc(blendFactors[src], blendFactors[dst])
}

func (d *Device) SetDepthWrite(enable bool) {
	d.depthWrite = enable
	gl.DepthMask(enable)
}

func (d *Device) SetFillMode(m device.FillMode) {
	if m == device.FillWireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
}

func (d *Device) SetDepthTest(enable bool) {
	if enable {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

// SetAlphaTest and SetAlphaFunc feed the alphaTest uniform of the stage
// program; core profile has no fixed-function alpha test.
func (d *Device) SetAlphaTest(enable bool) {
	d.alphaTest = enable
	d.alphaDirty = true
}

func (d *Device) SetAlphaFunc(fn device.CompareFunc, ref uint8) {
	d.alphaFunc, d.alphaRef = fn, ref
	d.alphaDirty = true
}

func (d *Device) SetViewport(vp device.Viewport) {
	gl.Viewport(int32(vp.X), int32(d.height-vp.Y-vp.Height), int32(vp.Width), int32(vp.Height))
	gl.DepthRange(float64(vp.MinZ), float64(vp.MaxZ))
}

func (d *Device) Clear(flags device.ClearFlags, rect *device.Rect, color device.Color, z float32, stencil uint32) {
	var mask uint32
	if flags&device.ClearTarget != 0 {
		c := color.RGBA()
		gl.ClearColor(c[0], c[1], c[2], c[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	if flags&device.ClearZBuffer != 0 {
		gl.ClearDepth(float64(z))
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if flags&device.ClearStencil != 0 {
		gl.ClearStencil(int32(stencil))
		mask |= gl.STENCIL_BUFFER_BIT
	}
	if mask == 0 {
		return
	}

	if rect != nil {
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(int32(rect.X1), int32(d.height-rect.Y2), int32(rect.X2-rect.X1), int32(rect.Y2-rect.Y1))
	}
	// the depth clear honours the write mask
	if !d.depthWrite {
		gl.DepthMask(true)
	}
	gl.Clear(mask)
	if !d.depthWrite {
		gl.DepthMask(false)
	}
	if rect != nil {
		gl.Disable(gl.SCISSOR_TEST)
	}
}

func (d *Device) SetVertexShaderConstants(reg int, v []float32) {
	for i := 0; i < len(v) && reg+i/4 < numRegisters; i++ {
		d.vc[reg+i/4][i%4] = v[i]
	}
	d.vcDirty = true
}

func (d *Device) SetPixelShaderConstants(reg int, v []float32) {
	for i := 0; i < len(v) && reg+i/4 < numRegisters; i++ {
		d.pc[reg+i/4][i%4] = v[i]
	}
	d.pcDirty = true
}

func (d *Device) SetVertexFormat(f device.VertexFormat) {
	d.format = f
}

// BeginScene and EndScene have nothing to bracket on GL.
func (d *Device) BeginScene() error { return nil }
func (d *Device) EndScene() error   { return nil }

func (d *Device) Present() error {
	if d.swap != nil {
		d.swap()
	}
	if code := gl.GetError(); code == gl.OUT_OF_MEMORY {
		return device.ErrDeviceLost
	}
	return nil
}

// Finish waits on a fence behind all submitted work.
func (d *Device) Finish() {
	sync := gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	defer gl.DeleteSync(sync)

	deadline := time.Now().Add(finishTimeout)
	for time.Now().Before(deadline) {
		switch gl.ClientWaitSync(sync, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(time.Millisecond)) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			return
		case gl.WAIT_FAILED:
			logging.Logger().Warn("gldevice: fence wait failed")
			return
		}
	}
	logging.Logger().Warn("gldevice: fence timeout", "after", finishTimeout)
}

// CheckDevice always reports OK; a GL context is not lost the way a D3D
// device is. A reset-notification context would report here.
func (d *Device) CheckDevice() device.Status { return device.StatusOK }

func (d *Device) Reset() error { return nil }

// ReadBackbuffer reads the whole framebuffer, top row first.
func (d *Device) ReadBackbuffer() (*image.RGBA, error) {
	w, h := d.width, d.height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("gldevice: empty framebuffer %dx%d", w, h)
	}
	raw := make([]byte, w*h*4)
	gl.ReadBuffer(gl.BACK)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(raw))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("gldevice: read pixels: error 0x%x", code)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	row := w * 4
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+row], raw[(h-1-y)*row:(h-y)*row])
	}
	return img, nil
}

// Shutdown frees every GL object the device still owns.
func (d *Device) Shutdown() {
	for k, p := range d.programs {
		if p != nil {
			gl.DeleteProgram(p.id)
		}
		delete(d.programs, k)
	}
	for code, id := range d.compiled {
		gl.DeleteShader(id)
		delete(d.compiled, code)
	}
	gl.DeleteBuffers(1, &d.upBuffer)
	gl.DeleteVertexArrays(1, &d.vao)
	d.current = nil
}

var (
	_ device.Device   = (*Device)(nil)
	_ device.Compiler = (*Device)(nil)
)
