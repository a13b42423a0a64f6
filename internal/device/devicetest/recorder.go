// Package devicetest provides a recording fake of device.Device and
// device.Compiler for backend tests.
package devicetest

import (
	"image"
	"strings"

	"q3backend/internal/device"
)

// Shader is the fake compiled shader handle.
type Shader struct {
	ID       int
	Pixel    bool
	Code     []byte
	Released bool
}

func (s *Shader) Release() { s.Released = true }

// Buffer stores every byte written to it.
type Buffer struct {
	Data     []byte
	Index    bool
	Discards int
	Released bool
}

func (b *Buffer) Size() int { return len(b.Data) }
func (b *Buffer) Release()  { b.Released = true }

// Texture is the fake texture handle.
type Texture struct {
	W, H     int
	Pix      []byte
	Opts     device.TextureOptions
	Updates  int
	Released bool
}

func (t *Texture) Size() (int, int) { return t.W, t.H }

type Stream struct {
	Buffer *Buffer
	Offset int
	Stride int
}

// Draw is one recorded DrawIndexed call with the state it saw.
type Draw struct {
	Prim        device.Primitive
	BaseVertex  int
	NumVertices int
	StartIndex  int
	PrimCount   int
	Format      device.VertexFormat
	VS, PS      *Shader
	Streams     [2]Stream
	Textures    [8]device.Texture
}

type DrawUP struct {
	Prim      device.Primitive
	PrimCount int
	Format    device.VertexFormat
	Verts     []device.GenericVertex
	Texture   device.Texture
}

type CompileCall struct {
	Entry   string
	Profile string
	Defines []device.Define
}

type Clear struct {
	Flags   device.ClearFlags
	Rect    *device.Rect
	Color   device.Color
	Z       float32
	Stencil uint32
}

// Recorder implements device.Device and device.Compiler in memory.
type Recorder struct {
	DeviceCaps device.Caps

	// Hooks.
	CompileFunc func(entry string, defines []device.Define) error
	Status      device.Status
	PresentErr  error

	Draws    []Draw
	UPDraws  []DrawUP
	Compiles []CompileCall
	Clears   []Clear

	Viewports     []device.Viewport
	VSBinds       int
	PSBinds       int
	FormatBinds   int
	TextureBinds  int
	StateCalls    map[string]int
	Finishes      int
	Scenes        int
	Presents      int
	Resets        int
	BuffersMade   int
	ShadersMade   int
	TexturesMade  int
	Backbuffer    *image.RGBA
	ReleasedTexes int

	VSConst [256][4]float32
	PSConst [256][4]float32

	BlendEnabled  bool
	SrcBlend      device.BlendFactor
	DstBlend      device.BlendFactor
	DepthFunc     device.CompareFunc
	DepthWrite    bool
	DepthTest     bool
	Fill          device.FillMode
	AlphaTest     bool
	AlphaFunc     device.CompareFunc
	AlphaRef      uint8
	Cull          device.CullMode
	Wrap          [8]device.WrapMode
	Textures      [8]device.Texture
	Format        device.VertexFormat
	VS, PS        *Shader
	Streams       [2]Stream
	Indices       *Buffer
	nextShaderID  int
}

// New returns a recorder with eight texture units and zero-stride support.
func New() *Recorder {
	return &Recorder{
		DeviceCaps: device.Caps{MaxTextureUnits: 8, ZeroStrideStreams: true, ProgramModel: 3},
		StateCalls: make(map[string]int),
		DepthWrite: true,
		DepthTest:  true,
		DepthFunc:  device.CompareLessEqual,
	}
}

// ResetCounts clears recorded calls but keeps the device state.
func (r *Recorder) ResetCounts() {
	r.Draws = nil
	r.UPDraws = nil
	r.Compiles = nil
	r.Clears = nil
	r.Viewports = nil
	r.VSBinds, r.PSBinds, r.FormatBinds, r.TextureBinds = 0, 0, 0, 0
	r.StateCalls = make(map[string]int)
	r.Finishes, r.Scenes, r.Presents = 0, 0, 0
}

func (r *Recorder) state(name string) { r.StateCalls[name]++ }

func (r *Recorder) Caps() device.Caps { return r.DeviceCaps }

func (r *Recorder) Compile(src []byte, entry, profile string, defines []device.Define) ([]byte, error) {
	cp := append([]device.Define(nil), defines...)
	r.Compiles = append(r.Compiles, CompileCall{Entry: entry, Profile: profile, Defines: cp})
	if r.CompileFunc != nil {
		if err := r.CompileFunc(entry, cp); err != nil {
			return nil, err
		}
	}
	var sb strings.Builder
	sb.WriteString(entry)
	for _, d := range cp {
		sb.WriteString(";" + d.Name + "=" + d.Value)
	}
	return []byte(sb.String()), nil
}

func (r *Recorder) SetTexture(unit int, t device.Texture) {
	r.TextureBinds++
	r.Textures[unit] = t
}

func (r *Recorder) SetSamplerWrap(unit int, w device.WrapMode) {
	r.state("SetSamplerWrap")
	r.Wrap[unit] = w
}

func (r *Recorder) SetCullMode(m device.CullMode) {
	r.state("SetCullMode")
	r.Cull = m
}

func (r *Recorder) SetDepthFunc(fn device.CompareFunc) {
	r.state("SetDepthFunc")
	r.DepthFunc = fn
}

func (r *Recorder) SetBlendEnable(enable bool) {
	r.state("SetBlendEnable")
	r.BlendEnabled = enable
}

func (r *Recorder) SetBlendFunc(src, dst device.BlendFactor) {
	r.state("SetBlendFunc")
	r.SrcBlend, r.DstBlend = src, dst
}

func (r *Recorder) SetDepthWrite(enable bool) {
	r.state("SetDepthWrite")
	r.DepthWrite = enable
}

func (r *Recorder) SetFillMode(m device.FillMode) {
	r.state("SetFillMode")
	r.Fill = m
}

func (r *Recorder) SetDepthTest(enable bool) {
	r.state("SetDepthTest")
	r.DepthTest = enable
}

func (r *Recorder) SetAlphaTest(enable bool) {
	r.state("SetAlphaTest")
	r.AlphaTest = enable
}

func (r *Recorder) SetAlphaFunc(fn device.CompareFunc, ref uint8) {
	r.state("SetAlphaFunc")
	r.AlphaFunc, r.AlphaRef = fn, ref
}

func (r *Recorder) SetViewport(vp device.Viewport) {
	r.Viewports = append(r.Viewports, vp)
}

func (r *Recorder) Clear(flags device.ClearFlags, rect *device.Rect, color device.Color, z float32, stencil uint32) {
	var rc *device.Rect
	if rect != nil {
		cp := *rect
		rc = &cp
	}
	r.Clears = append(r.Clears, Clear{Flags: flags, Rect: rc, Color: color, Z: z, Stencil: stencil})
}

func (r *Recorder) SetVertexShaderConstants(reg int, v []float32) {
	for i := 0; i < len(v); i++ {
		r.VSConst[reg+i/4][i%4] = v[i]
	}
}

func (r *Recorder) SetPixelShaderConstants(reg int, v []float32) {
	for i := 0; i < len(v); i++ {
		r.PSConst[reg+i/4][i%4] = v[i]
	}
}

func (r *Recorder) newShader(code []byte, pixel bool) *Shader {
	r.nextShaderID++
	r.ShadersMade++
	return &Shader{ID: r.nextShaderID, Pixel: pixel, Code: append([]byte(nil), code...)}
}

func (r *Recorder) CreateVertexShader(code []byte) (device.Shader, error) {
	return r.newShader(code, false), nil
}

func (r *Recorder) CreatePixelShader(code []byte) (device.Shader, error) {
	return r.newShader(code, true), nil
}

func (r *Recorder) SetVertexFormat(f device.VertexFormat) {
	r.FormatBinds++
	r.Format = f
}

func (r *Recorder) SetVertexShader(s device.Shader) {
	r.VSBinds++
	r.VS = asShader(s)
}

func (r *Recorder) SetPixelShader(s device.Shader) {
	r.PSBinds++
	r.PS = asShader(s)
}

func asShader(s device.Shader) *Shader {
	if s == nil {
		return nil
	}
	return s.(*Shader)
}

func (r *Recorder) CreateVertexBuffer(size int) (device.Buffer, error) {
	r.BuffersMade++
	return &Buffer{Data: make([]byte, size)}, nil
}

func (r *Recorder) CreateIndexBuffer(size int) (device.Buffer, error) {
	r.BuffersMade++
	return &Buffer{Data: make([]byte, size), Index: true}, nil
}

func (r *Recorder) WriteBuffer(b device.Buffer, offset int, data []byte, discard bool) error {
	buf := b.(*Buffer)
	if discard {
		buf.Discards++
	}
	copy(buf.Data[offset:], data)
	return nil
}

func (r *Recorder) SetStreamSource(stream int, b device.Buffer, offset, stride int) {
	var buf *Buffer
	if b != nil {
		buf = b.(*Buffer)
	}
	r.Streams[stream] = Stream{Buffer: buf, Offset: offset, Stride: stride}
}

func (r *Recorder) SetIndices(b device.Buffer) {
	if b == nil {
		r.Indices = nil
		return
	}
	r.Indices = b.(*Buffer)
}

func (r *Recorder) DrawIndexed(prim device.Primitive, baseVertex, numVertices, startIndex, primCount int) {
	r.Draws = append(r.Draws, Draw{
		Prim:        prim,
		BaseVertex:  baseVertex,
		NumVertices: numVertices,
		StartIndex:  startIndex,
		PrimCount:   primCount,
		Format:      r.Format,
		VS:          r.VS,
		PS:          r.PS,
		Streams:     r.Streams,
		Textures:    r.Textures,
	})
}

func (r *Recorder) DrawUP(prim device.Primitive, primCount int, verts []device.GenericVertex) {
	r.UPDraws = append(r.UPDraws, DrawUP{
		Prim:      prim,
		PrimCount: primCount,
		Format:    r.Format,
		Verts:     append([]device.GenericVertex(nil), verts...),
		Texture:   r.Textures[0],
	})
}

func (r *Recorder) CreateTexture(img *image.RGBA, opts device.TextureOptions) (device.Texture, error) {
	r.TexturesMade++
	b := img.Bounds()
	return &Texture{W: b.Dx(), H: b.Dy(), Pix: append([]byte(nil), img.Pix...), Opts: opts}, nil
}

func (r *Recorder) UpdateTexture(t device.Texture, img *image.RGBA) error {
	tex := t.(*Texture)
	tex.Updates++
	tex.Pix = append(tex.Pix[:0], img.Pix...)
	return nil
}

func (r *Recorder) ReleaseTexture(t device.Texture) {
	if tex, ok := t.(*Texture); ok {
		tex.Released = true
	}
	r.ReleasedTexes++
}

func (r *Recorder) BeginScene() error {
	if r.Status != device.StatusOK {
		return device.ErrDeviceLost
	}
	r.Scenes++
	return nil
}

func (r *Recorder) EndScene() error { return nil }

func (r *Recorder) Present() error {
	r.Presents++
	return r.PresentErr
}

func (r *Recorder) Finish() { r.Finishes++ }

func (r *Recorder) CheckDevice() device.Status { return r.Status }

func (r *Recorder) Reset() error {
	r.Resets++
	r.Status = device.StatusOK
	return nil
}

func (r *Recorder) ReadBackbuffer() (*image.RGBA, error) {
	if r.Backbuffer != nil {
		return r.Backbuffer, nil
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

// DrawsWithFormat counts recorded indexed draws made with the given layout.
func (r *Recorder) DrawsWithFormat(f device.VertexFormat) int {
	n := 0
	for _, d := range r.Draws {
		if d.Format == f {
			n++
		}
	}
	return n
}

var (
	_ device.Device   = (*Recorder)(nil)
	_ device.Compiler = (*Recorder)(nil)
)
