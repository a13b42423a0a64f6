// Package device defines the native 3D API surface the render backend
// drives. The backend never names a concrete API; an implementation is
// injected at construction time.
package device

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrDeviceLost is returned by Present and BeginScene while the device
	// cannot be used.
	ErrDeviceLost = errors.New("device: lost")
	// ErrDeviceNotReset means the device can be reset now.
	ErrDeviceNotReset = errors.New("device: not reset")
	// ErrCompilerUnavailable means no shader compiler could be loaded.
	ErrCompilerUnavailable = errors.New("device: shader compiler unavailable")
)

// CompileError carries the compiler diagnostic for a failed program.
type CompileError struct {
	Entry   string
	Profile string
	Log     string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %s (%s) error:\n%s", e.Entry, e.Profile, e.Log)
}

// Status is the cooperative level reported by CheckDevice.
type Status int

const (
	StatusOK Status = iota
	StatusLost
	StatusNotReset
	StatusDriverError
)

type CompareFunc int

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDstAlpha
	BlendInvDstAlpha
	BlendDstColor
	BlendInvDstColor
	BlendSrcAlphaSat
)

type CullMode int

const (
	CullNone CullMode = iota
	CullCW
	CullCCW
)

type FillMode int

const (
	FillSolid FillMode = iota
	FillWireframe
)

type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

type Primitive int

const (
	TriangleList Primitive = iota
	TriangleFan
	TriangleStrip
	LineList
)

// VertexFormat selects the input layout for the next draws.
type VertexFormat int

const (
	FormatNone VertexFormat = iota
	// FormatStage reads StaticVertex from stream 0 and Color from stream 1.
	FormatStage
	// FormatGeneric is GenericVertex: position, color, uv.
	FormatGeneric
	// FormatSkybox is GenericVertex position and uv; color is ignored.
	FormatSkybox
	// FormatPosition reads only the position of stream 0.
	FormatPosition
)

type ClearFlags int

const (
	ClearTarget ClearFlags = 1 << iota
	ClearZBuffer
	ClearStencil
)

// Rect is a pixel rectangle, right and bottom exclusive.
type Rect struct {
	X1, Y1, X2, Y2 int
}

type Viewport struct {
	X, Y, Width, Height int
	MinZ, MaxZ          float32
}

// Caps describes what the device can do.
type Caps struct {
	MaxTextureUnits int
	// ZeroStrideStreams reports that a vertex stream with stride 0 repeats
	// its first element for every vertex.
	ZeroStrideStreams bool
	// ProgramModel is the shader model major version.
	ProgramModel int
}

// Texture is an opaque device texture.
type Texture interface {
	Size() (int, int)
}

// Shader is an opaque compiled vertex or pixel shader.
type Shader interface {
	Release()
}

// Buffer is an opaque vertex or index buffer.
type Buffer interface {
	Size() int
	Release()
}

type TextureOptions struct {
	Wrap    WrapMode
	Mipmap  bool
	Nearest bool
}

// Define is a preprocessor macro passed to the compiler.
type Define struct {
	Name, Value string
}

// Compiler turns program source into device bytecode.
type Compiler interface {
	Compile(src []byte, entry, profile string, defines []Define) ([]byte, error)
}

// Device is the native API surface consumed by the backend. All calls are
// made from the single render thread.
type Device interface {
	Caps() Caps

	SetTexture(unit int, t Texture)
	SetSamplerWrap(unit int, w WrapMode)
	SetCullMode(m CullMode)
	SetDepthFunc(fn CompareFunc)
	SetBlendEnable(enable bool)
	SetBlendFunc(src, dst BlendFactor)
	SetDepthWrite(enable bool)
	SetFillMode(m FillMode)
	SetDepthTest(enable bool)
	SetAlphaTest(enable bool)
	SetAlphaFunc(fn CompareFunc, ref uint8)
	SetViewport(vp Viewport)
	Clear(flags ClearFlags, rect *Rect, color Color, z float32, stencil uint32)

	// Constants are written as float4 registers starting at reg.
	SetVertexShaderConstants(reg int, v []float32)
	SetPixelShaderConstants(reg int, v []float32)

	CreateVertexShader(code []byte) (Shader, error)
	CreatePixelShader(code []byte) (Shader, error)
	SetVertexFormat(f VertexFormat)
	SetVertexShader(s Shader)
	SetPixelShader(s Shader)

	CreateVertexBuffer(size int) (Buffer, error)
	CreateIndexBuffer(size int) (Buffer, error)
	// WriteBuffer copies data at the byte offset. discard tells the device
	// previous contents may be thrown away; otherwise regions already
	// written must stay intact for draws in flight.
	WriteBuffer(b Buffer, offset int, data []byte, discard bool) error
	SetStreamSource(stream int, b Buffer, offset, stride int)
	SetIndices(b Buffer)
	DrawIndexed(prim Primitive, baseVertex, numVertices, startIndex, primCount int)
	DrawUP(prim Primitive, primCount int, verts []GenericVertex)

	CreateTexture(img *image.RGBA, opts TextureOptions) (Texture, error)
	UpdateTexture(t Texture, img *image.RGBA) error
	ReleaseTexture(t Texture)

	BeginScene() error
	EndScene() error
	Present() error
	// Finish blocks until the GPU has drained previously issued work.
	Finish()

	CheckDevice() Status
	Reset() error
	ReadBackbuffer() (*image.RGBA, error)
}
