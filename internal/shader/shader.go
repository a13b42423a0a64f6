// Package shader holds the parsed material records the backend consumes.
// Everything here is produced by the material loader and treated as
// read-only by the backend, except the per-stage program handles which
// are filled in on first use.
package shader

import (
	"q3backend/internal/device"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MaxStages          = 8
	MaxImageAnimations = 8
	MaxTexMods         = 4
	MaxDeforms         = 3
)

type GenFunc int

const (
	GFNone GenFunc = iota
	GFSin
	GFSquare
	GFTriangle
	GFSawtooth
	GFInverseSawtooth
	GFNoise
)

type DeformType int

const (
	DeformNone DeformType = iota
	DeformWave
	DeformNormals
	DeformBulge
	DeformMove
	DeformProjectionShadow
	DeformAutosprite
	DeformAutosprite2
	DeformText0
	DeformText1
	DeformText2
	DeformText3
	DeformText4
	DeformText5
	DeformText6
	DeformText7
)

type AlphaGen int

const (
	AGenIdentity AlphaGen = iota
	AGenSkip
	AGenEntity
	AGenOneMinusEntity
	AGenVertex
	AGenOneMinusVertex
	AGenLightingSpecular
	AGenWaveform
	AGenPortal
	AGenConst
)

type ColorGen int

const (
	CGenBad ColorGen = iota
	CGenIdentityLighting
	CGenIdentity
	CGenEntity
	CGenOneMinusEntity
	CGenExactVertex
	CGenVertex
	CGenOneMinusVertex
	CGenWaveform
	CGenLightingDiffuse
	CGenFog
	CGenConst
)

type TexCoordGen int

const (
	TCGenBad TexCoordGen = iota
	TCGenIdentity
	TCGenLightmap
	TCGenTexture
	TCGenEnvironmentMapped
	TCGenFog
	TCGenVector
)

// AdjustColorsForFog selects how fog attenuates a stage's vertex colors.
type AdjustColorsForFog int

const (
	ACFFNone AdjustColorsForFog = iota
	ACFFModulateRGB
	ACFFModulateRGBA
	ACFFModulateAlpha
)

type TexModType int

const (
	TModNone TexModType = iota
	TModTransform
	TModTurbulent
	TModScroll
	TModScale
	TModStretch
	TModRotate
	TModEntityTranslate
)

type CullType int

const (
	CullFrontSided CullType = iota
	CullBackSided
	CullTwoSided
)

type FogPass int

const (
	FogPassNone FogPass = iota
	FogPassEqual
	FogPassLE
)

// Sort orders shaders within a view.
type Sort float32

const (
	SortBad           Sort = 0
	SortPortal        Sort = 1
	SortEnvironment   Sort = 2
	SortOpaque        Sort = 3
	SortDecal         Sort = 4
	SortSeeThrough    Sort = 5
	SortBanner        Sort = 6
	SortFog           Sort = 7
	SortUnderwater    Sort = 8
	SortBlend0        Sort = 9
	SortBlend1        Sort = 10
	SortBlend2        Sort = 11
	SortBlend3        Sort = 12
	SortStencilShadow Sort = 13
	SortAlmostNearest Sort = 14
	SortNearest       Sort = 15
)

// Surface flags consulted by the backend.
const (
	SurfSky      = 0x4
	SurfNoDLight = 0x20000
)

// Iterator selects the stage iteration strategy of a shader.
type Iterator int

const (
	IteratorGeneric Iterator = iota
	IteratorSky
)

type WaveForm struct {
	Func      GenFunc
	Base      float32
	Amplitude float32
	Phase     float32
	Frequency float32
}

type TexMod struct {
	Type TexModType

	// turb, stretch
	Wave WaveForm

	// transform
	Matrix    [2][2]float32
	Translate [2]float32

	Scale       [2]float32
	Scroll      [2]float32
	RotateSpeed float32
}

// Image is a loaded texture and its sampling parameters.
type Image struct {
	Name          string
	Texture       device.Texture
	Width, Height int
	UploadWidth   int
	UploadHeight  int
	Wrap          device.WrapMode
	Mipmap        bool
	FrameUsed     int
}

// VideoMap is the cinematic collaborator behind a videoMap stage.
type VideoMap interface {
	// Run advances the cinematic to the current time.
	Run()
	// Upload pushes the current frame into the stage texture.
	Upload()
}

type TextureBundle struct {
	Images              [MaxImageAnimations]*Image
	NumImageAnimations  int
	ImageAnimationSpeed float32

	TCGen        TexCoordGen
	TCGenVectors [2]mgl32.Vec3

	TexMods []TexMod

	IsLightmap bool
	VideoMap   VideoMap
}

type Stage struct {
	Bundle TextureBundle

	RGBWave WaveForm
	RGBGen  ColorGen

	AlphaWave WaveForm
	AlphaGen  AlphaGen

	ConstantColor device.Color

	StateBits uint32

	AdjustColorsForFog AdjustColorsForFog

	IsDetail bool

	// TMU is the texture unit assigned to this stage: its index in the shader.
	TMU int

	// Program handles, filled on first use by the program cache.
	VertexShader device.Shader
	PixelShader  device.Shader
	ProgramKey   uint32
	ProgramBuilt bool
}

type Deform struct {
	Type DeformType

	MoveVector        mgl32.Vec3
	DeformationWave   WaveForm
	DeformationSpread float32

	BulgeWidth  float32
	BulgeHeight float32
	BulgeSpeed  float32
}

type SkyParms struct {
	CloudHeight float32
	OuterBox    [6]*Image
	InnerBox    [6]*Image
}

type Shader struct {
	Name  string
	Index int

	Sort Sort

	IsSky         bool
	Sky           SkyParms
	FogPass       FogPass
	CullType      CullType
	PolygonOffset bool

	EntityMergable bool

	SurfaceFlags int

	// PortalRange scales the portal alpha falloff.
	PortalRange float32

	Deforms []Deform

	// NumUnfoggedPasses counts stages drawn before any fog pass.
	NumUnfoggedPasses int
	Stages            []*Stage

	Iterator Iterator

	// TimeOffset is subtracted from the frame time; ClampTime > 0 stops
	// shader time at that value.
	TimeOffset float32
	ClampTime  float32

	RemappedShader *Shader
}

// ActiveStages returns stages up to the first nil entry.
func (s *Shader) ActiveStages() []*Stage {
	for i, st := range s.Stages {
		if i >= MaxStages || st == nil {
			return s.Stages[:i]
		}
	}
	if len(s.Stages) > MaxStages {
		return s.Stages[:MaxStages]
	}
	return s.Stages
}

// AssignUnits sets each stage's TMU to its index.
func (s *Shader) AssignUnits() {
	for i, st := range s.ActiveStages() {
		st.TMU = i
	}
}
