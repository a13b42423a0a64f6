// Package scene carries the frontend's per-view inputs: view parameters,
// entities, dynamic lights, fog volumes and the sorted surface list.
package scene

import (
	"q3backend/internal/device"
	"q3backend/internal/xform"

	"github.com/go-gl/mathgl/mgl32"
)

// RDFHyperspace on RefDef.RDFlags draws the teleport grey screen instead
// of the view.
const RDFHyperspace = 0x4

// Entity RenderFX flags read by the backend.
const (
	RFDepthHack   = 0x8
	RFShadowPlane = 0x100
)

// Orientation places a model or the viewer in the world.
type Orientation struct {
	Origin mgl32.Vec3
	Axis   [3]mgl32.Vec3

	// ViewOrigin is the eye position in this orientation's local space.
	ViewOrigin  mgl32.Vec3
	ModelMatrix xform.Matrix
}

type Plane struct {
	Normal mgl32.Vec3
	Dist   float32
}

// ViewParms describes one rendered view.
type ViewParms struct {
	Or    Orientation
	World Orientation

	IsPortal    bool
	IsMirror    bool
	PortalPlane Plane

	ViewportX, ViewportY          int
	ViewportWidth, ViewportHeight int

	FovX, FovY float32
	ZFar       float32
	Projection xform.Matrix

	FrameSceneNum int
	FrameCount    int
}

type RefDef struct {
	X, Y          int
	Width, Height int
	FovX, FovY    float32

	ViewOrigin mgl32.Vec3
	ViewAxis   [3]mgl32.Vec3

	// Time in milliseconds; FloatTime in seconds.
	Time      int
	FloatTime float32

	RDFlags  int
	AreaMask []byte

	// Text feeds the text0..text7 deforms.
	Text [8]string

	Entities []Entity
	DLights  []DLight
}

type EntityType int

const (
	RTModel EntityType = iota
	RTPoly
	RTSprite
	RTBeam
	RTRailCore
	RTRailRings
	RTLightning
	RTPortalSurface
)

// Entity is a render entity plus the lighting the frontend computed for it.
type Entity struct {
	Type     EntityType
	RenderFX int

	Origin    mgl32.Vec3
	OldOrigin mgl32.Vec3
	Axis      [3]mgl32.Vec3

	// NonNormalizedAxes means Axis carries a scale.
	NonNormalizedAxes bool

	Frame, OldFrame int
	Backlerp        float32

	ShaderRGBA     device.Color
	ShaderTexCoord [2]float32
	ShaderTime     float32

	Radius   float32
	Rotation float32

	// ShadowPlane is the ground height for projected shadows.
	ShadowPlane float32

	NeedDlights   bool
	AmbientLight  mgl32.Vec3
	DirectedLight mgl32.Vec3
	LightDir      mgl32.Vec3
}

type DLight struct {
	Origin   mgl32.Vec3
	Color    mgl32.Vec3
	Radius   float32
	Additive bool

	// Transformed is Origin in the current entity's local space.
	Transformed mgl32.Vec3
}

// Fog is one fog volume. Index 0 of World.Fogs is never referenced by a
// surface; fog number 0 means unfogged.
type Fog struct {
	ColorInt   uint32
	ColorBytes device.Color
	TCScale    float32

	HasSurface bool
	Surface    mgl32.Vec4
}

type World struct {
	Name string
	Fogs []Fog
}

// WorldEntity returns the identity entity used for world surfaces.
func WorldEntity() Entity {
	return Entity{
		Axis:       [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		ShaderRGBA: device.Color{255, 255, 255, 255},
	}
}

// ViewerOrientation builds the world orientation for an eye at origin
// looking along axis[0].
func ViewerOrientation(origin mgl32.Vec3, axis [3]mgl32.Vec3) Orientation {
	var viewer xform.Matrix
	for i := 0; i < 3; i++ {
		viewer[0][i] = axis[i][0]
		viewer[1][i] = axis[i][1]
		viewer[2][i] = axis[i][2]
		viewer[3][i] = -origin.Dot(axis[i])
	}
	viewer[3][3] = 1

	return Orientation{
		Axis:        [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		ViewOrigin:  origin,
		ModelMatrix: xform.Mult(viewer, xform.Flip),
	}
}

// RotateForEntity returns the orientation of ent as seen from view.
func RotateForEntity(ent *Entity, view *ViewParms) Orientation {
	or := Orientation{
		Origin: ent.Origin,
		Axis:   ent.Axis,
	}

	var m xform.Matrix
	for i := 0; i < 3; i++ {
		m[i] = [4]float32{ent.Axis[i][0], ent.Axis[i][1], ent.Axis[i][2], 0}
	}
	m[3] = [4]float32{ent.Origin[0], ent.Origin[1], ent.Origin[2], 1}
	or.ModelMatrix = xform.Mult(m, view.World.ModelMatrix)

	delta := view.Or.Origin.Sub(or.Origin)

	// compensate for scale in the axes if necessary
	axisLength := float32(1)
	if ent.NonNormalizedAxes {
		if l := ent.Axis[0].Len(); l != 0 {
			axisLength = 1 / l
		}
	}
	for i := 0; i < 3; i++ {
		or.ViewOrigin[i] = delta.Dot(or.Axis[i]) * axisLength
	}
	return or
}

// TransformDLights moves every light origin into or's local space.
func TransformDLights(dlights []DLight, or *Orientation) {
	for i := range dlights {
		dl := &dlights[i]
		d := dl.Origin.Sub(or.Origin)
		dl.Transformed = mgl32.Vec3{d.Dot(or.Axis[0]), d.Dot(or.Axis[1]), d.Dot(or.Axis[2])}
	}
}
