package scene

import (
	"q3backend/internal/device"

	"github.com/go-gl/mathgl/mgl32"
)

// SurfaceKind selects the tessellation routine for a surface.
type SurfaceKind int

const (
	SFBad SurfaceKind = iota
	SFSkip
	SFFace
	SFGrid
	SFTriangles
	SFPoly
	SFMD3
	SFFlare
	SFEntity
	SFDisplayList

	NumSurfaceKinds
)

var surfaceKindNames = [...]string{
	SFBad:         "bad",
	SFSkip:        "skip",
	SFFace:        "face",
	SFGrid:        "grid",
	SFTriangles:   "triangles",
	SFPoly:        "poly",
	SFMD3:         "md3",
	SFFlare:       "flare",
	SFEntity:      "entity",
	SFDisplayList: "displaylist",
}

func (k SurfaceKind) String() string {
	if k < 0 || int(k) >= len(surfaceKindNames) {
		return "unknown"
	}
	return surfaceKindNames[k]
}

// Surface is any payload that can be tessellated.
type Surface interface {
	Kind() SurfaceKind
}

// DrawVert is a map vertex as stored in faces, grids and triangle soups.
type DrawVert struct {
	XYZ      mgl32.Vec3
	ST       [2]float32
	Lightmap [2]float32
	Normal   mgl32.Vec3
	Color    device.Color
}

// SurfaceFace is a planar BSP face.
type SurfaceFace struct {
	Plane      Plane
	DLightBits int
	Points     []DrawVert
	Indices    []int
}

// SurfaceGrid is a subdivided curved patch with per-row and per-column LOD
// errors.
type SurfaceGrid struct {
	DLightBits int

	LodOrigin mgl32.Vec3
	LodRadius float32

	Width, Height  int
	WidthLodError  []float32
	HeightLodError []float32
	Verts          []DrawVert
}

type SurfaceTriangles struct {
	DLightBits int
	Indexes    []int
	Verts      []DrawVert
}

type PolyVert struct {
	XYZ      mgl32.Vec3
	ST       [2]float32
	Modulate device.Color
}

// SurfacePoly is a convex polygon fanned from its first vertex.
type SurfacePoly struct {
	FogIndex int
	Verts    []PolyVert
}

// MD3XYZNormal is one compressed model vertex. Normal packs latitude in the
// high byte and longitude in the low byte.
type MD3XYZNormal struct {
	XYZ    [3]int16
	Normal int16
}

// MD3XYZScale converts compressed coordinates to world units.
const MD3XYZScale = 1.0 / 64

// SurfaceMD3 is one surface of an animated model. XYZNormals holds
// NumFrames*NumVerts entries, frame major.
type SurfaceMD3 struct {
	Name       string
	NumVerts   int
	NumFrames  int
	XYZNormals []MD3XYZNormal
	Triangles  []int
	ST         [][2]float32
}

// SurfaceEntity is a procedurally generated entity surface; the geometry
// comes from the current entity.
type SurfaceEntity struct{}

type SurfaceFlare struct {
	Origin mgl32.Vec3
	Normal mgl32.Vec3
	Color  mgl32.Vec3
}

type SurfaceDisplayList struct{}

type SurfaceSkip struct{}

type SurfaceBad struct{}

func (*SurfaceFace) Kind() SurfaceKind        { return SFFace }
func (*SurfaceGrid) Kind() SurfaceKind        { return SFGrid }
func (*SurfaceTriangles) Kind() SurfaceKind   { return SFTriangles }
func (*SurfacePoly) Kind() SurfaceKind        { return SFPoly }
func (*SurfaceMD3) Kind() SurfaceKind         { return SFMD3 }
func (*SurfaceEntity) Kind() SurfaceKind      { return SFEntity }
func (*SurfaceFlare) Kind() SurfaceKind       { return SFFlare }
func (*SurfaceDisplayList) Kind() SurfaceKind { return SFDisplayList }
func (*SurfaceSkip) Kind() SurfaceKind        { return SFSkip }
func (*SurfaceBad) Kind() SurfaceKind         { return SFBad }
