package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSortRoundTrip(t *testing.T) {
	cases := []struct {
		shader, entity, fog int
		dlight              bool
	}{
		{0, 0, 0, false},
		{1, EntityNumWorld, 0, false},
		{MaxShaders - 1, 5, MaxFogs - 1, true},
		{42, 17, 3, true},
	}
	for _, c := range cases {
		s := MakeSort(c.shader, c.entity, c.fog, c.dlight)
		sh, ent, fog, dl := DecomposeSort(s)
		if sh != c.shader || ent != c.entity || fog != c.fog || dl != c.dlight {
			t.Errorf("DecomposeSort(MakeSort(%v)): got %d %d %d %v", c, sh, ent, fog, dl)
		}
	}
}

func TestSortOrdersByShaderFirst(t *testing.T) {
	a := MakeSort(1, MaxEntities-1, MaxFogs-1, true)
	b := MakeSort(2, 0, 0, false)
	if a >= b {
		t.Fatalf("got %#x >= %#x, want shader index to dominate", a, b)
	}
}

func TestSurfaceKinds(t *testing.T) {
	cases := []struct {
		s    Surface
		want SurfaceKind
	}{
		{&SurfaceFace{}, SFFace},
		{&SurfaceGrid{}, SFGrid},
		{&SurfaceTriangles{}, SFTriangles},
		{&SurfacePoly{}, SFPoly},
		{&SurfaceMD3{}, SFMD3},
		{&SurfaceEntity{}, SFEntity},
		{&SurfaceFlare{}, SFFlare},
		{&SurfaceDisplayList{}, SFDisplayList},
		{&SurfaceSkip{}, SFSkip},
		{&SurfaceBad{}, SFBad},
	}
	for _, c := range cases {
		if got := c.s.Kind(); got != c.want {
			t.Errorf("%T.Kind(): got %v, want %v", c.s, got, c.want)
		}
	}
	if got := SurfaceKind(99).String(); got != "unknown" {
		t.Errorf("String(99): got %q, want unknown", got)
	}
}

func near(a, b mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > 1e-4 {
			return false
		}
	}
	return true
}

func TestViewerOrientationMapsForwardToDepth(t *testing.T) {
	origin := mgl32.Vec3{10, 20, 30}
	axis := [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	or := ViewerOrientation(origin, axis)

	// A point ahead of the eye lands on -z in eye space after the flip.
	p := or.ModelMatrix.Transform(mgl32.Vec3{110, 20, 30})
	if !near(p, mgl32.Vec3{0, 0, -100}) {
		t.Fatalf("got %v, want (0 0 -100)", p)
	}
	// Left of the eye is -x.
	p = or.ModelMatrix.Transform(mgl32.Vec3{10, 25, 30})
	if !near(p, mgl32.Vec3{-5, 0, 0}) {
		t.Fatalf("got %v, want (-5 0 0)", p)
	}
	if or.ViewOrigin != origin {
		t.Errorf("ViewOrigin: got %v, want %v", or.ViewOrigin, origin)
	}
}

func TestRotateForEntity(t *testing.T) {
	view := &ViewParms{}
	view.Or.Origin = mgl32.Vec3{0, 0, 0}
	view.World = ViewerOrientation(view.Or.Origin, [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})

	ent := WorldEntity()
	ent.Origin = mgl32.Vec3{100, 0, 0}
	// yaw 90: forward is +y
	ent.Axis = [3]mgl32.Vec3{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}}

	or := RotateForEntity(&ent, view)
	if !near(or.ViewOrigin, mgl32.Vec3{0, 100, 0}) {
		t.Errorf("ViewOrigin: got %v, want (0 100 0)", or.ViewOrigin)
	}

	// Local forward (1,0,0) is world (100,1,0).
	p := or.ModelMatrix.Transform(mgl32.Vec3{1, 0, 0})
	want := view.World.ModelMatrix.Transform(mgl32.Vec3{100, 1, 0})
	if !near(p, want) {
		t.Errorf("ModelMatrix: got %v, want %v", p, want)
	}
}

func TestRotateForEntityNonNormalized(t *testing.T) {
	view := &ViewParms{World: ViewerOrientation(mgl32.Vec3{}, [3]mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})}
	ent := WorldEntity()
	ent.Origin = mgl32.Vec3{-10, 0, 0}
	ent.Axis = [3]mgl32.Vec3{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	ent.NonNormalizedAxes = true

	or := RotateForEntity(&ent, view)
	if !near(or.ViewOrigin, mgl32.Vec3{10, 0, 0}) {
		t.Fatalf("got %v, want (10 0 0)", or.ViewOrigin)
	}
}

func TestTransformDLights(t *testing.T) {
	or := Orientation{
		Origin: mgl32.Vec3{0, 0, 10},
		Axis:   [3]mgl32.Vec3{{0, 1, 0}, {-1, 0, 0}, {0, 0, 1}},
	}
	dl := []DLight{{Origin: mgl32.Vec3{0, 5, 10}}}
	TransformDLights(dl, &or)
	if !near(dl[0].Transformed, mgl32.Vec3{5, 0, 0}) {
		t.Fatalf("got %v, want (5 0 0)", dl[0].Transformed)
	}
	if dl[0].Origin != (mgl32.Vec3{0, 5, 10}) {
		t.Errorf("Origin modified: %v", dl[0].Origin)
	}
}
