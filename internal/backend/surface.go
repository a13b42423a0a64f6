package backend

import (
	"math"

	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/profiling"
	"q3backend/internal/scene"
	"q3backend/internal/waveform"

	"github.com/go-gl/mathgl/mgl32"
)

// tessellate appends surf to the current batch.
func (c *Context) tessellate(surf scene.Surface) {
	profiling.Count("backend.surfaces."+surf.Kind().String(), 1)

	switch s := surf.(type) {
	case *scene.SurfaceFace:
		c.surfaceFace(s)
	case *scene.SurfaceGrid:
		c.surfaceGrid(s)
	case *scene.SurfaceTriangles:
		c.surfaceTriangles(s)
	case *scene.SurfacePoly:
		c.surfacePolychain(s)
	case *scene.SurfaceMD3:
		c.surfaceMesh(s)
	case *scene.SurfaceEntity:
		c.surfaceEntity()
	case *scene.SurfaceBad:
		logging.Logger().Warn("Bad surface tesselated")
	case *scene.SurfaceSkip, *scene.SurfaceFlare, *scene.SurfaceDisplayList:
	default:
		logging.Logger().Warn("unknown surface kind", "kind", surf.Kind())
	}
}

// AddQuadStampExt appends a quad centred on origin with the given half
// extents and texture rectangle.
func (c *Context) AddQuadStampExt(origin, left, up mgl32.Vec3, color device.Color, s1, t1, s2, t2 float32) {
	c.CheckOverflow(4, 6)

	t := c.tess
	ndx := t.NumVertexes
	n := uint16(ndx)

	t.Indexes[t.NumIndexes+0] = n
	t.Indexes[t.NumIndexes+1] = n + 1
	t.Indexes[t.NumIndexes+2] = n + 3
	t.Indexes[t.NumIndexes+3] = n + 3
	t.Indexes[t.NumIndexes+4] = n + 1
	t.Indexes[t.NumIndexes+5] = n + 2
	t.NumIndexes += 6

	v := t.Verts[ndx : ndx+4]
	v[0].XYZ = origin.Add(left).Add(up)
	v[1].XYZ = origin.Sub(left).Add(up)
	v[2].XYZ = origin.Sub(left).Sub(up)
	v[3].XYZ = origin.Add(left).Sub(up)

	// constant normal all the way around
	normal := c.viewParms.Or.Axis[0].Mul(-1)
	st := [4][2]float32{{s1, t1}, {s2, t1}, {s2, t2}, {s1, t2}}
	for i := range v {
		v[i].Normal = normal
		v[i].ST = st[i]
		v[i].LM = st[i]
		t.Colors[ndx+i] = color
	}

	t.NumVertexes += 4
}

// AddQuadStamp is AddQuadStampExt over the whole texture.
func (c *Context) AddQuadStamp(origin, left, up mgl32.Vec3, color device.Color) {
	c.AddQuadStampExt(origin, left, up, color, 0, 0, 1, 1)
}

func (c *Context) surfaceSprite() {
	e := c.currentEntity
	axis := c.viewParms.Or.Axis
	radius := e.Radius

	var left, up mgl32.Vec3
	if e.Rotation == 0 {
		left = axis[1].Mul(radius)
		up = axis[2].Mul(radius)
	} else {
		ang := float64(e.Rotation) * math.Pi / 180
		s := float32(math.Sin(ang))
		co := float32(math.Cos(ang))

		left = axis[1].Mul(co * radius).Add(axis[2].Mul(-s * radius))
		up = axis[2].Mul(co * radius).Add(axis[1].Mul(s * radius))
	}
	if c.viewParms.IsMirror {
		left = left.Mul(-1)
	}

	c.AddQuadStamp(e.Origin, left, up, e.ShaderRGBA)
}

// surfacePolychain fans a convex polygon from its first vertex. Polys
// carry no normal or lightmap coordinates; both are zeroed.
func (c *Context) surfacePolychain(p *scene.SurfacePoly) {
	n := len(p.Verts)
	if n < 3 {
		return
	}
	c.CheckOverflow(n, 3*(n-2))

	t := c.tess
	base := t.NumVertexes
	for i, pv := range p.Verts {
		t.Verts[base+i] = device.StaticVertex{XYZ: pv.XYZ, ST: pv.ST}
		t.Colors[base+i] = pv.Modulate
	}

	for i := 0; i < n-2; i++ {
		t.Indexes[t.NumIndexes+0] = uint16(base)
		t.Indexes[t.NumIndexes+1] = uint16(base + i + 1)
		t.Indexes[t.NumIndexes+2] = uint16(base + i + 2)
		t.NumIndexes += 3
	}

	t.NumVertexes += n
}

func (t *Tess) copyDrawVert(dst int, dv *scene.DrawVert) {
	t.Verts[dst] = device.StaticVertex{
		XYZ:    dv.XYZ,
		Normal: dv.Normal,
		ST:     dv.ST,
		LM:     dv.Lightmap,
	}
	t.Colors[dst] = dv.Color
}

func (c *Context) surfaceTriangles(srf *scene.SurfaceTriangles) {
	t := c.tess
	t.DLightBits |= srf.DLightBits

	c.CheckOverflow(len(srf.Verts), len(srf.Indexes))

	base := t.NumVertexes
	for i, ix := range srf.Indexes {
		t.Indexes[t.NumIndexes+i] = uint16(base + ix)
	}
	t.NumIndexes += len(srf.Indexes)

	for i := range srf.Verts {
		t.copyDrawVert(base+i, &srf.Verts[i])
	}
	t.NumVertexes += len(srf.Verts)
}

func (c *Context) surfaceFace(srf *scene.SurfaceFace) {
	c.CheckOverflow(len(srf.Points), len(srf.Indices))

	t := c.tess
	t.DLightBits |= srf.DLightBits

	base := t.NumVertexes
	for i, ix := range srf.Indices {
		t.Indexes[t.NumIndexes+i] = uint16(base + ix)
	}
	t.NumIndexes += len(srf.Indices)

	for i := range srf.Points {
		t.copyDrawVert(base+i, &srf.Points[i])
		t.Verts[base+i].Normal = srf.Plane.Normal
	}
	t.NumVertexes += len(srf.Points)
}

// lodErrorForVolume returns the error a grid may show at this distance.
// A negative lodcurveerror setting always yields full resolution.
func (c *Context) lodErrorForVolume(local mgl32.Vec3, radius float32) float32 {
	lodCurveError := config.GetLodCurveError()
	if lodCurveError < 0 {
		return math.MaxFloat32
	}

	or := &c.or
	world := or.Axis[0].Mul(local[0]).
		Add(or.Axis[1].Mul(local[1])).
		Add(or.Axis[2].Mul(local[2])).
		Add(or.Origin)

	d := world.Sub(c.viewParms.Or.Origin).Dot(c.viewParms.Or.Axis[0])
	if d < 0 {
		d = -d
	}
	d -= radius
	if d < 1 {
		d = 1
	}
	return lodCurveError / d
}

// lodTable returns the rows or columns kept for lodError: the first and
// last always, inner ones whose own error is within tolerance.
func lodTable(size int, errs []float32, lodError float32) []int {
	table := make([]int, 1, size)
	for i := 1; i < size-1; i++ {
		if i < len(errs) && errs[i] <= lodError {
			table = append(table, i)
		}
	}
	return append(table, size-1)
}

// surfaceGrid emits a curved patch at the resolution its distance allows,
// spilling into further batches when it does not fit.
func (c *Context) surfaceGrid(cv *scene.SurfaceGrid) {
	if cv.Width < 2 || cv.Height < 2 {
		return
	}

	t := c.tess
	t.DLightBits |= cv.DLightBits

	lodError := c.lodErrorForVolume(cv.LodOrigin, cv.LodRadius)
	widthTable := lodTable(cv.Width, cv.WidthLodError, lodError)
	heightTable := lodTable(cv.Height, cv.HeightLodError, lodError)
	lodWidth := len(widthTable)
	lodHeight := len(heightTable)

	used := 0
	for used < lodHeight-1 {
		// see how many rows of both verts and indexes fit
		var vrows, irows int
		for {
			vrows = (MaxVertexes - t.NumVertexes) / lodWidth
			irows = (MaxIndexes - t.NumIndexes) / (lodWidth * 6)
			if vrows >= 2 && irows >= 1 {
				break
			}
			c.EndSurface()
			c.BeginSurface(t.Shader, t.FogNum)
		}

		rows := irows
		if vrows < irows+1 {
			rows = vrows - 1
		}
		if used+rows > lodHeight {
			rows = lodHeight - used
		}

		base := t.NumVertexes
		out := base
		for i := 0; i < rows; i++ {
			row := heightTable[used+i] * cv.Width
			for _, col := range widthTable {
				t.copyDrawVert(out, &cv.Verts[row+col])
				out++
			}
		}

		// vertex order to be recognised as tristrips
		ni := t.NumIndexes
		for i := 0; i < rows-1; i++ {
			for j := 0; j < lodWidth-1; j++ {
				v1 := uint16(base + i*lodWidth + j + 1)
				v2 := v1 - 1
				v3 := v2 + uint16(lodWidth)
				v4 := v3 + 1

				t.Indexes[ni+0] = v2
				t.Indexes[ni+1] = v3
				t.Indexes[ni+2] = v1
				t.Indexes[ni+3] = v1
				t.Indexes[ni+4] = v3
				t.Indexes[ni+5] = v4
				ni += 6
			}
		}
		t.NumIndexes = ni
		t.NumVertexes += rows * lodWidth
		used += rows - 1
	}
}

// decodeNormal unpacks a latitude/longitude model normal.
func decodeNormal(packed int16) mgl32.Vec3 {
	n := uint16(packed)
	lat := int(n>>8&0xff) * (waveform.TableSize / 256)
	lng := int(n&0xff) * (waveform.TableSize / 256)

	sin := &waveform.SinTable
	return mgl32.Vec3{
		sin[(lat+waveform.TableSize/4)&waveform.TableMask] * sin[lng],
		sin[lat] * sin[lng],
		sin[(lng+waveform.TableSize/4)&waveform.TableMask],
	}
}

// lerpMeshVertexes writes the model's interpolated positions and normals
// at the tess cursor.
func (c *Context) lerpMeshVertexes(surf *scene.SurfaceMD3, backlerp float32) {
	e := c.currentEntity
	out := c.tess.Verts[c.tess.NumVertexes : c.tess.NumVertexes+surf.NumVerts]
	newFrame := surf.XYZNormals[e.Frame*surf.NumVerts:]
	newScale := float32(scene.MD3XYZScale) * (1 - backlerp)

	if backlerp == 0 {
		for i := range out {
			v := &newFrame[i]
			out[i].XYZ = [3]float32{
				float32(v.XYZ[0]) * newScale,
				float32(v.XYZ[1]) * newScale,
				float32(v.XYZ[2]) * newScale,
			}
			out[i].Normal = decodeNormal(v.Normal)
		}
		return
	}

	oldFrame := surf.XYZNormals[e.OldFrame*surf.NumVerts:]
	oldScale := float32(scene.MD3XYZScale) * backlerp
	for i := range out {
		nv, ov := &newFrame[i], &oldFrame[i]
		out[i].XYZ = [3]float32{
			float32(ov.XYZ[0])*oldScale + float32(nv.XYZ[0])*newScale,
			float32(ov.XYZ[1])*oldScale + float32(nv.XYZ[1])*newScale,
			float32(ov.XYZ[2])*oldScale + float32(nv.XYZ[2])*newScale,
		}
		n := decodeNormal(ov.Normal).Mul(backlerp).Add(decodeNormal(nv.Normal).Mul(1 - backlerp))
		out[i].Normal = n.Normalize()
	}
}

func (c *Context) surfaceMesh(surf *scene.SurfaceMD3) {
	e := c.currentEntity
	if surf.NumVerts == 0 {
		return
	}
	frames := surf.NumFrames
	if e.Frame < 0 || e.Frame >= frames || e.OldFrame < 0 || e.OldFrame >= frames {
		logging.Logger().Warn("model frame out of range", "surface", surf.Name,
			"frame", e.Frame, "oldframe", e.OldFrame, "frames", frames)
		return
	}

	var backlerp float32
	if e.OldFrame != e.Frame {
		backlerp = e.Backlerp
	}

	c.CheckOverflow(surf.NumVerts, len(surf.Triangles))
	c.lerpMeshVertexes(surf, backlerp)

	t := c.tess
	base := t.NumVertexes
	for i, ix := range surf.Triangles {
		t.Indexes[t.NumIndexes+i] = uint16(base + ix)
	}
	t.NumIndexes += len(surf.Triangles)

	for i := 0; i < surf.NumVerts; i++ {
		t.Verts[base+i].ST = surf.ST[i]
		t.Verts[base+i].LM = [2]float32{}
		t.Colors[base+i] = e.ShaderRGBA
	}
	t.NumVertexes += surf.NumVerts
}

// surfaceEntity dispatches on the current entity's procedural type.
func (c *Context) surfaceEntity() {
	switch c.currentEntity.Type {
	case scene.RTSprite:
		c.surfaceSprite()
	case scene.RTBeam:
		// beams were immediate mode only and have no batched form
	case scene.RTRailCore:
		c.surfaceRailCore()
	case scene.RTRailRings:
		c.surfaceRailRings()
	case scene.RTLightning:
		c.surfaceLightningBolt()
	default:
		// axis placeholder for entities without a procedural surface
	}
}

// doRailCore appends one flat strip from start to end, spanWidth to each
// side along up. The first vertex is dimmed to fade the muzzle end.
func (c *Context) doRailCore(start, end, up mgl32.Vec3, length, spanWidth float32) {
	c.CheckOverflow(4, 6)

	t := c.tess
	vb := t.NumVertexes
	rgba := c.currentEntity.ShaderRGBA
	tc := length / 256

	pos := [4]mgl32.Vec3{
		start.Add(up.Mul(spanWidth)),
		start.Add(up.Mul(-spanWidth)),
		end.Add(up.Mul(spanWidth)),
		end.Add(up.Mul(-spanWidth)),
	}
	st := [4][2]float32{{0, 0}, {0, 1}, {tc, 0}, {tc, 1}}
	for i := 0; i < 4; i++ {
		t.Verts[vb+i] = device.StaticVertex{XYZ: pos[i], ST: st[i]}
		t.Colors[vb+i] = rgba
	}
	t.Colors[vb] = device.Color{
		uint8(float32(rgba[0]) * 0.25),
		uint8(float32(rgba[1]) * 0.25),
		uint8(float32(rgba[2]) * 0.25),
		rgba[3],
	}
	t.NumVertexes += 4

	n := uint16(vb)
	t.Indexes[t.NumIndexes+0] = n
	t.Indexes[t.NumIndexes+1] = n + 1
	t.Indexes[t.NumIndexes+2] = n + 2
	t.Indexes[t.NumIndexes+3] = n + 2
	t.Indexes[t.NumIndexes+4] = n + 1
	t.Indexes[t.NumIndexes+5] = n + 3
	t.NumIndexes += 6
}

// doRailDiscs appends one ring quad per segment, each offset by dir.
func (c *Context) doRailDiscs(numSegs int, start, dir, right, up mgl32.Vec3) {
	if numSegs > 1 {
		numSegs--
	}
	if numSegs == 0 {
		return
	}

	spanWidth := float32(int(config.GetRailWidth()))
	const scale = 0.25

	var pos [4]mgl32.Vec3
	for i := range pos {
		a := float64(45+i*90) * math.Pi / 180
		co, s := float32(math.Cos(a)), float32(math.Sin(a))
		v := right.Mul(co).Add(up.Mul(s)).Mul(scale * spanWidth)
		pos[i] = start.Add(v)
		if numSegs > 1 {
			// offset by one segment for long shots
			pos[i] = pos[i].Add(dir)
		}
	}

	rgba := c.currentEntity.ShaderRGBA
	t := c.tess
	for i := 0; i < numSegs; i++ {
		c.CheckOverflow(4, 6)

		for j := 0; j < 4; j++ {
			var st [2]float32
			if j < 2 {
				st[0] = 1
			}
			if j != 0 && j != 3 {
				st[1] = 1
			}
			t.Verts[t.NumVertexes] = device.StaticVertex{XYZ: pos[j], ST: st}
			t.Colors[t.NumVertexes] = rgba
			t.NumVertexes++
			pos[j] = pos[j].Add(dir)
		}

		n := uint16(t.NumVertexes - 4)
		t.Indexes[t.NumIndexes+0] = n
		t.Indexes[t.NumIndexes+1] = n + 1
		t.Indexes[t.NumIndexes+2] = n + 3
		t.Indexes[t.NumIndexes+3] = n + 3
		t.Indexes[t.NumIndexes+4] = n + 1
		t.Indexes[t.NumIndexes+5] = n + 2
		t.NumIndexes += 6
	}
}

// normalize returns v normalised and its original length. A zero vector
// stays zero.
func normalize(v mgl32.Vec3) (mgl32.Vec3, float32) {
	l := v.Len()
	if l == 0 {
		return v, 0
	}
	return v.Mul(1 / l), l
}

// makeNormalVectors returns two vectors perpendicular to forward and to
// each other.
func makeNormalVectors(forward mgl32.Vec3) (right, up mgl32.Vec3) {
	// this rotate and negate guarantees a vector not colinear with the original
	right = mgl32.Vec3{forward[2], -forward[0], forward[1]}
	d := right.Dot(forward)
	right, _ = normalize(right.Sub(forward.Mul(d)))
	up = right.Cross(forward)
	return right, up
}

func (c *Context) surfaceRailRings() {
	e := c.currentEntity
	start, end := e.OldOrigin, e.Origin

	vec, l := normalize(end.Sub(start))
	right, up := makeNormalVectors(vec)

	segLen := config.GetRailSegmentLength()
	numSegs := int(float32(int(l)) / segLen)
	if numSegs <= 0 {
		numSegs = 1
	}

	c.doRailDiscs(numSegs, start, vec.Mul(segLen), right, up)
}

// sideVector returns the axis perpendicular to the beam as seen from the
// view origin.
func (c *Context) sideVector(start, end mgl32.Vec3) mgl32.Vec3 {
	v1, _ := normalize(start.Sub(c.viewParms.Or.Origin))
	v2, _ := normalize(end.Sub(c.viewParms.Or.Origin))
	right, _ := normalize(v1.Cross(v2))
	return right
}

func (c *Context) surfaceRailCore() {
	e := c.currentEntity
	start, end := e.OldOrigin, e.Origin

	_, l := normalize(end.Sub(start))
	right := c.sideVector(start, end)

	c.doRailCore(start, end, right, float32(int(l)), float32(int(config.GetRailCoreWidth())))
}

// surfaceLightningBolt draws four cores rotated 45 degrees apart around
// the bolt.
func (c *Context) surfaceLightningBolt() {
	e := c.currentEntity
	start, end := e.Origin, e.OldOrigin

	vec, l := normalize(end.Sub(start))
	right := c.sideVector(start, end)

	rot := mgl32.QuatRotate(mgl32.DegToRad(45), vec)
	for i := 0; i < 4; i++ {
		c.doRailCore(start, end, right, float32(int(l)), 8)
		right = rot.Rotate(right)
	}
}
