package backend

import (
	"math"

	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/shader"
	"q3backend/internal/waveform"

	"github.com/go-gl/mathgl/mgl32"
)

// deformGeometry applies the shader's vertex deforms to the batch.
func (c *Context) deformGeometry() {
	for i := range c.tess.Shader.Deforms {
		ds := &c.tess.Shader.Deforms[i]

		switch ds.Type {
		case shader.DeformNone:
		case shader.DeformNormals:
			c.deformNormals(ds)
		case shader.DeformWave:
			c.deformVertexes(ds)
		case shader.DeformBulge:
			c.deformBulge(ds)
		case shader.DeformMove:
			c.deformMove(ds)
		case shader.DeformProjectionShadow:
			c.deformProjectionShadow()
		case shader.DeformAutosprite:
			c.autospriteDeform()
		case shader.DeformAutosprite2:
			c.autosprite2Deform()
		case shader.DeformText0, shader.DeformText1, shader.DeformText2, shader.DeformText3,
			shader.DeformText4, shader.DeformText5, shader.DeformText6, shader.DeformText7:
			c.deformText(c.refdef.Text[ds.Type-shader.DeformText0])
		}
	}
}

// deformVertexes pushes vertexes along their normals. A non-zero spread
// phase-shifts the wave by position.
func (c *Context) deformVertexes(ds *shader.Deform) {
	t := c.tess
	wf := ds.DeformationWave

	if wf.Frequency == 0 {
		scale := c.evalWave(wf)
		for i := 0; i < t.NumVertexes; i++ {
			v := &t.Verts[i]
			v.XYZ = mgl32.Vec3(v.XYZ).Add(mgl32.Vec3(v.Normal).Mul(scale))
		}
		return
	}

	table := waveform.Table(wf.Func)
	if table == nil {
		return
	}
	for i := 0; i < t.NumVertexes; i++ {
		v := &t.Verts[i]
		off := (v.XYZ[0] + v.XYZ[1] + v.XYZ[2]) * ds.DeformationSpread
		scale := waveform.Lookup(table, wf.Base, wf.Amplitude, wf.Phase+off, wf.Frequency, t.ShaderTime)
		v.XYZ = mgl32.Vec3(v.XYZ).Add(mgl32.Vec3(v.Normal).Mul(scale))
	}
}

// deformNormals wiggles normals with noise for wavy environment maps.
func (c *Context) deformNormals(ds *shader.Deform) {
	t := c.tess
	wf := ds.DeformationWave
	now := t.ShaderTime * wf.Frequency

	for i := 0; i < t.NumVertexes; i++ {
		v := &t.Verts[i]
		x, y, z := v.XYZ[0]*0.98, v.XYZ[1]*0.98, v.XYZ[2]*0.98

		v.Normal[0] += wf.Amplitude * waveform.Noise4D(x, y, z, now)
		v.Normal[1] += wf.Amplitude * waveform.Noise4D(100+x, y, z, now)
		v.Normal[2] += wf.Amplitude * waveform.Noise4D(200+x, y, z, now)

		v.Normal, _ = normalize(v.Normal)
	}
}

// deformBulge ripples vertexes along their normals by texture s. It runs
// on refdef time rather than shader time.
func (c *Context) deformBulge(ds *shader.Deform) {
	t := c.tess
	now := float32(c.refdef.Time) * ds.BulgeSpeed * 0.001

	for i := 0; i < t.NumVertexes; i++ {
		v := &t.Verts[i]
		off := int(float32(waveform.TableSize/(math.Pi*2)) * (v.ST[0]*ds.BulgeWidth + now))
		scale := waveform.SinTable[off&waveform.TableMask] * ds.BulgeHeight
		v.XYZ = mgl32.Vec3(v.XYZ).Add(mgl32.Vec3(v.Normal).Mul(scale))
	}
}

// deformMove translates the whole batch along the move vector.
func (c *Context) deformMove(ds *shader.Deform) {
	t := c.tess
	table := waveform.Table(ds.DeformationWave.Func)
	if table == nil {
		return
	}
	wf := ds.DeformationWave
	scale := waveform.Lookup(table, wf.Base, wf.Amplitude, wf.Phase, wf.Frequency, t.ShaderTime)
	offset := ds.MoveVector.Mul(scale)

	for i := 0; i < t.NumVertexes; i++ {
		t.Verts[i].XYZ = mgl32.Vec3(t.Verts[i].XYZ).Add(offset)
	}
}

// deformProjectionShadow flattens the batch onto the entity's shadow
// plane along its light direction.
func (c *Context) deformProjectionShadow() {
	t := c.tess
	e := c.currentEntity
	or := &c.or

	ground := mgl32.Vec3{or.Axis[0][2], or.Axis[1][2], or.Axis[2][2]}
	groundDist := or.Origin[2] - e.ShadowPlane

	lightDir := e.LightDir
	d := lightDir.Dot(ground)
	// don't let the shadows get too long or go negative
	if d < 0.5 {
		lightDir = lightDir.Add(ground.Mul(0.5 - d))
		d = lightDir.Dot(ground)
	}
	light := lightDir.Mul(1 / d)

	for i := 0; i < t.NumVertexes; i++ {
		v := &t.Verts[i]
		xyz := mgl32.Vec3(v.XYZ)
		h := xyz.Dot(ground) + groundDist
		v.XYZ = xyz.Sub(light.Mul(h))
	}
}

// globalVectorToLocal rotates a world direction into the current
// orientation.
func (c *Context) globalVectorToLocal(in mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{in.Dot(c.or.Axis[0]), in.Dot(c.or.Axis[1]), in.Dot(c.or.Axis[2])}
}

// viewAxis returns view axis i in the current entity's space.
func (c *Context) viewAxis(i int) mgl32.Vec3 {
	if c.currentEntity != &c.worldEntity {
		return c.globalVectorToLocal(c.viewParms.Or.Axis[i])
	}
	return c.viewParms.Or.Axis[i]
}

// autospriteDeform rebuilds each quad of the batch as a view facing sprite.
func (c *Context) autospriteDeform() {
	t := c.tess
	if t.NumVertexes&3 != 0 {
		logging.Logger().Warn("Autosprite shader had odd vertex count", "shader", t.Shader.Name)
	}
	if t.NumIndexes != (t.NumVertexes>>2)*6 {
		logging.Logger().Warn("Autosprite shader had odd index count", "shader", t.Shader.Name)
	}

	oldVerts := t.NumVertexes
	t.NumVertexes = 0
	t.NumIndexes = 0

	leftDir := c.viewAxis(1)
	upDir := c.viewAxis(2)

	// quads are read ahead of where they are rewritten, so work on a copy
	var quad [4]device.StaticVertex
	for i := 0; i+3 < oldVerts; i += 4 {
		copy(quad[:], t.Verts[i:i+4])
		color := t.Colors[i]

		mid := mgl32.Vec3(quad[0].XYZ).
			Add(quad[1].XYZ).
			Add(quad[2].XYZ).
			Add(quad[3].XYZ).
			Mul(0.25)

		radius := mgl32.Vec3(quad[0].XYZ).Sub(mid).Len() * 0.707

		left := leftDir.Mul(radius)
		up := upDir.Mul(radius)
		if c.viewParms.IsMirror {
			left = left.Mul(-1)
		}

		// compensate for scale in the axes if necessary
		if c.currentEntity.NonNormalizedAxes {
			var axisLength float32
			if l := c.currentEntity.Axis[0].Len(); l != 0 {
				axisLength = 1 / l
			}
			left = left.Mul(axisLength)
			up = up.Mul(axisLength)
		}

		c.AddQuadStamp(mid, left, up, color)
	}
}

var edgeVerts = [6][2]int{
	{0, 1},
	{0, 2},
	{0, 3},
	{1, 2},
	{1, 3},
	{2, 3},
}

// autosprite2Deform pivots each rectangular quad around its long axis to
// face the view.
func (c *Context) autosprite2Deform() {
	t := c.tess
	if t.NumVertexes&3 != 0 {
		logging.Logger().Warn("Autosprite2 shader had odd vertex count", "shader", t.Shader.Name)
	}
	if t.NumIndexes != (t.NumVertexes>>2)*6 {
		logging.Logger().Warn("Autosprite2 shader had odd index count", "shader", t.Shader.Name)
	}

	forward := c.viewAxis(0)

	for i, indexes := 0, 0; i+3 < t.NumVertexes; i, indexes = i+4, indexes+6 {
		sv := t.Verts[i : i+4]

		// identify the two shortest edges
		nums := [2]int{}
		lengths := [2]float32{999999, 999999}
		for j, e := range edgeVerts {
			d := mgl32.Vec3(sv[e[0]].XYZ).Sub(sv[e[1]].XYZ)
			l := d.Dot(d)
			if l < lengths[0] {
				nums[1], lengths[1] = nums[0], lengths[0]
				nums[0], lengths[0] = j, l
			} else if l < lengths[1] {
				nums[1], lengths[1] = j, l
			}
		}

		var mid [2]mgl32.Vec3
		for j := 0; j < 2; j++ {
			e := edgeVerts[nums[j]]
			mid[j] = mgl32.Vec3(sv[e[0]].XYZ).Add(sv[e[1]].XYZ).Mul(0.5)
		}

		// cross the major axis with the view direction to get the minor axis
		major := mid[1].Sub(mid[0])
		minor, _ := normalize(major.Cross(forward))

		// re-project the points
		for j := 0; j < 2; j++ {
			e := edgeVerts[nums[j]]
			l := 0.5 * float32(math.Sqrt(float64(lengths[j])))

			// the edge's winding decides which way it is projected
			k := 0
			for ; k < 5; k++ {
				if indexes+k+1 >= t.NumIndexes {
					k = 5
					break
				}
				if int(t.Indexes[indexes+k]) == i+e[0] && int(t.Indexes[indexes+k+1]) == i+e[1] {
					break
				}
			}

			if k == 5 {
				sv[e[0]].XYZ = mid[j].Add(minor.Mul(l))
				sv[e[1]].XYZ = mid[j].Add(minor.Mul(-l))
			} else {
				sv[e[0]].XYZ = mid[j].Add(minor.Mul(-l))
				sv[e[1]].XYZ = mid[j].Add(minor.Mul(l))
			}
		}
	}
}

// deformText replaces the batch with one quad per character of text laid
// out across the original quad.
func (c *Context) deformText(text string) {
	t := c.tess
	if t.NumVertexes < 4 {
		return
	}

	height := mgl32.Vec3{0, 0, -1}
	width := mgl32.Vec3(t.Verts[0].Normal).Cross(height)

	// find the midpoint of the box
	var mid mgl32.Vec3
	bottom, top := float32(999999), float32(-999999)
	for i := 0; i < 4; i++ {
		xyz := mgl32.Vec3(t.Verts[i].XYZ)
		mid = mid.Add(xyz)
		if xyz[2] < bottom {
			bottom = xyz[2]
		}
		if xyz[2] > top {
			top = xyz[2]
		}
	}
	origin := mid.Mul(0.25)

	// determine the individual character size
	height = mgl32.Vec3{0, 0, (top - bottom) * 0.5}
	width = width.Mul(height[2] * -0.75)

	// determine the starting position
	origin = origin.Add(width.Mul(float32(len(text) - 1)))

	t.NumIndexes = 0
	t.NumVertexes = 0

	white := device.Color{255, 255, 255, 255}
	for i := 0; i < len(text); i++ {
		ch := int(text[i])
		if ch != ' ' {
			frow := float32(ch>>4) * 0.0625
			fcol := float32(ch&15) * 0.0625
			const size = 0.0625

			c.AddQuadStampExt(origin, width, height, white, fcol, frow, fcol+size, frow+size)
		}
		origin = origin.Add(width.Mul(-2))
	}
}
