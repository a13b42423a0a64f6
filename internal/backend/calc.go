package backend

import (
	"math"

	"q3backend/internal/device"
	"q3backend/internal/progcache"
	"q3backend/internal/scene"
	"q3backend/internal/shader"
	"q3backend/internal/waveform"

	"github.com/go-gl/mathgl/mgl32"
)

// specularLight is the fixed light position used by lightingSpecular.
var specularLight = mgl32.Vec3{-960, 1980, 96}

func (c *Context) evalWave(wf shader.WaveForm) float32 {
	return waveform.Eval(wf, c.tess.ShaderTime)
}

func toByte(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

// waveColor returns a grey level driven by wf, scaled by identityLight.
// Noise waves are not scaled.
func (c *Context) waveColor(wf shader.WaveForm) device.Color {
	var glow float32
	if wf.Func == shader.GFNoise {
		glow = wf.Base + waveform.Noise4D(0, 0, 0, (c.tess.ShaderTime+wf.Phase)*wf.Frequency)*wf.Amplitude
	} else {
		glow = c.evalWave(wf) * c.identityLight
	}
	g := uint8(255 * waveform.Clamp01(glow))
	return device.Color{g, g, g, 255}
}

func (c *Context) waveAlpha(wf shader.WaveForm) uint8 {
	return uint8(255 * waveform.EvalClamped(wf, c.tess.ShaderTime))
}

// calcSpecularAlpha writes a specular highlight into the alpha channel.
func (c *Context) calcSpecularAlpha() {
	t := c.tess
	viewOrigin := c.or.ViewOrigin
	for i := 0; i < t.NumVertexes; i++ {
		v := &t.Verts[i]
		xyz := mgl32.Vec3(v.XYZ)
		normal := mgl32.Vec3(v.Normal)

		lightDir, _ := normalize(specularLight.Sub(xyz))
		d := normal.Dot(lightDir)
		reflected := normal.Mul(2 * d).Sub(lightDir)

		viewer := viewOrigin.Sub(xyz)
		l := reflected.Dot(viewer)
		if vl := viewer.Len(); vl > 0 {
			l /= vl
		}

		if l < 0 {
			c.colors[i][3] = 0
			continue
		}
		l *= l
		l *= l
		c.colors[i][3] = toByte(l * 255)
	}
}

// calcPortalAlpha fades by distance from the view over the shader's
// portal range.
func (c *Context) calcPortalAlpha() {
	t := c.tess
	rng := t.Shader.PortalRange
	origin := c.viewParms.Or.Origin
	for i := 0; i < t.NumVertexes; i++ {
		l := mgl32.Vec3(t.Verts[i].XYZ).Sub(origin).Len()
		if rng != 0 {
			l /= rng
		}
		switch {
		case l < 0:
			c.colors[i][3] = 0
		case l > 1 || rng == 0:
			c.colors[i][3] = 0xff
		default:
			c.colors[i][3] = uint8(l * 0xff)
		}
	}
}

// calcDiffuseColor is the basic entity vertex lighting.
func (c *Context) calcDiffuseColor() {
	e := c.currentEntity
	t := c.tess
	for i := 0; i < t.NumVertexes; i++ {
		incoming := mgl32.Vec3(t.Verts[i].Normal).Dot(e.LightDir)
		out := &c.colors[i]
		if incoming <= 0 {
			out[0] = toByte(e.AmbientLight[0])
			out[1] = toByte(e.AmbientLight[1])
			out[2] = toByte(e.AmbientLight[2])
		} else {
			for j := 0; j < 3; j++ {
				out[j] = toByte(e.AmbientLight[j] + incoming*e.DirectedLight[j])
			}
		}
		out[3] = 255
	}
}

// fogParms are the plane equations that map a vertex to fog texture space.
type fogParms struct {
	distance   mgl32.Vec4
	depth      mgl32.Vec4
	eyeT       float32
	eyeOutside bool
}

// currentFog returns the fog volume of the batch, nil if it has none or
// the world carries no such fog.
func (c *Context) currentFog() *scene.Fog {
	n := c.tess.FogNum
	if n == 0 || c.world == nil || n >= len(c.world.Fogs) {
		return nil
	}
	return &c.world.Fogs[n]
}

// calcFogParms derives fog planes for fog in the current orientation.
func (c *Context) calcFogParms(fog *scene.Fog) fogParms {
	var p fogParms
	or := &c.or
	view := &c.viewParms.Or

	// all fogging distance is based on world Z units
	local := or.Origin.Sub(view.Origin)
	mm := &or.ModelMatrix
	p.distance = mgl32.Vec4{-mm[0][2], -mm[1][2], -mm[2][2], local.Dot(view.Axis[0])}
	p.distance = p.distance.Mul(fog.TCScale)

	if fog.HasSurface {
		surf := fog.Surface.Vec3()
		p.depth = mgl32.Vec4{
			surf.Dot(or.Axis[0]),
			surf.Dot(or.Axis[1]),
			surf.Dot(or.Axis[2]),
			-fog.Surface[3] + or.Origin.Dot(surf),
		}
		p.eyeT = or.ViewOrigin.Dot(p.depth.Vec3()) + p.depth[3]
	} else {
		// non-surface fog always has the eye inside
		p.eyeT = 1
	}

	// needed for clipping distance even for constant fog
	p.eyeOutside = p.eyeT < 0

	p.distance[3] += 1.0 / 512
	return p
}

// fogTexCoord maps v into the fog image. t selects the clip row: 1/32 is
// unfogged, 31/32 fully inside.
func (p *fogParms) fogTexCoord(v mgl32.Vec3) (s, t float32) {
	s = v.Dot(p.distance.Vec3()) + p.distance[3]
	t = v.Dot(p.depth.Vec3()) + p.depth[3]

	// partially clipped fogs use the T axis
	if p.eyeOutside {
		if t < 1 {
			t = 1.0 / 32
		} else {
			// cut the distance at the fog plane
			t = 1.0/32 + 30.0/32*t/(t-p.eyeT)
		}
	} else {
		if t < 0 {
			t = 1.0 / 32
		} else {
			t = 31.0 / 32
		}
	}
	return s, t
}

// modulateByFog scales the selected channels of the stage colours by how
// clear of fog each vertex is.
func (c *Context) modulateByFog(rgb, alpha bool) {
	fog := c.currentFog()
	if fog == nil {
		return
	}
	p := c.calcFogParms(fog)
	t := c.tess
	for i := 0; i < t.NumVertexes; i++ {
		s, tc := p.fogTexCoord(t.Verts[i].XYZ)
		f := 1 - waveform.FogFactor(s, tc)
		col := &c.colors[i]
		if rgb {
			col[0] = uint8(float32(col[0]) * f)
			col[1] = uint8(float32(col[1]) * f)
			col[2] = uint8(float32(col[2]) * f)
		}
		if alpha {
			col[3] = uint8(float32(col[3]) * f)
		}
	}
}

// setupTCGenFog uploads the fog planes for the fog texgen.
func (c *Context) setupTCGenFog() {
	fog := c.currentFog()
	if fog == nil {
		return
	}
	p := c.calcFogParms(fog)
	var outside float32
	if p.eyeOutside {
		outside = 1
	}
	c.dev.SetPixelShaderConstants(progcache.PSRegFogDistance, p.distance[:])
	c.dev.SetPixelShaderConstants(progcache.PSRegFogDepth, p.depth[:])
	c.dev.SetPixelShaderConstants(progcache.PSRegFogEyeT, []float32{p.eyeT, 0, 0, 0})
	c.dev.SetPixelShaderConstants(progcache.PSRegFogEyeOutside, []float32{outside, 0, 0, 0})
}

// texTransform is a 2x2 texture matrix plus translation. The matrix is
// uploaded as m00, m01, m10, m11 in one register.
type texTransform struct {
	matrix    [2][2]float32
	translate [2]float32
}

func (c *Context) setupTCModTransform(slot int, tm texTransform) {
	m := tm.matrix
	c.dev.SetPixelShaderConstants(progcache.PSRegTModMatrix0+slot, []float32{m[0][0], m[0][1], m[1][0], m[1][1]})
	c.dev.SetPixelShaderConstants(progcache.PSRegTranslate0+slot, []float32{tm.translate[0], tm.translate[1], 0, 0})
}

// scrollTransform keeps only the fractional part of the offset.
func scrollTransform(scroll [2]float32, time float32) texTransform {
	s := scroll[0] * time
	t := scroll[1] * time
	return texTransform{
		matrix: [2][2]float32{{1, 0}, {0, 1}},
		translate: [2]float32{
			s - float32(math.Floor(float64(s))),
			t - float32(math.Floor(float64(t))),
		},
	}
}

func scaleTransform(scale [2]float32) texTransform {
	return texTransform{matrix: [2][2]float32{{scale[0], 0}, {0, scale[1]}}}
}

// rotateTransform rotates about the texture centre at speed degrees per
// second.
func rotateTransform(speed, time float32) texTransform {
	degs := -speed * time
	index := int(degs * (waveform.TableSize / 360.0))

	sinValue := waveform.SinTable[index&waveform.TableMask]
	cosValue := waveform.SinTable[(index+waveform.TableSize/4)&waveform.TableMask]

	return texTransform{
		matrix: [2][2]float32{{cosValue, sinValue}, {-sinValue, cosValue}},
		translate: [2]float32{
			0.5 - 0.5*cosValue + 0.5*sinValue,
			0.5 - 0.5*sinValue - 0.5*cosValue,
		},
	}
}

// stretchTransform scales about the texture centre by 1/wave.
func stretchTransform(wave float32) texTransform {
	p := 1 / wave
	return texTransform{
		matrix:    [2][2]float32{{p, 0}, {0, p}},
		translate: [2]float32{0.5 - 0.5*p, 0.5 - 0.5*p},
	}
}
