package backend

import (
	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/profiling"
	"q3backend/internal/progcache"
	"q3backend/internal/scene"
	"q3backend/internal/shader"
	"q3backend/internal/xform"

	"github.com/go-gl/mathgl/mgl32"
)

// Depth range used for RF_DEPTHHACK entities, so view weapons don't poke
// into walls.
const depthHackMaxZ = 0.3

// setGammaBrightness uploads the output curve every program applies.
func (c *Context) setGammaBrightness() {
	g, b := config.GetGamma(), config.GetBrightness()
	c.dev.SetPixelShaderConstants(progcache.PSRegGamma, []float32{g, g, g, g})
	c.dev.SetPixelShaderConstants(progcache.PSRegBrightness, []float32{b, b, b, b})
}

// applyViewport is the only place the device viewport changes, so the
// inverse render target size always matches it.
func (c *Context) applyViewport(vp device.Viewport) {
	c.dev.SetVertexShaderConstants(progcache.VSRegInverseRT, []float32{-1 / float32(c.width), 1 / float32(c.height), 0, 0})
	c.dev.SetViewport(vp)
}

func (c *Context) setViewport(minZ, maxZ float32) {
	vp := &c.viewParms
	c.applyViewport(device.Viewport{
		X:      vp.ViewportX,
		Y:      vp.ViewportY,
		Width:  vp.ViewportWidth,
		Height: vp.ViewportHeight,
		MinZ:   minZ,
		MaxZ:   maxZ,
	})
}

func (c *Context) fullView() bool {
	vp := &c.viewParms
	return vp.ViewportX == 0 && vp.ViewportWidth == c.width &&
		vp.ViewportY == 0 && vp.ViewportHeight == c.height
}

func (c *Context) viewRect() *device.Rect {
	if c.fullView() {
		return nil
	}
	vp := &c.viewParms
	return &device.Rect{
		X1: vp.ViewportX,
		Y1: vp.ViewportY,
		X2: vp.ViewportX + vp.ViewportWidth,
		Y2: vp.ViewportY + vp.ViewportHeight,
	}
}

// BeginDrawingView prepares the device for the surfaces of the current
// view. Mirrors and portals have already been drawn.
func (c *Context) BeginDrawingView() {
	c.setGammaBrightness()

	// sync with the device if needed
	switch finish := config.GetFinish(); {
	case finish == 1 && !c.finishCalled:
		c.dev.Finish()
		c.finishCalled = true
	case finish == 0:
		c.finishCalled = true
	}

	// the 2D projection needs setting again before the next pic
	c.projection2D = false

	c.setViewport(0, 1)

	// colour is cleared once per frame, not per view
	c.dev.Clear(device.ClearZBuffer|device.ClearStencil, c.viewRect(), device.Color{}, 1, 0)

	if c.refdef.RDFlags&scene.RDFHyperspace != 0 {
		g := uint8(c.refdef.Time & 255)
		c.dev.Clear(device.ClearTarget, c.viewRect(), device.Color{g, g, g, 255}, 1, 0)
		c.isHyperspace = true
		return
	}
	c.isHyperspace = false

	c.state.ResetCull()

	// a sun is only drawn if there was sky in this view
	c.skyRenderedThisView = false

	// clip to the plane of the portal
	if c.viewParms.IsPortal {
		or := &c.viewParms.Or
		n := c.viewParms.PortalPlane.Normal
		eye := mgl32.Vec4{
			or.Axis[0].Dot(n),
			or.Axis[1].Dot(n),
			or.Axis[2].Dot(n),
			n.Dot(or.Origin) - c.viewParms.PortalPlane.Dist,
		}
		plane := xform.Flip.Transform4(eye)
		c.viewParms.Projection = xform.ObliqueNearPlane(c.viewParms.Projection, plane)
	}

	c.xf.SetProjection(c.viewParms.Projection)
}

// RenderDrawSurfList batches and draws a sorted surface list for the
// current view.
func (c *Context) RenderDrawSurfList(surfs []scene.DrawSurf) {
	defer profiling.Track("backend.renderDrawSurfList")()

	// entity shader time offsets are relative to this
	originalTime := c.refdef.FloatTime

	c.BeginDrawingView()

	var (
		oldShader     *shader.Shader
		oldFogNum     = -1
		oldEntityNum  = -1
		oldDlighted   = false
		oldDepthRange = false
		depthRange    = false
		oldSort       = ^uint32(0)
	)
	c.currentEntity = &c.worldEntity

	profiling.Count("backend.surfaces", len(surfs))

	for i := range surfs {
		ds := &surfs[i]
		if ds.Sort == oldSort {
			// fast path, same as previous sort
			c.tessellate(ds.Surface)
			continue
		}
		oldSort = ds.Sort

		shaderIndex, entityNum, fogNum, dlighted := scene.DecomposeSort(ds.Sort)
		sh := c.shaderByIndex(shaderIndex)

		// entityMergable shaders batch surfaces from separate entities,
		// like smoke and blood puff sprites
		if sh != oldShader || fogNum != oldFogNum || dlighted != oldDlighted ||
			(entityNum != oldEntityNum && !sh.EntityMergable) {
			if oldShader != nil {
				c.EndSurface()
			}
			c.BeginSurface(sh, fogNum)
			oldShader = sh
			oldFogNum = fogNum
			oldDlighted = dlighted
		}

		// change the modelview matrix if needed
		if entityNum != oldEntityNum {
			depthRange = false

			if entityNum != scene.EntityNumWorld && entityNum < len(c.refdef.Entities) {
				c.currentEntity = &c.refdef.Entities[entityNum]
				c.refdef.FloatTime = originalTime - c.currentEntity.ShaderTime
				// image animations would start from the wrong frame otherwise
				c.tess.ShaderTime = c.refdef.FloatTime - c.tess.Shader.TimeOffset

				c.or = scene.RotateForEntity(c.currentEntity, &c.viewParms)

				if c.currentEntity.NeedDlights {
					scene.TransformDLights(c.refdef.DLights, &c.or)
				}

				if c.currentEntity.RenderFX&scene.RFDepthHack != 0 {
					depthRange = true
				}
			} else {
				if entityNum != scene.EntityNumWorld {
					logging.Logger().Warn("draw surface references missing entity", "entity", entityNum)
				}
				c.currentEntity = &c.worldEntity
				c.refdef.FloatTime = originalTime
				c.or = c.viewParms.World

				// world animations like water would continue with the wrong frame otherwise
				c.tess.ShaderTime = c.refdef.FloatTime - c.tess.Shader.TimeOffset
				scene.TransformDLights(c.refdef.DLights, &c.or)
			}

			c.xf.SetModelview(c.or.ModelMatrix)

			if oldDepthRange != depthRange {
				if depthRange {
					c.setViewport(0, depthHackMaxZ)
				} else {
					c.setViewport(0, 1)
				}
				oldDepthRange = depthRange
			}

			oldEntityNum = entityNum
		}

		c.tessellate(ds.Surface)
	}

	c.refdef.FloatTime = originalTime

	// draw the contents of the last shader batch
	if oldShader != nil {
		c.EndSurface()
	}

	// go back to the world modelview matrix
	c.xf.SetModelview(c.viewParms.World.ModelMatrix)

	if depthRange {
		c.setViewport(0, 1)
	}
}

// shaderByIndex resolves a sort key's shader index against the list the
// draw command carried.
func (c *Context) shaderByIndex(i int) *shader.Shader {
	if i >= 0 && i < len(c.shaders) && c.shaders[i] != nil {
		return c.shaders[i]
	}
	logging.Logger().Warn("draw surface references unknown shader", "index", i, "shaders", len(c.shaders))
	return c.defaultShader
}

// SetGL2D switches to pixel coordinates for pics and cinematics.
func (c *Context) SetGL2D() {
	c.projection2D = true

	c.applyViewport(device.Viewport{Width: c.width, Height: c.height})

	ortho := xform.Identity().Ortho(0, float32(c.width), float32(c.height), 0, -1, 1)
	c.xf.SetProjection(ortho)
	c.xf.SetModelview(xform.Identity())

	c.state.SetState(shader.DepthTestDisable | shader.SrcBlendSrcAlpha | shader.DstBlendOneMinusSrcAlpha)
	c.state.SetCull(shader.CullTwoSided, false)

	// time for 2D shaders
	c.refdef.Time = c.now()
	c.refdef.FloatTime = float32(c.refdef.Time) * 0.001
}

// stretchPic appends one screen rectangle to the 2D batch.
func (c *Context) stretchPic(cmd *StretchPicCmd) {
	t := c.tess
	// a batch left over from a view carries its fog and entity, so the
	// first pic always starts over even when the shader matches
	restart := cmd.Shader != t.Shader || c.currentEntity != &c.entity2D
	if restart && t.NumIndexes != 0 {
		c.EndSurface()
	}

	if !c.projection2D {
		c.SetGL2D()
	}

	if restart {
		c.currentEntity = &c.entity2D
		c.BeginSurface(cmd.Shader, 0)
	}

	c.CheckOverflow(4, 6)
	nv, ni := t.NumVertexes, t.NumIndexes
	t.NumVertexes += 4
	t.NumIndexes += 6

	base := uint16(nv)
	copy(t.Indexes[ni:], []uint16{base + 3, base, base + 2, base + 2, base, base + 1})

	for i := 0; i < 4; i++ {
		t.Colors[nv+i] = c.color2D
	}

	x, y, w, h := cmd.X, cmd.Y, cmd.W, cmd.H
	t.Verts[nv] = device.StaticVertex{XYZ: [3]float32{x, y, 0}, ST: [2]float32{cmd.S1, cmd.T1}}
	t.Verts[nv+1] = device.StaticVertex{XYZ: [3]float32{x + w, y, 0}, ST: [2]float32{cmd.S2, cmd.T1}}
	t.Verts[nv+2] = device.StaticVertex{XYZ: [3]float32{x + w, y + h, 0}, ST: [2]float32{cmd.S2, cmd.T2}}
	t.Verts[nv+3] = device.StaticVertex{XYZ: [3]float32{x, y + h, 0}, ST: [2]float32{cmd.S1, cmd.T2}}
}

// setColor sets the 2D modulate colour from normalized floats.
func (c *Context) setColor(rgba [4]float32) {
	for i, v := range rgba {
		c.color2D[i] = uint8(mgl32.Clamp(v, 0, 1) * 255)
	}
}
