package backend

import (
	"q3backend/internal/device"
	"q3backend/internal/profiling"
	"q3backend/internal/progcache"
	"q3backend/internal/shader"
	"q3backend/internal/xform"
)

// The clouds are a unit cube around the eye. The vertex program projects
// them onto the cloud layer.
var skyCloudVertexes = [8][3]float32{
	{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
	{-1, 1, 1}, {-1, 1, -1}, {-1, -1, 1}, {-1, -1, -1},
}

var skyCloudIndexes = [36]uint16{
	1, 0, 2, 1, 2, 3,
	7, 6, 4, 7, 4, 5,
	5, 4, 0, 5, 0, 1,
	3, 2, 6, 3, 6, 7,
	0, 4, 6, 0, 6, 2,
	5, 1, 3, 5, 3, 7,
}

// skyTexOrder maps face draw order to the shader's box image order.
var skyTexOrder = [6]int{0, 2, 1, 3, 4, 5}

type skyPolyVert struct {
	xyz [3]float32
	st  [2]float32
}

var skyboxPolys = [6][4]skyPolyVert{
	{{[3]float32{1, 1, -1}, [2]float32{0, 1}}, {[3]float32{1, 1, 1}, [2]float32{0, 0}}, {[3]float32{1, -1, 1}, [2]float32{1, 0}}, {[3]float32{1, -1, -1}, [2]float32{1, 1}}},
	{{[3]float32{-1, -1, -1}, [2]float32{0, 1}}, {[3]float32{-1, -1, 1}, [2]float32{0, 0}}, {[3]float32{-1, 1, 1}, [2]float32{1, 0}}, {[3]float32{-1, 1, -1}, [2]float32{1, 1}}},
	{{[3]float32{-1, 1, -1}, [2]float32{0, 1}}, {[3]float32{-1, 1, 1}, [2]float32{0, 0}}, {[3]float32{1, 1, 1}, [2]float32{1, 0}}, {[3]float32{1, 1, -1}, [2]float32{1, 1}}},
	{{[3]float32{1, -1, -1}, [2]float32{0, 1}}, {[3]float32{1, -1, 1}, [2]float32{0, 0}}, {[3]float32{-1, -1, 1}, [2]float32{1, 0}}, {[3]float32{-1, -1, -1}, [2]float32{1, 1}}},
	{{[3]float32{1, 1, 1}, [2]float32{0, 1}}, {[3]float32{-1, 1, 1}, [2]float32{0, 0}}, {[3]float32{-1, -1, 1}, [2]float32{1, 0}}, {[3]float32{1, -1, 1}, [2]float32{1, 1}}},
	{{[3]float32{-1, 1, -1}, [2]float32{0, 1}}, {[3]float32{1, 1, -1}, [2]float32{0, 0}}, {[3]float32{1, -1, -1}, [2]float32{1, 0}}, {[3]float32{-1, -1, -1}, [2]float32{1, 1}}},
}

// drawSkyBox draws the six faces of a box around the eye. Missing faces
// are skipped; a box without a first face is not drawn at all.
func (c *Context) drawSkyBox(images [6]*shader.Image, stateBits uint32) {
	if images[0] == nil || images[0] == c.images.Default {
		return
	}

	c.state.SetState(stateBits)
	c.state.SetVertexFormat(c.progs.Skybox.Format)
	c.state.SetProgram(c.progs.Skybox)

	o := c.viewParms.Or.Origin
	il := c.identityLight
	c.dev.SetVertexShaderConstants(progcache.VSRegMoveOrigin, []float32{o[0], o[1], o[2], 0})
	c.dev.SetPixelShaderConstants(progcache.PSRegIdentityLight, []float32{il, il, il, 1})

	var verts [4]device.GenericVertex
	for i := 0; i < 6; i++ {
		img := images[skyTexOrder[i]]
		if img == nil {
			continue
		}

		for j, p := range skyboxPolys[i] {
			verts[j] = device.GenericVertex{XYZ: p.xyz, Color: device.Color{255, 255, 255, 255}, UV: p.st}
		}

		c.state.BindTexture(0, img)
		c.dev.DrawUP(device.TriangleFan, 2, verts[:])
		profiling.Count("backend.skyFaces", 1)
	}
}

// buildCloudData replaces the batch with the cloud cube and draws it with
// the sky shader's stages.
func (c *Context) buildCloudData() {
	o := c.viewParms.Or.Origin

	// position the sky texcoords matrix
	sky := xform.Identity().Translate(-o[0], -o[1], -o[2])
	m16 := sky.Flat()
	c.dev.SetVertexShaderConstants(progcache.VSRegSkyMatrix, m16[:])

	t := c.tess
	t.NumVertexes = len(skyCloudVertexes)
	t.NumIndexes = len(skyCloudIndexes)
	copy(t.Indexes[:], skyCloudIndexes[:])

	for i, v := range skyCloudVertexes {
		t.Verts[i] = device.StaticVertex{
			XYZ: [3]float32{o[0] + v[0], o[1] + v[1], o[2] + v[2]},
			ST:  [2]float32{4096, t.Shader.Sky.CloudHeight},
		}
		t.Colors[i] = device.Color{255, 255, 255, 255}
	}

	c.stageIteratorGeneric()
}

// stageIteratorSky draws the whole sky once per view, whatever sky
// surfaces ended up in the batch.
func (c *Context) stageIteratorSky() {
	if c.skyRenderedThisView {
		return
	}
	defer profiling.Track("backend.stageIteratorSky")()

	sh := c.tess.Shader
	c.drawSkyBox(sh.Sky.OuterBox, 0)

	// the clouds go through the generic stage path
	c.buildCloudData()

	c.drawSkyBox(sh.Sky.InnerBox, shader.SrcBlendSrcAlpha|shader.DstBlendOneMinusSrcAlpha)

	c.skyRenderedThisView = true
}
