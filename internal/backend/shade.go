package backend

import (
	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/profiling"
	"q3backend/internal/progcache"
	"q3backend/internal/shader"
	"q3backend/internal/waveform"
)

// transferStaticVertexes streams the batch's per-vertex attributes and
// binds them to stream 0.
func (c *Context) transferStaticVertexes() error {
	t := c.tess
	r := c.progs.Static
	first, _, err := r.Write(device.StaticBytes(t.Verts[:t.NumVertexes]), t.NumVertexes)
	if err != nil {
		return err
	}
	r.Advance(t.NumVertexes)
	c.dev.SetStreamSource(0, r.Buffer(), first*device.StaticVertexSize, device.StaticVertexSize)
	return nil
}

// transferDynamicVertexes streams n stage colours to stream 1. A stride of
// 0 repeats the first colour for every vertex.
func (c *Context) transferDynamicVertexes(n, stride int) error {
	r := c.progs.Dynamic
	first, _, err := r.Write(device.ColorBytes(c.colors[:n]), n)
	if err != nil {
		return err
	}
	r.Advance(n)
	c.dev.SetStreamSource(1, r.Buffer(), first*device.ColorSize, stride)
	return nil
}

// transferIndexes streams the batch's indexes. The cursor advances once
// every pass over them has been drawn.
func (c *Context) transferIndexes() error {
	t := c.tess
	r := c.progs.Index
	if _, _, err := r.Write(device.IndexBytes(t.Indexes[:t.NumIndexes]), t.NumIndexes); err != nil {
		return err
	}
	c.dev.SetIndices(r.Buffer())
	return nil
}

func (c *Context) drawElements() {
	t := c.tess
	c.dev.DrawIndexed(device.TriangleList, 0, t.NumVertexes, c.progs.Index.First(), t.NumIndexes/3)
	profiling.Count("backend.draws", 1)
}

// bindAnimatedImage binds the bundle's current animation frame to unit.
func (c *Context) bindAnimatedImage(unit int, b *shader.TextureBundle) {
	if b.VideoMap != nil {
		b.VideoMap.Run()
		b.VideoMap.Upload()
		return
	}

	if b.NumImageAnimations <= 1 {
		c.state.BindTexture(unit, b.Images[0])
		return
	}

	// computed this way so animations line up exactly with waveforms of
	// the same frequency
	index := int(c.tess.ShaderTime*b.ImageAnimationSpeed*waveform.TableSize) >> 10

	// may happen with shader time offsets
	if index < 0 {
		index = 0
	}
	c.state.BindTexture(unit, b.Images[index%b.NumImageAnimations])
}

// constColor evaluates the generators that give the whole stage one
// colour.
func (c *Context) constColor(st *shader.Stage) device.Color {
	var col device.Color
	e := c.currentEntity

	switch st.RGBGen {
	case shader.CGenConst:
		col = st.ConstantColor
	case shader.CGenIdentity:
		col = device.Color{0xff, 0xff, 0xff, 0xff}
	case shader.CGenWaveform:
		col = c.waveColor(st.RGBWave)
	case shader.CGenEntity:
		col = e.ShaderRGBA
	case shader.CGenOneMinusEntity:
		for i := range col {
			col[i] = 255 - e.ShaderRGBA[i]
		}
	case shader.CGenFog:
		if fog := c.currentFog(); fog != nil {
			col = fog.ColorBytes
		} else {
			l := c.identityLightByte
			col = device.Color{l, l, l, l}
		}
	default:
		l := c.identityLightByte
		col = device.Color{l, l, l, l}
	}

	switch st.AlphaGen {
	case shader.AGenIdentity:
		col[3] = 0xff
	case shader.AGenConst:
		col[3] = st.ConstantColor[3]
	case shader.AGenWaveform:
		col[3] = c.waveAlpha(st.AlphaWave)
	case shader.AGenEntity:
		col[3] = e.ShaderRGBA[3]
	case shader.AGenOneMinusEntity:
		col[3] = 255 - e.ShaderRGBA[3]
	}
	return col
}

// canSendConstColor reports whether one colour with stride 0 can stand in
// for the whole stream.
func (c *Context) canSendConstColor(st *shader.Stage, hasConstColor, hasConstAlpha bool) bool {
	if !c.caps.ZeroStrideStreams || !hasConstColor || !hasConstAlpha {
		return false
	}
	if c.tess.FogNum != 0 && st.AdjustColorsForFog != shader.ACFFNone {
		return false
	}
	return true
}

// computeColors builds and streams the stage's vertex colours.
func (c *Context) computeColors(st *shader.Stage) error {
	t := c.tess
	n := t.NumVertexes
	constColor := c.constColor(st)

	hasConstColor, hasConstAlpha := false, false

	switch st.RGBGen {
	case shader.CGenLightingDiffuse:
		c.calcDiffuseColor()
	case shader.CGenExactVertex:
		copy(c.colors[:n], t.Colors[:n])
	case shader.CGenVertex:
		il := c.identityLight
		for i := 0; i < n; i++ {
			in := t.Colors[i]
			c.colors[i] = device.Color{
				uint8(float32(in[0]) * il),
				uint8(float32(in[1]) * il),
				uint8(float32(in[2]) * il),
				in[3],
			}
		}
	case shader.CGenOneMinusVertex:
		il := c.identityLight
		for i := 0; i < n; i++ {
			in := t.Colors[i]
			c.colors[i][0] = uint8(float32(255-in[0]) * il)
			c.colors[i][1] = uint8(float32(255-in[1]) * il)
			c.colors[i][2] = uint8(float32(255-in[2]) * il)
		}
	default:
		hasConstColor = true
	}

	switch st.AlphaGen {
	case shader.AGenSkip:
		hasConstAlpha = hasConstColor
	case shader.AGenLightingSpecular:
		c.calcSpecularAlpha()
	case shader.AGenVertex:
		if st.RGBGen != shader.CGenVertex {
			for i := 0; i < n; i++ {
				c.colors[i][3] = t.Colors[i][3]
			}
		}
	case shader.AGenOneMinusVertex:
		for i := 0; i < n; i++ {
			c.colors[i][3] = 255 - t.Colors[i][3]
		}
	case shader.AGenPortal:
		c.calcPortalAlpha()
	default:
		hasConstAlpha = true
	}

	if c.canSendConstColor(st, hasConstColor, hasConstAlpha) {
		c.colors[0] = constColor
		profiling.Count("backend.constColors", 1)
		return c.transferDynamicVertexes(1, 0)
	}

	// expand out the const colour and alpha if needed
	switch {
	case hasConstColor && hasConstAlpha:
		for i := 0; i < n; i++ {
			c.colors[i] = constColor
		}
	case hasConstColor:
		for i := 0; i < n; i++ {
			c.colors[i][0] = constColor[0]
			c.colors[i][1] = constColor[1]
			c.colors[i][2] = constColor[2]
		}
	case hasConstAlpha:
		for i := 0; i < n; i++ {
			c.colors[i][3] = constColor[3]
		}
	}

	// fade colours out as fog increases
	if t.FogNum != 0 {
		switch st.AdjustColorsForFog {
		case shader.ACFFModulateRGB:
			c.modulateByFog(true, false)
		case shader.ACFFModulateAlpha:
			c.modulateByFog(false, true)
		case shader.ACFFModulateRGBA:
			c.modulateByFog(true, true)
		}
	}

	return c.transferDynamicVertexes(n, device.ColorSize)
}

// computeTexCoords uploads the constants the stage's texgen and texmods
// read. The coordinates themselves are generated on the device.
func (c *Context) computeTexCoords(st *shader.Stage) {
	b := &st.Bundle

	switch b.TCGen {
	case shader.TCGenFog:
		c.setupTCGenFog()
	case shader.TCGenEnvironmentMapped:
		v := c.or.ViewOrigin
		c.dev.SetPixelShaderConstants(progcache.PSRegViewOrigin, []float32{v[0], v[1], v[2], 0})
	case shader.TCGenVector:
		v0, v1 := b.TCGenVectors[0], b.TCGenVectors[1]
		c.dev.SetVertexShaderConstants(progcache.VSRegTCGenVec0, []float32{v0[0], v0[1], v0[2], 0})
		c.dev.SetVertexShaderConstants(progcache.VSRegTCGenVec1, []float32{v1[0], v1[1], v1[2], 0})
	}

	var turbTime, turbAmp [4]float32
	turb := false
	time := c.tess.ShaderTime

mods:
	for tm := 0; tm < len(b.TexMods) && tm < shader.MaxTexMods; tm++ {
		tmi := &b.TexMods[tm]

		switch tmi.Type {
		case shader.TModNone:
			// the turb registers still need setting
			break mods
		case shader.TModScroll:
			c.setupTCModTransform(tm, scrollTransform(tmi.Scroll, time))
		case shader.TModEntityTranslate:
			c.setupTCModTransform(tm, scrollTransform(c.currentEntity.ShaderTexCoord, time))
		case shader.TModTurbulent:
			turbTime[tm] = tmi.Wave.Phase + time*tmi.Wave.Frequency
			turbAmp[tm] = tmi.Wave.Amplitude
			turb = true
		case shader.TModScale:
			c.setupTCModTransform(tm, scaleTransform(tmi.Scale))
		case shader.TModStretch:
			c.setupTCModTransform(tm, stretchTransform(c.evalWave(tmi.Wave)))
		case shader.TModTransform:
			c.setupTCModTransform(tm, texTransform{matrix: tmi.Matrix, translate: tmi.Translate})
		case shader.TModRotate:
			c.setupTCModTransform(tm, rotateTransform(tmi.RotateSpeed, time))
		}
	}

	if turb {
		c.dev.SetVertexShaderConstants(progcache.VSRegTModTurbTime, turbTime[:])
		c.dev.SetPixelShaderConstants(progcache.PSRegTModTurbAmp, turbAmp[:])
	}
}

// iterateStages draws the batch once per stage of sh.
func (c *Context) iterateStages(sh *shader.Shader) error {
	for _, st := range sh.ActiveStages() {
		// a stage whose program failed to build is skipped
		if st.VertexShader == nil || st.PixelShader == nil {
			continue
		}

		if err := c.computeColors(st); err != nil {
			return err
		}
		c.computeTexCoords(st)

		c.bindAnimatedImage(st.TMU, &st.Bundle)
		c.state.SetState(st.StateBits)

		c.state.SetVertexFormat(device.FormatStage)
		c.state.SetVertexShader(st.VertexShader)
		c.state.SetPixelShader(st.PixelShader)

		c.drawElements()
	}
	return nil
}

// projectDlights adds one pass per dynamic light touching the batch.
func (c *Context) projectDlights() {
	t := c.tess
	for l := range c.refdef.DLights {
		// this surface definitely doesn't have any of this light
		if t.DLightBits&(1<<l) == 0 {
			continue
		}
		dl := &c.refdef.DLights[l]

		// depth equal so alpha tested surfaces don't add light where they aren't rendered
		if dl.Additive {
			c.state.SetState(shader.SrcBlendOne | shader.DstBlendOne | shader.DepthFuncEqual)
		} else {
			c.state.SetState(shader.SrcBlendDstColor | shader.DstBlendOne | shader.DepthFuncEqual)
		}

		o := dl.Transformed
		c.dev.SetPixelShaderConstants(progcache.PSRegDLRadius, []float32{dl.Radius, 0, 0, 0})
		c.dev.SetPixelShaderConstants(progcache.PSRegDLOrigin, []float32{o[0], o[1], o[2], 1})
		c.dev.SetPixelShaderConstants(progcache.PSRegDLColour, []float32{dl.Color[0], dl.Color[1], dl.Color[2], 1})

		c.state.SetVertexFormat(c.progs.DLight.Format)
		c.state.SetProgram(c.progs.DLight)
		c.drawElements()
		profiling.Count("backend.dlightPasses", 1)
	}
}

// stageIteratorGeneric draws the batch: every stage, then dynamic lights,
// then fog.
func (c *Context) stageIteratorGeneric() {
	defer profiling.Track("backend.stageIteratorGeneric")()

	t := c.tess
	c.deformGeometry()
	if t.NumIndexes == 0 {
		return
	}

	// copy over the stuff that's constant for all stages
	if err := c.transferStaticVertexes(); err != nil {
		logging.Logger().Debug("batch dropped", "shader", t.Shader.Name, "err", err)
		return
	}
	if err := c.transferIndexes(); err != nil {
		logging.Logger().Debug("batch dropped", "shader", t.Shader.Name, "err", err)
		return
	}

	if config.GetLogFile() {
		logging.Logger().Debug("--- stageIteratorGeneric ---", "shader", t.Shader.Name,
			"vertexes", t.NumVertexes, "indexes", t.NumIndexes)
	}

	c.state.SetCull(t.Shader.CullType, c.viewParms.IsMirror)

	polygonOffset := t.Shader.PolygonOffset
	if polygonOffset {
		bias := c.viewParms.Projection
		bias[3][2] += config.GetDepthBiasFactor()
		c.xf.SetProjection(bias)
	}

	if err := c.iterateStages(t.Shader); err != nil {
		logging.Logger().Debug("stage dropped", "shader", t.Shader.Name, "err", err)
	}

	if t.DLightBits != 0 && config.GetDynamicLight() && t.Shader.Sort <= shader.SortOpaque &&
		t.Shader.SurfaceFlags&(shader.SurfNoDLight|shader.SurfSky) == 0 {
		c.projectDlights()
	}

	if t.FogNum != 0 && t.Shader.FogPass != shader.FogPassNone && len(c.fogShader.ActiveStages()) > 0 {
		fs := c.fogShader.Stages[0]
		fs.StateBits = shader.SrcBlendSrcAlpha | shader.DstBlendOneMinusSrcAlpha
		if t.Shader.FogPass == shader.FogPassEqual {
			fs.StateBits |= shader.DepthFuncEqual
		}

		// downstream code refers to tess.Shader
		saved := t.Shader
		t.Shader = c.fogShader
		if err := c.iterateStages(c.fogShader); err != nil {
			logging.Logger().Debug("fog pass dropped", "shader", saved.Name, "err", err)
		}
		t.Shader = saved
	}

	if polygonOffset {
		c.xf.SetProjection(c.viewParms.Projection)
	}

	// every draw above references the same index range
	c.progs.Index.Advance(t.NumIndexes)
}
