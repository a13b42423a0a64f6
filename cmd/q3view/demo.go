package main

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"time"

	"q3backend/internal/assets"
	"q3backend/internal/backend"
	"q3backend/internal/device"
	"q3backend/internal/scene"
	"q3backend/internal/shader"
	"q3backend/internal/xform"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

const (
	floorSize   = 512
	orbitRadius = 320
	eyeHeight   = 96
	fovX        = 90

	cineSize = 64
)

// Shader indexes in sort order.
const (
	shaderSky = iota
	shaderFloor
	shaderGlow
)

// demo is a small fixed scene: a sky box with clouds, a fogged floor lit
// by one dynamic light and a spinning additive cube, with a pic and a
// cinematic on top.
type demo struct {
	shaders []*shader.Shader
	logo    *shader.Shader
	world   *scene.World

	floor *scene.SurfaceFace
	cube  *scene.SurfaceTriangles
	sky   *scene.SurfaceFace

	cine []byte

	paused     bool
	pausedAt   time.Duration
	screenshot bool
}

func checker(size, cell int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y += cell {
		for x := 0; x < size; x += cell {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			draw.Draw(img, image.Rect(x, y, x+cell, y+cell), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	return img
}

func newDemo(images *assets.Registry, texturePath string) (*demo, error) {
	var floorImg *shader.Image
	var err error
	if texturePath != "" {
		floorImg, err = images.Load(texturePath)
	} else {
		floorImg, err = images.Create("demo/floor",
			checker(128, 16, color.RGBA{140, 120, 90, 255}, color.RGBA{70, 60, 45, 255}),
			device.TextureOptions{Wrap: device.WrapRepeat, Mipmap: true})
	}
	if err != nil {
		return nil, fmt.Errorf("floor image: %w", err)
	}

	skyImg, err := images.Create("demo/skybox",
		checker(64, 32, color.RGBA{40, 70, 140, 255}, color.RGBA{60, 100, 180, 255}),
		device.TextureOptions{Wrap: device.WrapClamp})
	if err != nil {
		return nil, fmt.Errorf("sky image: %w", err)
	}
	cloudImg, err := images.Create("demo/clouds",
		checker(64, 8, color.RGBA{255, 255, 255, 160}, color.RGBA{255, 255, 255, 0}),
		device.TextureOptions{Wrap: device.WrapRepeat, Mipmap: true})
	if err != nil {
		return nil, fmt.Errorf("cloud image: %w", err)
	}

	d := &demo{
		world: &scene.World{
			Name: "demo",
			Fogs: []scene.Fog{
				{},
				{
					ColorBytes: device.Color{90, 100, 120, 255},
					TCScale:    1.0 / 768,
					HasSurface: true,
					Surface:    mgl32.Vec4{0, 0, 1, 48},
				},
			},
		},
		cine: make([]byte, cineSize*cineSize*4),
	}
	d.shaders = []*shader.Shader{
		shaderSky:   skyShader(skyImg, cloudImg),
		shaderFloor: floorShader(floorImg),
		shaderGlow:  glowShader(images.White),
	}
	for i, sh := range d.shaders {
		sh.Index = i
	}
	d.logo = logoShader(floorImg)

	d.floor = floorFace()
	d.cube = cubeTriangles()
	d.sky = &scene.SurfaceFace{
		Points:  []scene.DrawVert{{}, {}, {}},
		Indices: []int{0, 1, 2},
	}
	return d, nil
}

func singleStage(img *shader.Image, bits uint32) *shader.Stage {
	return &shader.Stage{
		Bundle: shader.TextureBundle{
			Images:             [shader.MaxImageAnimations]*shader.Image{img},
			NumImageAnimations: 1,
			TCGen:              shader.TCGenTexture,
		},
		RGBGen:    shader.CGenIdentityLighting,
		AlphaGen:  shader.AGenIdentity,
		StateBits: bits,
	}
}

func floorShader(img *shader.Image) *shader.Shader {
	st := singleStage(img, shader.StateDefault)
	st.Bundle.TexMods = []shader.TexMod{{Type: shader.TModScroll, Scroll: [2]float32{0.02, 0}}}
	return &shader.Shader{
		Name:              "demo/floor",
		Sort:              shader.SortOpaque,
		CullType:          shader.CullTwoSided,
		FogPass:           shader.FogPassEqual,
		NumUnfoggedPasses: 1,
		Stages:            []*shader.Stage{st},
	}
}

func glowShader(img *shader.Image) *shader.Shader {
	st := singleStage(img, shader.SrcBlendOne|shader.DstBlendOne)
	st.RGBGen = shader.CGenWaveform
	st.RGBWave = shader.WaveForm{Func: shader.GFSin, Base: 0.5, Amplitude: 0.5, Frequency: 0.5}
	st.Bundle.TexMods = []shader.TexMod{{Type: shader.TModRotate, RotateSpeed: 30}}
	return &shader.Shader{
		Name:              "demo/glow",
		Sort:              shader.SortBlend0,
		CullType:          shader.CullTwoSided,
		NumUnfoggedPasses: 1,
		Stages:            []*shader.Stage{st},
		Deforms: []shader.Deform{{
			Type:              shader.DeformWave,
			DeformationWave:   shader.WaveForm{Func: shader.GFSin, Amplitude: 2, Frequency: 1},
			DeformationSpread: 1.0 / 64,
		}},
	}
}

func skyShader(box, clouds *shader.Image) *shader.Shader {
	st := singleStage(clouds, shader.SrcBlendSrcAlpha|shader.DstBlendOneMinusSrcAlpha)
	st.Bundle.TexMods = []shader.TexMod{{Type: shader.TModScroll, Scroll: [2]float32{0.01, 0.005}}}
	sh := &shader.Shader{
		Name:              "demo/sky",
		Sort:              shader.SortEnvironment,
		IsSky:             true,
		Iterator:          shader.IteratorSky,
		CullType:          shader.CullTwoSided,
		SurfaceFlags:      shader.SurfSky,
		NumUnfoggedPasses: 1,
		Stages:            []*shader.Stage{st},
	}
	sh.Sky.CloudHeight = 512
	for i := range sh.Sky.OuterBox {
		sh.Sky.OuterBox[i] = box
	}
	return sh
}

func logoShader(img *shader.Image) *shader.Shader {
	st := singleStage(img, shader.SrcBlendSrcAlpha|shader.DstBlendOneMinusSrcAlpha)
	st.RGBGen = shader.CGenVertex
	st.AlphaGen = shader.AGenVertex
	return &shader.Shader{
		Name:              "demo/logo",
		Sort:              shader.SortNearest,
		CullType:          shader.CullTwoSided,
		NumUnfoggedPasses: 1,
		Stages:            []*shader.Stage{st},
	}
}

func floorFace() *scene.SurfaceFace {
	const s = floorSize
	corners := [4][2]float32{{-s, -s}, {s, -s}, {s, s}, {-s, s}}
	f := &scene.SurfaceFace{
		Plane:      scene.Plane{Normal: mgl32.Vec3{0, 0, 1}},
		DLightBits: 1,
		Indices:    []int{0, 1, 2, 0, 2, 3},
	}
	for _, c := range corners {
		f.Points = append(f.Points, scene.DrawVert{
			XYZ:    mgl32.Vec3{c[0], c[1], 0},
			ST:     [2]float32{c[0] / 128, c[1] / 128},
			Normal: mgl32.Vec3{0, 0, 1},
			Color:  device.Color{255, 255, 255, 255},
		})
	}
	return f
}

func cubeTriangles() *scene.SurfaceTriangles {
	const h = 24
	t := &scene.SurfaceTriangles{}
	for i := 0; i < 8; i++ {
		p := mgl32.Vec3{-h, -h, -h}
		if i&1 != 0 {
			p[0] = h
		}
		if i&2 != 0 {
			p[1] = h
		}
		if i&4 != 0 {
			p[2] = h
		}
		t.Verts = append(t.Verts, scene.DrawVert{
			XYZ:    p,
			ST:     [2]float32{float32(i & 1), float32(i>>1&1)},
			Normal: p.Normalize(),
			Color:  device.Color{uint8(80 + 170*(i&1)), uint8(80 + 170*(i>>1&1)), uint8(80 + 170*(i>>2&1)), 255},
		})
	}
	t.Indexes = []int{
		0, 2, 1, 1, 2, 3, // -z
		4, 5, 6, 5, 7, 6, // +z
		0, 1, 4, 1, 5, 4, // -y
		2, 6, 3, 3, 6, 7, // +y
		0, 4, 2, 2, 4, 6, // -x
		1, 3, 5, 3, 7, 5, // +x
	}
	return t
}

// angleAxis returns forward, left and up for pitch and yaw in degrees.
func angleAxis(pitch, yaw float64) [3]mgl32.Vec3 {
	sp, cp := math.Sincos(pitch * math.Pi / 180)
	sy, cy := math.Sincos(yaw * math.Pi / 180)
	return [3]mgl32.Vec3{
		{float32(cp * cy), float32(cp * sy), float32(-sp)},
		{float32(-sy), float32(cy), 0},
		{float32(sp * cy), float32(sp * sy), float32(cp)},
	}
}

func fovY(fovx float64, w, h int) float32 {
	x := float64(w) / math.Tan(fovx/360*math.Pi)
	return float32(math.Atan2(float64(h), x) * 360 / math.Pi)
}

// frame queues one complete frame on list.
func (d *demo) frame(list *backend.CommandList, w, h int, elapsed time.Duration) {
	if d.paused {
		elapsed = d.pausedAt
	} else {
		d.pausedAt = elapsed
	}
	secs := elapsed.Seconds()

	list.DrawSurfs(d.view(w, h, elapsed))

	list.SetColor(1, 1, 1, 0.85)
	list.StretchPic(d.logo, 8, 8, 96, 96, 0, 0, 1, 1)
	list.SetColor(1, 1, 1, 1)

	d.plasma(secs)
	list.StretchRaw(w-8-160, 8, 160, 160, cineSize, cineSize, d.cine, 0, true)

	if d.screenshot {
		list.TakeScreenshot(0, 0, w, h, "")
		d.screenshot = false
	}
	list.SwapBuffers()
}

func (d *demo) view(w, h int, elapsed time.Duration) *backend.DrawSurfsCmd {
	secs := elapsed.Seconds()
	angle := secs * 12
	rad := angle * math.Pi / 180
	eye := mgl32.Vec3{float32(math.Cos(rad) * orbitRadius), float32(math.Sin(rad) * orbitRadius), eyeHeight}
	axis := angleAxis(15, angle+180)
	fy := fovY(fovX, w, h)

	spin := secs * 45
	cube := scene.WorldEntity()
	cube.Type = scene.RTModel
	cube.Origin = mgl32.Vec3{0, 0, 64}
	cube.Axis = angleAxis(0, spin)

	lightRad := secs * 1.5
	refdef := scene.RefDef{
		Width:      w,
		Height:     h,
		FovX:       fovX,
		FovY:       fy,
		ViewOrigin: eye,
		ViewAxis:   axis,
		Time:       int(elapsed.Milliseconds()),
		FloatTime:  float32(secs),
		Entities:   []scene.Entity{cube},
		DLights: []scene.DLight{{
			Origin: mgl32.Vec3{float32(math.Cos(lightRad) * 160), float32(math.Sin(lightRad) * 160), 32},
			Color:  mgl32.Vec3{1, 0.6, 0.2},
			Radius: 200,
		}},
	}

	parms := scene.ViewParms{
		Or:             scene.Orientation{Origin: eye, Axis: axis, ViewOrigin: eye},
		World:          scene.ViewerOrientation(eye, axis),
		ViewportWidth:  w,
		ViewportHeight: h,
		FovX:           fovX,
		FovY:           fy,
		ZFar:           4096,
		Projection:     xform.Identity().Frustum(fovX, fy, 4),
	}

	surfs := []scene.DrawSurf{
		{Sort: scene.MakeSort(shaderSky, scene.EntityNumWorld, 0, false), Surface: d.sky},
		{Sort: scene.MakeSort(shaderFloor, scene.EntityNumWorld, 1, true), Surface: d.floor},
		{Sort: scene.MakeSort(shaderGlow, 0, 0, false), Surface: d.cube},
	}
	slices.SortFunc(surfs, func(a, b scene.DrawSurf) int { return cmp.Compare(a.Sort, b.Sort) })

	return &backend.DrawSurfsCmd{
		Shaders:   d.shaders,
		World:     d.world,
		RefDef:    refdef,
		ViewParms: parms,
		Surfs:     surfs,
	}
}

// plasma fills the cinematic frame for time t.
func (d *demo) plasma(t float64) {
	for y := 0; y < cineSize; y++ {
		for x := 0; x < cineSize; x++ {
			v := math.Sin(float64(x)*0.2+t) + math.Sin(float64(y)*0.15+t*1.3) + math.Sin(float64(x+y)*0.1+t*0.7)
			o := (y*cineSize + x) * 4
			d.cine[o+0] = uint8(127 + 127*math.Sin(v))
			d.cine[o+1] = uint8(127 + 127*math.Sin(v+2))
			d.cine[o+2] = uint8(127 + 127*math.Sin(v+4))
			d.cine[o+3] = 255
		}
	}
}
