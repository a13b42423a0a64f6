package progcache

import (
	"errors"
	"testing"

	"q3backend/internal/device"
	"q3backend/internal/device/devicetest"
	"q3backend/internal/shader"
)

func newCache(t *testing.T) (*Cache, *devicetest.Recorder) {
	t.Helper()
	rec := devicetest.New()
	c, err := Init(rec, rec)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	rec.ResetCounts()
	return c, rec
}

func TestInitRequiresCompiler(t *testing.T) {
	rec := devicetest.New()
	_, err := Init(rec, nil)
	if !errors.Is(err, device.ErrCompilerUnavailable) {
		t.Fatalf("got %v, want ErrCompilerUnavailable", err)
	}
}

func TestInitRequiresUnits(t *testing.T) {
	rec := devicetest.New()
	rec.DeviceCaps.MaxTextureUnits = 4
	_, err := Init(rec, rec)
	if !errors.Is(err, ErrTooFewUnits) {
		t.Fatalf("got %v, want ErrTooFewUnits", err)
	}
}

func TestInitBuildsBuiltins(t *testing.T) {
	rec := devicetest.New()
	c, err := Init(rec, rec)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(rec.Compiles) != 6 {
		t.Fatalf("compiles: got %d, want 6", len(rec.Compiles))
	}
	first := rec.Compiles[0]
	if first.Entry != VertexEntry || first.Profile != VertexProfile {
		t.Errorf("first compile: got %s/%s", first.Entry, first.Profile)
	}
	if first.Defines[0].Name != "VERTEXSHADER" {
		t.Errorf("define 0: got %q, want VERTEXSHADER", first.Defines[0].Name)
	}
	if got, want := len(first.Defines), len(staticDefines)+1; got != want {
		t.Errorf("builtin defines: got %d, want %d", got, want)
	}
	if rec.Compiles[1].Defines[0].Name != "PIXELSHADER" {
		t.Errorf("second compile define 0: got %q", rec.Compiles[1].Defines[0].Name)
	}
	for _, p := range []*Program{c.Generic, c.Skybox, c.DLight} {
		if !p.Valid() {
			t.Errorf("builtin %+v not valid", p)
		}
	}
	if c.DLight.Format != device.FormatPosition || c.Skybox.Format != device.FormatSkybox {
		t.Errorf("builtin formats: got %v %v", c.DLight.Format, c.Skybox.Format)
	}
	if rec.BuffersMade != 3 {
		t.Errorf("buffers: got %d, want 3", rec.BuffersMade)
	}
}

func stage(tc shader.TexCoordGen, mods ...shader.TexModType) *shader.Stage {
	st := &shader.Stage{RGBGen: shader.CGenIdentity, AlphaGen: shader.AGenIdentity}
	st.Bundle.TCGen = tc
	for _, m := range mods {
		st.Bundle.TexMods = append(st.Bundle.TexMods, shader.TexMod{Type: m})
	}
	return st
}

func TestGetOrCompileIdempotent(t *testing.T) {
	c, rec := newCache(t)

	a := stage(shader.TCGenTexture, shader.TModScroll)
	b := stage(shader.TCGenTexture, shader.TModScroll)

	pa, err := c.GetOrCompile(a, false)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := c.GetOrCompile(b, false)
	if err != nil {
		t.Fatal(err)
	}
	if pa != pb {
		t.Errorf("got distinct programs for the same key")
	}
	if len(rec.Compiles) != 2 {
		t.Errorf("compiles: got %d, want 2", len(rec.Compiles))
	}
	if rec.ShadersMade != 2 {
		t.Errorf("shaders: got %d, want 2", rec.ShadersMade)
	}
	if c.Len() != 1 {
		t.Errorf("Len: got %d, want 1", c.Len())
	}
}

func TestStageDefines(t *testing.T) {
	st := stage(shader.TCGenEnvironmentMapped, shader.TModScroll, shader.TModTurbulent, shader.TModNone, shader.TModRotate)
	st.TMU = 2

	got := StageDefines(st, false)
	tail := got[1+len(staticDefines):]
	want := []device.Define{
		{Name: "TEXTURESTAGE", Value: "t2"},
		{Name: "SAMPLERSTAGE", Value: "s2"},
		{Name: "TCGEN_ENVIRONMENT_MAPPED", Value: "1"},
		{Name: "TMOD_TRANSFORM0", Value: "1"},
		{Name: "TMOD_TURB1", Value: "1"},
	}
	if len(tail) != len(want) {
		t.Fatalf("got %v, want %v", tail, want)
	}
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("define %d: got %v, want %v", i, tail[i], want[i])
		}
	}
	if got[1] != (device.Define{Name: "VSREG_MVPMATRIX", Value: "c0"}) {
		t.Errorf("first static define: got %v", got[1])
	}

	sky := StageDefines(st, true)
	if name := sky[1+len(staticDefines)+2].Name; name != "TCGEN_SKY" {
		t.Errorf("sky tcgen define: got %q, want TCGEN_SKY", name)
	}
}

func TestKeyPacking(t *testing.T) {
	st := stage(shader.TCGenVector, shader.TModScale, shader.TModTurbulent)
	st.RGBGen = shader.CGenWaveform
	st.AlphaGen = shader.AGenPortal
	st.TMU = 3

	want := uint32(1) |
		uint32(shader.TModTurbulent)<<20 |
		uint32(shader.TModScale)<<16 |
		uint32(shader.TCGenVector)<<12 |
		uint32(shader.CGenWaveform)<<8 |
		uint32(shader.AGenPortal)<<4 |
		3<<1
	if got := Key(st, true); got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestCompileFailureNotCached(t *testing.T) {
	c, rec := newCache(t)
	rec.CompileFunc = func(entry string, _ []device.Define) error {
		if entry == PixelEntry {
			return &device.CompileError{Entry: entry, Profile: PixelProfile, Log: "syntax error"}
		}
		return nil
	}

	made := rec.ShadersMade
	sh := &shader.Shader{Stages: []*shader.Stage{stage(shader.TCGenTexture)}}
	if err := c.PrepareShader(sh); err != nil {
		t.Fatal(err)
	}
	st := sh.Stages[0]
	if !st.ProgramBuilt || st.VertexShader != nil || st.PixelShader != nil {
		t.Fatalf("got built=%v vs=%v ps=%v, want attempted with no shaders", st.ProgramBuilt, st.VertexShader, st.PixelShader)
	}
	if c.Len() != 0 {
		t.Errorf("Len: got %d, want 0", c.Len())
	}

	if got := rec.ShadersMade - made; got != 1 {
		t.Fatalf("shaders made: got %d, want 1", got)
	}

	n := len(rec.Compiles)
	if err := c.PrepareShader(sh); err != nil {
		t.Fatal(err)
	}
	if len(rec.Compiles) != n {
		t.Errorf("recompiled a failed stage: %d compiles, want %d", len(rec.Compiles), n)
	}
}

func TestPrepareShaderAssignsUnits(t *testing.T) {
	c, _ := newCache(t)
	sh := &shader.Shader{Stages: []*shader.Stage{
		stage(shader.TCGenLightmap),
		stage(shader.TCGenTexture),
		nil,
		stage(shader.TCGenTexture),
	}}
	if err := c.PrepareShader(sh); err != nil {
		t.Fatal(err)
	}
	if sh.Stages[0].TMU != 0 || sh.Stages[1].TMU != 1 {
		t.Errorf("units: got %d %d, want 0 1", sh.Stages[0].TMU, sh.Stages[1].TMU)
	}
	if sh.Stages[3].ProgramBuilt {
		t.Errorf("stage after nil entry was prepared")
	}
}

func TestCacheFull(t *testing.T) {
	c, _ := newCache(t)
	n := 0
	for rgb := 0; rgb < 16; rgb++ {
		for alpha := 0; alpha < 16; alpha++ {
			for tmu := 0; tmu < 4; tmu++ {
				st := stage(shader.TCGenTexture)
				st.RGBGen = shader.ColorGen(rgb)
				st.AlphaGen = shader.AlphaGen(alpha)
				st.TMU = tmu
				if _, err := c.GetOrCompile(st, false); err != nil {
					t.Fatalf("entry %d: %v", n, err)
				}
				n++
			}
		}
	}
	if c.Len() != MaxEntries {
		t.Fatalf("Len: got %d, want %d", c.Len(), MaxEntries)
	}

	st := stage(shader.TCGenTexture)
	st.TMU = 5
	if _, err := c.GetOrCompile(st, false); !errors.Is(err, ErrCacheFull) {
		t.Fatalf("got %v, want ErrCacheFull", err)
	}
}

func TestShutdownReleases(t *testing.T) {
	c, _ := newCache(t)
	p, _ := c.GetOrCompile(stage(shader.TCGenTexture), false)
	vs := p.VS.(*devicetest.Shader)
	generic := c.Generic.PS.(*devicetest.Shader)

	c.Shutdown()
	if !vs.Released || !generic.Released {
		t.Errorf("got released %v %v, want both", vs.Released, generic.Released)
	}
	if c.Static.Buffer() != nil {
		t.Errorf("static ring still holds a buffer")
	}
}

func TestRingDiscard(t *testing.T) {
	rec := devicetest.New()
	r := NewRing(rec, 2, 8, true)
	if err := r.Create(); err != nil {
		t.Fatal(err)
	}
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}

	steps := []struct {
		n         int
		wantFirst int
		wantDisc  bool
	}{
		{4, 0, false},
		{3, 4, false},
		{2, 0, true},
		{5, 2, false},
		{1, 0, true},
	}
	for i, s := range steps {
		first, disc, err := r.Write(data, s.n)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if first != s.wantFirst || disc != s.wantDisc {
			t.Errorf("step %d: got first=%d discard=%v, want %d %v", i, first, disc, s.wantFirst, s.wantDisc)
		}
		r.Advance(s.n)
	}

	buf := r.Buffer().(*devicetest.Buffer)
	if buf.Discards != 2 {
		t.Errorf("discards: got %d, want 2", buf.Discards)
	}
}

func TestRingWithoutBuffer(t *testing.T) {
	c, _ := newCache(t)
	c.OnLostDevice()
	if _, _, err := c.Static.Write(make([]byte, device.StaticVertexSize), 1); !errors.Is(err, ErrNoBuffer) {
		t.Fatalf("got %v, want ErrNoBuffer", err)
	}
	if err := c.OnResetDevice(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Static.Write(make([]byte, device.StaticVertexSize), 1); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}
