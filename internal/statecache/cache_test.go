package statecache

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/device/devicetest"
	"q3backend/internal/logging"
	"q3backend/internal/progcache"
	"q3backend/internal/shader"
)

func image(name string, wrap device.WrapMode) *shader.Image {
	return &shader.Image{Name: name, Texture: &devicetest.Texture{W: 8, H: 8}, Wrap: wrap}
}

func TestBindTextureFiltersRepeats(t *testing.T) {
	rec := devicetest.New()
	c := New(rec)
	c.FrameCount = 7

	img := image("wall", device.WrapRepeat)
	c.BindTexture(0, img)
	c.BindTexture(0, img)
	if rec.TextureBinds != 1 {
		t.Errorf("texture binds: got %d, want 1", rec.TextureBinds)
	}
	if rec.StateCalls["SetSamplerWrap"] != 1 {
		t.Errorf("wrap calls: got %d, want 1", rec.StateCalls["SetSamplerWrap"])
	}
	if img.FrameUsed != 7 {
		t.Errorf("FrameUsed: got %d, want 7", img.FrameUsed)
	}

	c.BindTexture(1, img)
	if rec.TextureBinds != 2 {
		t.Errorf("other unit: got %d binds, want 2", rec.TextureBinds)
	}

	clamp := image("hud", device.WrapClamp)
	c.BindTexture(0, clamp)
	if rec.Wrap[0] != device.WrapClamp {
		t.Errorf("wrap: got %v, want clamp", rec.Wrap[0])
	}
}

func TestBindTextureNullFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer logging.SetLogger(nil)

	rec := devicetest.New()
	c := New(rec)

	// no default: silent no-op
	c.BindTexture(0, nil)
	if rec.TextureBinds != 0 || buf.Len() != 0 {
		t.Fatalf("got %d binds and log %q, want nothing", rec.TextureBinds, buf.String())
	}

	c.DefaultImage = image("*default", device.WrapRepeat)
	c.BindTexture(0, nil)
	if rec.Textures[0] != c.DefaultImage.Texture {
		t.Errorf("got %v, want default texture", rec.Textures[0])
	}
	if !strings.Contains(buf.String(), "NULL image") {
		t.Errorf("log: got %q, want NULL image warning", buf.String())
	}
}

func TestBindTextureNoBind(t *testing.T) {
	config.Reset()
	defer config.Reset()
	config.SetNoBind(true)

	rec := devicetest.New()
	c := New(rec)
	c.NoBindImage = image("*dlight", device.WrapClamp)

	c.BindTexture(0, image("a", device.WrapRepeat))
	c.BindTexture(0, image("b", device.WrapRepeat))
	if rec.Textures[0] != c.NoBindImage.Texture {
		t.Errorf("got %v, want nobind texture", rec.Textures[0])
	}
	if rec.TextureBinds != 1 {
		t.Errorf("binds: got %d, want 1", rec.TextureBinds)
	}
}

func TestSetCull(t *testing.T) {
	cases := []struct {
		cull   shader.CullType
		mirror bool
		want   device.CullMode
	}{
		{shader.CullTwoSided, false, device.CullNone},
		{shader.CullTwoSided, true, device.CullNone},
		{shader.CullBackSided, false, device.CullCW},
		{shader.CullBackSided, true, device.CullCCW},
		{shader.CullFrontSided, false, device.CullCCW},
		{shader.CullFrontSided, true, device.CullCW},
	}
	for _, tc := range cases {
		rec := devicetest.New()
		c := New(rec)
		c.SetCull(tc.cull, tc.mirror)
		if rec.Cull != tc.want {
			t.Errorf("SetCull(%v, %v): got %v, want %v", tc.cull, tc.mirror, rec.Cull, tc.want)
		}
		c.SetCull(tc.cull, tc.mirror)
		if n := rec.StateCalls["SetCullMode"]; n != 1 {
			t.Errorf("SetCull(%v, %v) twice: %d device calls, want 1", tc.cull, tc.mirror, n)
		}
	}
}

func TestResetCull(t *testing.T) {
	rec := devicetest.New()
	c := New(rec)
	c.SetCull(shader.CullFrontSided, false)
	c.ResetCull()
	c.SetCull(shader.CullFrontSided, true)
	if rec.Cull != device.CullCW {
		t.Fatalf("got %v, want CullCW after reset", rec.Cull)
	}
}

func TestSetStateXORDiff(t *testing.T) {
	rec := devicetest.New()
	c := New(rec)

	c.SetState(shader.DepthMaskTrue)
	if n := len(rec.StateCalls); n != 1 || rec.StateCalls["SetDepthWrite"] != 1 {
		t.Fatalf("got %v, want one depth write call", rec.StateCalls)
	}

	rec.ResetCounts()
	c.SetState(shader.DepthMaskTrue)
	if len(rec.StateCalls) != 0 {
		t.Fatalf("same bits: got %v, want no calls", rec.StateCalls)
	}

	rec.ResetCounts()
	c.SetState(shader.DepthMaskTrue | shader.SrcBlendSrcAlpha | shader.DstBlendOneMinusSrcAlpha)
	if len(rec.StateCalls) != 2 || !rec.BlendEnabled {
		t.Fatalf("blend change: got %v", rec.StateCalls)
	}
	if rec.SrcBlend != device.BlendSrcAlpha || rec.DstBlend != device.BlendInvSrcAlpha {
		t.Errorf("blend: got %v %v", rec.SrcBlend, rec.DstBlend)
	}

	rec.ResetCounts()
	c.SetState(shader.SrcBlendOne | shader.DstBlendZero | shader.DepthFuncEqual)
	if rec.BlendEnabled {
		t.Errorf("one/zero should disable blending")
	}
	if rec.DepthFunc != device.CompareEqual || rec.DepthWrite {
		t.Errorf("got depth func %v write %v", rec.DepthFunc, rec.DepthWrite)
	}
	if c.StateBits() != shader.SrcBlendOne|shader.DstBlendZero|shader.DepthFuncEqual {
		t.Errorf("shadow: got %#x", c.StateBits())
	}
}

func TestSetStateAlphaTest(t *testing.T) {
	cases := []struct {
		bits uint32
		fn   device.CompareFunc
		ref  uint8
	}{
		{shader.AlphaTestGT0, device.CompareGreater, 0},
		{shader.AlphaTestLT80, device.CompareLess, 0x80},
		{shader.AlphaTestGE80, device.CompareGreaterEqual, 0x80},
	}
	for _, tc := range cases {
		rec := devicetest.New()
		c := New(rec)
		c.SetState(tc.bits)
		if !rec.AlphaTest || rec.AlphaFunc != tc.fn || rec.AlphaRef != tc.ref {
			t.Errorf("%#x: got %v %v %#x", tc.bits, rec.AlphaTest, rec.AlphaFunc, rec.AlphaRef)
		}
		c.SetState(0)
		if rec.AlphaTest {
			t.Errorf("%#x cleared: alpha test still on", tc.bits)
		}
	}
}

func TestBlendFactorsDefaults(t *testing.T) {
	src, dst := BlendFactors(0)
	if src != device.BlendOne || dst != device.BlendZero {
		t.Fatalf("got %v %v, want one zero", src, dst)
	}
	src, dst = BlendFactors(shader.DstBlendOne)
	if src != device.BlendOne || dst != device.BlendOne {
		t.Fatalf("got %v %v, want one one", src, dst)
	}
}

func TestSetDefaultState(t *testing.T) {
	rec := devicetest.New()
	c := New(rec)
	c.SetDefaultState()

	if c.StateBits() != 0 {
		t.Errorf("state bits: got %#x, want 0", c.StateBits())
	}
	if rec.Cull != device.CullNone {
		t.Errorf("cull: got %v, want none", rec.Cull)
	}
	if rec.DepthWrite || rec.BlendEnabled || rec.AlphaTest || !rec.DepthTest {
		t.Errorf("got write=%v blend=%v atest=%v ztest=%v", rec.DepthWrite, rec.BlendEnabled, rec.AlphaTest, rec.DepthTest)
	}
}

func TestProgramBindsFiltered(t *testing.T) {
	rec := devicetest.New()
	c := New(rec)
	p := &progcache.Program{VS: &devicetest.Shader{ID: 1}, PS: &devicetest.Shader{ID: 2, Pixel: true}}

	c.SetProgram(p)
	c.SetProgram(p)
	c.SetVertexFormat(device.FormatStage)
	c.SetVertexFormat(device.FormatStage)
	if rec.VSBinds != 1 || rec.PSBinds != 1 || rec.FormatBinds != 1 {
		t.Fatalf("got vs=%d ps=%d fmt=%d, want 1 each", rec.VSBinds, rec.PSBinds, rec.FormatBinds)
	}

	c.Invalidate()
	c.SetProgram(p)
	if rec.VSBinds != 2 {
		t.Errorf("after Invalidate: got %d vs binds, want 2", rec.VSBinds)
	}
}
