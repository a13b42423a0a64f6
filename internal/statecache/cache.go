// Package statecache shadows device state so redundant calls never reach the
// device.
package statecache

import (
	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/progcache"
	"q3backend/internal/shader"
)

const maxUnits = 8

// Cache filters texture, sampler, cull, render-state and program binds
// against the last values sent to the device.
type Cache struct {
	dev device.Device

	textures  [maxUnits]device.Texture
	wrap      [maxUnits]device.WrapMode
	wrapValid [maxUnits]bool

	cull      shader.CullType
	cullValid bool

	stateBits uint32

	format device.VertexFormat
	vs, ps device.Shader

	// DefaultImage replaces nil binds; NoBindImage replaces every bind
	// while the nobind setting is on.
	DefaultImage *shader.Image
	NoBindImage  *shader.Image

	// FrameCount is stamped into Image.FrameUsed on each real bind.
	FrameCount int
}

func New(dev device.Device) *Cache {
	c := &Cache{dev: dev}
	c.Invalidate()
	return c
}

// Invalidate forgets the shadow so the next call of each kind goes through.
// stateBits keeps its value; SetDefaultState re-applies it.
func (c *Cache) Invalidate() {
	for i := range c.textures {
		c.textures[i] = nil
		c.wrapValid[i] = false
	}
	c.cullValid = false
	c.format = device.FormatNone
	c.vs, c.ps = nil, nil
}

// BindTexture binds img to unit. A nil image falls back to DefaultImage.
func (c *Cache) BindTexture(unit int, img *shader.Image) {
	if img == nil {
		if c.DefaultImage == nil {
			return
		}
		logging.Logger().Warn("BindTexture: NULL image", "unit", unit)
		img = c.DefaultImage
	}

	tex := img.Texture
	if config.GetNoBind() && c.NoBindImage != nil {
		tex = c.NoBindImage.Texture
	}

	if c.textures[unit] != tex {
		img.FrameUsed = c.FrameCount
		c.dev.SetTexture(unit, tex)
		c.textures[unit] = tex
	}

	if !c.wrapValid[unit] || c.wrap[unit] != img.Wrap {
		c.dev.SetSamplerWrap(unit, img.Wrap)
		c.wrap[unit] = img.Wrap
		c.wrapValid[unit] = true
	}
}

// UnbindTexture clears unit. Used for the cinematic and 2D paths that set
// textures directly.
func (c *Cache) UnbindTexture(unit int) {
	if c.textures[unit] == nil {
		return
	}
	c.dev.SetTexture(unit, nil)
	c.textures[unit] = nil
}

// SetCull applies cullType, swapping winding for mirror views.
func (c *Cache) SetCull(cullType shader.CullType, mirror bool) {
	if c.cullValid && c.cull == cullType {
		return
	}
	c.cull = cullType
	c.cullValid = true

	if cullType == shader.CullTwoSided {
		c.dev.SetCullMode(device.CullNone)
		return
	}
	if cullType == shader.CullBackSided {
		if mirror {
			c.dev.SetCullMode(device.CullCCW)
		} else {
			c.dev.SetCullMode(device.CullCW)
		}
		return
	}
	if mirror {
		c.dev.SetCullMode(device.CullCW)
	} else {
		c.dev.SetCullMode(device.CullCCW)
	}
}

// ResetCull forces the next SetCull through; called at the start of a view
// since the mirror flag may have changed.
func (c *Cache) ResetCull() {
	c.cullValid = false
}

// StateBits returns the last applied state word.
func (c *Cache) StateBits() uint32 { return c.stateBits }

var srcBlend = map[uint32]device.BlendFactor{
	shader.SrcBlendZero:             device.BlendZero,
	shader.SrcBlendOne:              device.BlendOne,
	shader.SrcBlendDstColor:         device.BlendDstColor,
	shader.SrcBlendOneMinusDstColor: device.BlendInvDstColor,
	shader.SrcBlendSrcAlpha:         device.BlendSrcAlpha,
	shader.SrcBlendOneMinusSrcAlpha: device.BlendInvSrcAlpha,
	shader.SrcBlendDstAlpha:         device.BlendDstAlpha,
	shader.SrcBlendOneMinusDstAlpha: device.BlendInvDstAlpha,
	shader.SrcBlendAlphaSaturate:    device.BlendSrcAlphaSat,
}

var dstBlend = map[uint32]device.BlendFactor{
	shader.DstBlendZero:             device.BlendZero,
	shader.DstBlendOne:              device.BlendOne,
	shader.DstBlendSrcColor:         device.BlendSrcColor,
	shader.DstBlendOneMinusSrcColor: device.BlendInvSrcColor,
	shader.DstBlendSrcAlpha:         device.BlendSrcAlpha,
	shader.DstBlendOneMinusSrcAlpha: device.BlendInvSrcAlpha,
	shader.DstBlendDstAlpha:         device.BlendDstAlpha,
	shader.DstBlendOneMinusDstAlpha: device.BlendInvDstAlpha,
}

// BlendFactors decodes the blend fields of a state word. Unknown source
// values map to one and unknown destination values to zero, which together
// mean no blending.
func BlendFactors(bits uint32) (src, dst device.BlendFactor) {
	src, ok := srcBlend[bits&shader.SrcBlendBits]
	if !ok {
		src = device.BlendOne
	}
	dst, ok = dstBlend[bits&shader.DstBlendBits]
	if !ok {
		dst = device.BlendZero
	}
	return src, dst
}

// SetState applies only the fields of bits that differ from the previous
// state word.
func (c *Cache) SetState(bits uint32) {
	diff := bits ^ c.stateBits
	if diff == 0 {
		return
	}
	d := c.dev

	if diff&shader.DepthFuncEqual != 0 {
		if bits&shader.DepthFuncEqual != 0 {
			d.SetDepthFunc(device.CompareEqual)
		} else {
			d.SetDepthFunc(device.CompareLessEqual)
		}
	}

	if diff&(shader.SrcBlendBits|shader.DstBlendBits) != 0 {
		if bits&(shader.SrcBlendBits|shader.DstBlendBits) != 0 {
			src, dst := BlendFactors(bits)
			if src != device.BlendOne || dst != device.BlendZero {
				d.SetBlendEnable(true)
				d.SetBlendFunc(src, dst)
			} else {
				d.SetBlendEnable(false)
			}
		} else {
			d.SetBlendEnable(false)
		}
	}

	if diff&shader.DepthMaskTrue != 0 {
		d.SetDepthWrite(bits&shader.DepthMaskTrue != 0)
	}

	if diff&shader.PolyModeLine != 0 {
		if bits&shader.PolyModeLine != 0 {
			d.SetFillMode(device.FillWireframe)
		} else {
			d.SetFillMode(device.FillSolid)
		}
	}

	if diff&shader.DepthTestDisable != 0 {
		d.SetDepthTest(bits&shader.DepthTestDisable == 0)
	}

	if diff&shader.AlphaTestBits != 0 {
		switch bits & shader.AlphaTestBits {
		case shader.AlphaTestGT0:
			d.SetAlphaTest(true)
			d.SetAlphaFunc(device.CompareGreater, 0)
		case shader.AlphaTestLT80:
			d.SetAlphaTest(true)
			d.SetAlphaFunc(device.CompareLess, 0x80)
		case shader.AlphaTestGE80:
			d.SetAlphaTest(true)
			d.SetAlphaFunc(device.CompareGreaterEqual, 0x80)
		default:
			d.SetAlphaTest(false)
		}
	}

	c.stateBits = bits
}

// SetDefaultState drives every state field to a known value: all bits set,
// then cleared, so each field is applied twice and ends at zero.
func (c *Cache) SetDefaultState() {
	c.SetState(0xffffffff)
	c.SetState(0)

	c.ResetCull()
	c.SetCull(shader.CullBackSided, false)
	c.SetCull(shader.CullTwoSided, false)

	for i := 0; i < maxUnits; i++ {
		c.textures[i] = nil
		c.dev.SetTexture(i, nil)
		c.dev.SetSamplerWrap(i, device.WrapRepeat)
		c.wrap[i] = device.WrapRepeat
		c.wrapValid[i] = true
	}
}

func (c *Cache) SetVertexFormat(f device.VertexFormat) {
	if c.format == f {
		return
	}
	c.dev.SetVertexFormat(f)
	c.format = f
}

func (c *Cache) SetVertexShader(s device.Shader) {
	if c.vs == s {
		return
	}
	c.dev.SetVertexShader(s)
	c.vs = s
}

func (c *Cache) SetPixelShader(s device.Shader) {
	if c.ps == s {
		return
	}
	c.dev.SetPixelShader(s)
	c.ps = s
}

// SetProgram binds both halves of p.
func (c *Cache) SetProgram(p *progcache.Program) {
	c.SetVertexShader(p.VS)
	c.SetPixelShader(p.PS)
}
