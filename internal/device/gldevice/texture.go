package gldevice

import (
	"fmt"
	"image"

	"q3backend/internal/device"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Texture is a GL 2D texture.
type Texture struct {
	id   uint32
	w, h int
	opts device.TextureOptions
	wrap device.WrapMode
}

func (t *Texture) Size() (int, int) { return t.w, t.h }

// packed returns the pixels of img with no row padding.
func packed(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	if img.Stride == row && b.Min == (image.Point{}) {
		return img.Pix[:row*b.Dy()]
	}
	out := make([]byte, row*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*row:(y+1)*row], img.Pix[start:start+row])
	}
	return out
}

func wrapParam(w device.WrapMode) int32 {
	if w == device.WrapClamp {
		return gl.CLAMP_TO_EDGE
	}
	return gl.REPEAT
}

// onScratchUnit runs fn with t bound on unit 0, then puts back whatever
// the backend had bound there.
func (d *Device) onScratchUnit(t *Texture, fn func()) {
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	fn()
	var prev uint32
	if cur := d.textures[0]; cur != nil {
		prev = cur.id
	}
	gl.BindTexture(gl.TEXTURE_2D, prev)
}

func (d *Device) CreateTexture(img *image.RGBA, opts device.TextureOptions) (device.Texture, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("gldevice: empty texture %dx%d", b.Dx(), b.Dy())
	}
	t := &Texture{w: b.Dx(), h: b.Dy(), opts: opts, wrap: opts.Wrap}
	gl.GenTextures(1, &t.id)

	var glErr uint32
	d.onScratchUnit(t, func() {
		minFilter, magFilter := int32(gl.LINEAR), int32(gl.LINEAR)
		if opts.Nearest {
			minFilter, magFilter = gl.NEAREST, gl.NEAREST
		}
		if opts.Mipmap {
			minFilter = gl.LINEAR_MIPMAP_LINEAR
		}
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapParam(opts.Wrap))
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapParam(opts.Wrap))

		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(t.w), int32(t.h), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(packed(img)))
		if opts.Mipmap {
			gl.GenerateMipmap(gl.TEXTURE_2D)
		}
		glErr = gl.GetError()
	})
	if glErr != gl.NO_ERROR {
		gl.DeleteTextures(1, &t.id)
		return nil, fmt.Errorf("gldevice: create %dx%d texture: error 0x%x", t.w, t.h, glErr)
	}
	return t, nil
}

// UpdateTexture replaces the texels, reallocating when the size changed.
func (d *Device) UpdateTexture(tex device.Texture, img *image.RGBA) error {
	t := tex.(*Texture)
	if t.id == 0 {
		return fmt.Errorf("gldevice: update of released texture")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("gldevice: empty texture update %dx%d", b.Dx(), b.Dy())
	}
	var glErr uint32
	d.onScratchUnit(t, func() {
		pix := gl.Ptr(packed(img))
		if b.Dx() == t.w && b.Dy() == t.h {
			gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.w), int32(t.h), gl.RGBA, gl.UNSIGNED_BYTE, pix)
		} else {
			t.w, t.h = b.Dx(), b.Dy()
			gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(t.w), int32(t.h), 0, gl.RGBA, gl.UNSIGNED_BYTE, pix)
		}
		if t.opts.Mipmap {
			gl.GenerateMipmap(gl.TEXTURE_2D)
		}
		glErr = gl.GetError()
	})
	if glErr != gl.NO_ERROR {
		return fmt.Errorf("gldevice: update texture: error 0x%x", glErr)
	}
	return nil
}

func (d *Device) ReleaseTexture(tex device.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t.id == 0 {
		return
	}
	for i, bound := range d.textures {
		if bound == t {
			d.textures[i] = nil
		}
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}

// SetTexture binds t on unit. Wrap is unit state, so a texture arriving
// with a different wrap picks up the unit's.
func (d *Device) SetTexture(unit int, tex device.Texture) {
	if unit < 0 || unit >= maxUnits {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if tex == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		d.textures[unit] = nil
		return
	}
	t := tex.(*Texture)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	d.textures[unit] = t
	if t.wrap != d.wrap[unit] {
		d.applyWrap(t, d.wrap[unit])
	}
}

func (d *Device) SetSamplerWrap(unit int, w device.WrapMode) {
	if unit < 0 || unit >= maxUnits {
		return
	}
	d.wrap[unit] = w
	if t := d.textures[unit]; t != nil && t.wrap != w {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		d.applyWrap(t, w)
	}
}

// applyWrap sets the wrap of the texture bound on the active unit.
func (d *Device) applyWrap(t *Texture, w device.WrapMode) {
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapParam(w))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapParam(w))
	t.wrap = w
}
