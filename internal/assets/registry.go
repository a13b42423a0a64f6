// Package assets owns every image the backend binds: files loaded by
// name, generated images and the built-ins the renderer always needs.
package assets

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/shader"
	"q3backend/internal/waveform"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const (
	// NumScratch is the number of cinematic scratch images.
	NumScratch = 16

	defaultSize = 16
	dlightSize  = 16
	fogS        = 256
	fogT        = 32
)

type entry struct {
	img  *shader.Image
	src  *image.RGBA
	opts device.TextureOptions
}

// Registry caches images by name and recreates their device textures
// across a device reset.
type Registry struct {
	dev device.Device

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	Default *shader.Image
	White   *shader.Image
	DLight  *shader.Image
	Fog     *shader.Image
	Scratch [NumScratch]*shader.Image
}

// New creates the registry and its built-in images.
func New(dev device.Device) (*Registry, error) {
	r := &Registry{
		dev:     dev,
		entries: make(map[string]*entry),
	}

	builtins := []struct {
		dst  **shader.Image
		name string
		img  *image.RGBA
		opts device.TextureOptions
	}{
		{&r.Default, "*default", defaultImage(), device.TextureOptions{Wrap: device.WrapRepeat, Mipmap: true}},
		{&r.White, "*white", solidImage(8, color.RGBA{255, 255, 255, 255}), device.TextureOptions{Wrap: device.WrapRepeat}},
		{&r.DLight, "*dlight", dlightImage(), device.TextureOptions{Wrap: device.WrapClamp}},
		{&r.Fog, "*fog", fogImage(), device.TextureOptions{Wrap: device.WrapClamp}},
	}
	for _, b := range builtins {
		img, err := r.Create(b.name, b.img, b.opts)
		if err != nil {
			return nil, err
		}
		*b.dst = img
	}

	for i := range r.Scratch {
		img, err := r.Create(fmt.Sprintf("*scratch%d", i), defaultImage(), device.TextureOptions{Wrap: device.WrapClamp})
		if err != nil {
			return nil, err
		}
		r.Scratch[i] = img
	}

	return r, nil
}

// Find returns a registered image or nil.
func (r *Registry) Find(name string) *shader.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.img
	}
	return nil
}

// Load returns the image for path, decoding it on first use.
func (r *Registry) Load(path string) (*shader.Image, error) {
	r.mu.RLock()
	if e, ok := r.entries[path]; ok {
		r.mu.RUnlock()
		return e.img, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check locking
	if e, ok := r.entries[path]; ok {
		return e.img, nil
	}

	rgba, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return r.createLocked(path, rgba, device.TextureOptions{Wrap: device.WrapRepeat, Mipmap: true})
}

func decodeFile(path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Create registers a generated image under name, replacing any previous
// image of that name.
func (r *Registry) Create(name string, img *image.RGBA, opts device.TextureOptions) (*shader.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(name, img, opts)
}

func (r *Registry) createLocked(name string, img *image.RGBA, opts device.TextureOptions) (*shader.Image, error) {
	tex, err := r.dev.CreateTexture(img, opts)
	if err != nil {
		return nil, fmt.Errorf("creating texture %s: %w", name, err)
	}

	b := img.Bounds()
	si := &shader.Image{
		Name:         name,
		Texture:      tex,
		Width:        b.Dx(),
		Height:       b.Dy(),
		UploadWidth:  b.Dx(),
		UploadHeight: b.Dy(),
		Wrap:         opts.Wrap,
		Mipmap:       opts.Mipmap,
	}

	if old, ok := r.entries[name]; ok {
		if old.img.Texture != nil {
			r.dev.ReleaseTexture(old.img.Texture)
		}
		// keep the pointer so shaders referencing it see the new texture
		*old.img = *si
		old.src, old.opts = img, opts
		return old.img, nil
	}

	r.entries[name] = &entry{img: si, src: img, opts: opts}
	r.order = append(r.order, name)
	return si, nil
}

// Resize recreates img's texture from pix, used when a cinematic frame
// changes size.
func (r *Registry) Resize(img *shader.Image, pix *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[img.Name]
	if !ok || e.img != img {
		return fmt.Errorf("image %s is not registered", img.Name)
	}
	_, err := r.createLocked(img.Name, pix, e.opts)
	return err
}

// Update replaces the pixels of img without changing its size.
func (r *Registry) Update(img *shader.Image, pix *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[img.Name]; ok {
		e.src = pix
	}
	if img.Texture == nil {
		return nil
	}
	if err := r.dev.UpdateTexture(img.Texture, pix); err != nil {
		return fmt.Errorf("updating texture %s: %w", img.Name, err)
	}
	return nil
}

// Images lists every registered image in creation order.
func (r *Registry) Images() []*shader.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*shader.Image, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].img)
	}
	return out
}

// OnLostDevice releases every device texture.
func (r *Registry) OnLostDevice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		e := r.entries[name]
		if e.img.Texture != nil {
			r.dev.ReleaseTexture(e.img.Texture)
			e.img.Texture = nil
		}
	}
}

// OnResetDevice recreates the textures released by OnLostDevice.
func (r *Registry) OnResetDevice() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		e := r.entries[name]
		if e.img.Texture != nil {
			continue
		}
		tex, err := r.dev.CreateTexture(e.src, e.opts)
		if err != nil {
			return fmt.Errorf("recreating texture %s: %w", name, err)
		}
		e.img.Texture = tex
	}
	logging.Logger().Debug("textures recreated", "count", len(r.order))
	return nil
}

// Shutdown releases everything.
func (r *Registry) Shutdown() {
	r.OnLostDevice()
	r.mu.Lock()
	r.entries = make(map[string]*entry)
	r.order = nil
	r.mu.Unlock()
}

func solidImage(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// defaultImage is dark grey with a white border, so missing textures
// stand out.
func defaultImage() *image.RGBA {
	img := solidImage(defaultSize, color.RGBA{32, 32, 32, 255})
	white := color.RGBA{255, 255, 255, 255}
	for i := 0; i < defaultSize; i++ {
		img.SetRGBA(i, 0, white)
		img.SetRGBA(0, i, white)
		img.SetRGBA(i, defaultSize-1, white)
		img.SetRGBA(defaultSize-1, i, white)
	}
	return img
}

func dlightImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, dlightSize, dlightSize))
	for y := 0; y < dlightSize; y++ {
		for x := 0; x < dlightSize; x++ {
			dx := dlightSize/2 - 0.5 - float32(x)
			dy := dlightSize/2 - 0.5 - float32(y)
			d := dx*dx + dy*dy
			b := 4000 / d
			switch {
			case b > 255:
				b = 255
			case b < 75:
				b = 0
			}
			v := uint8(b)
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// fogImage stores the fog falloff in alpha over distance (s) and depth (t).
func fogImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fogS, fogT))
	for y := 0; y < fogT; y++ {
		for x := 0; x < fogS; x++ {
			d := waveform.FogFactor((float32(x)+0.5)/fogS, (float32(y)+0.5)/fogT)
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, uint8(255 * d)})
		}
	}
	return img
}
