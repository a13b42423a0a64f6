package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"q3backend/internal/device"
	"q3backend/internal/device/devicetest"
)

func TestBuiltins(t *testing.T) {
	dev := devicetest.New()
	r, err := New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if r.Default == nil || r.White == nil || r.DLight == nil || r.Fog == nil {
		t.Fatal("missing built-in image")
	}
	if got, want := dev.TexturesMade, 4+NumScratch; got != want {
		t.Errorf("TexturesMade got %v, want %v", got, want)
	}
	if got := r.Find("*white"); got != r.White {
		t.Errorf("Find(*white) got %v, want %v", got, r.White)
	}
	if got, want := len(r.Images()), 4+NumScratch; got != want {
		t.Errorf("Images() len got %v, want %v", got, want)
	}
	if r.Fog.Wrap != device.WrapClamp {
		t.Errorf("fog wrap got %v, want clamp", r.Fog.Wrap)
	}
}

func TestDefaultImageBorder(t *testing.T) {
	img := defaultImage()
	if got := img.RGBAAt(0, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("border got %v, want white", got)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{32, 32, 32, 255}) {
		t.Errorf("centre got %v, want dark grey", got)
	}
}

func TestFogImageRamp(t *testing.T) {
	img := fogImage()
	// the first column is before the fog starts
	if got := img.RGBAAt(0, fogT-1).A; got != 0 {
		t.Errorf("alpha at s=0 got %v, want 0", got)
	}
	if got := img.RGBAAt(fogS-1, fogT-1).A; got != 255 {
		t.Errorf("alpha at far corner got %v, want 255", got)
	}
}

func TestLoadCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wall.png")
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	src.Set(1, 1, color.NRGBA{10, 20, 30, 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dev := devicetest.New()
	r, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}
	before := dev.TexturesMade

	a, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := r.Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if a != b {
		t.Error("second Load returned a different image")
	}
	if got := dev.TexturesMade - before; got != 1 {
		t.Errorf("textures created got %v, want %v", got, 1)
	}
	if a.Width != 4 || a.Height != 2 {
		t.Errorf("size got %vx%v, want 4x2", a.Width, a.Height)
	}
	tex := a.Texture.(*devicetest.Texture)
	if got := tex.Pix[(1*4+1)*4]; got != 10 {
		t.Errorf("pixel red got %v, want %v", got, 10)
	}
}

func TestLoadMissing(t *testing.T) {
	r, err := New(devicetest.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestResizeKeepsPointer(t *testing.T) {
	dev := devicetest.New()
	r, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}
	img := r.Scratch[0]
	old := img.Texture.(*devicetest.Texture)

	if err := r.Resize(img, image.NewRGBA(image.Rect(0, 0, 32, 8))); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if r.Scratch[0] != img {
		t.Error("Resize replaced the image pointer")
	}
	if img.Width != 32 || img.Height != 8 {
		t.Errorf("size got %vx%v, want 32x8", img.Width, img.Height)
	}
	if !old.Released {
		t.Error("old texture not released")
	}

	if err := r.Update(img, image.NewRGBA(image.Rect(0, 0, 32, 8))); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := img.Texture.(*devicetest.Texture).Updates; got != 1 {
		t.Errorf("Updates got %v, want %v", got, 1)
	}
}

func TestLostAndReset(t *testing.T) {
	dev := devicetest.New()
	r, err := New(dev)
	if err != nil {
		t.Fatal(err)
	}
	r.OnLostDevice()
	if r.White.Texture != nil {
		t.Fatal("texture kept after OnLostDevice")
	}
	if err := r.OnResetDevice(); err != nil {
		t.Fatalf("OnResetDevice: %v", err)
	}
	if r.White.Texture == nil {
		t.Error("texture not recreated")
	}
	if got := r.White.Texture.(*devicetest.Texture).W; got != 8 {
		t.Errorf("recreated width got %v, want %v", got, 8)
	}
}
