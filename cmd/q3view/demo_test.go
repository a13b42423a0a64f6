package main

import (
	"math"
	"testing"
	"time"

	"q3backend/internal/assets"
	"q3backend/internal/backend"
	"q3backend/internal/device/devicetest"
	"q3backend/internal/scene"
)

func TestAngleAxisOrthonormal(t *testing.T) {
	for _, a := range [][2]float64{{0, 0}, {15, 200}, {-30, 45}} {
		axis := angleAxis(a[0], a[1])
		for i := 0; i < 3; i++ {
			if l := axis[i].Len(); math.Abs(float64(l)-1) > 1e-5 {
				t.Errorf("%v axis %d length: got %v, want 1", a, i, l)
			}
			for j := i + 1; j < 3; j++ {
				if d := axis[i].Dot(axis[j]); math.Abs(float64(d)) > 1e-5 {
					t.Errorf("%v axes %d,%d dot: got %v, want 0", a, i, j, d)
				}
			}
		}
	}
}

func TestFovYSquareMatchesFovX(t *testing.T) {
	if got := fovY(90, 100, 100); math.Abs(float64(got)-90) > 1e-3 {
		t.Errorf("got %v, want 90", got)
	}
	if got := fovY(90, 200, 100); got >= 90 {
		t.Errorf("wide view: got %v, want less than 90", got)
	}
}

func TestDemoFrameCommands(t *testing.T) {
	images, err := assets.New(devicetest.New())
	if err != nil {
		t.Fatalf("assets.New: %v", err)
	}
	d, err := newDemo(images, "")
	if err != nil {
		t.Fatalf("newDemo: %v", err)
	}
	for i, sh := range d.shaders {
		if sh.Index != i {
			t.Errorf("shader %s index: got %d, want %d", sh.Name, sh.Index, i)
		}
	}

	cmd := d.view(640, 480, 2*time.Second)
	for i := 1; i < len(cmd.Surfs); i++ {
		if cmd.Surfs[i-1].Sort > cmd.Surfs[i].Sort {
			t.Fatalf("surfaces not sorted at %d", i)
		}
	}
	shaderIndex, _, _, _ := scene.DecomposeSort(cmd.Surfs[0].Sort)
	if shaderIndex != shaderSky {
		t.Errorf("first surface shader: got %d, want sky", shaderIndex)
	}

	var list backend.CommandList
	d.screenshot = true
	d.frame(&list, 640, 480, time.Second)
	// surfs, colour, pic, colour, raw, screenshot, swap
	if got := list.Len(); got != 7 {
		t.Errorf("commands: got %d, want 7", got)
	}
	if d.screenshot {
		t.Errorf("screenshot request not consumed")
	}
}
