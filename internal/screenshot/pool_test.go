package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 60), 7, 255})
		}
	}
	return img
}

func TestPoolRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(2, 4)
	defer pool.Shutdown()

	results := make(chan Result, 2)
	for i, format := range []string{"png", "bmp"} {
		job := Job{
			Image:      testImage(),
			Path:       Filename(filepath.Join(dir, "nested"), format, i),
			Format:     format,
			ResultChan: results,
		}
		if !pool.Submit(job) {
			t.Fatalf("Submit(%s) returned false", format)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			if res.Error != nil {
				t.Fatalf("write %s: %v", res.Path, res.Error)
			}
			f, err := os.Open(res.Path)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			img, _, err := image.Decode(f)
			f.Close()
			if err != nil {
				t.Fatalf("decode %s: %v", res.Path, err)
			}
			if got := img.Bounds().Dx(); got != 8 {
				t.Errorf("width got %v, want %v", got, 8)
			}
			r, g, _, _ := img.At(3, 2).RGBA()
			if r>>8 != 90 || g>>8 != 120 {
				t.Errorf("pixel got (%v,%v), want (90,120)", r>>8, g>>8)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for screenshot")
		}
	}
}

func TestSubmitFullQueue(t *testing.T) {
	pool := NewPool(0, 1)
	defer pool.Shutdown()

	if !pool.Submit(Job{}) {
		t.Fatal("first Submit should fit")
	}
	if pool.Submit(Job{}) {
		t.Error("second Submit should report a full queue")
	}
	if got := pool.QueueLength(); got != 1 {
		t.Errorf("QueueLength got %v, want %v", got, 1)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Shutdown()
	if pool.Submit(Job{}) {
		t.Error("Submit after Shutdown should fail")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", "shot0003.png"},
		{"jpeg", "shot0003.jpg"},
		{"JPG", "shot0003.jpg"},
		{"bmp", "shot0003.bmp"},
		{"tga", "shot0003.png"},
	}
	for _, tt := range tests {
		if got := filepath.Base(Filename("x", tt.format, 3)); got != tt.want {
			t.Errorf("Filename(%q) got %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestEncodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(), "jpg"); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, format, err := image.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format got %v, want %v", format, "jpeg")
	}
}

func TestWriteNilImage(t *testing.T) {
	if err := Write(nil, filepath.Join(t.TempDir(), "a.png"), "png"); err == nil {
		t.Error("Write(nil) should fail")
	}
}
