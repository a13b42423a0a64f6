package backend

import (
	"encoding/binary"
	"errors"
	"image"
	"path/filepath"
	"testing"

	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/device/devicetest"
	"q3backend/internal/screenshot"
)

type captureSink struct {
	jobs []screenshot.Job
	full bool
}

func (s *captureSink) Submit(job screenshot.Job) bool {
	if s.full {
		return false
	}
	s.jobs = append(s.jobs, job)
	return true
}

func TestLostDeviceSkipsFrames(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	pic := opaqueShader("hud", c.images.White)

	frame := func() {
		t.Helper()
		var list CommandList
		list.StretchPic(pic, 0, 0, 32, 32, 0, 0, 1, 1)
		list.SwapBuffers()
		if err := c.ExecuteCommands(&list); err != nil {
			t.Fatalf("ExecuteCommands: %v", err)
		}
	}

	rec.Status = device.StatusLost
	frame()
	if !c.Lost() {
		t.Fatalf("device not flagged lost after BeginScene failed")
	}
	if rec.Presents != 0 || len(rec.Draws) != 0 {
		t.Errorf("lost frame drew: %d presents %d draws", rec.Presents, len(rec.Draws))
	}

	// still lost
	frame()
	if rec.Resets != 0 || !c.Lost() {
		t.Errorf("got %d resets lost=%v, want 0 and still lost", rec.Resets, c.Lost())
	}

	rec.Status = device.StatusNotReset
	frame()
	if rec.Resets != 1 {
		t.Errorf("resets: got %d, want 1", rec.Resets)
	}
	if !c.Lost() {
		t.Errorf("recovered before the device reported OK")
	}

	// the poll that recovers still skips its frame
	frame()
	if c.Lost() {
		t.Fatalf("device not recovered")
	}
	if rec.Presents != 0 {
		t.Errorf("presents on recovery frame: got %d, want 0", rec.Presents)
	}
	if c.progs.Static.Buffer() == nil {
		t.Errorf("stream buffers not recreated")
	}
	if c.images.White.Texture == nil {
		t.Errorf("textures not recreated")
	}

	frame()
	if rec.Presents != 1 || len(rec.Draws) != 1 {
		t.Errorf("after recovery: got %d presents %d draws, want 1 and 1", rec.Presents, len(rec.Draws))
	}
}

func TestPresentLossFlagsDevice(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	rec.PresentErr = device.ErrDeviceLost

	var list CommandList
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if !c.Lost() {
		t.Errorf("device not flagged lost after Present failed")
	}
}

func TestDriverErrorIsFatal(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	rec.PresentErr = device.ErrDeviceLost

	var list CommandList
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}

	rec.Status = device.StatusDriverError
	list.SwapBuffers()
	err := c.ExecuteCommands(&list)
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want a FatalError", err)
	}
	if fe.Value != int(device.StatusDriverError) {
		t.Errorf("status: got %d, want %d", fe.Value, device.StatusDriverError)
	}
	if list.Len() != 0 {
		t.Errorf("list not drained: %d records left", list.Len())
	}
}

func TestStretchPicAfterViewDropsViewContext(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	pic := opaqueShader("hud", c.images.White)

	// the view drew with the same shader inside a fog volume
	c.currentEntity = &c.worldEntity
	c.BeginSurface(pic, 3)
	c.surfaceFace(triFace(0))

	c.stretchPic(&StretchPicCmd{Shader: pic, W: 32, H: 32, S2: 1, T2: 1})

	if got := len(rec.Draws); got != 1 {
		t.Fatalf("draws: got %d, want the view batch flushed once", got)
	}
	if d := rec.Draws[0]; d.PrimCount != 1 {
		t.Errorf("flushed batch: got %d triangles, want 1", d.PrimCount)
	}
	if c.tess.FogNum != 0 {
		t.Errorf("pic fog: got %d, want 0", c.tess.FogNum)
	}
	if c.currentEntity != &c.entity2D {
		t.Errorf("pic entity: got %p, want the 2D entity", c.currentEntity)
	}
	if c.tess.NumVertexes != 4 || c.tess.NumIndexes != 6 {
		t.Errorf("pic batch: got %d vertexes %d indexes, want 4 and 6", c.tess.NumVertexes, c.tess.NumIndexes)
	}

	// later pics with the same shader keep batching
	c.stretchPic(&StretchPicCmd{Shader: pic, X: 64, W: 32, H: 32, S2: 1, T2: 1})
	if c.tess.NumIndexes != 12 {
		t.Errorf("second pic: got %d indexes, want 12", c.tess.NumIndexes)
	}
}

func TestStretchPicsBatch(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	pic := opaqueShader("hud", c.images.White)

	var list CommandList
	list.SetColor(1, 0.5, 0, 1)
	list.StretchPic(pic, 0, 0, 32, 32, 0, 0, 1, 1)
	list.StretchPic(pic, 64, 0, 32, 32, 0, 0, 1, 1)
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}

	if got := len(rec.Draws); got != 1 {
		t.Fatalf("draws: got %d, want 1", got)
	}
	if d := rec.Draws[0]; d.NumVertices != 8 || d.PrimCount != 4 {
		t.Errorf("draw: got %d vertexes %d triangles, want 8 and 4", d.NumVertices, d.PrimCount)
	}
	want := []uint16{3, 0, 2, 2, 0, 1, 7, 4, 6, 6, 4, 5}
	for i, w := range want {
		if got := binary.LittleEndian.Uint16(rec.Indices.Data[i*2:]); got != w {
			t.Errorf("index %d: got %d, want %d", i, got, w)
		}
	}
	if c.color2D != (device.Color{255, 127, 0, 255}) {
		t.Errorf("2D colour: got %v, want [255 127 0 255]", c.color2D)
	}
	if rec.Presents != 1 {
		t.Errorf("presents: got %d, want 1", rec.Presents)
	}
	if c.projection2D {
		t.Errorf("projection2D still set after swap")
	}
}

func TestFinishSetting(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)

	var list CommandList
	list.DrawSurfs(&DrawSurfsCmd{ViewParms: testView()})
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if rec.Finishes != 0 {
		t.Errorf("finish 0: got %d finishes, want 0", rec.Finishes)
	}

	config.SetFinish(1)
	list.DrawSurfs(&DrawSurfsCmd{ViewParms: testView()})
	list.DrawSurfs(&DrawSurfsCmd{ViewParms: testView()})
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if rec.Finishes != 1 {
		t.Errorf("finish 1: got %d finishes, want 1", rec.Finishes)
	}
}

func TestScreenshotHandedToSink(t *testing.T) {
	rec := devicetest.New()
	rec.Backbuffer = image.NewRGBA(image.Rect(0, 0, 8, 8))
	rec.Backbuffer.Pix[(2*8+2)*4] = 200

	sink := &captureSink{}
	c := newTestContext(t, rec)
	c.shots = sink
	dir := t.TempDir()
	config.SetScreenshotDir(dir)

	var list CommandList
	list.TakeScreenshot(2, 2, 4, 4, "")
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}

	if len(sink.jobs) != 1 {
		t.Fatalf("jobs: got %d, want 1", len(sink.jobs))
	}
	job := sink.jobs[0]
	if got := job.Image.Bounds(); got != image.Rect(0, 0, 4, 4) {
		t.Errorf("bounds: got %v, want 4x4", got)
	}
	if job.Image.Pix[0] != 200 {
		t.Errorf("crop origin: got %d, want 200", job.Image.Pix[0])
	}
	if want := filepath.Join(dir, "shot0000.png"); job.Path != want {
		t.Errorf("path: got %s, want %s", job.Path, want)
	}
	if rec.Finishes != 1 {
		t.Errorf("finishes: got %d, want 1", rec.Finishes)
	}

	// a full queue drops the capture
	sink.full = true
	list.TakeScreenshot(0, 0, 8, 8, "named.png")
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Errorf("jobs after full queue: got %d, want 1", len(sink.jobs))
	}
}

func TestStretchRawUploadsAndDraws(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)

	frame := make([]byte, 4*2*4)
	var list CommandList
	list.StretchRaw(0, 0, 320, 240, 4, 2, frame, 1, true)
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}

	scratch := c.images.Scratch[1]
	if scratch.UploadWidth != 4 || scratch.UploadHeight != 2 {
		t.Errorf("scratch size: got %dx%d, want 4x2", scratch.UploadWidth, scratch.UploadHeight)
	}
	if got := len(rec.UPDraws); got != 1 {
		t.Fatalf("draws: got %d, want 1", got)
	}
	if rec.UPDraws[0].Texture != scratch.Texture {
		t.Errorf("cinematic drawn with a different texture")
	}
	if c.raw.pending {
		t.Errorf("frame still pending after swap")
	}

	// same size and dirty: update in place
	tex := scratch.Texture.(*devicetest.Texture)
	list.StretchRaw(0, 0, 320, 240, 4, 2, frame, 1, true)
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if tex.Updates != 1 {
		t.Errorf("updates: got %d, want 1", tex.Updates)
	}

	if err := c.UploadCinematic(4, 2, frame[:4], 1, true); err == nil {
		t.Errorf("short frame accepted")
	}
}

func TestCinematicImageScalesLargeFrames(t *testing.T) {
	img := cinematicImage(2048, 512, make([]byte, 2048*512*4))
	if got := img.Bounds(); got != image.Rect(0, 0, 1024, 256) {
		t.Errorf("bounds: got %v, want 1024x256", got)
	}
}

func TestShowImagesDrawsEveryImage(t *testing.T) {
	rec := devicetest.New()
	c := newTestContext(t, rec)
	config.SetShowImages(1)

	var list CommandList
	list.SwapBuffers()
	if err := c.ExecuteCommands(&list); err != nil {
		t.Fatalf("ExecuteCommands: %v", err)
	}
	if got, want := len(rec.UPDraws), len(c.images.Images()); got != want {
		t.Errorf("image quads: got %d, want %d", got, want)
	}
}
