package backend

import (
	"sync"
	"time"

	"q3backend/internal/config"
	"q3backend/internal/logging"
	"q3backend/internal/profiling"
	"q3backend/internal/scene"
	"q3backend/internal/shader"
)

// Command is one record of a CommandList.
type Command interface {
	command()
}

// SetColorCmd sets the modulate colour of later pics.
type SetColorCmd struct {
	Color [4]float32
}

// StretchPicCmd draws a shader over a screen rectangle.
type StretchPicCmd struct {
	Shader     *shader.Shader
	X, Y, W, H float32
	S1, T1     float32
	S2, T2     float32
}

// DrawSurfsCmd renders one view.
type DrawSurfsCmd struct {
	// Shaders is indexed by the shader field of each sort key.
	Shaders   []*shader.Shader
	World     *scene.World
	RefDef    scene.RefDef
	ViewParms scene.ViewParms
	Surfs     []scene.DrawSurf
}

type DrawBufferCmd struct{}

// SwapBuffersCmd ends the frame.
type SwapBuffersCmd struct{}

// ScreenshotRequest captures the back buffer at the next swap. An empty
// Path picks the next numbered name in the configured directory.
type ScreenshotRequest struct {
	X, Y, Width, Height int
	Path                string
}

// StretchRawCmd uploads a cinematic frame and draws it over the given
// rectangle at the next swap. Data is cols*rows RGBA.
type StretchRawCmd struct {
	X, Y, W, H int
	Cols, Rows int
	Data       []byte
	Client     int
	Dirty      bool
}

type endOfList struct{}

func (*SetColorCmd) command()       {}
func (*StretchPicCmd) command()     {}
func (*DrawSurfsCmd) command()      {}
func (*DrawBufferCmd) command()     {}
func (*SwapBuffersCmd) command()    {}
func (*ScreenshotRequest) command() {}
func (*StretchRawCmd) command()     {}
func (endOfList) command()          {}

// CommandList collects records from the frontend. Adding is safe from any
// goroutine; ExecuteCommands drains the list on the render goroutine.
type CommandList struct {
	mu   sync.Mutex
	cmds []Command
}

func (l *CommandList) Add(cmd Command) {
	l.mu.Lock()
	l.cmds = append(l.cmds, cmd)
	l.mu.Unlock()
}

// Len returns the number of queued records.
func (l *CommandList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cmds)
}

// take removes every queued record and appends the terminator.
func (l *CommandList) take() []Command {
	l.mu.Lock()
	cmds := l.cmds
	l.cmds = nil
	l.mu.Unlock()
	return append(cmds, endOfList{})
}

func (l *CommandList) SetColor(r, g, b, a float32) {
	l.Add(&SetColorCmd{Color: [4]float32{r, g, b, a}})
}

func (l *CommandList) StretchPic(sh *shader.Shader, x, y, w, h, s1, t1, s2, t2 float32) {
	l.Add(&StretchPicCmd{Shader: sh, X: x, Y: y, W: w, H: h, S1: s1, T1: t1, S2: s2, T2: t2})
}

func (l *CommandList) DrawSurfs(cmd *DrawSurfsCmd) {
	l.Add(cmd)
}

func (l *CommandList) SwapBuffers() {
	l.Add(&SwapBuffersCmd{})
}

// TakeScreenshot requests a capture of the given rectangle.
func (l *CommandList) TakeScreenshot(x, y, width, height int, path string) {
	l.Add(&ScreenshotRequest{X: x, Y: y, Width: width, Height: height, Path: path})
}

// StretchRaw queues a cinematic frame. data is copied.
func (l *CommandList) StretchRaw(x, y, w, h, cols, rows int, data []byte, client int, dirty bool) {
	l.Add(&StretchRawCmd{
		X: x, Y: y, W: w, H: h,
		Cols: cols, Rows: rows,
		Data:   append([]byte(nil), data...),
		Client: client,
		Dirty:  dirty,
	})
}

// ExecuteCommands runs every queued record on the render goroutine. The
// whole list is dropped while the device is lost. A fatal renderer
// condition is returned as a *FatalError.
func (c *Context) ExecuteCommands(list *CommandList) (err error) {
	defer recoverFatal(&err)
	defer profiling.Track("backend.executeCommands")()

	start := time.Now()
	cmds := list.take()

	if !c.CheckScene() {
		profiling.Count("backend.skippedFrames", 1)
		return nil
	}

	for i := 0; i < len(cmds); {
		i = c.execute(cmds, i)
	}

	if config.GetSpeeds() {
		counters := profiling.Counters()
		logging.Logger().Info("backend frame",
			"msec", time.Since(start).Milliseconds(),
			"shaders", counters["backend.shaders"],
			"surfaces", counters["backend.surfaces"],
			"vertexes", counters["backend.vertexes"],
			"indexes", counters["backend.indexes"],
			"draws", counters["backend.draws"])
	}
	return nil
}

// execute runs cmds[i] and returns the index of the next record.
func (c *Context) execute(cmds []Command, i int) int {
	switch cmd := cmds[i].(type) {
	case *SetColorCmd:
		c.setColor(cmd.Color)
	case *StretchPicCmd:
		c.stretchPic(cmd)
	case *DrawSurfsCmd:
		c.drawSurfs(cmd)
	case *DrawBufferCmd:
		// nothing to select; the back buffer is always the target
	case *SwapBuffersCmd:
		c.swapBuffers()
	case *ScreenshotRequest:
		c.pendingShot = cmd
	case *StretchRawCmd:
		c.stretchRaw(cmd)
	case endOfList:
		return len(cmds)
	default:
		logging.Logger().Warn("unknown render command", "type", cmd)
	}
	return i + 1
}

func (c *Context) drawSurfs(cmd *DrawSurfsCmd) {
	// finish any 2D drawing if needed
	if c.tess.NumIndexes != 0 {
		c.EndSurface()
	}

	c.refdef = cmd.RefDef
	c.viewParms = cmd.ViewParms
	c.world = cmd.World
	c.shaders = cmd.Shaders

	c.RenderDrawSurfList(cmd.Surfs)
}
