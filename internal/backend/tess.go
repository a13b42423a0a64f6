package backend

import (
	"errors"
	"fmt"

	"q3backend/internal/config"
	"q3backend/internal/device"
	"q3backend/internal/profiling"
	"q3backend/internal/shader"
)

// Batch capacities. Indexes are 16 bit so vertexes stay below 64k.
const (
	MaxVertexes = 32768
	MaxIndexes  = 6 * MaxVertexes / 2
)

var errTessFull = errors.New("tess capacity exceeded")

// Tess accumulates the geometry of one shader and fog combination.
type Tess struct {
	Shader     *shader.Shader
	FogNum     int
	DLightBits int
	ShaderTime float32
	NumPasses  int

	Verts [MaxVertexes]device.StaticVertex
	// Colors are the per-surface input colours; stages derive their own.
	Colors  [MaxVertexes]device.Color
	Indexes [MaxIndexes]uint16

	NumVertexes int
	NumIndexes  int
}

// tryAppend reports a capacity error if v vertexes and i indexes do not
// fit behind the current contents.
func (t *Tess) tryAppend(v, i int) error {
	if t.NumVertexes+v >= MaxVertexes {
		return fmt.Errorf("%w: %d vertexes", errTessFull, t.NumVertexes+v)
	}
	if t.NumIndexes+i >= MaxIndexes {
		return fmt.Errorf("%w: %d indexes", errTessFull, t.NumIndexes+i)
	}
	return nil
}

// Empty reports whether the batch holds no triangles.
func (t *Tess) Empty() bool { return t.NumIndexes == 0 }

func (c *Context) shaderTime(sh *shader.Shader) float32 {
	st := c.refdef.FloatTime - sh.TimeOffset
	if sh.ClampTime != 0 && st >= sh.ClampTime {
		st = sh.ClampTime
	}
	return st
}

// BeginSurface starts a batch for sh and fogNum. Surfaces append to it
// until EndSurface flushes.
func (c *Context) BeginSurface(sh *shader.Shader, fogNum int) {
	state := sh
	if sh.RemappedShader != nil {
		state = sh.RemappedShader
	}

	t := c.tess
	t.NumIndexes = 0
	t.NumVertexes = 0
	t.Shader = state
	t.FogNum = fogNum
	t.DLightBits = 0
	t.NumPasses = state.NumUnfoggedPasses

	c.prepare(state)
	t.ShaderTime = c.shaderTime(state)
}

// CheckOverflow flushes the batch if v vertexes and i indexes would not
// fit, then starts a new batch with the same shader and fog.
func (c *Context) CheckOverflow(v, i int) {
	t := c.tess
	if t.tryAppend(v, i) == nil {
		return
	}
	if t.Shader == nil {
		fatal("tess overflow with no shader bound", t.NumVertexes+v, MaxVertexes)
	}

	c.EndSurface()

	if v >= MaxVertexes {
		fatal("CheckOverflow: vertexes", v, MaxVertexes)
	}
	if i >= MaxIndexes {
		fatal("CheckOverflow: indexes", i, MaxIndexes)
	}

	c.BeginSurface(t.Shader, t.FogNum)
}

// EndSurface draws the batch.
func (c *Context) EndSurface() {
	t := c.tess
	if t.NumIndexes == 0 {
		return
	}

	if t.Shader == c.shadowShader {
		c.shadowTessEnd()
		return
	}

	// for debugging of sort order issues, stop rendering after a given sort value
	if ds := config.GetDebugSort(); ds > 0 && shader.Sort(ds) < t.Shader.Sort {
		return
	}

	profiling.Count("backend.shaders", 1)
	profiling.Count("backend.vertexes", t.NumVertexes)
	profiling.Count("backend.indexes", t.NumIndexes)
	profiling.Count("backend.totalIndexes", t.NumIndexes*t.NumPasses)

	if t.Shader.Iterator == shader.IteratorSky {
		c.stageIteratorSky()
	} else {
		c.stageIteratorGeneric()
	}

	t.NumIndexes = 0
}

// shadowTessEnd drops stencil shadow volumes; the device has no stencil
// operations to draw them with.
func (c *Context) shadowTessEnd() {
	profiling.Count("backend.shadowBatches", 1)
	c.tess.NumIndexes = 0
}
