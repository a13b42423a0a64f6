// Package progcache compiles and caches the stage program permutations and
// owns the streaming vertex and index buffers they draw from.
package progcache

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"q3backend/internal/device"
	"q3backend/internal/logging"
	"q3backend/internal/shader"
)

//go:embed glsl/*.glsl
var sources embed.FS

const (
	// MaxEntries bounds the number of distinct stage programs.
	MaxEntries = 1024

	VertexEntry   = "VSMain"
	PixelEntry    = "PSMain"
	VertexProfile = "vs_4_1"
	PixelProfile  = "ps_4_1"
)

var (
	ErrCacheFull     = errors.New("progcache: program cache full")
	ErrTooFewUnits   = errors.New("progcache: not enough texture units")
	ErrBuiltinFailed = errors.New("progcache: built-in program failed to compile")
)

// Program is a vertex/pixel shader pair plus the input layout it reads.
type Program struct {
	Key    uint32
	Format device.VertexFormat
	VS, PS device.Shader
}

// Valid reports whether both halves compiled.
func (p *Program) Valid() bool {
	return p != nil && p.VS != nil && p.PS != nil
}

func (p *Program) release() {
	if p.VS != nil {
		p.VS.Release()
		p.VS = nil
	}
	if p.PS != nil {
		p.PS.Release()
		p.PS = nil
	}
}

// Cache maps stage keys to compiled programs. It is used from the render
// thread only; the mutex guards Len and Stats readers on other goroutines.
type Cache struct {
	dev      device.Device
	compiler device.Compiler

	mu      sync.RWMutex
	entries map[uint32]*Program
	order   []uint32

	shadeSrc []byte

	Generic *Program
	Skybox  *Program
	DLight  *Program

	Static  *Ring
	Dynamic *Ring
	Index   *Ring
}

// Init loads the compiler-side sources, builds the built-in programs and
// creates the streaming buffers. The returned errors are fatal to the
// renderer.
func Init(dev device.Device, compiler device.Compiler) (*Cache, error) {
	if compiler == nil {
		return nil, device.ErrCompilerUnavailable
	}
	if units := dev.Caps().MaxTextureUnits; units < shader.MaxStages {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewUnits, units, shader.MaxStages)
	}

	shadeSrc, err := sources.ReadFile("glsl/shade.glsl")
	if err != nil {
		return nil, fmt.Errorf("reading stage program source: %w", err)
	}

	c := &Cache{
		dev:      dev,
		compiler: compiler,
		entries:  make(map[uint32]*Program),
		shadeSrc: shadeSrc,
		Static:   NewRing(dev, device.StaticVertexSize, BufferMaxVertexes, false),
		Dynamic:  NewRing(dev, device.ColorSize, BufferMaxVertexes, false),
		Index:    NewRing(dev, device.IndexSize, BufferMaxIndexes, true),
	}

	builtins := []struct {
		dst    **Program
		file   string
		format device.VertexFormat
	}{
		{&c.Generic, "glsl/generic.glsl", device.FormatGeneric},
		{&c.Skybox, "glsl/skybox.glsl", device.FormatSkybox},
		{&c.DLight, "glsl/dlight.glsl", device.FormatPosition},
	}
	for _, b := range builtins {
		src, err := sources.ReadFile(b.file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", b.file, err)
		}
		p := c.build(src, StaticDefines(), b.format)
		if !p.Valid() {
			c.Shutdown()
			return nil, fmt.Errorf("%w: %s", ErrBuiltinFailed, b.file)
		}
		*b.dst = p
	}

	if err := c.OnResetDevice(); err != nil {
		c.Shutdown()
		return nil, err
	}

	logging.Logger().Info("programs initialised", "builtins", len(builtins))
	return c, nil
}

// compileHalf compiles one side of a program. defines[0] is overwritten
// with the side's selector.
func (c *Cache) compileHalf(src []byte, defines []device.Define, pixel bool) device.Shader {
	entry, profile := VertexEntry, VertexProfile
	defines[0] = device.Define{Name: "VERTEXSHADER", Value: "1"}
	if pixel {
		entry, profile = PixelEntry, PixelProfile
		defines[0] = device.Define{Name: "PIXELSHADER", Value: "1"}
	}

	code, err := c.compiler.Compile(src, entry, profile, defines)
	if err != nil {
		var ce *device.CompileError
		if errors.As(err, &ce) {
			logging.Logger().Warn("program compile failed", "entry", entry, "log", ce.Log)
		} else {
			logging.Logger().Warn("program compile failed", "entry", entry, "err", err)
		}
		return nil
	}

	var s device.Shader
	if pixel {
		s, err = c.dev.CreatePixelShader(code)
	} else {
		s, err = c.dev.CreateVertexShader(code)
	}
	if err != nil {
		logging.Logger().Warn("program create failed", "entry", entry, "err", err)
		return nil
	}
	return s
}

// build compiles both halves. statics must not include the reserved slot 0.
func (c *Cache) build(src []byte, statics []device.Define, format device.VertexFormat) *Program {
	defines := make([]device.Define, 1, len(statics)+1)
	defines = append(defines, statics...)

	p := &Program{Format: format}
	p.VS = c.compileHalf(src, defines, false)
	p.PS = c.compileHalf(src, defines, true)
	if !p.Valid() {
		p.release()
	}
	return p
}

var tcGenDefines = [...]string{
	shader.TCGenBad:               "TCGEN_BAD",
	shader.TCGenIdentity:          "TCGEN_IDENTITY",
	shader.TCGenLightmap:          "TCGEN_LIGHTMAP",
	shader.TCGenTexture:           "TCGEN_TEXTURE",
	shader.TCGenEnvironmentMapped: "TCGEN_ENVIRONMENT_MAPPED",
	shader.TCGenFog:               "TCGEN_FOG",
	shader.TCGenVector:            "TCGEN_VECTOR",
}

func texModType(b *shader.TextureBundle, slot int) shader.TexModType {
	if slot < len(b.TexMods) {
		return b.TexMods[slot].Type
	}
	return shader.TModNone
}

// Key packs everything that selects a stage program into one word.
func Key(st *shader.Stage, isSky bool) uint32 {
	var sky uint32
	if isSky {
		sky = 1
	}
	b := &st.Bundle
	return sky |
		uint32(texModType(b, 3))<<28 |
		uint32(texModType(b, 2))<<24 |
		uint32(texModType(b, 1))<<20 |
		uint32(texModType(b, 0))<<16 |
		uint32(b.TCGen)<<12 |
		uint32(st.RGBGen)<<8 |
		uint32(st.AlphaGen)<<4 |
		uint32(st.TMU)<<1
}

// StageDefines returns the full define list for st, slot 0 included and
// left empty for the side selector.
func StageDefines(st *shader.Stage, isSky bool) []device.Define {
	defines := make([]device.Define, 1, len(staticDefines)+8)
	defines = append(defines, staticDefines...)
	defines = append(defines,
		device.Define{Name: "TEXTURESTAGE", Value: fmt.Sprintf("t%d", st.TMU)},
		device.Define{Name: "SAMPLERSTAGE", Value: fmt.Sprintf("s%d", st.TMU)},
	)

	tc := "TCGEN_SKY"
	if !isSky {
		tc = "TCGEN_BAD"
		if int(st.Bundle.TCGen) < len(tcGenDefines) {
			tc = tcGenDefines[st.Bundle.TCGen]
		}
	}
	defines = append(defines, device.Define{Name: tc, Value: "1"})

	for tm := 0; tm < len(st.Bundle.TexMods) && tm < shader.MaxTexMods; tm++ {
		switch st.Bundle.TexMods[tm].Type {
		case shader.TModNone:
			return defines
		case shader.TModTurbulent:
			defines = append(defines, device.Define{Name: fmt.Sprintf("TMOD_TURB%d", tm), Value: "1"})
		default:
			defines = append(defines, device.Define{Name: fmt.Sprintf("TMOD_TRANSFORM%d", tm), Value: "1"})
		}
	}
	return defines
}

// GetOrCompile returns the program for st, compiling it on a miss. A failed
// compile yields a program with nil shaders which is not cached. The only
// error is a full cache.
func (c *Cache) GetOrCompile(st *shader.Stage, isSky bool) (*Program, error) {
	key := Key(st, isSky)

	c.mu.RLock()
	p, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		logging.Logger().Debug("program cache hit", "key", key)
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[key]; ok {
		return p, nil
	}
	if len(c.entries) >= MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrCacheFull, len(c.entries))
	}

	defines := StageDefines(st, isSky)
	p = &Program{Key: key, Format: device.FormatStage}
	p.VS = c.compileHalf(c.shadeSrc, defines, false)
	p.PS = c.compileHalf(c.shadeSrc, defines, true)
	if !p.Valid() {
		p.release()
		return p, nil
	}

	c.entries[key] = p
	c.order = append(c.order, key)
	return p, nil
}

// PrepareShader assigns texture units and resolves a program for every
// active stage of sh that has not been attempted yet.
func (c *Cache) PrepareShader(sh *shader.Shader) error {
	for i, st := range sh.ActiveStages() {
		if st.ProgramBuilt {
			continue
		}
		st.TMU = i
		p, err := c.GetOrCompile(st, sh.IsSky)
		if err != nil {
			return err
		}
		st.VertexShader = p.VS
		st.PixelShader = p.PS
		st.ProgramKey = p.Key
		st.ProgramBuilt = true
	}
	return nil
}

// Len returns the number of cached stage programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// OnLostDevice releases the streaming buffers.
func (c *Cache) OnLostDevice() {
	c.Static.Release()
	c.Dynamic.Release()
	c.Index.Release()
}

// OnResetDevice recreates the streaming buffers.
func (c *Cache) OnResetDevice() error {
	for _, r := range []*Ring{c.Static, c.Dynamic, c.Index} {
		if err := r.Create(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown releases every program and buffer. The cache is unusable after.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	for _, key := range c.order {
		c.entries[key].release()
	}
	c.entries = make(map[uint32]*Program)
	c.order = nil
	c.mu.Unlock()

	for _, p := range []*Program{c.Generic, c.Skybox, c.DLight} {
		if p != nil {
			p.release()
		}
	}
	c.OnLostDevice()
}
