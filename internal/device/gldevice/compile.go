package gldevice

import (
	"fmt"
	"strings"

	"q3backend/internal/device"
	"q3backend/internal/logging"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const glslVersion = "#version 410 core"

// Preprocess turns a program source plus defines into a complete GLSL
// translation unit for one stage. The entry point is renamed to main.
//
// Register defines arrive spelled cN, sampler stages sN and texture stages
// tN; GLSL indexes its uniform arrays with the bare number.
func Preprocess(src []byte, entry string, defines []device.Define) string {
	var sb strings.Builder
	sb.Grow(len(src) + 64*len(defines))

	sb.WriteString(glslVersion)
	sb.WriteByte('\n')
	for _, d := range defines {
		sb.WriteString("#define ")
		sb.WriteString(d.Name)
		if v := registerValue(d.Value); v != "" {
			sb.WriteByte(' ')
			sb.WriteString(v)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "#define %s main\n", entry)
	sb.WriteString("#line 1\n")
	sb.Write(src)
	return sb.String()
}

func registerValue(v string) string {
	if len(v) < 2 {
		return v
	}
	switch v[0] {
	case 'c', 's', 't':
	default:
		return v
	}
	for i := 1; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return v
		}
	}
	return v[1:]
}

// stageFor picks the GL shader type from the compile profile.
func stageFor(profile string) (uint32, error) {
	switch {
	case strings.HasPrefix(profile, "vs_"):
		return gl.VERTEX_SHADER, nil
	case strings.HasPrefix(profile, "ps_"):
		return gl.FRAGMENT_SHADER, nil
	}
	return 0, fmt.Errorf("unknown shader profile %q", profile)
}

// Compile checks the source against the driver and returns the expanded
// GLSL as the program's code. GL has no portable bytecode, so the shader
// object built here is kept and handed out again by CreateVertexShader or
// CreatePixelShader for the same code.
func (d *Device) Compile(src []byte, entry, profile string, defines []device.Define) ([]byte, error) {
	kind, err := stageFor(profile)
	if err != nil {
		return nil, err
	}

	code := Preprocess(src, entry, defines)
	if _, ok := d.compiled[code]; ok {
		return []byte(code), nil
	}

	id, log, err := compileShader(code, kind)
	if err != nil {
		return nil, &device.CompileError{Entry: entry, Profile: profile, Log: log}
	}
	d.compiled[code] = id
	logging.Logger().Debug("gldevice: compiled", "entry", entry, "profile", profile, "defines", len(defines))
	return []byte(code), nil
}

func compileShader(source string, shaderType uint32) (uint32, string, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		log = strings.TrimRight(log, "\x00")
		return 0, log, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, "", nil
}

func linkProgram(vs, ps uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, ps)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, fmt.Errorf("failed to link program: %v", strings.TrimRight(log, "\x00"))
	}
	gl.DetachShader(program, vs)
	gl.DetachShader(program, ps)
	return program, nil
}

// Shader is a compiled GL shader object.
type Shader struct {
	dev  *Device
	id   uint32
	kind uint32
	code string
}

// Release deletes the shader and every linked program that used it.
func (s *Shader) Release() {
	if s.id == 0 {
		return
	}
	s.dev.dropShader(s)
	gl.DeleteShader(s.id)
	s.id = 0
}

func (d *Device) createShader(code []byte, kind uint32) (*Shader, error) {
	src := string(code)
	id, ok := d.compiled[src]
	if ok {
		delete(d.compiled, src)
	} else {
		var err error
		id, _, err = compileShader(src, kind)
		if err != nil {
			return nil, err
		}
	}
	return &Shader{dev: d, id: id, kind: kind, code: src}, nil
}

func (d *Device) CreateVertexShader(code []byte) (device.Shader, error) {
	return d.createShader(code, gl.VERTEX_SHADER)
}

func (d *Device) CreatePixelShader(code []byte) (device.Shader, error) {
	return d.createShader(code, gl.FRAGMENT_SHADER)
}

func (d *Device) SetVertexShader(s device.Shader) {
	d.vs = asShader(s)
}

func (d *Device) SetPixelShader(s device.Shader) {
	d.ps = asShader(s)
}

func asShader(s device.Shader) *Shader {
	if s == nil {
		return nil
	}
	return s.(*Shader)
}

type programKey struct {
	vs, ps uint32
}

// program is a linked VS/PS pair and its uniform locations.
type program struct {
	id        uint32
	vc, pc    int32
	alphaTest int32
}

func (d *Device) dropShader(s *Shader) {
	for k, p := range d.programs {
		if k.vs == s.id || k.ps == s.id {
			if d.current == p {
				d.current = nil
			}
			gl.DeleteProgram(p.id)
			delete(d.programs, k)
		}
	}
	if d.vs == s {
		d.vs = nil
	}
	if d.ps == s {
		d.ps = nil
	}
}

// useProgram links the bound pair on first use and makes it current. The
// sampler array is pointed at units 0..n once at link time.
func (d *Device) useProgram() bool {
	if d.vs == nil || d.ps == nil {
		return false
	}
	key := programKey{d.vs.id, d.ps.id}
	p, ok := d.programs[key]
	if !ok {
		id, err := linkProgram(d.vs.id, d.ps.id)
		if err != nil {
			logging.Logger().Warn("gldevice: link failed", "error", err)
			d.programs[key] = nil
			return false
		}
		p = &program{
			id:        id,
			vc:        gl.GetUniformLocation(id, gl.Str("vc\x00")),
			pc:        gl.GetUniformLocation(id, gl.Str("pc\x00")),
			alphaTest: gl.GetUniformLocation(id, gl.Str("alphaTest\x00")),
		}
		gl.UseProgram(id)
		for i := 0; i < maxUnits; i++ {
			loc := gl.GetUniformLocation(id, gl.Str(fmt.Sprintf("tmu[%d]\x00", i)))
			if loc >= 0 {
				gl.Uniform1i(loc, int32(i))
			}
		}
		d.programs[key] = p
		d.current = nil
	}
	if p == nil {
		return false
	}

	if d.current != p {
		gl.UseProgram(p.id)
		d.current = p
		d.vcDirty, d.pcDirty, d.alphaDirty = true, true, true
	}
	if d.vcDirty && p.vc >= 0 {
		gl.Uniform4fv(p.vc, numRegisters, &d.vc[0][0])
	}
	if d.pcDirty && p.pc >= 0 {
		gl.Uniform4fv(p.pc, numRegisters, &d.pc[0][0])
	}
	if d.alphaDirty && p.alphaTest >= 0 {
		mode, ref := d.alphaUniform()
		gl.Uniform2f(p.alphaTest, mode, ref)
	}
	d.vcDirty, d.pcDirty, d.alphaDirty = false, false, false
	return true
}

func (d *Device) alphaUniform() (mode, ref float32) {
	if !d.alphaTest {
		return 0, 0
	}
	ref = float32(d.alphaRef) / 255
	switch d.alphaFunc {
	case device.CompareGreater:
		return 1, ref
	case device.CompareLess:
		return 2, ref
	case device.CompareGreaterEqual:
		return 3, ref
	}
	return 0, 0
}
