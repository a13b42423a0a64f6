package gldevice

import (
	"fmt"

	"q3backend/internal/device"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Attribute locations shared by every program source.
const (
	attribXYZ    = 0
	attribNormal = 1
	attribST     = 2
	attribLM     = 3
	attribColor  = 4
)

// Buffer is a GL buffer object sized at creation.
type Buffer struct {
	id     uint32
	target uint32
	size   int
}

func (b *Buffer) Size() int { return b.size }

func (b *Buffer) Release() {
	if b.id == 0 {
		return
	}
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
}

type stream struct {
	buf            *Buffer
	offset, stride int
}

func (d *Device) createBuffer(target uint32, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gldevice: buffer size %d", size)
	}
	b := &Buffer{target: target, size: size}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(target, b.id)
	gl.BufferData(target, size, nil, gl.DYNAMIC_DRAW)
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &b.id)
		return nil, fmt.Errorf("gldevice: allocate %d byte buffer: error 0x%x", size, code)
	}
	d.restoreIndices(target)
	return b, nil
}

func (d *Device) CreateVertexBuffer(size int) (device.Buffer, error) {
	return d.createBuffer(gl.ARRAY_BUFFER, size)
}

func (d *Device) CreateIndexBuffer(size int) (device.Buffer, error) {
	return d.createBuffer(gl.ELEMENT_ARRAY_BUFFER, size)
}

// restoreIndices puts the element binding back after a buffer operation
// borrowed it; the binding is part of the vertex array state.
func (d *Device) restoreIndices(target uint32) {
	if target != gl.ELEMENT_ARRAY_BUFFER {
		return
	}
	var id uint32
	if d.indices != nil {
		id = d.indices.id
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, id)
}

// WriteBuffer orphans the storage on discard so the driver can hand back
// fresh memory while earlier draws still read the old copy.
func (d *Device) WriteBuffer(b device.Buffer, offset int, data []byte, discard bool) error {
	buf := b.(*Buffer)
	if offset < 0 || offset+len(data) > buf.size {
		return fmt.Errorf("gldevice: write %d bytes at %d overflows %d byte buffer", len(data), offset, buf.size)
	}
	if len(data) == 0 {
		return nil
	}

	gl.BindBuffer(buf.target, buf.id)
	if discard {
		gl.BufferData(buf.target, buf.size, nil, gl.DYNAMIC_DRAW)
	}
	gl.BufferSubData(buf.target, offset, len(data), gl.Ptr(data))
	d.restoreIndices(buf.target)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gldevice: buffer write: error 0x%x", code)
	}
	return nil
}

func (d *Device) SetStreamSource(n int, b device.Buffer, offset, stride int) {
	var buf *Buffer
	if b != nil {
		buf = b.(*Buffer)
	}
	d.streams[n] = stream{buf: buf, offset: offset, stride: stride}
}

func (d *Device) SetIndices(b device.Buffer) {
	if b == nil {
		d.indices = nil
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
		return
	}
	d.indices = b.(*Buffer)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.indices.id)
}

func attrib(loc uint32, size int32, xtype uint32, normalized bool, stride, offset int) {
	gl.EnableVertexAttribArray(loc)
	gl.VertexAttribPointerWithOffset(loc, size, xtype, normalized, int32(stride), uintptr(offset))
}

func disableAttribs(locs ...uint32) {
	for _, loc := range locs {
		gl.DisableVertexAttribArray(loc)
	}
}

// bindStreams points the attributes of the current format at the stream
// buffers. Only the stage and position layouts read streams.
func (d *Device) bindStreams() bool {
	s0 := d.streams[0]
	if s0.buf == nil || s0.buf.id == 0 {
		return false
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, s0.buf.id)

	switch d.format {
	case device.FormatStage:
		stride := s0.stride
		attrib(attribXYZ, 3, gl.FLOAT, false, stride, s0.offset)
		attrib(attribNormal, 3, gl.FLOAT, false, stride, s0.offset+12)
		attrib(attribST, 2, gl.FLOAT, false, stride, s0.offset+24)
		attrib(attribLM, 2, gl.FLOAT, false, stride, s0.offset+32)

		s1 := d.streams[1]
		if s1.buf == nil || s1.buf.id == 0 {
			gl.DisableVertexAttribArray(attribColor)
			gl.VertexAttrib4f(attribColor, 1, 1, 1, 1)
			return true
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, s1.buf.id)
		attrib(attribColor, 4, gl.UNSIGNED_BYTE, true, s1.stride, s1.offset)
	case device.FormatPosition:
		attrib(attribXYZ, 3, gl.FLOAT, false, s0.stride, s0.offset)
		disableAttribs(attribNormal, attribST, attribLM, attribColor)
	default:
		return false
	}
	return true
}

// bindGeneric reads GenericVertex from the scratch buffer.
func (d *Device) bindGeneric() {
	gl.BindBuffer(gl.ARRAY_BUFFER, d.upBuffer)
	stride := device.GenericVertexSize
	attrib(attribXYZ, 3, gl.FLOAT, false, stride, 0)
	attrib(attribST, 2, gl.FLOAT, false, stride, 16)
	disableAttribs(attribNormal, attribLM)
	if d.format == device.FormatSkybox {
		gl.DisableVertexAttribArray(attribColor)
		gl.VertexAttrib4f(attribColor, 1, 1, 1, 1)
	} else {
		attrib(attribColor, 4, gl.UNSIGNED_BYTE, true, stride, 12)
	}
}

var primitives = map[device.Primitive]uint32{
	device.TriangleList:  gl.TRIANGLES,
	device.TriangleFan:   gl.TRIANGLE_FAN,
	device.TriangleStrip: gl.TRIANGLE_STRIP,
	device.LineList:      gl.LINES,
}

func vertexCount(prim device.Primitive, primCount int) int {
	switch prim {
	case device.TriangleList:
		return primCount * 3
	case device.TriangleFan, device.TriangleStrip:
		return primCount + 2
	case device.LineList:
		return primCount * 2
	}
	return 0
}

func (d *Device) DrawIndexed(prim device.Primitive, baseVertex, numVertices, startIndex, primCount int) {
	if d.indices == nil || primCount <= 0 {
		return
	}
	if !d.bindStreams() || !d.useProgram() {
		return
	}
	count := vertexCount(prim, primCount)
	gl.DrawElementsBaseVertex(primitives[prim], int32(count), gl.UNSIGNED_SHORT,
		gl.PtrOffset(startIndex*device.IndexSize), int32(baseVertex))
}

// DrawUP draws client vertexes through the scratch buffer, orphaned on
// every call.
func (d *Device) DrawUP(prim device.Primitive, primCount int, verts []device.GenericVertex) {
	count := vertexCount(prim, primCount)
	if count <= 0 || count > len(verts) {
		return
	}
	if d.format != device.FormatGeneric && d.format != device.FormatSkybox {
		return
	}

	data := device.GenericBytes(verts[:count])
	gl.BindBuffer(gl.ARRAY_BUFFER, d.upBuffer)
	if len(data) > d.upSize {
		d.upSize = len(data)
	}
	gl.BufferData(gl.ARRAY_BUFFER, d.upSize, nil, gl.STREAM_DRAW)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data), gl.Ptr(data))

	d.bindGeneric()
	if !d.useProgram() {
		return
	}
	gl.DrawArrays(primitives[prim], 0, int32(count))
}
