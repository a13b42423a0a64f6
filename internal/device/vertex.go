package device

import "unsafe"

// Color is a packed RGBA8 value, byte order R, G, B, A.
type Color [4]uint8

// RGBA returns the color as normalized floats.
func (c Color) RGBA() [4]float32 {
	return [4]float32{
		float32(c[0]) / 255,
		float32(c[1]) / 255,
		float32(c[2]) / 255,
		float32(c[3]) / 255,
	}
}

// Gray returns an opaque color with every channel set to v.
func Gray(v uint8) Color {
	return Color{v, v, v, 255}
}

// StaticVertex is the per-surface attribute set shared by every stage.
type StaticVertex struct {
	XYZ    [3]float32
	Normal [3]float32
	ST     [2]float32
	LM     [2]float32
}

// GenericVertex feeds the built-in programs through DrawUP.
type GenericVertex struct {
	XYZ   [3]float32
	Color Color
	UV    [2]float32
}

const (
	StaticVertexSize  = int(unsafe.Sizeof(StaticVertex{}))
	ColorSize         = int(unsafe.Sizeof(Color{}))
	GenericVertexSize = int(unsafe.Sizeof(GenericVertex{}))
	IndexSize         = 2
)

// StaticBytes views vertexes as raw bytes without copying.
func StaticBytes(v []StaticVertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*StaticVertexSize)
}

// ColorBytes views colors as raw bytes without copying.
func ColorBytes(c []Color) []byte {
	if len(c) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&c[0])), len(c)*ColorSize)
}

// IndexBytes views 16-bit indexes as raw bytes without copying.
func IndexBytes(ix []uint16) []byte {
	if len(ix) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&ix[0])), len(ix)*IndexSize)
}

// GenericBytes views generic vertexes as raw bytes without copying.
func GenericBytes(v []GenericVertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*GenericVertexSize)
}
