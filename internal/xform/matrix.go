// Package xform builds the row-major matrices the programs consume and
// keeps the projection and modelview registers in sync.
//
// Matrices use the row-vector convention: a point p is transformed as
// p·M, so Mult(A, B) applies A first and B second.
package xform

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Matrix [4][4]float32

// Flip converts from the engine's coordinate system (looking down X) to
// clip conventions (looking down -Z).
var Flip = Matrix{
	{0, 0, -1, 0},
	{-1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 0, 1},
}

func deg2rad(a float32) float64 { return float64(a) * math.Pi / 180 }

func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Load builds a matrix from 16 floats in row order.
func Load(v [16]float32) Matrix {
	var m Matrix
	for i := 0; i < 16; i++ {
		m[i/4][i%4] = v[i]
	}
	return m
}

// Flat returns the 16 floats in row order.
func (m Matrix) Flat() [16]float32 {
	var v [16]float32
	for i := 0; i < 16; i++ {
		v[i] = m[i/4][i%4]
	}
	return v
}

// Mat4 reinterprets m as an mgl32 matrix. The memory layout is shared, so
// the result is the column-vector form of the same transform.
func (m Matrix) Mat4() mgl32.Mat4 {
	return mgl32.Mat4(m.Flat())
}

// Mult returns a·b. Both operands are taken by value so out may alias
// either input at the call site.
func Mult(a, b Matrix) Matrix {
	var out Matrix
	for i := 0; i < 4; i++ {
		row := a[i]
		for j := 0; j < 4; j++ {
			out[i][j] = row[0]*b[0][j] + row[1]*b[1][j] + row[2]*b[2][j] + row[3]*b[3][j]
		}
	}
	return out
}

// Frustum prepends a symmetric perspective projection with an infinite far
// plane.
func (m Matrix) Frustum(fovx, fovy, znear float32) Matrix {
	p := Matrix{
		{float32(1 / math.Tan(float64(fovx)*math.Pi/360)), 0, 0, 0},
		{0, float32(1 / math.Tan(float64(fovy)*math.Pi/360)), 0, 0},
		{0, 0, -1, -1},
		{0, 0, -znear, 0},
	}
	return Mult(p, m)
}

func (m Matrix) Ortho(left, right, bottom, top, zNear, zFar float32) Matrix {
	o := Matrix{
		{2 / (right - left), 0, 0, 0},
		{0, 2 / (top - bottom), 0, 0},
		{0, 0, -2 / (zFar - zNear), 0},
		{
			-((right + left) / (right - left)),
			-((top + bottom) / (top - bottom)),
			-((zFar + zNear) / (zFar - zNear)),
			1,
		},
	}
	return Mult(o, m)
}

func (m Matrix) Translate(x, y, z float32) Matrix {
	for j := 0; j < 4; j++ {
		m[3][j] += x*m[0][j] + y*m[1][j] + z*m[2][j]
	}
	return m
}

func (m Matrix) Scale(x, y, z float32) Matrix {
	for j := 0; j < 4; j++ {
		m[0][j] *= x
		m[1][j] *= y
		m[2][j] *= z
	}
	return m
}

// RotateAxis prepends a rotation of angle degrees around (x, y, z).
func (m Matrix) RotateAxis(angle, x, y, z float32) Matrix {
	axis := mgl32.Vec3{x, y, z}
	if l := axis.Len(); l > 0 {
		axis = axis.Mul(1 / l)
	}
	a := deg2rad(angle)
	sa := float32(math.Sin(a))
	ca := float32(math.Cos(a))
	ax, ay, az := axis[0], axis[1], axis[2]

	r := Matrix{
		{(1-ca)*ax*ax + ca, (1-ca)*ay*ax + sa*az, (1-ca)*az*ax - sa*ay, 0},
		{(1-ca)*ax*ay - sa*az, (1-ca)*ay*ay + ca, (1-ca)*az*ay + sa*ax, 0},
		{(1-ca)*ax*az + sa*ay, (1-ca)*ay*az - sa*ax, (1-ca)*az*az + ca, 0},
		{0, 0, 0, 1},
	}
	return Mult(r, m)
}

// Rotate prepends an Euler rotation given as pitch, yaw and roll in degrees.
func (m Matrix) Rotate(p, y, r float32) Matrix {
	sr, cr := sincos(r)
	sp, cp := sincos(p)
	sy, cy := sincos(y)

	rot := Matrix{
		{cp * cy, cp * sy, -sp, 0},
		{cr*-sy + sr*sp*cy, cr*cy + sr*sp*sy, sr * cp, 0},
		{sr*sy + cr*sp*cy, -sr*cy + cr*sp*sy, cr * cp, 0},
		{0, 0, 0, 1},
	}
	return Mult(rot, m)
}

// Camera prepends the view transform for an eye at origin looking along
// angles (pitch, yaw, roll).
func (m Matrix) Camera(origin, angles mgl32.Vec3) Matrix {
	sr, cr := sincos(angles[2])
	sp, cp := sincos(angles[0])
	sy, cy := sincos(angles[1])

	m11 := -(cr*-sy + sr*sp*cy)
	m21 := -(cr*cy + sr*sp*sy)
	m31 := -(sr * cp)

	m12 := sr*sy + cr*sp*cy
	m22 := -sr*cy + cr*sp*sy
	m32 := cr * cp

	m13 := -(cp * cy)
	m23 := -(cp * sy)
	m33 := sp

	c := Matrix{
		{m11, m12, m13, 0},
		{m21, m22, m23, 0},
		{m31, m32, m33, 0},
		{
			-origin[0]*m11 - origin[1]*m21 - origin[2]*m31,
			-origin[0]*m12 - origin[1]*m22 - origin[2]*m32,
			-origin[0]*m13 - origin[1]*m23 - origin[2]*m33,
			1,
		},
	}
	return Mult(c, m)
}

func sincos(deg float32) (float32, float32) {
	s, c := math.Sincos(deg2rad(deg))
	return float32(s), float32(c)
}

// Transform maps a point through m.
func (m Matrix) Transform(in mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		in[0]*m[0][0] + in[1]*m[1][0] + in[2]*m[2][0] + m[3][0],
		in[0]*m[0][1] + in[1]*m[1][1] + in[2]*m[2][1] + m[3][1],
		in[0]*m[0][2] + in[1]*m[1][2] + in[2]*m[2][2] + m[3][2],
	}
}

func (m Matrix) Transform4(in mgl32.Vec4) mgl32.Vec4 {
	var out mgl32.Vec4
	for j := 0; j < 4; j++ {
		out[j] = in[0]*m[0][j] + in[1]*m[1][j] + in[2]*m[2][j] + in[3]*m[3][j]
	}
	return out
}

// InverseTransform undoes Transform for an orthonormal m.
func (m Matrix) InverseTransform(in mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i := 0; i < 3; i++ {
		out[i] = in[0]*m[i][0] + in[1]*m[i][1] + in[2]*m[i][2] - dot3(m[i], m[3])
	}
	return out
}

func dot3(a, b [4]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Sgn returns 1, -1 or 0. There is no tolerance around zero.
func Sgn(a float32) float32 {
	if a > 0 {
		return 1
	}
	if a < 0 {
		return -1
	}
	return 0
}

// ObliqueNearPlane replaces the near plane of projection m with clipPlane,
// given in camera space.
func ObliqueNearPlane(m Matrix, clipPlane mgl32.Vec4) Matrix {
	// clip-space corner opposite the plane, taken back to camera space
	q := mgl32.Vec4{
		(Sgn(clipPlane[0]) + m[2][0]) / m[0][0],
		(Sgn(clipPlane[1]) + m[2][1]) / m[1][1],
		-1,
		(1 + m[2][2]) / m[3][2],
	}

	d := 1 / clipPlane.Dot(q)

	m[0][2] = clipPlane[0] * d
	m[1][2] = clipPlane[1] * d
	m[2][2] = clipPlane[2] * d
	m[3][2] = clipPlane[3] * d
	return m
}
