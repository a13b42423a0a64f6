package waveform

import "math"

const (
	noiseSize = 256
	noiseMask = noiseSize - 1
	noiseSeed = 1001

	randMax = 0x7fff
)

var (
	noiseTable [noiseSize]float32
	noisePerm  [noiseSize]int
)

// lcg reproduces the C runtime generator the noise tables were built with,
// so the same seed gives the same field on every platform.
type lcg struct{ state uint32 }

func (g *lcg) next() int {
	g.state = g.state*214013 + 2531011
	return int((g.state >> 16) & randMax)
}

func initNoise() {
	g := lcg{state: noiseSeed}
	for i := 0; i < noiseSize; i++ {
		noiseTable[i] = float32(float64(float32(g.next())/randMax)*2 - 1)
		noisePerm[i] = int(uint8(float32(g.next()) / randMax * 255))
	}
}

func perm(a int) int { return noisePerm[a&noiseMask] }

func noiseValue(x, y, z, t int) float32 {
	return noiseTable[perm(x+perm(y+perm(z+perm(t))))]
}

func lerp(a, b, w float32) float32 { return a*(1-w) + b*w }

// Noise4D samples the smooth value noise field. Output is in [-1,1].
func Noise4D(x, y, z, t float32) float32 {
	ix := int(math.Floor(float64(x)))
	fx := x - float32(ix)
	iy := int(math.Floor(float64(y)))
	fy := y - float32(iy)
	iz := int(math.Floor(float64(z)))
	fz := z - float32(iz)
	it := int(math.Floor(float64(t)))
	ft := t - float32(it)

	var value [2]float32
	for i := 0; i < 2; i++ {
		f0 := noiseValue(ix, iy, iz, it+i)
		f1 := noiseValue(ix+1, iy, iz, it+i)
		f2 := noiseValue(ix, iy+1, iz, it+i)
		f3 := noiseValue(ix+1, iy+1, iz, it+i)

		b0 := noiseValue(ix, iy, iz+1, it+i)
		b1 := noiseValue(ix+1, iy, iz+1, it+i)
		b2 := noiseValue(ix, iy+1, iz+1, it+i)
		b3 := noiseValue(ix+1, iy+1, iz+1, it+i)

		front := lerp(lerp(f0, f1, fx), lerp(f2, f3, fx), fy)
		back := lerp(lerp(b0, b1, fx), lerp(b2, b3, fx), fy)
		value[i] = lerp(front, back, fz)
	}
	return lerp(value[0], value[1], ft)
}
