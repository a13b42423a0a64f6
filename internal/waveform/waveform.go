// Package waveform provides the periodic lookup tables, the fog falloff
// table and the 4D value noise used by shader animation.
package waveform

import (
	"math"

	"q3backend/internal/shader"
)

const (
	TableSize = 1024
	TableMask = TableSize - 1

	FogTableSize = 256
)

var (
	SinTable             [TableSize]float32
	SquareTable          [TableSize]float32
	TriangleTable        [TableSize]float32
	SawtoothTable        [TableSize]float32
	InverseSawtoothTable [TableSize]float32

	FogTable [FogTableSize]float32
)

func init() {
	for i := 0; i < TableSize; i++ {
		SinTable[i] = float32(math.Sin(float64(i) * 360.0 / float64(TableSize-1) * math.Pi / 180))
		if i < TableSize/2 {
			SquareTable[i] = 1
		} else {
			SquareTable[i] = -1
		}
		SawtoothTable[i] = float32(i) / TableSize
		InverseSawtoothTable[i] = 1 - SawtoothTable[i]

		switch {
		case i < TableSize/4:
			TriangleTable[i] = float32(i) / (TableSize / 4)
		case i < TableSize/2:
			TriangleTable[i] = 1 - TriangleTable[i-TableSize/4]
		default:
			TriangleTable[i] = -TriangleTable[i-TableSize/2]
		}
	}

	for i := 0; i < FogTableSize; i++ {
		FogTable[i] = float32(math.Pow(float64(i)/(FogTableSize-1), 0.5))
	}

	initNoise()
}

// Table returns the lookup table for fn, or nil for GFNone and GFNoise.
func Table(fn shader.GenFunc) *[TableSize]float32 {
	switch fn {
	case shader.GFSin:
		return &SinTable
	case shader.GFTriangle:
		return &TriangleTable
	case shader.GFSquare:
		return &SquareTable
	case shader.GFSawtooth:
		return &SawtoothTable
	case shader.GFInverseSawtooth:
		return &InverseSawtoothTable
	}
	return nil
}

// Lookup samples table at phase+time*freq, wrapping on the table size.
func Lookup(table *[TableSize]float32, base, amplitude, phase, freq, time float32) float32 {
	idx := int32((phase + time*freq) * TableSize)
	return base + table[idx&TableMask]*amplitude
}

// Eval evaluates wf at time. Functions without a table evaluate to the
// base value.
func Eval(wf shader.WaveForm, time float32) float32 {
	table := Table(wf.Func)
	if table == nil {
		return wf.Base
	}
	return Lookup(table, wf.Base, wf.Amplitude, wf.Phase, wf.Frequency, time)
}

// EvalClamped is Eval clamped to [0,1]. NaN clamps to 0.
func EvalClamped(wf shader.WaveForm, time float32) float32 {
	return Clamp01(Eval(wf, time))
}

// Clamp01 clamps v to [0,1], mapping NaN to 0.
func Clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FogFactor returns the fog opacity for a fog texture coordinate.
func FogFactor(s, t float32) float32 {
	s -= 1.0 / 512
	if s < 0 {
		return 0
	}
	if t < 1.0/32 {
		return 0
	}
	if t < 31.0/32 {
		s *= (t - 1.0/32) / (30.0 / 32)
	}

	// leave a lot of clamp range
	s *= 8
	if s > 1 {
		s = 1
	}
	return FogTable[int(s*(FogTableSize-1))]
}
