package waveform

import (
	"math"
	"testing"

	"q3backend/internal/shader"
)

func TestEvalClampedStaysInUnitRange(t *testing.T) {
	funcs := []shader.GenFunc{
		shader.GFSin, shader.GFSquare, shader.GFTriangle,
		shader.GFSawtooth, shader.GFInverseSawtooth,
	}
	for _, fn := range funcs {
		wf := shader.WaveForm{Func: fn, Base: 0.5, Amplitude: 4, Frequency: 1.3}
		for step := 0; step < 500; step++ {
			tm := float32(step) * 0.037
			got := EvalClamped(wf, tm)
			if got < 0 || got > 1 {
				t.Fatalf("func %d t=%v: got %v, want value in [0,1]", fn, tm, got)
			}
		}
	}
}

func TestEvalClampedNaN(t *testing.T) {
	wf := shader.WaveForm{Func: shader.GFSin, Base: float32(math.NaN())}
	if got := EvalClamped(wf, 1); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestEvalWithoutTableReturnsBase(t *testing.T) {
	wf := shader.WaveForm{Func: shader.GFNone, Base: 0.25, Amplitude: 9}
	if got := Eval(wf, 3); got != 0.25 {
		t.Errorf("got %v, want 0.25", got)
	}
}

func TestTables(t *testing.T) {
	if SinTable[0] != 0 {
		t.Errorf("sin[0]: got %v, want 0", SinTable[0])
	}
	if got := TriangleTable[TableSize/4]; got != 1 {
		t.Errorf("triangle peak: got %v, want 1", got)
	}
	if got := TriangleTable[3*TableSize/4]; got != -1 {
		t.Errorf("triangle trough: got %v, want -1", got)
	}
	if SquareTable[0] != 1 || SquareTable[TableSize-1] != -1 {
		t.Errorf("square: got %v/%v, want 1/-1", SquareTable[0], SquareTable[TableSize-1])
	}
	if got := SawtoothTable[TableSize/2] + InverseSawtoothTable[TableSize/2]; got != 1 {
		t.Errorf("sawtooth sum: got %v, want 1", got)
	}
}

func TestNoiseDeterministic(t *testing.T) {
	a := Noise4D(1.25, -3.5, 7, 0.4)
	initNoise()
	b := Noise4D(1.25, -3.5, 7, 0.4)
	if a != b {
		t.Fatalf("got %v then %v, want identical samples", a, b)
	}
	for i := 0; i < 100; i++ {
		v := Noise4D(float32(i)*0.31, float32(i)*0.17, 3, float32(i)*0.05)
		if v < -1 || v > 1 {
			t.Fatalf("sample %d: got %v, want value in [-1,1]", i, v)
		}
	}
}

func TestNoiseAtLatticeMatchesTable(t *testing.T) {
	got := Noise4D(2, 3, 4, 5)
	want := noiseValue(2, 3, 4, 5)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFogFactor(t *testing.T) {
	tests := []struct {
		name string
		s, t float32
		want float32
	}{
		{"before plane", 0, 31.0 / 32, 0},
		{"outside", 1, 1.0 / 64, 0},
		{"deep inside", 10, 31.0 / 32, 1},
	}
	for _, tt := range tests {
		if got := FogFactor(tt.s, tt.t); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func BenchmarkNoise4D(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Noise4D(float32(i)*0.01, 1, 2, 3)
	}
}
